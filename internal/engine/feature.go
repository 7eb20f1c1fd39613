package engine

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/shaiso/Probe/internal/pattern"
)

// FeatureExt — расширение feature файлов.
const FeatureExt = ".feature"

// Feature — разобранный feature файл.
type Feature struct {
	URI         string
	Name        string
	Description string
	Tags        []string
	Scenarios   []*Scenario
}

// Scenario — готовый к выполнению сценарий.
//
// Background уже подставлен в начало Steps, строка Scenario Outline
// развёрнута в отдельный сценарий со своими значениями.
type Scenario struct {
	ID      string
	URI     string
	Feature string
	Name    string
	Line    int
	Tags    []string // теги feature, rule, сценария и examples
	Steps   []*Step
}

// Location возвращает file:line сценария.
func (s *Scenario) Location() string {
	return fmt.Sprintf("%s:%d", s.URI, s.Line)
}

// HasTag проверяет наличие тега (с @).
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Step — шаг сценария.
type Step struct {
	Keyword string // "Given ", "When ", "And " ...
	Text    string
	Line    int
	Table   *pattern.DataTable // nil, если таблицы нет
}

// ParseFeature разбирает feature из r. uri используется в сообщениях
// и в Location сценариев.
func ParseFeature(uri string, r io.Reader) (*Feature, error) {
	newID := (&messages.Incrementing{}).NewId

	doc, err := gherkin.ParseGherkinDocument(r, newID)
	if err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}
	if doc.Feature == nil {
		// Пустой файл или только комментарии
		return &Feature{URI: uri}, nil
	}

	f := &Feature{
		URI:         uri,
		Name:        doc.Feature.Name,
		Description: strings.TrimSpace(doc.Feature.Description),
		Tags:        tagNames(doc.Feature.Tags),
	}

	lines := astLines(doc.Feature)
	keywords := stepKeywords(doc.Feature)

	for _, p := range gherkin.Pickles(*doc, uri, newID) {
		sc := &Scenario{
			ID:      p.Id,
			URI:     uri,
			Feature: f.Name,
			Name:    p.Name,
			Line:    pickleLine(p.AstNodeIds, lines),
			Tags:    pickleTags(p.Tags),
		}
		for _, ps := range p.Steps {
			step := &Step{Text: ps.Text}
			if len(ps.AstNodeIds) > 0 {
				// Для outline второй id — строка examples, строка шага берётся по первому
				step.Line = lines[ps.AstNodeIds[0]]
				step.Keyword = keywords[ps.AstNodeIds[0]]
			}
			if ps.Argument != nil && ps.Argument.DocString != nil {
				return nil, &ParseError{
					URI: uri,
					Err: fmt.Errorf("%w: line %d: %s", ErrDocString, step.Line, ps.Text),
				}
			}
			if ps.Argument != nil && ps.Argument.DataTable != nil {
				step.Table = pickleTable(ps.Argument.DataTable)
			}
			sc.Steps = append(sc.Steps, step)
		}
		f.Scenarios = append(f.Scenarios, sc)
	}
	return f, nil
}

// ParseFeatureFile разбирает feature файл по пути.
func ParseFeatureFile(path string) (*Feature, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseFeature(filepath.ToSlash(path), file)
}

// LoadFeatures загружает feature файлы. Каталоги обходятся рекурсивно,
// файлы внутри каталога берутся в лексикографическом порядке.
func LoadFeatures(paths []string) ([]*Feature, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), FeatureExt) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFeatures, strings.Join(paths, ", "))
	}

	features := make([]*Feature, 0, len(files))
	for _, file := range files {
		f, err := ParseFeatureFile(file)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

// Scenarios возвращает сценарии всех features по порядку.
func Scenarios(features []*Feature) []*Scenario {
	var out []*Scenario
	for _, f := range features {
		out = append(out, f.Scenarios...)
	}
	return out
}

// astLines строит карту id узла AST -> номер строки для сценариев,
// шагов и строк examples.
func astLines(feature *messages.Feature) map[string]int {
	lines := make(map[string]int)

	addSteps := func(steps []*messages.Step) {
		for _, s := range steps {
			lines[s.Id] = int(s.Location.Line)
		}
	}
	addScenario := func(sc *messages.Scenario) {
		lines[sc.Id] = int(sc.Location.Line)
		addSteps(sc.Steps)
		for _, ex := range sc.Examples {
			for _, row := range ex.TableBody {
				lines[row.Id] = int(row.Location.Line)
			}
		}
	}

	for _, child := range feature.Children {
		switch {
		case child.Background != nil:
			addSteps(child.Background.Steps)
		case child.Scenario != nil:
			addScenario(child.Scenario)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					addSteps(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					addScenario(rc.Scenario)
				}
			}
		}
	}
	return lines
}

// stepKeywords строит карту id шага -> ключевое слово.
func stepKeywords(feature *messages.Feature) map[string]string {
	keywords := make(map[string]string)

	add := func(steps []*messages.Step) {
		for _, s := range steps {
			keywords[s.Id] = s.Keyword
		}
	}

	for _, child := range feature.Children {
		switch {
		case child.Background != nil:
			add(child.Background.Steps)
		case child.Scenario != nil:
			add(child.Scenario.Steps)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					add(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					add(rc.Scenario.Steps)
				}
			}
		}
	}
	return keywords
}

// pickleLine возвращает строку последнего известного узла: для outline
// это строка examples, иначе строка сценария или шага.
func pickleLine(ids []string, lines map[string]int) int {
	line := 0
	for _, id := range ids {
		if l, ok := lines[id]; ok {
			line = l
		}
	}
	return line
}

func pickleTags(tags []*messages.PickleTag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func tagNames(tags []*messages.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func pickleTable(t *messages.PickleTable) *pattern.DataTable {
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			row = append(row, c.Value)
		}
		rows = append(rows, row)
	}
	return pattern.NewDataTable(rows)
}
