package engine

import (
	"fmt"
	"strings"
)

// TagFilter отбирает сценарии по тегам.
//
// Выражение задаётся списком через запятую. "@smoke,@api" выбирает
// сценарии с любым из тегов, "~@wip" исключает тег. Исключения сильнее
// включений. Пустой фильтр пропускает всё.
type TagFilter struct {
	include []string
	exclude []string
}

// ParseTagFilter разбирает выражение фильтра.
func ParseTagFilter(expr string) (TagFilter, error) {
	var f TagFilter
	for _, term := range strings.Split(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		negated := strings.HasPrefix(term, "~")
		tag := strings.TrimPrefix(term, "~")
		if !strings.HasPrefix(tag, "@") || len(tag) == 1 || strings.ContainsAny(tag, " \t") {
			return TagFilter{}, fmt.Errorf("%w: %q", ErrInvalidTagFilter, term)
		}

		if negated {
			f.exclude = append(f.exclude, tag)
		} else {
			f.include = append(f.include, tag)
		}
	}
	return f, nil
}

// Empty возвращает true для фильтра без условий.
func (f TagFilter) Empty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}

// Match проверяет сценарий.
func (f TagFilter) Match(s *Scenario) bool {
	for _, tag := range f.exclude {
		if s.HasTag(tag) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, tag := range f.include {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}

// String возвращает нормализованное выражение.
func (f TagFilter) String() string {
	terms := make([]string, 0, len(f.include)+len(f.exclude))
	terms = append(terms, f.include...)
	for _, tag := range f.exclude {
		terms = append(terms, "~"+tag)
	}
	return strings.Join(terms, ",")
}
