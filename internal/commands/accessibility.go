package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
)

// Violation — нарушение доступности.
type Violation struct {
	Rule    string
	Element string
}

func (v Violation) String() string {
	if v.Element == "" {
		return v.Rule
	}
	return v.Rule + ": " + v.Element
}

// checkAccessibility() — базовый аудит доступности страницы.
//
// Правила: непустой <title>, атрибут lang у <html>, alt у <img>,
// подписи у полей ввода, доступное имя у кнопок.
func checkAccessibility(_ context.Context, ec *execution.Context, _ ...any) (any, error) {
	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}

	violations, err := Audit(b)
	if err != nil {
		return nil, err
	}
	if len(violations) == 0 {
		return violations, nil
	}

	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return violations, expect.Mismatch("accessibility violations", "none", fmt.Sprintf("%d (%s)", len(violations), strings.Join(lines, "; ")))
}

// Audit возвращает нарушения доступности текущей страницы.
func Audit(b browser.Driver) ([]Violation, error) {
	var out []Violation

	if strings.TrimSpace(b.Title()) == "" {
		out = append(out, Violation{Rule: "document-title"})
	}

	htmlEls, err := b.QueryAll("html")
	if err != nil {
		return nil, err
	}
	if len(htmlEls) == 0 || strings.TrimSpace(htmlEls[0].Attrs["lang"]) == "" {
		out = append(out, Violation{Rule: "html-has-lang"})
	}

	images, err := b.QueryAll("img")
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if img.Visible && !img.HasAttr("alt") {
			out = append(out, Violation{Rule: "image-alt", Element: img.Describe()})
		}
	}

	fields, err := b.QueryAll("input, select, textarea")
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if !f.Visible {
			continue
		}
		switch strings.ToLower(f.Attrs["type"]) {
		case "submit", "button", "reset", "image":
			continue
		}
		labelled, err := hasLabel(b, f)
		if err != nil {
			return nil, err
		}
		if !labelled {
			out = append(out, Violation{Rule: "label", Element: f.Describe()})
		}
	}

	buttons, err := b.QueryAll(`button, input[type=submit], input[type=button]`)
	if err != nil {
		return nil, err
	}
	for _, btn := range buttons {
		if !btn.Visible {
			continue
		}
		name := btn.Text
		if name == "" {
			name = btn.Attrs["aria-label"]
		}
		if name == "" && btn.Tag == "input" {
			name = btn.Attrs["value"]
		}
		if strings.TrimSpace(name) == "" {
			out = append(out, Violation{Rule: "button-name", Element: btn.Describe()})
		}
	}

	return out, nil
}

func hasLabel(b browser.Driver, el *browser.Element) (bool, error) {
	for _, attr := range []string{"aria-label", "aria-labelledby", "title"} {
		if strings.TrimSpace(el.Attrs[attr]) != "" {
			return true, nil
		}
	}

	id := el.Attrs["id"]
	if id == "" {
		return false, nil
	}
	labels, err := b.QueryAll(fmt.Sprintf(`label[for=%q]`, id))
	if err != nil {
		return false, err
	}
	return len(labels) > 0, nil
}
