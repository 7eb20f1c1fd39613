package browser

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// formOwner возвращает форму элемента: атрибут form="id" или ближайший <form>.
func formOwner(doc, n *html.Node) *html.Node {
	if id, ok := getAttr(n, "form"); ok && id != "" && doc != nil {
		var found *html.Node
		var walk func(*html.Node)
		walk = func(c *html.Node) {
			if found != nil {
				return
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Form {
				if v, _ := getAttr(c, "id"); v == id {
					found = c
					return
				}
			}
			for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
				walk(ch)
			}
		}
		walk(doc)
		if found != nil {
			return found
		}
	}
	return closest(n, atom.Form)
}

// formControls возвращает поля формы в порядке документа.
func formControls(form *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Input, atom.Select, atom.Textarea, atom.Button:
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	return out
}

// missingRequired возвращает имена пустых обязательных полей.
func missingRequired(controls []*html.Node) []string {
	var missing []string
	for _, c := range controls {
		if !hasAttr(c, "required") || disabled(c) {
			continue
		}
		name, _ := getAttr(c, "name")

		switch {
		case isCheckable(c):
			if !hasAttr(c, "checked") {
				missing = append(missing, name)
			}
		case c.DataAtom == atom.Button:
		default:
			if strings.TrimSpace(fieldValue(c)) == "" {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// setValidationMessages показывает сообщения [data-validation-for] для
// пустых полей и скрывает остальные.
func setValidationMessages(form *html.Node, missing []string) {
	invalid := make(map[string]bool, len(missing))
	for _, name := range missing {
		invalid[name] = true
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if field, ok := getAttr(n, "data-validation-for"); ok {
				if invalid[field] {
					removeAttr(n, "hidden")
					removeAttr(n, "style")
				} else {
					setAttr(n, "hidden", "")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
}

// serializeForm собирает значения формы как application/x-www-form-urlencoded.
func serializeForm(controls []*html.Node, submitter *html.Node) url.Values {
	values := url.Values{}
	for _, c := range controls {
		name, ok := getAttr(c, "name")
		if !ok || name == "" || disabled(c) {
			continue
		}

		switch {
		case c.DataAtom == atom.Button || (c.DataAtom == atom.Input && isSubmitter(c)):
			if c != submitter {
				continue
			}
			values.Add(name, fieldValue(c))
		case isCheckable(c):
			if !hasAttr(c, "checked") {
				continue
			}
			v, ok := getAttr(c, "value")
			if !ok {
				v = "on"
			}
			values.Add(name, v)
		case c.DataAtom == atom.Input:
			switch inputType(c) {
			case "reset", "button", "file", "image":
				continue
			}
			values.Add(name, fieldValue(c))
		default:
			values.Add(name, fieldValue(c))
		}
	}
	return values
}

// submit валидирует и отправляет форму.
//
// Пустое обязательное поле останавливает отправку, как в браузере,
// и показывает соответствующие сообщения валидации.
func (d *HTTPDriver) submit(ctx context.Context, form, submitter *html.Node) error {
	controls := formControls(form)

	if !hasAttr(form, "novalidate") && !hasAttr(submitter, "formnovalidate") {
		missing := missingRequired(controls)
		setValidationMessages(form, missing)
		if len(missing) > 0 {
			return nil
		}
	}

	action, _ := getAttr(form, "action")
	if v, ok := getAttr(submitter, "formaction"); ok {
		action = v
	}
	target := d.current
	if action != "" {
		resolved, err := d.resolve(d.current, action)
		if err != nil {
			return err
		}
		target = resolved
	}
	if target == nil {
		return ErrNoPage
	}

	method, _ := getAttr(form, "method")
	if v, ok := getAttr(submitter, "formmethod"); ok {
		method = v
	}

	values := serializeForm(controls, submitter)

	if strings.EqualFold(method, http.MethodPost) {
		return d.navigate(ctx, http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
	}

	u := *target
	u.RawQuery = values.Encode()
	u.Fragment = ""
	return d.navigate(ctx, http.MethodGet, &u, nil, "")
}
