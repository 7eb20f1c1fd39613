package browser

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// compile разбирает CSS-селектор.
func compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(strings.TrimSpace(selector))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}
	return sel, nil
}

// getAttr возвращает атрибут узла.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// setAttr устанавливает атрибут узла.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// removeAttr удаляет атрибут узла.
func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := getAttr(n, key)
	return ok
}

// inputType возвращает type поля ввода в нижнем регистре ("text" по умолчанию).
func inputType(n *html.Node) string {
	t, ok := getAttr(n, "type")
	if !ok || t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// hiddenTags — элементы, которые никогда не отображаются.
var hiddenTags = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Noscript: true,
}

// hiddenSelf проверяет, скрыт ли сам узел (без учёта предков).
func hiddenSelf(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if hiddenTags[n.DataAtom] {
		return true
	}
	if hasAttr(n, "hidden") {
		return true
	}
	if v, _ := getAttr(n, "aria-hidden"); v == "true" {
		return true
	}
	if n.DataAtom == atom.Input && inputType(n) == "hidden" {
		return true
	}
	if style, ok := getAttr(n, "style"); ok {
		s := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
			return true
		}
	}
	return false
}

// visible проверяет узел и всех его предков.
func visible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if hiddenSelf(p) {
			return false
		}
	}
	return true
}

// disabled проверяет атрибут disabled у узла и у fieldset-предка.
func disabled(n *html.Node) bool {
	if hasAttr(n, "disabled") {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Fieldset && hasAttr(p, "disabled") {
			return true
		}
	}
	return false
}

// textContent собирает текст узла, пропуская script/style.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// visibleText собирает только видимый текст поддерева.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hiddenSelf(n) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// findFirst ищет первый элемент по тегу.
func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// closest ищет ближайшего предка (включая сам узел) с тегом a.
func closest(n *html.Node, a atom.Atom) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == a {
			return p
		}
	}
	return nil
}

// fieldValue возвращает текущее значение поля формы.
func fieldValue(n *html.Node) string {
	switch n.DataAtom {
	case atom.Textarea:
		if v, ok := getAttr(n, "value"); ok {
			return v
		}
		return textContent(n)
	case atom.Select:
		var first string
		var firstSet bool
		var selected string
		var found bool
		var walk func(*html.Node)
		walk = func(c *html.Node) {
			if c.Type == html.ElementNode && c.DataAtom == atom.Option {
				v, ok := getAttr(c, "value")
				if !ok {
					v = textContent(c)
				}
				if !firstSet {
					first, firstSet = v, true
				}
				if hasAttr(c, "selected") && !found {
					selected, found = v, true
				}
			}
			for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
				walk(ch)
			}
		}
		walk(n)
		if found {
			return selected
		}
		return first
	default:
		v, _ := getAttr(n, "value")
		return v
	}
}

// isTextField — поле, в которое можно вводить текст.
func isTextField(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Textarea:
		return true
	case atom.Input:
		switch inputType(n) {
		case "checkbox", "radio", "submit", "button", "reset", "image", "file", "hidden":
			return false
		}
		return true
	}
	return false
}

// isCheckable — checkbox или radio.
func isCheckable(n *html.Node) bool {
	if n.DataAtom != atom.Input {
		return false
	}
	t := inputType(n)
	return t == "checkbox" || t == "radio"
}

// isSubmitter — кнопка, отправляющая форму.
func isSubmitter(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button:
		t, ok := getAttr(n, "type")
		return !ok || strings.EqualFold(t, "submit") || t == ""
	case atom.Input:
		t := inputType(n)
		return t == "submit" || t == "image"
	}
	return false
}

// snapshot строит Element из узла.
func snapshot(n *html.Node, focused *html.Node) *Element {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	return &Element{
		Tag:      n.Data,
		Attrs:    attrs,
		Text:     textContent(n),
		Value:    fieldValue(n),
		Visible:  visible(n),
		Disabled: disabled(n),
		Checked:  hasAttr(n, "checked"),
		Focused:  n == focused,
	}
}
