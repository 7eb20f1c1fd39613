package browser

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/shaiso/Probe/internal/domain"
)

const (
	maxPageSize        = 5 * 1024 * 1024 // 5 MB
	defaultPageTimeout = 30 * time.Second
	readyStateLoading  = "loading"
)

// HTTPDriver — Driver поверх net/http и golang.org/x/net/html.
type HTTPDriver struct {
	mu sync.Mutex

	base        *url.URL
	client      *http.Client
	pageTimeout time.Duration

	doc      *html.Node
	current  *url.URL
	status   int
	focused  *html.Node
	viewport domain.Viewport
}

// HTTPDriverConfig — конфигурация HTTPDriver.
type HTTPDriverConfig struct {
	// BaseURL — база для относительных адресов Visit.
	BaseURL string

	// PageTimeout — таймаут загрузки страницы (default: 30s).
	PageTimeout time.Duration

	Viewport domain.Viewport

	// InsecureTLS отключает проверку сертификатов.
	InsecureTLS bool
}

// NewHTTPDriver создаёт драйвер с собственным cookie jar.
func NewHTTPDriver(cfg HTTPDriverConfig) (*HTTPDriver, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base = u
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	pageTimeout := cfg.PageTimeout
	if pageTimeout <= 0 {
		pageTimeout = defaultPageTimeout
	}

	viewport := cfg.Viewport
	if viewport.Width == 0 || viewport.Height == 0 {
		viewport = domain.ViewportDefault
	}

	client := &http.Client{Jar: jar}
	if cfg.InsecureTLS {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}

	return &HTTPDriver{
		base:        base,
		client:      client,
		pageTimeout: pageTimeout,
		viewport:    viewport,
	}, nil
}

// Visit загружает страницу.
func (d *HTTPDriver) Visit(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, err := d.resolve(d.base, rawURL)
	if err != nil {
		return err
	}
	return d.navigate(ctx, http.MethodGet, target, nil, "")
}

// URL возвращает адрес текущей страницы.
func (d *HTTPDriver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return ""
	}
	return d.current.String()
}

// Status возвращает HTTP статус последней навигации.
func (d *HTTPDriver) Status() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Title возвращает заголовок документа.
func (d *HTTPDriver) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return ""
	}
	if t := findFirst(d.doc, atom.Title); t != nil {
		return textContent(t)
	}
	return ""
}

// ReadyState возвращает состояние загрузки документа.
func (d *HTTPDriver) ReadyState() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return readyStateLoading
	}
	return ReadyStateComplete
}

// Query возвращает первый элемент по селектору.
func (d *HTTPDriver) Query(selector string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.first(selector)
	if err != nil {
		return nil, err
	}
	return snapshot(n, d.focused), nil
}

// QueryAll возвращает все элементы по селектору.
func (d *HTTPDriver) QueryAll(selector string) ([]*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := d.all(d.doc, selector)
	if err != nil {
		return nil, err
	}
	return d.snapshots(nodes), nil
}

// QueryWithin ищет элементы внутри первого элемента scope.
func (d *HTTPDriver) QueryWithin(scope, selector string) ([]*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	root, err := d.first(scope)
	if err != nil {
		return nil, err
	}

	nodes, err := d.all(root, selector)
	if err != nil {
		return nil, err
	}

	out := nodes[:0]
	for _, n := range nodes {
		if n != root {
			out = append(out, n)
		}
	}
	return d.snapshots(out), nil
}

// Contains проверяет видимый текст страницы.
func (d *HTTPDriver) Contains(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return false
	}
	return strings.Contains(visibleText(d.doc), strings.Join(strings.Fields(text), " "))
}

// Type дописывает текст в поле ввода.
func (d *HTTPDriver) Type(_ context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.interactable(selector)
	if err != nil {
		return err
	}
	if !isTextField(n) {
		return fmt.Errorf("%w: %s is not a text field", ErrNotInteractable, selector)
	}

	setAttr(n, "value", fieldValue(n)+text)
	d.focused = n
	return nil
}

// Clear очищает поле ввода.
func (d *HTTPDriver) Clear(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.interactable(selector)
	if err != nil {
		return err
	}
	if !isTextField(n) {
		return fmt.Errorf("%w: %s is not a text field", ErrNotInteractable, selector)
	}

	setAttr(n, "value", "")
	d.focused = n
	return nil
}

// Check отмечает checkbox или radio.
func (d *HTTPDriver) Check(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.interactable(selector)
	if err != nil {
		return err
	}
	if !isCheckable(n) {
		return fmt.Errorf("%w: %s is not a checkbox or radio", ErrNotInteractable, selector)
	}

	d.setChecked(n, true)
	d.focused = n
	return nil
}

// Click кликает по элементу.
//
// Клик по ссылке переходит по href, по кнопке отправки отправляет форму.
// Checkbox переключается. Кнопка с data-toggle-password меняет тип поля
// пароля.
func (d *HTTPDriver) Click(ctx context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.interactable(selector)
	if err != nil {
		return err
	}
	d.focused = n

	if target, ok := getAttr(n, "data-toggle-password"); ok {
		return d.togglePassword(n, target)
	}

	switch {
	case n.DataAtom == atom.A:
		href, ok := getAttr(n, "href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return nil
		}
		target, err := d.resolve(d.current, href)
		if err != nil {
			return err
		}
		return d.navigate(ctx, http.MethodGet, target, nil, "")

	case isCheckable(n):
		d.setChecked(n, !hasAttr(n, "checked") || inputType(n) == "radio")
		return nil

	case isSubmitter(n):
		form := formOwner(d.doc, n)
		if form == nil {
			return nil
		}
		return d.submit(ctx, form, n)
	}

	return nil
}

// SetContent заменяет документ.
func (d *HTTPDriver) SetContent(markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	d.doc = doc
	d.focused = nil
	if d.current == nil {
		d.current = &url.URL{Scheme: "about", Opaque: "blank"}
	}
	return nil
}

// SetViewport задаёт размер окна.
func (d *HTTPDriver) SetViewport(v domain.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = v
}

// Viewport возвращает размер окна.
func (d *HTTPDriver) Viewport() domain.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// Close освобождает соединения драйвера.
func (d *HTTPDriver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// navigate выполняет запрос, следует редиректам и загружает документ.
// Статус ответа не влияет на результат: страница 401 тоже отображается.
func (d *HTTPDriver) navigate(ctx context.Context, method string, target *url.URL, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, d.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNavigation, method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNavigation, err)
	}

	doc, err := parseDocument(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	d.doc = doc
	d.current = resp.Request.URL
	d.status = resp.StatusCode
	d.focused = nil
	return nil
}

// parseDocument разбирает HTML; не-HTML ответ оборачивается в <pre>.
func parseDocument(contentType string, raw []byte) (*html.Node, error) {
	ct := strings.ToLower(contentType)
	if ct == "" || strings.Contains(ct, "html") {
		return html.Parse(bytes.NewReader(raw))
	}

	var b strings.Builder
	b.WriteString("<!doctype html><html><body><pre>")
	b.WriteString(html.EscapeString(string(raw)))
	b.WriteString("</pre></body></html>")
	return html.Parse(strings.NewReader(b.String()))
}

// resolve разрешает адрес относительно base.
func (d *HTTPDriver) resolve(base *url.URL, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url %q: %v", ErrNavigation, raw, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	if base == nil || base.Scheme == "about" {
		base = d.base
	}
	if base == nil {
		return nil, fmt.Errorf("%w: relative url %q without base url", ErrNavigation, raw)
	}
	return base.ResolveReference(u), nil
}

// first возвращает первый узел по селектору.
func (d *HTTPDriver) first(selector string) (*html.Node, error) {
	nodes, err := d.all(d.doc, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nodes[0], nil
}

// all возвращает узлы по селектору внутри root.
func (d *HTTPDriver) all(root *html.Node, selector string) ([]*html.Node, error) {
	if d.doc == nil || root == nil {
		return nil, ErrNoPage
	}
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	return sel.MatchAll(root), nil
}

// interactable возвращает первый видимый и доступный элемент по селектору.
func (d *HTTPDriver) interactable(selector string) (*html.Node, error) {
	nodes, err := d.all(d.doc, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}

	for _, n := range nodes {
		if visible(n) && !disabled(n) {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is hidden or disabled", ErrNotInteractable, selector)
}

func (d *HTTPDriver) snapshots(nodes []*html.Node) []*Element {
	out := make([]*Element, len(nodes))
	for i, n := range nodes {
		out[i] = snapshot(n, d.focused)
	}
	return out
}

// setChecked отмечает поле; для radio снимает отметку с группы.
func (d *HTTPDriver) setChecked(n *html.Node, checked bool) {
	if !checked {
		removeAttr(n, "checked")
		return
	}

	if inputType(n) == "radio" {
		name, _ := getAttr(n, "name")
		if form := formOwner(d.doc, n); form != nil && name != "" {
			for _, other := range formControls(form) {
				if other != n && isCheckable(other) && inputType(other) == "radio" {
					if otherName, _ := getAttr(other, "name"); otherName == name {
						removeAttr(other, "checked")
					}
				}
			}
		}
	}
	setAttr(n, "checked", "")
}

// togglePassword переключает type поля между password и text.
func (d *HTTPDriver) togglePassword(toggle *html.Node, target string) error {
	var field *html.Node
	if target != "" {
		n, err := d.first(target)
		if err != nil {
			return err
		}
		field = n
	} else if form := formOwner(d.doc, toggle); form != nil {
		for _, c := range formControls(form) {
			if c.DataAtom == atom.Input && hasAttr(c, "data-password") {
				field = c
				break
			}
		}
	}
	if field == nil {
		return fmt.Errorf("%w: password toggle has no target", ErrNotFound)
	}

	if inputType(field) == "password" {
		setAttr(field, "type", "text")
	} else {
		setAttr(field, "type", "password")
	}
	return nil
}
