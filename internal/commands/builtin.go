package commands

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
)

// Имена встроенных команд.
const (
	Visit                       = "visit"
	Login                       = "login"
	APIRequest                  = "apiRequest"
	ValidateAPIResponse         = "validateApiResponse"
	WaitForPageLoad             = "waitForPageLoad"
	ShouldBeVisibleAndClickable = "shouldBeVisibleAndClickable"
	ValidateForm                = "validateForm"
	ValidateResponseTime        = "validateResponseTime"
	CheckAccessibility          = "checkAccessibility"
	TestMobileView              = "testMobileView"
	TestDesktopView             = "testDesktopView"
)

// APIRequestAlias — alias, под которым apiRequest сохраняет ответ.
const APIRequestAlias = "apiRequest"

// DefaultMaxResponseTime — порог validateResponseTime по умолчанию, мс.
const DefaultMaxResponseTime = 3000

// Селекторы страницы логина.
const (
	LoginPath            = "/login"
	usernameSelector     = "[data-cy=username]"
	passwordSelector     = "[data-cy=password]"
	loginButtonSelector  = "[data-cy=login-button]"
	documentBodySelector = "body"
)

// DefaultRegistry создаёт реестр со всеми встроенными командами.
//
// visit переопределяется через Overwrite: перед переходом адрес пишется
// в лог сценария.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)

	r.MustRegister(Visit, visit)
	r.MustRegister(Login, r.login)
	r.MustRegister(APIRequest, apiRequest)
	r.MustRegister(ValidateAPIResponse, validateAPIResponse)
	r.MustRegister(WaitForPageLoad, waitForPageLoad)
	r.MustRegister(ShouldBeVisibleAndClickable, shouldBeVisibleAndClickable)
	r.MustRegister(ValidateForm, validateForm)
	r.MustRegister(ValidateResponseTime, validateResponseTime)
	r.MustRegister(CheckAccessibility, checkAccessibility)
	r.MustRegister(TestMobileView, viewportCommand(domain.ViewportMobile))
	r.MustRegister(TestDesktopView, viewportCommand(domain.ViewportDesktop))

	_ = r.Overwrite(Visit, func(original Action) Action {
		return func(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
			if url, err := ArgString(args, 0); err == nil {
				ec.Logger().InfoContext(ctx, "visit", "url", url)
			}
			return original(ctx, ec, args...)
		}
	})

	return r
}

// visit(url) — загрузка страницы.
func visit(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
	url, err := ArgString(args, 0)
	if err != nil {
		return nil, err
	}

	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}
	if err := b.Visit(ctx, url); err != nil {
		return nil, err
	}
	return b.URL(), nil
}

// login(username, password) — вход через форму /login.
// Команда вызывает visit через реестр, поэтому переопределения visit
// действуют и здесь.
func (r *Registry) login(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
	username, err := ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	password, err := ArgString(args, 1)
	if err != nil {
		return nil, err
	}

	if _, err := r.Invoke(ctx, ec, Visit, LoginPath); err != nil {
		return nil, err
	}

	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}
	if err := b.Type(ctx, usernameSelector, username); err != nil {
		return nil, err
	}
	if err := b.Type(ctx, passwordSelector, password); err != nil {
		return nil, err
	}
	if err := b.Click(ctx, loginButtonSelector); err != nil {
		return nil, err
	}

	err = expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		return expect.NotContains("url after login", b.URL(), LoginPath)
	})
	if err != nil {
		return nil, err
	}
	return b.URL(), nil
}

// apiRequest(method, endpoint, [RequestOptions]) — HTTP запрос к API.
// Ответ сохраняется в контексте и под alias "apiRequest".
func apiRequest(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
	method, err := ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	endpoint, err := ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	opts, err := ArgRequestOptions(args, 2)
	if err != nil {
		return nil, err
	}

	target, err := ec.APIURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range opts.Headers {
		for existing := range headers {
			if strings.EqualFold(existing, k) {
				delete(headers, existing)
			}
		}
		headers[k] = v
	}

	resp, err := ec.API().Do(ctx, apiclient.Request{
		Method:  method,
		URL:     target,
		Headers: headers,
		Query:   opts.Query,
		Body:    opts.Body,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	ec.SetResponse(resp)
	ec.Alias(APIRequestAlias, resp)
	return resp, nil
}

// validateApiResponse(response|nil, fields) — статус 200/201/204 и наличие полей.
// Без ответа в аргументах проверяется последний сохранённый.
func validateAPIResponse(_ context.Context, ec *execution.Context, args ...any) (any, error) {
	var resp *apiclient.Response
	if len(args) > 0 {
		if r, ok := args[0].(*apiclient.Response); ok {
			resp = r
		}
	}
	if resp == nil {
		r, err := ec.Response()
		if err != nil {
			return nil, err
		}
		resp = r
	}

	fields, err := ArgStrings(args, 1)
	if err != nil {
		return nil, err
	}

	if err := expect.OneOf("response status", resp.Status, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return nil, err
	}

	if len(resp.Raw) == 0 {
		return resp, nil
	}
	root := resp.Root()
	for _, field := range fields {
		if !root.Get(field).Exists() {
			return nil, expect.Mismatch("response body", fmt.Sprintf("to have property %q", field), root.Raw)
		}
	}
	return resp, nil
}

// waitForPageLoad() — body видим и документ загружен.
func waitForPageLoad(ctx context.Context, ec *execution.Context, _ ...any) (any, error) {
	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}

	err = expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		if _, err := VisibleElement(b, documentBodySelector); err != nil {
			return err
		}
		return expect.Equal("document.readyState", browser.ReadyStateComplete, b.ReadyState())
	})
	return nil, err
}

// shouldBeVisibleAndClickable(selector) — элемент видим и не заблокирован.
func shouldBeVisibleAndClickable(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
	selector, err := ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}

	var found *browser.Element
	err = expect.Eventually(ctx, ec.CommandTimeout(), func() error {
		el, err := VisibleElement(b, selector)
		if err != nil {
			return err
		}
		if el.Disabled {
			return expect.Failf("expected %s to be enabled", el.Describe())
		}
		found = el
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// validateForm(formSelector, map[field]FormRule) — атрибуты полей формы.
func validateForm(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
	formSelector, err := ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	rules, err := ArgFormRules(args, 1)
	if err != nil {
		return nil, err
	}
	b, err := ec.Browser()
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		rule := rules[field]
		selector := fmt.Sprintf(`[name=%q]`, field)

		var el *browser.Element
		err := expect.Eventually(ctx, ec.CommandTimeout(), func() error {
			found, err := b.QueryWithin(formSelector, selector)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return expect.Failf("expected form %s to contain %s", formSelector, selector)
			}
			el = found[0]
			return nil
		})
		if err != nil {
			return nil, err
		}

		if err := checkFormRule(field, rule, el); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func checkFormRule(field string, rule domain.FormRule, el *browser.Element) error {
	if rule.Required && !el.HasAttr("required") {
		return expect.Failf("expected field %q to have attribute required", field)
	}

	attrs := []struct {
		name string
		want string
	}{
		{"type", rule.Type},
		{"placeholder", rule.Placeholder},
		{"pattern", rule.Pattern},
	}
	if rule.MinLength > 0 {
		attrs = append(attrs, struct{ name, want string }{"minlength", strconv.Itoa(rule.MinLength)})
	}
	if rule.MaxLength > 0 {
		attrs = append(attrs, struct{ name, want string }{"maxlength", strconv.Itoa(rule.MaxLength)})
	}

	for _, a := range attrs {
		if a.want == "" {
			continue
		}
		got, ok := el.Attr(a.name)
		if a.name == "type" && !ok && el.Tag == "input" {
			got, ok = "text", true
		}
		if !ok {
			return expect.Failf("expected field %q to have attribute %s", field, a.name)
		}
		if err := expect.Equal(fmt.Sprintf("field %q attribute %s", field, a.name), a.want, got); err != nil {
			return err
		}
	}

	if rule.Pattern != "" {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("%w: pattern for %q: %v", ErrInvalidArgs, field, err)
		}
	}
	return nil
}

// validateResponseTime([maxMs]) — длительность запроса @apiRequest меньше порога.
func validateResponseTime(_ context.Context, ec *execution.Context, args ...any) (any, error) {
	maxMs, err := ArgInt(args, 0, DefaultMaxResponseTime)
	if err != nil {
		return nil, err
	}

	v, err := ec.Aliased(APIRequestAlias)
	if err != nil {
		return nil, err
	}
	resp, ok := v.(*apiclient.Response)
	if !ok {
		return nil, fmt.Errorf("%w: @%s is %T, not a response", ErrInvalidArgs, APIRequestAlias, v)
	}

	if err := expect.Less("response duration (ms)", resp.Duration.Milliseconds(), int64(maxMs)); err != nil {
		return nil, err
	}
	return resp.Duration, nil
}

// viewportCommand меняет размер окна и проверяет, что body видим.
func viewportCommand(v domain.Viewport) Action {
	return func(ctx context.Context, ec *execution.Context, _ ...any) (any, error) {
		b, err := ec.Browser()
		if err != nil {
			return nil, err
		}
		b.SetViewport(v)

		err = expect.Eventually(ctx, ec.CommandTimeout(), func() error {
			_, err := VisibleElement(b, documentBodySelector)
			return err
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// VisibleElement возвращает первый видимый элемент по селектору.
// Отсутствие или невидимость — AssertionError, чтобы Eventually повторял попытку.
func VisibleElement(b browser.Driver, selector string) (*browser.Element, error) {
	els, err := b.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, expect.Failf("expected to find element %s, but never found it", selector)
	}
	for _, el := range els {
		if el.Visible {
			return el, nil
		}
	}
	return nil, expect.Failf("expected %s to be visible", els[0].Describe())
}
