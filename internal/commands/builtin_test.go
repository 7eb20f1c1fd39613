package commands

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/demoapp"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
)

type fixture struct {
	registry *Registry
	ec       *execution.Context
	browser  *browser.HTTPDriver
	url      string
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := httptest.NewServer(demoapp.NewHandler(demoapp.Config{}).Routes())
	t.Cleanup(server.Close)

	d, err := browser.NewHTTPDriver(browser.HTTPDriverConfig{BaseURL: server.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	logs := &bytes.Buffer{}
	ec := execution.New(execution.Config{
		Browser:        d,
		APIBaseURL:     server.URL,
		CommandTimeout: 200 * time.Millisecond,
		Logger:         slog.New(slog.NewJSONHandler(logs, nil)),
	})

	return &fixture{
		registry: DefaultRegistry(),
		ec:       ec,
		browser:  d,
		url:      server.URL,
		logs:     logs,
	}
}

func (f *fixture) invoke(name string, args ...any) (any, error) {
	return f.registry.Invoke(context.Background(), f.ec, name, args...)
}

func TestDefaultRegistry_Names(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{
		Visit, Login, APIRequest, ValidateAPIResponse, WaitForPageLoad,
		ShouldBeVisibleAndClickable, ValidateForm, ValidateResponseTime,
		CheckAccessibility, TestMobileView, TestDesktopView,
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.Equal(t, 11, r.Count())
}

func TestVisit_LogsURL(t *testing.T) {
	f := newFixture(t)

	_, err := f.invoke(Visit, "/login")
	require.NoError(t, err)
	assert.Equal(t, f.url+"/login", f.browser.URL())
	assert.Contains(t, f.logs.String(), `"msg":"visit"`)
	assert.Contains(t, f.logs.String(), `"url":"/login"`)
	assert.Contains(t, f.logs.String(), `"scenario_id"`)
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.invoke(Login, "valid_user", "correct_pass")
		require.NoError(t, err)
		assert.Equal(t, f.url+"/dashboard", got)
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.invoke(Login, "invalid_user", "wrong_pass")
		assert.ErrorIs(t, err, expect.ErrTimeout)
		assert.ErrorIs(t, err, expect.ErrAssertion)
		assert.Equal(t, f.url+"/login", f.browser.URL())
	})

	t.Run("missing args", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.invoke(Login, "valid_user")
		assert.ErrorIs(t, err, ErrInvalidArgs)
	})

	t.Run("uses overwritten visit", func(t *testing.T) {
		f := newFixture(t)

		var visited []string
		require.NoError(t, f.registry.Overwrite(Visit, func(original Action) Action {
			return func(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
				url, _ := ArgString(args, 0)
				visited = append(visited, url)
				return original(ctx, ec, args...)
			}
		}))

		_, err := f.invoke(Login, "valid_user", "correct_pass")
		require.NoError(t, err)
		assert.Equal(t, []string{LoginPath}, visited)
	})
}

func TestAPIRequest(t *testing.T) {
	f := newFixture(t)

	got, err := f.invoke(APIRequest, http.MethodGet, "/users")
	require.NoError(t, err)

	resp, ok := got.(*apiclient.Response)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Len(t, resp.Root().Array(), 10)

	last, err := f.ec.Response()
	require.NoError(t, err)
	assert.Same(t, resp, last)

	aliased, err := f.ec.Aliased(APIRequestAlias)
	require.NoError(t, err)
	assert.Same(t, resp, aliased)

	_, err = f.invoke(APIRequest, http.MethodGet)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestAPIRequest_Headers(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ec := execution.New(execution.Config{APIBaseURL: server.URL})
	r := DefaultRegistry()

	_, err := r.Invoke(context.Background(), ec, APIRequest, http.MethodGet, "/ping", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", got.Get("Content-Type"))

	_, err = r.Invoke(context.Background(), ec, APIRequest, http.MethodPost, "/ping", RequestOptions{
		Headers: map[string]string{"content-type": "text/plain", "X-Trace": "probe"},
		Body:    "raw",
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got.Get("Content-Type"))
	assert.Equal(t, "probe", got.Get("X-Trace"))
}

func TestAPIRequest_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ec := execution.New(execution.Config{APIBaseURL: url})
	_, err := DefaultRegistry().Invoke(context.Background(), ec, APIRequest, http.MethodGet, "/users")
	assert.ErrorIs(t, err, apiclient.ErrNetwork)

	_, err = ec.Response()
	assert.ErrorIs(t, err, execution.ErrNoResponse)
}

func TestValidateAPIResponse(t *testing.T) {
	f := newFixture(t)

	_, err := f.invoke(ValidateAPIResponse, nil, []string{})
	assert.ErrorIs(t, err, execution.ErrNoResponse)

	got, err := f.invoke(APIRequest, http.MethodGet, "/users/1")
	require.NoError(t, err)

	_, err = f.invoke(ValidateAPIResponse, got, []string{"id", "name", "email"})
	require.NoError(t, err)

	_, err = f.invoke(ValidateAPIResponse, nil, []string{"id", "salary"})
	assert.ErrorIs(t, err, expect.ErrAssertion)

	_, err = f.invoke(APIRequest, http.MethodGet, "/users/999999")
	require.NoError(t, err)
	_, err = f.invoke(ValidateAPIResponse, nil, []string{})
	assert.ErrorIs(t, err, expect.ErrAssertion)
}

func TestValidateResponseTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.invoke(ValidateResponseTime)
	assert.ErrorIs(t, err, execution.ErrUnknownAlias)

	_, err = f.invoke(APIRequest, http.MethodGet, "/users")
	require.NoError(t, err)

	d, err := f.invoke(ValidateResponseTime)
	require.NoError(t, err)
	assert.Less(t, d.(time.Duration), DefaultMaxResponseTime*time.Millisecond)

	_, err = f.invoke(ValidateResponseTime, 0)
	assert.ErrorIs(t, err, expect.ErrAssertion)

	f.ec.Alias(APIRequestAlias, "not a response")
	_, err = f.invoke(ValidateResponseTime)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestWaitForPageLoad(t *testing.T) {
	f := newFixture(t)

	_, err := f.invoke(WaitForPageLoad)
	assert.ErrorIs(t, err, expect.ErrTimeout)

	_, err = f.invoke(Visit, "/login")
	require.NoError(t, err)
	_, err = f.invoke(WaitForPageLoad)
	assert.NoError(t, err)
}

func TestShouldBeVisibleAndClickable(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoke(Visit, "/login")
	require.NoError(t, err)

	got, err := f.invoke(ShouldBeVisibleAndClickable, "#login-btn")
	require.NoError(t, err)
	assert.Equal(t, "button", got.(*browser.Element).Tag)

	_, err = f.invoke(ShouldBeVisibleAndClickable, "[data-cy=username-error]")
	assert.ErrorIs(t, err, expect.ErrAssertion)

	_, err = f.invoke(ShouldBeVisibleAndClickable, "#does-not-exist")
	assert.ErrorIs(t, err, expect.ErrAssertion)

	require.NoError(t, f.browser.SetContent(`<html><body><button id="b" disabled>Go</button></body></html>`))
	_, err = f.invoke(ShouldBeVisibleAndClickable, "#b")
	assert.ErrorIs(t, err, expect.ErrAssertion)
	assert.Contains(t, err.Error(), "enabled")
}

func TestValidateForm(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoke(Visit, "/login")
	require.NoError(t, err)

	_, err = f.invoke(ValidateForm, "[data-cy=login-form]", map[string]domain.FormRule{
		"username": {Required: true, Type: "text", Placeholder: "Username"},
		"password": {Required: true, Type: "password", MinLength: 4},
	})
	require.NoError(t, err)

	_, err = f.invoke(ValidateForm, "[data-cy=login-form]", map[string]domain.FormRule{
		"password": {MaxLength: 64},
	})
	assert.ErrorIs(t, err, expect.ErrAssertion)

	_, err = f.invoke(ValidateForm, "[data-cy=login-form]", map[string]domain.FormRule{
		"phone": {Required: true},
	})
	assert.ErrorIs(t, err, expect.ErrAssertion)

	_, err = f.invoke(ValidateForm, "[data-cy=login-form]", "username")
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestCheckAccessibility(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoke(Visit, "/login")
	require.NoError(t, err)

	got, err := f.invoke(CheckAccessibility)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, f.browser.SetContent(`<html><head></head><body>
		<img src="logo.png">
		<input id="q" name="q">
		<input id="named" name="named"><label for="named">Named</label>
		<button></button>
		<button aria-label="Close"></button>
	</body></html>`))

	violations, err := Audit(f.browser)
	require.NoError(t, err)

	rules := make([]string, len(violations))
	for i, v := range violations {
		rules[i] = v.Rule
	}
	assert.ElementsMatch(t, []string{"document-title", "html-has-lang", "image-alt", "label", "button-name"}, rules)

	_, err = f.invoke(CheckAccessibility)
	assert.ErrorIs(t, err, expect.ErrAssertion)
}

func TestViewportCommands(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoke(Visit, "/login")
	require.NoError(t, err)

	got, err := f.invoke(TestMobileView)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewportMobile, got)
	assert.Equal(t, domain.ViewportMobile, f.browser.Viewport())

	_, err = f.invoke(TestDesktopView)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewportDesktop, f.browser.Viewport())
}

func TestBrowserCommandsWithoutBrowser(t *testing.T) {
	ec := execution.New(execution.Config{})
	r := DefaultRegistry()

	for _, name := range []string{Visit, WaitForPageLoad, CheckAccessibility, TestMobileView} {
		_, err := r.Invoke(context.Background(), ec, name, "/login")
		assert.ErrorIs(t, err, execution.ErrNoBrowser, name)
	}
}
