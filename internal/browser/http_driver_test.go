package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/domain"
)

const loginPage = `<!doctype html>
<html><head><title>Login</title></head>
<body>
<form method="post" action="/login" data-cy="login-form">
  <input name="username" data-cy="username-input" required>
  <div data-validation-for="username" data-cy="username-validation" hidden>Username is required</div>
  <input name="password" type="password" data-cy="password-input" required>
  <div data-validation-for="password" data-cy="password-validation" hidden>Password is required</div>
  <button type="button" data-cy="toggle-password" data-toggle-password="[data-cy=password-input]">Show</button>
  <input type="checkbox" name="remember" data-cy="remember-me">
  <button type="submit" data-cy="login-button">Log in</button>
  %ERROR%
</form>
<a href="/help" data-cy="help-link">Help</a>
</body></html>`

func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	render := func(w http.ResponseWriter, status int, errMsg string) {
		page := strings.Replace(loginPage, "%ERROR%", errMsg, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(page))
	}

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		render(w, http.StatusOK, "")
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("username") == "valid_user" && r.PostForm.Get("password") == "correct_pass" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		render(w, http.StatusUnauthorized, `<div data-cy="error-message">Invalid credentials</div>`)
	})
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Dashboard</title></head><body><h1 data-cy="welcome">Welcome</h1></body></html>`))
	})
	mux.HandleFunc("GET /help", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Help page</p></body></html>`))
	})
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newDriver(t *testing.T, baseURL string) *HTTPDriver {
	t.Helper()
	d, err := NewHTTPDriver(HTTPDriverConfig{BaseURL: baseURL})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestHTTPDriver_VisitAndQuery(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	assert.Equal(t, "loading", d.ReadyState())

	require.NoError(t, d.Visit(ctx, "/login"))
	assert.Equal(t, server.URL+"/login", d.URL())
	assert.Equal(t, http.StatusOK, d.Status())
	assert.Equal(t, "Login", d.Title())
	assert.Equal(t, ReadyStateComplete, d.ReadyState())

	el, err := d.Query("[data-cy=username-input]")
	require.NoError(t, err)
	assert.Equal(t, "input", el.Tag)
	assert.True(t, el.Visible)
	assert.True(t, el.HasAttr("required"))

	validation, err := d.Query(`[data-cy="username-validation"]`)
	require.NoError(t, err)
	assert.False(t, validation.Visible)

	all, err := d.QueryAll("[data-cy=username-input], [data-cy=password-input]")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = d.Query("[data-cy=missing]")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Query("[[[")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestHTTPDriver_QueryBeforeVisit(t *testing.T) {
	d := newDriver(t, "")

	_, err := d.Query("body")
	assert.ErrorIs(t, err, ErrNoPage)
	assert.False(t, d.Contains("anything"))
}

func TestHTTPDriver_LoginSuccess(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	require.NoError(t, d.Visit(ctx, "/login"))
	require.NoError(t, d.Type(ctx, "[data-cy=username-input]", "valid_user"))
	require.NoError(t, d.Type(ctx, "[data-cy=password-input]", "correct_pass"))

	el, err := d.Query("[data-cy=password-input]")
	require.NoError(t, err)
	assert.True(t, el.Focused)
	assert.Equal(t, "correct_pass", el.Value)

	require.NoError(t, d.Click(ctx, "[data-cy=login-button]"))

	// Редирект 303 и cookie сессии
	assert.Equal(t, server.URL+"/dashboard", d.URL())
	assert.Equal(t, http.StatusOK, d.Status())
	assert.True(t, d.Contains("Welcome"))
}

func TestHTTPDriver_LoginFailureStaysOnPage(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	require.NoError(t, d.Visit(ctx, "/login"))
	require.NoError(t, d.Type(ctx, "[data-cy=username-input]", "invalid_user"))
	require.NoError(t, d.Type(ctx, "[data-cy=password-input]", "wrong_pass"))
	require.NoError(t, d.Click(ctx, "[data-cy=login-button]"))

	assert.Equal(t, server.URL+"/login", d.URL())
	assert.Equal(t, http.StatusUnauthorized, d.Status())

	msg, err := d.Query("[data-cy=error-message]")
	require.NoError(t, err)
	assert.True(t, msg.Visible)
	assert.Equal(t, "Invalid credentials", msg.Text)
}

func TestHTTPDriver_RequiredFieldsBlockSubmit(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	require.NoError(t, d.Visit(ctx, "/login"))
	require.NoError(t, d.Type(ctx, "[data-cy=username-input]", "someone"))
	require.NoError(t, d.Click(ctx, "[data-cy=login-button]"))

	// Отправки не было
	assert.Equal(t, http.StatusOK, d.Status())

	username, err := d.Query("[data-cy=username-validation]")
	require.NoError(t, err)
	assert.False(t, username.Visible)

	password, err := d.Query("[data-cy=password-validation]")
	require.NoError(t, err)
	assert.True(t, password.Visible)
	assert.True(t, d.Contains("Password is required"))
}

func TestHTTPDriver_TogglePassword(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	require.NoError(t, d.Visit(ctx, "/login"))

	require.NoError(t, d.Click(ctx, "[data-cy=toggle-password]"))
	el, err := d.Query("[data-cy=password-input]")
	require.NoError(t, err)
	v, _ := el.Attr("type")
	assert.Equal(t, "text", v)

	require.NoError(t, d.Click(ctx, "[data-cy=toggle-password]"))
	el, err = d.Query("[data-cy=password-input]")
	require.NoError(t, err)
	v, _ = el.Attr("type")
	assert.Equal(t, "password", v)
}

func TestHTTPDriver_CheckboxAndLink(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)
	ctx := context.Background()

	require.NoError(t, d.Visit(ctx, "/login"))

	require.NoError(t, d.Check(ctx, "[data-cy=remember-me]"))
	el, err := d.Query("[data-cy=remember-me]")
	require.NoError(t, err)
	assert.True(t, el.Checked)

	require.NoError(t, d.Click(ctx, "[data-cy=remember-me]"))
	el, err = d.Query("[data-cy=remember-me]")
	require.NoError(t, err)
	assert.False(t, el.Checked)

	err = d.Type(ctx, "[data-cy=remember-me]", "x")
	assert.ErrorIs(t, err, ErrNotInteractable)

	require.NoError(t, d.Click(ctx, "[data-cy=help-link]"))
	assert.Equal(t, server.URL+"/help", d.URL())
	assert.True(t, d.Contains("Help page"))
}

func TestHTTPDriver_HiddenElementNotInteractable(t *testing.T) {
	d := newDriver(t, "")
	require.NoError(t, d.SetContent(`<div style="display: none"><input data-cy="x"></div><input data-cy="y" disabled>`))

	assert.ErrorIs(t, d.Type(context.Background(), "[data-cy=x]", "a"), ErrNotInteractable)
	assert.ErrorIs(t, d.Click(context.Background(), "[data-cy=y]"), ErrNotInteractable)
}

func TestHTTPDriver_QueryWithin(t *testing.T) {
	d := newDriver(t, "")
	require.NoError(t, d.SetContent(`
		<table data-cy="users">
		  <tr><td>Leanne</td></tr>
		  <tr><td>Ervin</td></tr>
		</table>
		<table data-cy="other"><tr><td>Other</td></tr></table>`))

	rows, err := d.QueryWithin("[data-cy=users]", "tr")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ervin", rows[1].Text)

	_, err = d.QueryWithin("[data-cy=nothing]", "tr")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPDriver_NonHTMLBody(t *testing.T) {
	server := newLoginServer(t)
	d := newDriver(t, server.URL)

	require.NoError(t, d.Visit(context.Background(), "/data"))
	assert.True(t, d.Contains(`{"ok":true}`))
}

func TestHTTPDriver_Viewport(t *testing.T) {
	d := newDriver(t, "")
	assert.Equal(t, domain.ViewportDefault, d.Viewport())

	d.SetViewport(domain.ViewportMobile)
	assert.Equal(t, domain.ViewportMobile, d.Viewport())
}

func TestHTTPDriver_NavigationError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	d := newDriver(t, addr)
	err := d.Visit(context.Background(), "/")
	assert.ErrorIs(t, err, ErrNavigation)

	d2 := newDriver(t, "")
	assert.ErrorIs(t, d2.Visit(context.Background(), "/relative"), ErrNavigation)
}

func TestHTTPDriver_InsecureTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Secure</title></head><body></body></html>"))
	}))
	defer server.Close()

	d := newDriver(t, server.URL)
	assert.ErrorIs(t, d.Visit(context.Background(), "/"), ErrNavigation)

	insecure, err := NewHTTPDriver(HTTPDriverConfig{BaseURL: server.URL, InsecureTLS: true})
	require.NoError(t, err)
	t.Cleanup(func() { insecure.Close() })

	require.NoError(t, insecure.Visit(context.Background(), "/"))
	assert.Equal(t, "Secure", insecure.Title())
}
