package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/expect"
)

func TestClient_GET_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "Leanne"}, {"id": 2}})
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL))
	resp, err := c.Get(context.Background(), "/users")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.IsJSON())
	body, ok := resp.Body.([]any)
	require.True(t, ok, "body should be array, got %T", resp.Body)
	assert.Len(t, body, 2)
	assert.Equal(t, "Leanne", resp.Get("0.name").String())
	assert.Equal(t, int64(2), resp.Get("#").Int())
	assert.Equal(t, server.URL+"/users", resp.URL)
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestClient_NonSuccessStatusIsData(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("nope"))
		}))

		resp, err := New(WithBaseURL(server.URL)).Get(context.Background(), "/users/999999")
		server.Close()

		require.NoError(t, err, "status %d must not be an error", status)
		assert.Equal(t, status, resp.Status)
		assert.Equal(t, "nope", resp.Body)
	}
}

func TestClient_POST_DefaultsContentType(t *testing.T) {
	var gotContentType, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 11}`))
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL+"/"), WithHeader("Authorization", "Bearer abc123"))
	resp, err := c.Do(context.Background(), Request{
		Method: "post",
		URL:    "users",
		Body:   map[string]string{"name": "John Doe"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer abc123", gotAuth)
	assert.Equal(t, "John Doe", gotBody["name"])
	assert.Equal(t, int64(11), resp.Get("id").Int())
}

func TestClient_QueryAndHeaderOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("userId"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := New(WithBaseURL(server.URL)).Do(context.Background(), Request{
		Method:  http.MethodPut,
		URL:     "/posts",
		Query:   map[string]string{"userId": "1"},
		Headers: map[string]string{"content-type": "text/plain"},
		Body:    "raw",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
}

func TestClient_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := New(WithBaseURL(addr)).Get(context.Background(), "/users")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond)).Get(context.Background(), "/slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, expect.ErrTimeout)
}

func TestClient_ResponseTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Заголовки не отправляются, пока тест не завершится
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(WithBaseURL(server.URL), WithTimeout(5*time.Second), WithResponseTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Get(context.Background(), "/slow-headers")
	require.Error(t, err)
	assert.ErrorIs(t, err, expect.ErrTimeout)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_InsecureTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// Сертификат тестового сервера самоподписанный
	_, err := New(WithBaseURL(server.URL)).Get(context.Background(), "/")
	assert.ErrorIs(t, err, ErrNetwork)

	resp, err := New(WithBaseURL(server.URL), WithInsecureTLS()).Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestResponse_Outputs(t *testing.T) {
	resp := &Response{
		Status:   http.StatusCreated,
		Headers:  http.Header{"Location": {"/users/11"}},
		Body:     map[string]any{"id": float64(11)},
		Duration: 1500 * time.Millisecond,
	}

	out := resp.Outputs()
	assert.Equal(t, http.StatusCreated, out["status_code"])
	assert.Equal(t, map[string]string{"Location": "/users/11"}, out["headers"])
	assert.Equal(t, map[string]any{"id": float64(11)}, out["body"])
	assert.Equal(t, int64(1500), out["duration_ms"])
}

func TestClient_RedirectsAndObserver(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var observed []int
	observer := func(method string, status int, _ time.Duration) {
		observed = append(observed, status)
	}

	resp, err := New(WithBaseURL(server.URL), WithObserver(observer)).Get(context.Background(), "/old")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, server.URL+"/new", resp.URL)
	assert.Equal(t, []int{http.StatusOK}, observed)

	resp, err = New(WithBaseURL(server.URL), WithoutRedirects()).Get(context.Background(), "/old")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/new", resp.Header("Location"))
}

func TestClient_Resolve(t *testing.T) {
	c := New(WithBaseURL("https://api.example.com/"))

	got, err := c.Resolve("/users")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users", got)

	got, err = c.Resolve("https://other.example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/x", got)
}
