package demoapp

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SessionCookie — имя cookie сессии.
const SessionCookie = "probe_session"

// SessionStore — сессии залогиненных пользователей.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]string // token -> username
}

// NewSessionStore создаёт пустое хранилище сессий.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]string)}
}

// Create открывает сессию и возвращает токен.
func (s *SessionStore) Create(username string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = username
	return token
}

// Lookup возвращает пользователя сессии.
func (s *SessionStore) Lookup(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.sessions[token]
	return username, ok
}

// Delete закрывает сессию.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Index перенаправляет на dashboard или страницу логина.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage отображает форму входа.
// GET /login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	HTML(w, h.logger, http.StatusOK, loginTemplate, loginView{})
}

// Login проверяет учётные данные.
// POST /login
//
// При успехе ставит cookie сессии и отвечает 303 на /dashboard.
// Неверные данные дают 401 и форму с сообщением об ошибке.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		HTML(w, h.logger, http.StatusBadRequest, loginTemplate, loginView{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	if username == "" || password == "" {
		HTML(w, h.logger, http.StatusBadRequest, loginTemplate, loginView{
			Error:    "Username and password are required",
			Username: username,
		})
		return
	}

	if want, ok := h.accounts[username]; !ok || want != password {
		h.logger.Info("login rejected", "username", username)
		HTML(w, h.logger, http.StatusUnauthorized, loginTemplate, loginView{
			Error:    "Invalid credentials",
			Username: username,
		})
		return
	}

	token := h.sessions.Create(username)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Dashboard отображает страницу пользователя.
// GET /dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	username, ok := h.currentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	HTML(w, h.logger, http.StatusOK, dashboardTemplate, dashboardView{
		Username: username,
		Users:    len(h.users.List(nil)),
	})
}

// Logout закрывает сессию.
// POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) currentUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	return h.sessions.Lookup(c.Value)
}
