package demoapp

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты демо-приложения.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		chain := Chain(
			Recovery(h.logger),
			Metrics(h.metrics, pattern),
			Logging(h.logger),
		)
		mux.Handle(pattern, chain(fn))
	}

	// Web
	route("GET /{$}", h.Index)
	route("GET /login", h.LoginPage)
	route("POST /login", h.Login)
	route("GET /dashboard", h.Dashboard)
	route("POST /logout", h.Logout)

	// Users API
	route("GET /users", h.ListUsers)
	route("POST /users", h.CreateUser)
	route("GET /users/{id}", h.GetUser)
	route("PUT /users/{id}", h.UpdateUser)
	route("DELETE /users/{id}", h.DeleteUser)
}

// Routes возвращает http.Handler со всеми маршрутами.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
