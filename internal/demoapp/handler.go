package demoapp

import (
	"log/slog"

	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/telemetry"
)

// Handler — главный обработчик демо-приложения с зависимостями.
type Handler struct {
	users    *UserStore
	sessions *SessionStore
	accounts map[string]string
	metrics  *telemetry.ServerMetrics
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Users — данные users API (default: SeedUsers()).
	Users []domain.User

	// Accounts — учётные записи страницы логина (default: valid_user/correct_pass).
	Accounts []domain.LoginCredentials

	Metrics *telemetry.ServerMetrics
	Logger  *slog.Logger
}

// DefaultAccount — учётная запись по умолчанию.
var DefaultAccount = domain.LoginCredentials{Username: "valid_user", Password: "correct_pass"}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Users == nil {
		cfg.Users = SeedUsers()
	}
	if len(cfg.Accounts) == 0 {
		cfg.Accounts = []domain.LoginCredentials{DefaultAccount}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	accounts := make(map[string]string, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts[a.Username] = a.Password
	}

	return &Handler{
		users:    NewUserStore(cfg.Users),
		sessions: NewSessionStore(),
		accounts: accounts,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}
