package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Probe/internal/execution"
)

// Ошибки реестра.
var (
	// ErrUnknownAction — команда не зарегистрирована.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDuplicateRegistration — команда уже зарегистрирована (политика PolicyReject).
	ErrDuplicateRegistration = errors.New("action already registered")

	// ErrInvalidArgs — команде переданы аргументы неверного числа или типа.
	ErrInvalidArgs = errors.New("invalid action arguments")

	// ErrActionPanic — команда завершилась паникой.
	ErrActionPanic = errors.New("action panicked")
)

// Action — именованная команда.
//
// Результат — значение для следующих шагов (например, *apiclient.Response)
// или nil.
type Action func(ctx context.Context, ec *execution.Context, args ...any) (any, error)

// Policy определяет поведение при повторной регистрации имени.
type Policy int

const (
	// PolicyOverwrite — последняя регистрация побеждает.
	PolicyOverwrite Policy = iota

	// PolicyReject — повторная регистрация возвращает ErrDuplicateRegistration.
	PolicyReject
)

// Registry — реестр именованных команд.
//
// Создаётся один раз на запуск и передаётся всем шагам по ссылке.
// Потокобезопасен: сценарии на разных воркерах читают его одновременно.
type Registry struct {
	mu      sync.RWMutex
	policy  Policy
	actions map[string]Action
}

// RegistryOption настраивает Registry.
type RegistryOption func(*Registry)

// WithPolicy задаёт политику повторной регистрации.
func WithPolicy(p Policy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		actions: make(map[string]Action),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register регистрирует команду.
// С PolicyOverwrite существующая команда перезаписывается.
func (r *Registry) Register(name string, action Action) error {
	if name == "" || action == nil {
		return fmt.Errorf("%w: empty name or nil action", ErrInvalidArgs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists && r.policy == PolicyReject {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, name)
	}
	r.actions[name] = action
	return nil
}

// MustRegister — Register, паникующий при ошибке.
func (r *Registry) MustRegister(name string, action Action) {
	if err := r.Register(name, action); err != nil {
		panic(err)
	}
}

// Overwrite оборачивает существующую команду.
// wrap получает исходную реализацию и возвращает новую. wrap вызывается
// без блокировки реестра и может обращаться к нему.
func (r *Registry) Overwrite(name string, wrap func(original Action) Action) error {
	original, err := r.Get(name)
	if err != nil {
		return err
	}

	wrapped := wrap(original)
	if wrapped == nil {
		return fmt.Errorf("%w: overwrite of %s returned nil", ErrInvalidArgs, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	r.actions[name] = wrapped
	return nil
}

// Get возвращает команду по имени.
// Возвращает ErrUnknownAction, если команда не найдена.
func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, exists := r.actions[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return action, nil
}

// Invoke вызывает команду.
//
// Для незарегистрированного имени всегда возвращается ErrUnknownAction.
// Паника внутри команды превращается в ErrActionPanic.
func (r *Registry) Invoke(ctx context.Context, ec *execution.Context, name string, args ...any) (result any, err error) {
	action, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrActionPanic, name, p)
		}
	}()

	return action(ctx, ec, args...)
}

// Has проверяет, зарегистрирована ли команда.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.actions[name]
	return exists
}

// Names возвращает отсортированный список команд.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество зарегистрированных команд.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Unregister удаляет команду из реестра.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, name)
}
