// Package fixture загружает статические тестовые данные.
//
// Файл фикстур — JSON документ с обязательными группами validUser,
// newUser, invalidUser, loginCredentials.valid и loginCredentials.invalid.
// Set только читается: шаги получают значения через gjson-пути.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Probe/internal/domain"
)

// Ошибки фикстур.
var (
	// ErrMissingGroup — в файле нет обязательной группы.
	ErrMissingGroup = errors.New("fixture group missing")

	// ErrInvalidFixture — файл не является JSON объектом.
	ErrInvalidFixture = errors.New("invalid fixture file")
)

// RequiredGroups — группы, без которых запуск невозможен.
var RequiredGroups = []string{
	"validUser",
	"newUser",
	"invalidUser",
	"loginCredentials.valid",
	"loginCredentials.invalid",
}

// Set — загруженные фикстуры.
type Set struct {
	raw []byte
}

// Load читает и проверяет файл фикстур.
func Load(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}

	set, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fixtures %s: %w", path, err)
	}
	return set, nil
}

// Parse разбирает фикстуры из JSON.
func Parse(raw []byte) (*Set, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidFixture)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level must be an object", ErrInvalidFixture)
	}

	for _, group := range RequiredGroups {
		if v := root.Get(group); !v.IsObject() {
			return nil, fmt.Errorf("%w: %s", ErrMissingGroup, group)
		}
	}

	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Set{raw: cp}, nil
}

// Get возвращает значение по gjson-пути ("validUser.email").
func (s *Set) Get(path string) gjson.Result {
	if s == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(s.raw, path)
}

// Has проверяет наличие значения по пути.
func (s *Set) Has(path string) bool {
	return s.Get(path).Exists()
}

// Credentials возвращает пару логин/пароль из loginCredentials.
func (s *Set) Credentials(valid bool) domain.LoginCredentials {
	group := "loginCredentials.invalid"
	if valid {
		group = "loginCredentials.valid"
	}
	return domain.LoginCredentials{
		Username: s.Get(group + ".username").String(),
		Password: s.Get(group + ".password").String(),
	}
}

// User декодирует группу в domain.User.
func (s *Set) User(group string) (domain.User, error) {
	var u domain.User
	v := s.Get(group)
	if !v.IsObject() {
		return u, fmt.Errorf("%w: %s", ErrMissingGroup, group)
	}
	if err := json.Unmarshal([]byte(v.Raw), &u); err != nil {
		return u, fmt.Errorf("decode %s: %w", group, err)
	}
	return u, nil
}

// Map возвращает копию фикстур для шаблонов ({{ .Fixtures.validUser.email }}).
func (s *Set) Map() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	var out map[string]any
	// Повторный разбор даёт независимую копию
	_ = json.Unmarshal(s.raw, &out)
	return out
}
