// Package expect содержит примитивы проверок для шагов и команд.
//
// Все проверки возвращают *AssertionError (errors.Is(err, ErrAssertion)),
// ожидания с таймаутом — ErrTimeout. Пакет не зависит от браузера
// и HTTP клиента.
package expect

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Ошибки проверок.
var (
	// ErrAssertion — ожидание не выполнилось.
	ErrAssertion = errors.New("assertion failed")

	// ErrTimeout — условие не стало истинным за отведённое время.
	ErrTimeout = errors.New("timeout exceeded")
)

// AssertionError — упавшая проверка с ожидаемым и фактическим значением.
type AssertionError struct {
	Message  string
	Expected string
	Actual   string
}

// Error реализует интерфейс error.
func (e *AssertionError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Message, e.Expected, e.Actual)
}

// Unwrap возвращает ErrAssertion.
func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

// Failf создаёт AssertionError без пары expected/actual.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// Mismatch создаёт AssertionError с ожидаемым и фактическим значением.
func Mismatch(message string, expected, actual any) error {
	return &AssertionError{
		Message:  message,
		Expected: format(expected),
		Actual:   format(actual),
	}
}

// AsAssertion извлекает AssertionError из цепочки ошибок.
func AsAssertion(err error) (*AssertionError, bool) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Equal проверяет равенство значений.
func Equal(message string, expected, actual any) error {
	if reflect.DeepEqual(expected, actual) {
		return nil
	}
	return Mismatch(message, expected, actual)
}

// True проверяет, что условие истинно.
func True(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return Failf(format, args...)
}

// Contains проверяет вхождение подстроки.
func Contains(message, haystack, needle string) error {
	if strings.Contains(haystack, needle) {
		return nil
	}
	return Mismatch(message, fmt.Sprintf("to include %q", needle), haystack)
}

// NotContains проверяет отсутствие подстроки.
func NotContains(message, haystack, needle string) error {
	if !strings.Contains(haystack, needle) {
		return nil
	}
	return Mismatch(message, fmt.Sprintf("not to include %q", needle), haystack)
}

// OneOf проверяет, что значение входит в набор допустимых.
func OneOf[T comparable](message string, actual T, allowed ...T) error {
	if slices.Contains(allowed, actual) {
		return nil
	}
	return Mismatch(message, fmt.Sprintf("one of %v", allowed), actual)
}

// Less проверяет, что actual строго меньше limit.
func Less[T int | int64 | float64](message string, actual, limit T) error {
	if actual < limit {
		return nil
	}
	return Mismatch(message, fmt.Sprintf("less than %v", limit), actual)
}

// format приводит значение к строке для отчёта.
func format(v any) string {
	switch s := v.(type) {
	case string:
		return fmt.Sprintf("%q", s)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", s)
	}
}
