package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shaiso/Probe/internal/domain"
)

// ArgString извлекает строковый аргумент по индексу.
func ArgString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrInvalidArgs, i)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: argument %d must be string, got %T", ErrInvalidArgs, i, args[i])
	}
}

// ArgInt извлекает числовой аргумент по индексу.
// Если аргумента нет, возвращает def.
func ArgInt(args []any, i int, def int) (int, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch n := args[i].(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case time.Duration:
		return int(n.Milliseconds()), nil
	case string:
		v, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d: %q is not a number", ErrInvalidArgs, i, n)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: argument %d must be int, got %T", ErrInvalidArgs, i, args[i])
	}
}

// ArgStrings извлекает список строк по индексу.
func ArgStrings(args []any, i int) ([]string, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrInvalidArgs, i)
	}
	switch v := args[i].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: argument %d must contain strings, got %T", ErrInvalidArgs, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("%w: argument %d must be []string, got %T", ErrInvalidArgs, i, args[i])
	}
}

// ArgFormRules извлекает правила validateForm.
func ArgFormRules(args []any, i int) (map[string]domain.FormRule, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrInvalidArgs, i)
	}
	rules, ok := args[i].(map[string]domain.FormRule)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d must be map[string]domain.FormRule, got %T", ErrInvalidArgs, i, args[i])
	}
	return rules, nil
}

// RequestOptions — необязательные параметры apiRequest.
type RequestOptions struct {
	Headers map[string]string
	Query   map[string]string
	Body    any
	Timeout time.Duration
}

// ArgRequestOptions извлекает RequestOptions; отсутствующий аргумент — пустые опции.
func ArgRequestOptions(args []any, i int) (RequestOptions, error) {
	if i >= len(args) || args[i] == nil {
		return RequestOptions{}, nil
	}
	switch v := args[i].(type) {
	case RequestOptions:
		return v, nil
	case *RequestOptions:
		return *v, nil
	default:
		return RequestOptions{}, fmt.Errorf("%w: argument %d must be RequestOptions, got %T", ErrInvalidArgs, i, args[i])
	}
}
