package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/shaiso/Probe/internal/pattern"
)

// Context — данные для рендеринга текста шагов.
//
// Используется в Go templates:
//   - {{ .Fixtures.loginCredentials.valid.username }}
//   - {{ .Vars.token }}
//   - {{ .Env.API_TOKEN }}
type Context struct {
	// Fixtures — содержимое файла фикстур.
	Fixtures map[string]any `json:"fixtures"`

	// Vars — переменные сценария (execution.Context.Vars).
	Vars map[string]any `json:"vars"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// NewContext создаёт контекст рендеринга.
func NewContext(fixtures, vars map[string]any) *Context {
	if fixtures == nil {
		fixtures = make(map[string]any)
	}
	if vars == nil {
		vars = make(map[string]any)
	}
	return &Context{
		Fixtures: fixtures,
		Vars:     vars,
		Env:      make(map[string]string),
	}
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// LoadEnv копирует переменные окружения процесса с префиксом prefix.
// Пустой префикс копирует все.
func (c *Context) LoadEnv(prefix string) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, prefix) {
			c.Env[key] = value
		}
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// quote — строка в двойных кавычках для плейсхолдера {string}
	"quote": func(v any) string {
		s := fmt.Sprint(v)
		s = strings.ReplaceAll(s, `\`, `\\`)
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	},

	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,

	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Строка без "{{" возвращается как есть. Отсутствующий ключ — ошибка.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderStep рендерит текст шага и ячейки его таблицы.
// Исходный шаг не меняется.
func RenderStep(step *Step, ctx *Context) (*Step, error) {
	text, err := Render(step.Text, ctx)
	if err != nil {
		return nil, err
	}

	out := *step
	out.Text = text

	if step.Table != nil {
		raw := step.Table.Raw()
		rows := make([][]string, len(raw))
		for i, row := range raw {
			rows[i] = make([]string, len(row))
			for j, cell := range row {
				if rows[i][j], err = Render(cell, ctx); err != nil {
					return nil, err
				}
			}
		}
		out.Table = pattern.NewDataTable(rows)
	}
	return &out, nil
}

// MustRender рендерит шаблон и паникует при ошибке.
// Используется только для тестов.
func MustRender(tmpl string, ctx *Context) string {
	result, err := Render(tmpl, ctx)
	if err != nil {
		panic(err)
	}
	return result
}
