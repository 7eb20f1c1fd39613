// Package pattern компилирует шаблоны шагов с типизированными
// плейсхолдерами ({string}, {int}) и сопоставляет их с текстом шага.
//
// Шаблон разбирается на токены один раз при регистрации. Сопоставление
// идёт слева направо по токенам без построения регулярных выражений:
//
//	p, _ := pattern.Parse(`I send a GET request to {string}`)
//	args, err := p.Match(`I send a GET request to "/users"`)
//	// args == []any{"/users"}
//
// Сопоставление двухфазное: сначала структурное (литералы и границы
// плейсхолдеров), затем приведение типов. Структурно совпавший шаг с
// нечисловым значением {int} даёт ErrTypeCoercion, а не «не совпало».
package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Ошибки шаблонов.
var (
	// ErrInvalidPattern — шаблон не удалось разобрать.
	ErrInvalidPattern = errors.New("invalid step pattern")

	// ErrNoMatch — текст не соответствует шаблону.
	ErrNoMatch = errors.New("step text does not match pattern")

	// ErrTypeCoercion — значение плейсхолдера не приводится к объявленному типу.
	ErrTypeCoercion = errors.New("type coercion failed")
)

// ParamType — тип плейсхолдера.
type ParamType int

const (
	ParamString ParamType = iota + 1
	ParamInt
)

// String возвращает имя типа в синтаксисе шаблона.
func (t ParamType) String() string {
	switch t {
	case ParamString:
		return "string"
	case ParamInt:
		return "int"
	default:
		return "unknown"
	}
}

var paramTypes = map[string]ParamType{
	"string": ParamString,
	"int":    ParamInt,
}

// Token — литерал или плейсхолдер.
type Token struct {
	Literal string
	Param   ParamType // 0 для литерала
}

// IsParam возвращает true для плейсхолдера.
func (t Token) IsParam() bool {
	return t.Param != 0
}

// Pattern — скомпилированный шаблон шага.
type Pattern struct {
	source     string
	tokens     []Token
	params     []ParamType
	literalLen int
}

// CoercionError — значение плейсхолдера не приводится к типу.
type CoercionError struct {
	Index int       // номер плейсхолдера, с 0
	Type  ParamType // объявленный тип
	Value string    // исходный текст
	Err   error
}

// Error реализует интерфейс error.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("argument %d: cannot convert %q to %s", e.Index+1, e.Value, e.Type)
}

// Unwrap возвращает ErrTypeCoercion.
func (e *CoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTypeCoercion}
	}
	return []error{ErrTypeCoercion, e.Err}
}

// Parse компилирует шаблон.
//
// Плейсхолдер — `{имя}` с известным типом. Два плейсхолдера подряд без
// литерала между ними запрещены: граница между ними неоднозначна.
// `\{` экранирует фигурную скобку.
func Parse(source string) (*Pattern, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	p := &Pattern{source: source}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			p.tokens = append(p.tokens, Token{Literal: lit.String()})
			p.literalLen += lit.Len()
			lit.Reset()
		}
	}

	for i := 0; i < len(source); i++ {
		c := source[i]

		if c == '\\' && i+1 < len(source) && (source[i+1] == '{' || source[i+1] == '}') {
			lit.WriteByte(source[i+1])
			i++
			continue
		}

		if c != '{' {
			lit.WriteByte(c)
			continue
		}

		end := strings.IndexByte(source[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder in %q", ErrInvalidPattern, source)
		}

		name := source[i+1 : i+end]
		typ, ok := paramTypes[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown placeholder {%s} in %q", ErrInvalidPattern, name, source)
		}

		if lit.Len() == 0 && len(p.tokens) > 0 && p.tokens[len(p.tokens)-1].IsParam() {
			return nil, fmt.Errorf("%w: adjacent placeholders in %q", ErrInvalidPattern, source)
		}

		flush()
		p.tokens = append(p.tokens, Token{Param: typ})
		p.params = append(p.params, typ)
		i += end
	}
	flush()

	return p, nil
}

// MustParse — Parse, паникующий при ошибке. Для шаблонов-констант.
func MustParse(source string) *Pattern {
	p, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return p
}

// Source возвращает исходный текст шаблона.
func (p *Pattern) Source() string {
	return p.source
}

// Tokens возвращает копию токенов шаблона.
func (p *Pattern) Tokens() []Token {
	return append([]Token(nil), p.tokens...)
}

// Params возвращает типы плейсхолдеров по порядку.
func (p *Pattern) Params() []ParamType {
	return append([]ParamType(nil), p.params...)
}

// Specificity — длина литерального текста шаблона.
// При нескольких совпадениях побеждает шаблон с большей специфичностью.
func (p *Pattern) Specificity() int {
	return p.literalLen
}

// String реализует fmt.Stringer.
func (p *Pattern) String() string {
	return p.source
}

// Capture — сырое значение плейсхолдера до приведения типа.
type Capture struct {
	Type  ParamType
	Raw   string // текст как в шаге (для {string} — с кавычками)
	Value string // для {string} — без кавычек и экранирования
	Start int
	End   int
}

// MatchRaw выполняет структурное сопоставление без приведения типов.
// Возвращает false, если литералы или границы плейсхолдеров не совпали.
func (p *Pattern) MatchRaw(text string) ([]Capture, bool) {
	captures := make([]Capture, 0, len(p.params))
	if !p.match(text, 0, 0, &captures) {
		return nil, false
	}
	return captures, true
}

// Match сопоставляет текст и приводит значения к объявленным типам.
//
// Возвращает ErrNoMatch, если текст структурно не совпадает, и
// *CoercionError (ErrTypeCoercion), если значение не приводится к типу.
func (p *Pattern) Match(text string) ([]any, error) {
	captures, ok := p.MatchRaw(text)
	if !ok {
		return nil, ErrNoMatch
	}
	return Coerce(captures)
}

// Coerce приводит сырые значения к типам плейсхолдеров.
func Coerce(captures []Capture) ([]any, error) {
	args := make([]any, len(captures))
	for i, c := range captures {
		switch c.Type {
		case ParamString:
			args[i] = c.Value
		case ParamInt:
			n, err := strconv.Atoi(c.Value)
			if err != nil {
				return nil, &CoercionError{Index: i, Type: c.Type, Value: c.Value, Err: err}
			}
			args[i] = n
		}
	}
	return args, nil
}

// match — рекурсивный разбор с откатом по позициям плейсхолдеров.
func (p *Pattern) match(text string, pos, ti int, captures *[]Capture) bool {
	if ti == len(p.tokens) {
		return pos == len(text)
	}

	tok := p.tokens[ti]
	if !tok.IsParam() {
		if !strings.HasPrefix(text[pos:], tok.Literal) {
			return false
		}
		return p.match(text, pos+len(tok.Literal), ti+1, captures)
	}

	mark := len(*captures)
	for _, c := range candidates(tok.Param, text, pos) {
		*captures = append((*captures)[:mark], c)
		if p.match(text, c.End, ti+1, captures) {
			return true
		}
	}
	*captures = (*captures)[:mark]
	return false
}

// candidates перечисляет возможные границы плейсхолдера, начиная с pos,
// от самой короткой к самой длинной.
func candidates(typ ParamType, text string, pos int) []Capture {
	switch typ {
	case ParamString:
		c, ok := scanQuoted(text, pos)
		if !ok {
			return nil
		}
		return []Capture{c}
	case ParamInt:
		var out []Capture
		for end := pos + 1; end <= len(text); end++ {
			if isSpace(text[end-1]) {
				break
			}
			out = append(out, Capture{
				Type:  ParamInt,
				Raw:   text[pos:end],
				Value: text[pos:end],
				Start: pos,
				End:   end,
			})
		}
		return out
	default:
		return nil
	}
}

// scanQuoted читает литерал в двойных или одинарных кавычках.
// \", \' и \\ внутри литерала снимают экранирование.
func scanQuoted(text string, pos int) (Capture, bool) {
	if pos >= len(text) {
		return Capture{}, false
	}

	quote := text[pos]
	if quote != '"' && quote != '\'' {
		return Capture{}, false
	}

	var value strings.Builder
	for i := pos + 1; i < len(text); i++ {
		c := text[i]
		if c == '\\' && i+1 < len(text) && (text[i+1] == quote || text[i+1] == '\\') {
			value.WriteByte(text[i+1])
			i++
			continue
		}
		if c == quote {
			return Capture{
				Type:  ParamString,
				Raw:   text[pos : i+1],
				Value: value.String(),
				Start: pos,
				End:   i + 1,
			}, true
		}
		value.WriteByte(c)
	}
	return Capture{}, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
