package steps

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/pattern"
)

// Ошибки библиотеки шагов.
var (
	// ErrUndefinedStep — ни один шаблон не совпал с текстом шага.
	ErrUndefinedStep = errors.New("undefined step")

	// ErrAmbiguousStep — несколько шаблонов с одинаковой специфичностью.
	ErrAmbiguousStep = errors.New("ambiguous step")

	// ErrInvalidDefinition — callback не соответствует шаблону.
	ErrInvalidDefinition = errors.New("invalid step definition")

	// ErrTableArgument — таблица передана шагу без таблицы или наоборот.
	ErrTableArgument = errors.New("data table argument mismatch")

	// ErrStepPanic — callback шага завершился паникой.
	ErrStepPanic = errors.New("step panicked")
)

// fixedArgCount — ctx и *execution.Context перед параметрами шаблона.
const fixedArgCount = 2

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	execType    = reflect.TypeOf((*execution.Context)(nil))
	tableType   = reflect.TypeOf((*pattern.DataTable)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	paramKinds  = map[pattern.ParamType]reflect.Kind{
		pattern.ParamString: reflect.String,
		pattern.ParamInt:    reflect.Int,
	}
)

// Definition — зарегистрированный шаблон шага с callback.
type Definition struct {
	pattern    *pattern.Pattern
	fn         reflect.Value
	takesTable bool
	location   string
}

// Pattern возвращает скомпилированный шаблон.
func (d *Definition) Pattern() *pattern.Pattern { return d.pattern }

// Expression возвращает исходный текст шаблона.
func (d *Definition) Expression() string { return d.pattern.Source() }

// TakesTable сообщает, принимает ли шаг таблицу данных.
func (d *Definition) TakesTable() bool { return d.takesTable }

// Location возвращает место регистрации (file:line).
func (d *Definition) Location() string { return d.location }

// Match — найденное определение и приведённые аргументы.
type Match struct {
	Definition *Definition
	Args       []any
}

// Library — библиотека шаблонов шагов.
//
// Шаблоны регистрируются один раз при загрузке набора и после этого
// только читаются. Повторная регистрация того же шаблона заменяет
// callback. Потокобезопасна.
type Library struct {
	mu    sync.RWMutex
	defs  []*Definition
	index map[string]int // source -> позиция в defs
}

// NewLibrary создаёт пустую библиотеку.
func NewLibrary() *Library {
	return &Library{index: make(map[string]int)}
}

// Register регистрирует шаблон expr с callback fn.
//
// fn должна иметь сигнатуру
//
//	func(ctx context.Context, ec *execution.Context, <параметры>, [*pattern.DataTable]) error
//
// где параметры соответствуют плейсхолдерам шаблона: {string} — string,
// {int} — int.
func (l *Library) Register(expr string, fn any) error {
	p, err := pattern.Parse(expr)
	if err != nil {
		return err
	}

	v := reflect.ValueOf(fn)
	takesTable, err := validateFunc(p, v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidDefinition, expr, err)
	}

	def := &Definition{
		pattern:    p,
		fn:         v,
		takesTable: takesTable,
		location:   callerLocation(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if i, exists := l.index[expr]; exists {
		l.defs[i] = def
		return nil
	}
	l.index[expr] = len(l.defs)
	l.defs = append(l.defs, def)
	return nil
}

// Given, When и Then — Register, паникующие при ошибке.
// Ключевое слово на сопоставление не влияет.
func (l *Library) Given(expr string, fn any) { l.mustRegister(expr, fn) }
func (l *Library) When(expr string, fn any)  { l.mustRegister(expr, fn) }
func (l *Library) Then(expr string, fn any)  { l.mustRegister(expr, fn) }

func (l *Library) mustRegister(expr string, fn any) {
	if err := l.Register(expr, fn); err != nil {
		panic(err)
	}
}

// Find ищет определение для текста шага.
//
// Из структурно совпавших шаблонов выбирается шаблон с наибольшей длиной
// литерального текста. Ошибка приведения типа возвращается до вызова
// callback.
func (l *Library) Find(text string) (*Match, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best     *Definition
		captures []pattern.Capture
		tied     []*Definition
	)
	for _, def := range l.defs {
		c, ok := def.pattern.MatchRaw(text)
		if !ok {
			continue
		}

		switch {
		case best == nil || def.pattern.Specificity() > best.pattern.Specificity():
			best, captures, tied = def, c, nil
		case def.pattern.Specificity() == best.pattern.Specificity():
			tied = append(tied, def)
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrUndefinedStep, text)
	}
	if len(tied) > 0 {
		exprs := []string{best.Expression()}
		for _, d := range tied {
			exprs = append(exprs, d.Expression())
		}
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousStep, text, strings.Join(quoteAll(exprs), ", "))
	}

	args, err := pattern.Coerce(captures)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", best.Expression(), err)
	}
	return &Match{Definition: best, Args: args}, nil
}

// Run находит определение и выполняет его.
func (l *Library) Run(ctx context.Context, ec *execution.Context, text string, table *pattern.DataTable) error {
	m, err := l.Find(text)
	if err != nil {
		return err
	}
	return m.Call(ctx, ec, table)
}

// Call вызывает callback определения.
// Паника в callback превращается в ErrStepPanic.
func (m *Match) Call(ctx context.Context, ec *execution.Context, table *pattern.DataTable) (err error) {
	def := m.Definition
	if def.takesTable && table == nil {
		return fmt.Errorf("%w: %q expects a data table", ErrTableArgument, def.Expression())
	}
	if !def.takesTable && table != nil {
		return fmt.Errorf("%w: %q does not accept a data table", ErrTableArgument, def.Expression())
	}

	in := make([]reflect.Value, 0, fixedArgCount+len(m.Args)+1)
	in = append(in, reflect.ValueOf(ctx), reflect.ValueOf(ec))
	ft := def.fn.Type()
	for i, a := range m.Args {
		in = append(in, reflect.ValueOf(a).Convert(ft.In(fixedArgCount+i)))
	}
	if def.takesTable {
		in = append(in, reflect.ValueOf(table))
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %q: %v", ErrStepPanic, def.Expression(), p)
		}
	}()

	out := def.fn.Call(in)
	if e, ok := out[0].Interface().(error); ok && e != nil {
		return e
	}
	return nil
}

// Definitions возвращает определения, отсортированные по шаблону.
func (l *Library) Definitions() []*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Definition, len(l.defs))
	copy(out, l.defs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Expression() < out[j].Expression()
	})
	return out
}

// Count возвращает количество определений.
func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.defs)
}

// validateFunc проверяет сигнатуру callback.
func validateFunc(p *pattern.Pattern, v reflect.Value) (takesTable bool, err error) {
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return false, errors.New("callback must be a non-nil function")
	}
	t := v.Type()

	if t.IsVariadic() {
		return false, errors.New("callback must not be variadic")
	}
	if t.NumOut() != 1 || t.Out(0) != errorType {
		return false, errors.New("callback must return exactly one error")
	}

	params := p.Params()
	want := fixedArgCount + len(params)
	switch t.NumIn() {
	case want:
	case want + 1:
		if t.In(want) != tableType {
			return false, fmt.Errorf("trailing argument must be *pattern.DataTable, got %s", t.In(want))
		}
		takesTable = true
	default:
		return false, fmt.Errorf("callback takes %d arguments, pattern has %d placeholders", t.NumIn()-fixedArgCount, len(params))
	}

	if t.In(0) != contextType {
		return false, fmt.Errorf("first argument must be context.Context, got %s", t.In(0))
	}
	if t.In(1) != execType {
		return false, fmt.Errorf("second argument must be *execution.Context, got %s", t.In(1))
	}
	for i, pt := range params {
		if got := t.In(fixedArgCount + i).Kind(); got != paramKinds[pt] {
			return false, fmt.Errorf("argument %d for {%s} must be %s, got %s", i+1, pt, paramKinds[pt], t.In(fixedArgCount+i))
		}
	}
	return takesTable, nil
}

// callerLocation возвращает место вызова Register/Given/When/Then.
func callerLocation() string {
	pcs := make([]uintptr, 8)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasSuffix(f.File, "/steps/library.go") {
			return fmt.Sprintf("%s:%d", shortPath(f.File), f.Line)
		}
		if !more {
			return ""
		}
	}
}

func shortPath(file string) string {
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/")
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
