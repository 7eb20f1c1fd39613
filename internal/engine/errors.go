package engine

import (
	"errors"
	"fmt"
)

// Ошибки загрузки feature файлов.
var (
	// ErrFeatureParse — файл не является корректным Gherkin документом.
	ErrFeatureParse = errors.New("feature parse failed")

	// ErrNoFeatures — по указанным путям не найдено ни одного .feature файла.
	ErrNoFeatures = errors.New("no feature files found")

	// ErrDocString — шаг с doc string аргументом (шаги принимают только таблицы).
	ErrDocString = errors.New("doc string arguments are not supported")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ErrInvalidTagFilter — выражение фильтра тегов не разобрано.
var ErrInvalidTagFilter = errors.New("invalid tag filter")

// ParseError — ошибка разбора feature файла с контекстом.
type ParseError struct {
	URI string // путь к файлу
	Err error  // ошибка gherkin парсера
}

// Error реализует интерфейс error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.URI, e.Err)
}

// Unwrap возвращает ErrFeatureParse и исходную ошибку.
func (e *ParseError) Unwrap() []error {
	return []error{ErrFeatureParse, e.Err}
}
