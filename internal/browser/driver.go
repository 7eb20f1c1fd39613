// Package browser описывает DOM-поверхность, с которой работают шаги
// и команды, и содержит эталонный драйвер поверх HTTP.
//
// Driver — непрозрачная поверхность: навигация, поиск элементов по
// CSS-селекторам ([data-cy=...], [data-testid="..."], группы через
// запятую, потомки через пробел), ввод, клики, видимость и фокус.
//
// HTTPDriver не исполняет JavaScript. Он загружает HTML страницы,
// отправляет формы, следует редиректам и хранит cookies. Два виджета
// эмулируются через атрибуты разметки:
//   - data-toggle-password="<селектор>" — клик переключает type
//     password/text у поля;
//   - data-validation-for="<name>" — скрытое сообщение, которое
//     показывается, когда обязательное поле формы пустое.
package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/shaiso/Probe/internal/domain"
)

// Ошибки драйвера.
var (
	// ErrNotFound — ни один элемент не соответствует селектору.
	ErrNotFound = errors.New("element not found")

	// ErrInvalidSelector — селектор не удалось разобрать.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrNotInteractable — элемент скрыт, заблокирован или не поддерживает действие.
	ErrNotInteractable = errors.New("element not interactable")

	// ErrNoPage — страница ещё не загружена.
	ErrNoPage = errors.New("no page loaded")

	// ErrNavigation — не удалось загрузить страницу.
	ErrNavigation = errors.New("navigation failed")
)

// ReadyStateComplete — document.readyState загруженной страницы.
const ReadyStateComplete = "complete"

// Driver — DOM-поверхность одного сценария.
//
// Реализация не обязана быть потокобезопасной: сценарий выполняет
// шаги строго последовательно.
type Driver interface {
	// Visit загружает страницу. Относительный URL разрешается от базового.
	Visit(ctx context.Context, url string) error

	// URL возвращает адрес текущей страницы.
	URL() string

	// Status возвращает HTTP статус последней навигации.
	Status() int

	// Title возвращает содержимое <title>.
	Title() string

	// ReadyState возвращает "complete" для загруженной страницы, иначе "loading".
	ReadyState() string

	// Query возвращает первый элемент по селектору или ErrNotFound.
	Query(selector string) (*Element, error)

	// QueryAll возвращает все элементы по селектору в порядке документа.
	QueryAll(selector string) ([]*Element, error)

	// QueryWithin ищет элементы внутри первого элемента scope (аналог within()).
	QueryWithin(scope, selector string) ([]*Element, error)

	// Contains возвращает true, если видимый текст страницы содержит text.
	Contains(text string) bool

	Type(ctx context.Context, selector, text string) error
	Clear(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Check(ctx context.Context, selector string) error

	// SetContent заменяет документ переданным HTML, URL не меняется.
	SetContent(html string) error

	SetViewport(v domain.Viewport)
	Viewport() domain.Viewport

	Close() error
}

// Element — снимок элемента на момент запроса.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Value    string
	Visible  bool
	Disabled bool
	Checked  bool
	Focused  bool
}

// Attr возвращает атрибут элемента.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[strings.ToLower(name)]
	return v, ok
}

// HasAttr проверяет наличие атрибута.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attrs[strings.ToLower(name)]
	return ok
}

// Describe возвращает краткое описание элемента для сообщений об ошибках.
func (e *Element) Describe() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(e.Tag)
	for _, key := range []string{"id", "name", "data-cy", "data-testid", "type"} {
		if v, ok := e.Attrs[key]; ok {
			b.WriteString(" " + key + "=\"" + v + "\"")
		}
	}
	b.WriteString(">")
	return b.String()
}
