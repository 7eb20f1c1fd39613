// Package steps связывает текст шагов сценария с кодом.
//
// # Обзор
//
// Library хранит определения шагов: шаблон с плейсхолдерами и callback.
// При выполнении сценария текст каждого шага сопоставляется со всеми
// шаблонами библиотеки:
//
//	l := steps.NewLibrary()
//	l.When(`I send a GET request to {string}`, func(ctx context.Context, ec *execution.Context, endpoint string) error {
//	    ...
//	})
//
//	err := l.Run(ctx, ec, `I send a GET request to "/users"`, nil)
//
// # Плейсхолдеры
//
//   - {string} — строка в двойных или одинарных кавычках, параметр string
//   - {int} — целое со знаком, параметр int
//
// Аргументы приводятся к типам до вызова callback. Если приведение не
// удалось, callback не вызывается и возвращается *pattern.CoercionError.
//
// # Выбор шаблона
//
// Если текст совпал с несколькими шаблонами, выбирается шаблон с самым
// длинным литеральным текстом. Равная специфичность — ErrAmbiguousStep,
// отсутствие совпадений — ErrUndefinedStep.
//
// # Таблицы данных
//
// Шаг с таблицей принимает последним параметром *pattern.DataTable:
//
//	l.When(`I send a POST request to {string} with the following data:`,
//	    func(ctx context.Context, ec *execution.Context, endpoint string, table *pattern.DataTable) error {
//	        body, err := table.FirstHash()
//	        ...
//	    })
//
// # Встроенные шаги
//
// DefaultLibrary регистрирует шаги users API (api.go) и страницы логина
// (web.go). Составные действия выполняются командами из commands.Registry,
// поэтому переопределение команды меняет поведение всех шагов, которые
// её используют.
package steps
