// Package demoapp содержит демонстрационное приложение, против которого
// работает встроенный набор сценариев.
//
// Структура:
//   - handler.go    — Handler с зависимостями (хранилища, logger, метрики)
//   - routes.go     — регистрация маршрутов
//   - middleware.go — middleware (logging, recovery, metrics)
//   - response.go   — JSON и HTML ответы
//   - users.go      — users API в формате jsonplaceholder
//   - auth.go       — страница логина, dashboard, сессии
//   - pages.go      — HTML шаблоны страниц
//
// Изменяющие запросы users API (POST/PUT/DELETE) не меняют данные,
// как и у jsonplaceholder: параллельные сценарии видят один и тот же набор.
package demoapp
