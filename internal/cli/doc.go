// Package cli реализует команды инструмента probe.
//
// # Обзор
//
// CLI запускает сценарии локально и управляет сопутствующей
// инфраструктурой: историей прогонов в PostgreSQL и запросами
// прогона через RabbitMQ для probe-scheduler.
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные и отчёт выводятся в stdout, сообщения, прогресс и логи — в
// stderr. Это позволяет использовать pipe: probe run --json | jq .
//
// ## Commands
//
//   - run: запуск сценариев, отчёт, код выхода
//   - check: разбор features и поиск неопределённых шагов
//   - steps, commands: каталог шагов и команд
//   - schedule: next, trigger
//   - history: list, show, prune
//
// Каждая команда создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую configFn и outputFn — замыкания для ленивой загрузки
// конфигурации и создания Output после парсинга PersistentFlags.
package cli
