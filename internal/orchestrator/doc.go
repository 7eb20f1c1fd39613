// Package orchestrator собирает и выполняет прогон набора.
//
// Orchestrator отвечает за:
//   - Загрузку фикстур и построение реестра команд и библиотеки шагов
//   - Загрузку feature файлов и фильтр тегов запроса
//   - Проверку шагов до запуска (строгий режим)
//   - Создание runner.Runner с сессиями из конфигурации
//
// Один Orchestrator обслуживает CLI (probe run) и демон
// probe-scheduler: плановые прогоны и запросы run.requested.
package orchestrator
