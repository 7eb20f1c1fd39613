// Package runner выполняет сценарии feature файлов.
//
// Runner раздаёт сценарии пулу из Parallel воркеров. Для каждого
// сценария создаётся новая сессия (браузер и HTTP клиент) и новый
// execution.Context, поэтому сценарии не видят состояния друг друга.
//
// Шаги сценария выполняются последовательно:
//
//  1. Шаблоны текста и таблицы подставляются из фикстур, переменных
//     сценария и окружения (engine.RenderStep)
//  2. Библиотека шагов находит определение и вызывает его
//  3. Шаг ограничен StepTimeout (expect.Within)
//
// Первый упавший шаг завершает сценарий, оставшиеся шаги получают SKIPPED.
// Падение классифицируется (assertion, timeout, network, undefined,
// coercion, error) для отчёта. С Bail после первого упавшего сценария
// новые не запускаются.
//
// Результат прогона можно сохранить (ResultSink) и опубликовать
// (EventPublisher). Их ошибки только логируются.
package runner
