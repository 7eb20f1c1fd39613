// Package scheduler запускает набор сценариев по расписанию.
//
// Scheduler используется для synthetic monitoring: набор выполняется
// по cron-выражению или интервалу, а также по сообщению run.requested
// из RabbitMQ.
//
// Структура:
//   - scheduler.go — цикл проверки расписания и обработчик run.requested
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: domain.Schedule{CronExpr: "*/5 * * * *", Enabled: true},
//	    Suite:    suite,
//	    Logger:   logger,
//	})
//
//	go sched.Start(ctx)
package scheduler
