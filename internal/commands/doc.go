// Package commands содержит реестр именованных команд.
//
// Команда — составное действие, которое вызывают шаги: visit, login,
// apiRequest и другие. Реестр создаётся один раз на запуск
// (DefaultRegistry) и разделяется всеми сценариями.
//
// # Переопределение
//
// Overwrite оборачивает существующую команду. Новая реализация получает
// исходную и может вызвать её:
//
//	_ = r.Overwrite(commands.Visit, func(original commands.Action) commands.Action {
//	    return func(ctx context.Context, ec *execution.Context, args ...any) (any, error) {
//	        // перед переходом
//	        return original(ctx, ec, args...)
//	    }
//	})
//
// Команды, вызывающие другие команды, делают это через Invoke, поэтому
// переопределение visit действует и внутри login.
//
// # Повторная регистрация
//
// По умолчанию (PolicyOverwrite) последняя регистрация имени побеждает.
// С PolicyReject повторная регистрация возвращает ErrDuplicateRegistration.
//
// # Аргументы
//
// Команды принимают позиционные аргументы ...any и проверяют их через
// ArgString, ArgInt и другие помощники из args.go. Неверный тип или
// отсутствующий аргумент — ErrInvalidArgs.
package commands
