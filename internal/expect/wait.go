package expect

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval — интервал опроса условия в Eventually.
const DefaultPollInterval = 50 * time.Millisecond

// Condition — проверка, повторяемая до успеха.
// nil — условие выполнено; ошибка — последняя причина неуспеха.
type Condition func() error

// Eventually повторяет cond до успеха или истечения timeout.
//
// По таймауту возвращает ошибку, оборачивающую ErrTimeout и последнюю
// причину неуспеха (обычно *AssertionError). Отмена ctx прерывает
// ожидание с ErrTimeout, если у ctx истёк deadline, иначе с ctx.Err().
func Eventually(ctx context.Context, timeout time.Duration, cond Condition) error {
	last := cond()
	if last == nil {
		return nil
	}

	if timeout <= 0 {
		return fmt.Errorf("%w: %w", ErrTimeout, last)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrTimeout, last)
			}
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, last)
		case <-ticker.C:
			if last = cond(); last == nil {
				return nil
			}
		}
	}
}

// Within выполняет fn с дедлайном timeout и гарантирует возврат не позже него.
//
// Если fn не успела завершиться, возвращается ErrTimeout; сама fn
// получает отменённый ctx и должна завершиться самостоятельно.
func Within(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return ctx.Err()
	}
}
