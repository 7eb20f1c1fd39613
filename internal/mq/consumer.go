package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Probe/internal/telemetry"
)

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler — обработчик сообщения. Ошибка означает nack.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Age возвращает возраст сообщения по времени публикации.
func (d *Delivery) Age(now time.Time) time.Duration {
	if d.Message.Timestamp.IsZero() {
		return 0
	}
	return now.Sub(d.Message.Timestamp)
}

// ConsumerStats — счётчики обработанных сообщений.
type ConsumerStats struct {
	Handled  int64 // обработаны успешно
	Failed   int64 // ошибка обработчика
	Dropped  int64 // не тот тип, устарели или не разобраны
	Requeued int64 // возвращены в очередь
}

// Consumer потребляет сообщения очереди и передаёт их обработчику
// последовательно, в порядке доставки.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
	requeue  bool
	types    []MessageType
	maxAge   time.Duration
	now      func() time.Time

	handled, failed, dropped, requeued atomic.Int64

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сообщений без подтверждения на канал (default: 1).
	// Прогон набора долгий, поэтому по умолчанию берётся по одному.
	Prefetch int

	// Requeue — вернуть сообщение в очередь при ошибке обработчика.
	// Повторно доставленное сообщение в очередь не возвращается и
	// уходит в DLQ. false — сразу в DLQ.
	Requeue bool

	// Types — принимаемые типы сообщений. Остальные подтверждаются и
	// отбрасываются. Пусто — все типы.
	Types []MessageType

	// MaxAge — сообщения старше MaxAge отбрасываются. 0 — без ограничения.
	MaxAge time.Duration
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
		requeue:  cfg.Requeue,
		types:    cfg.Types,
		maxAge:   cfg.MaxAge,
		now:      time.Now,
	}
}

// Start потребляет сообщения до отмены ctx или Stop. После разрыва
// соединения потребление возобновляется на новом канале.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		deliveries, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer started", "prefetch", c.prefetch)
			err = c.drain(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// subscribe настраивает prefetch и подписывается на очередь.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// Подтверждение вручную: сообщение снимается с очереди только после прогона
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки до закрытия канала или отмены ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery разбирает, фильтрует и обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, sending to dlq", "error", err, "body", string(raw.Body))
		c.dropped.Add(1)
		_ = raw.Nack(false, false)
		return
	}

	d := &Delivery{Message: msg, Raw: raw}
	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)

	if len(c.types) > 0 && !slices.Contains(c.types, msg.Type) {
		logger.Warn("unexpected message type, dropping")
		c.dropped.Add(1)
		_ = raw.Ack(false)
		return
	}
	if age := d.Age(c.now()); c.maxAge > 0 && age > c.maxAge {
		logger.Warn("stale message, dropping", "age", age.Round(time.Second), "max_age", c.maxAge)
		c.dropped.Add(1)
		_ = raw.Ack(false)
		return
	}

	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(telemetry.WithLogger(ctx, logger), d)
	if err == nil {
		c.handled.Add(1)
		_ = raw.Ack(false)
		return
	}

	c.failed.Add(1)
	requeue := c.requeue && !raw.Redelivered
	if requeue {
		c.requeued.Add(1)
	}
	logger.Error("handler failed", "error", err, "requeue", requeue)
	_ = raw.Nack(false, requeue)
}

// Stats возвращает текущие счётчики.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Handled:  c.handled.Load(),
		Failed:   c.failed.Load(),
		Dropped:  c.dropped.Load(),
		Requeued: c.requeued.Load(),
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload декодирует payload сообщения в T. После json.Unmarshal
// в Message payload хранится как map[string]any.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
