package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Probe/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested     MessageType = "run.requested"
	MessageTypeRunFinished      MessageType = "run.finished"
	MessageTypeScenarioFinished MessageType = "scenario.finished"
)

// Publisher публикует сообщения в RabbitMQ.
//
// Реализует runner.EventPublisher.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — запрос на запуск набора.
// Пустые поля означают значения из конфигурации получателя.
type RunRequestedPayload struct {
	Features    []string `json:"features,omitempty"`
	Tags        string   `json:"tags,omitempty"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// RunFinishedPayload — итог прогона.
type RunFinishedPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Status     domain.RunStatus `json:"status"`
	Trigger    string           `json:"trigger"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

// ScenarioFinishedPayload — итог сценария. Для упавшего сценария
// заполняются сведения о первом упавшем шаге.
type ScenarioFinishedPayload struct {
	RunID      uuid.UUID             `json:"run_id"`
	ScenarioID uuid.UUID             `json:"scenario_id"`
	Feature    string                `json:"feature"`
	Name       string                `json:"name"`
	Location   string                `json:"location"`
	Status     domain.ScenarioStatus `json:"status"`
	DurationMS int64                 `json:"duration_ms"`

	FailedStep string             `json:"failed_step,omitempty"`
	Failure    domain.FailureKind `json:"failure,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// NewRunFinishedPayload строит payload события run.finished.
func NewRunFinishedPayload(run *domain.Run) RunFinishedPayload {
	passed, failed, skipped := run.Counts()
	return RunFinishedPayload{
		RunID:      run.ID,
		Status:     run.Status,
		Trigger:    run.Trigger,
		Passed:     passed,
		Failed:     failed,
		Skipped:    skipped,
		DurationMS: run.Duration().Milliseconds(),
		Error:      run.Error,
	}
}

// NewScenarioFinishedPayload строит payload события scenario.finished.
func NewScenarioFinishedPayload(runID uuid.UUID, res *domain.ScenarioResult) ScenarioFinishedPayload {
	p := ScenarioFinishedPayload{
		RunID:      runID,
		ScenarioID: res.ID,
		Feature:    res.Feature,
		Name:       res.Name,
		Location:   res.Location,
		Status:     res.Status,
		DurationMS: res.Duration.Milliseconds(),
	}
	if fs := res.FailedStep(); fs != nil {
		p.FailedStep = fs.Keyword + fs.Text
		p.Failure = fs.Failure
		p.Error = fs.Error
	}
	return p
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, exchange, routingKey, msg)
}

// PublishRunRequested публикует запрос на запуск набора.
// Потребитель: probe-scheduler.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.PublishJSON(ctx, ExchangeRuns, RoutingKeyRequested, MessageTypeRunRequested, payload)
}

// PublishRunFinished публикует итог прогона.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	return p.PublishJSON(ctx, ExchangeEvents, RoutingKeyRunFinished, MessageTypeRunFinished, NewRunFinishedPayload(run))
}

// PublishScenarioFinished публикует итог сценария.
func (p *Publisher) PublishScenarioFinished(ctx context.Context, runID uuid.UUID, res *domain.ScenarioResult) error {
	return p.PublishJSON(ctx, ExchangeEvents, RoutingKeyScenarioFinished, MessageTypeScenarioFinished, NewScenarioFinishedPayload(runID, res))
}
