package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Planflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypePipelineEvent MessageType = "pipeline.event"
)

// Publisher публикует события аудита в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения для публикации.
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

// EventPayload — payload события конвейера.
type EventPayload struct {
	Context    domain.PipelineKind `json:"context"`
	PlanID     *int64              `json:"plan_id,omitempty"`
	PlanNumber string              `json:"plan_number,omitempty"`
	Step       string              `json:"step,omitempty"`
	Stage      int                 `json:"stage,omitempty"`
	Status     domain.EventStatus  `json:"status"`
	Message    string              `json:"message"`
	CreatedAt  time.Time           `json:"created_at"`
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
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
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

// PublishEvent публикует событие аудита в planflow.events.
// Routing key строится как <context>.<status> в нижнем регистре,
// что позволяет подписчикам фильтровать по topic-шаблонам
// (например "treatment.*" или "*.failure").
func (p *Publisher) PublishEvent(ctx context.Context, ev *domain.Event) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypePipelineEvent,
		Payload: EventPayload{
			Context:    ev.Context,
			PlanID:     ev.PlanID,
			PlanNumber: ev.PlanNumber,
			Step:       ev.Step,
			Stage:      ev.Stage,
			Status:     ev.Status,
			Message:    ev.Message,
			CreatedAt:  ev.CreatedAt,
		},
		Timestamp: time.Now(),
	}

	key := RoutingKey(strings.ToLower(string(ev.Context) + "." + string(ev.Status)))

	return p.Publish(ctx, ExchangeEvents, key, msg)
}
