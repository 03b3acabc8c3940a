package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — topic exchange для событий аудита.
	// Routing key: <context>.<status>, например "treatment.discarded".
	ExchangeEvents Exchange = "planflow.events"
)

// Queues — имена очередей.
const (
	// QueueEventsAudit получает все события (binding "#").
	// Потребители — внешние системы аудита и мониторинга.
	QueueEventsAudit Queue = "events.audit"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueEventsAudit), // name
			true,                     // durable
			false,                    // delete when unused
			false,                    // exclusive
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueEventsAudit, err)
		}

		err = ch.QueueBind(
			string(QueueEventsAudit), // queue name
			"#",                      // routing key: все события
			string(ExchangeEvents),   // exchange
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueEventsAudit, ExchangeEvents, err)
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Planflow RabbitMQ Topology:

    planflow.events (topic)
    └── events.audit [routing: #]
            Consumers: внешние системы аудита
  `
}
