// internal/events/amqp.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const defaultExchange = "courtbook.events"

// AMQPEmitter publishes events to a RabbitMQ topic exchange, using the event
// kind as the routing key.
type AMQPEmitter struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPEmitter(url, exchange string) (*AMQPEmitter, error) {
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	return &AMQPEmitter{conn: conn, channel: ch, exchange: exchange}, nil
}

func (e *AMQPEmitter) Emit(ctx context.Context, event Event) {
	logger := log.Ctx(ctx)

	body, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("event_kind", event.Kind).Msg("Failed to marshal event")
		return
	}

	err = e.channel.PublishWithContext(ctx,
		e.exchange,
		event.Kind,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Timestamp:   event.OccurredAt,
			Body:        body,
		},
	)
	if err != nil {
		logger.Error().Err(err).Str("event_kind", event.Kind).Msg("Failed to publish event")
		return
	}

	logger.Debug().Str("event_kind", event.Kind).Str("event_id", event.ID).Msg("Event published")
}

func (e *AMQPEmitter) Close() {
	if e.channel != nil {
		e.channel.Close()
	}
	if e.conn != nil {
		e.conn.Close()
	}
}
