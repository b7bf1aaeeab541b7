package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker delivers a serialized event to the message bus.
type Broker interface {
	Publish(ctx context.Context, msg Message) error
}

type Message struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Payload     map[string]any `json:"payload"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type rabbitMQBroker struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQBroker opens a channel on conn and declares a durable topic exchange.
// Events are routed by their type, e.g. "achievement.created".
func NewRabbitMQBroker(conn *amqp.Connection, exchange string) (*rabbitMQBroker, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events broker: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("events broker: declare exchange %q: %w", exchange, err)
	}
	return &rabbitMQBroker{channel: ch, exchange: exchange}, nil
}

func (b *rabbitMQBroker) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("events broker: marshal %s: %w", msg.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channel.PublishWithContext(ctx,
		b.exchange, // exchange
		msg.Type,   // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Type,
			Timestamp:    msg.OccurredAt,
			Body:         body,
		},
	)
}

func (b *rabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channel.Close()
}
