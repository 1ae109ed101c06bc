package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Rabbit publishes notifications to a durable topic exchange, using the event
// name as routing key.
type Rabbit struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewRabbit(url, exchange string, logger *slog.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger.Info("rabbitmq outbox ready", "exchange", exchange)
	return &Rabbit{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (r *Rabbit) Emit(ctx context.Context, name string, payload map[string]any) error {
	env := newEnvelope(name, payload)
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	// amqp channels are not safe for concurrent publishes.
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.channel.PublishWithContext(ctx,
		r.exchange,
		name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID.String(),
			Timestamp:    env.OccurredAt,
			Type:         name,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	r.logger.Debug("outbox event published", "name", name, "id", env.ID)
	return nil
}

func (r *Rabbit) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}
