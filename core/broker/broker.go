// Package broker publishes sync events (changed cards and prices, image tasks, run summaries)
// to a RabbitMQ topic exchange.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys used by the sync engine.
const (
	KeyCardsUpdated  = "cards.updated"
	KeyPricesUpdated = "prices.updated"
	KeyImageProcess  = "images.process"
	KeySyncCompleted = "sync.completed"
)

// RoutingKeys lists every key the engine publishes with.
var RoutingKeys = []string{KeyCardsUpdated, KeyPricesUpdated, KeyImageProcess, KeySyncCompleted}

// Message is the envelope of every published event.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
	Close() error
}

// Encode wraps v in a Message envelope.
func Encode(routingKey string, v any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	return json.Marshal(Message{Type: routingKey, Timestamp: now.UTC(), Data: data})
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes to a topic exchange over one channel.
type RabbitMQ struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQ dials the broker and declares the exchange (and the optional queue).
func NewRabbitMQ(cfg Config, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if cfg.Queue != "" {
		q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		for _, key := range RoutingKeys {
			if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
				ch.Close()
				conn.Close()
				return nil, fmt.Errorf("bind queue to %s: %w", key, err)
			}
		}
	}

	logger.Info("Connected to rabbitmq",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue))

	return &RabbitMQ{conn: conn, channel: ch, exchange: cfg.Exchange, logger: logger}, nil
}

// Publish sends v as a persistent JSON message.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, v any) error {
	now := time.Now()
	body, err := Encode(routingKey, v, now)
	if err != nil {
		return err
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    now,
	})
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	r.logger.Debug("Published event", zap.String("routing_key", routingKey), zap.Int("bytes", len(body)))
	return nil
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Memory keeps published events in process. Dry runs and tests use it.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

func (m *Memory) Publish(_ context.Context, routingKey string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	m.mu.Lock()
	m.messages = append(m.messages, Message{Type: routingKey, Timestamp: time.Now().UTC(), Data: data})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Messages returns the events published with routingKey, or all events when it is empty.
func (m *Memory) Messages(routingKey string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if routingKey == "" || msg.Type == routingKey {
			out = append(out, msg)
		}
	}
	return out
}

// New returns a RabbitMQ publisher when enabled, Nop otherwise.
func New(cfg Config, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewRabbitMQ(cfg, logger)
}
