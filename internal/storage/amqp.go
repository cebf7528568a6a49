package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// publisher is the subset of *amqp.Channel the AMQP sink needs.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPStorage publishes one JSON message per product to a queue, for
// consumers that load the catalogue asynchronously.
type AMQPStorage struct {
	conn    *amqp.Connection
	channel publisher
	queue   string
	mu      sync.Mutex
	count   int
	logger  *slog.Logger
}

// NewAMQPStorage dials the broker and declares a durable queue.
func NewAMQPStorage(url, queue string, logger *slog.Logger) (*AMQPStorage, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	s := newAMQPStorage(ch, queue, logger)
	s.conn = conn
	return s, nil
}

func newAMQPStorage(ch publisher, queue string, logger *slog.Logger) *AMQPStorage {
	return &AMQPStorage{
		channel: ch,
		queue:   queue,
		logger:  logger.With("component", "amqp_storage"),
	}
}

func (s *AMQPStorage) Name() string { return "amqp" }

func (s *AMQPStorage) Store(ctx context.Context, products []*types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := json.Marshal(p)
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("marshal %s: %w", p.ProductID, err)}
		}

		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    p.ProductID,
			Timestamp:    time.Now(),
			Body:         body,
		}
		if err := s.channel.Publish("", s.queue, false, false, msg); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("publish to %s: %w", s.queue, err)}
		}
		s.count++
	}
	return nil
}

func (s *AMQPStorage) Close() error {
	s.logger.Info("amqp storage closing", "queue", s.queue, "published", s.count)
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
