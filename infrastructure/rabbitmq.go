package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQ publishes and consumes document events on one durable queue.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    amqp.Queue
	logger   *zap.Logger
	observer Observer
}

// NewRabbitMQ dials url and declares the durable queue.
func NewRabbitMQ(url, queueName string, logger *zap.Logger, observer Observer) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	logger.Info("connected to RabbitMQ", zap.String("queue", q.Name))
	return &RabbitMQ{conn: conn, channel: ch, queue: q, logger: logger, observer: observer}, nil
}

// Publish sends event to the queue as persistent JSON.
func (r *RabbitMQ) Publish(ctx context.Context, event DocumentCreated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err = r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	r.observer.ObserveOperation(OperationContext{
		Component: "events",
		Operation: "publish",
		Resource:  r.queue.Name,
		Duration:  time.Since(start),
		Error:     err,
		Size:      int64(len(body)),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.queue.Name, err)
	}
	return nil
}

// Consume delivers queued events to handler until ctx is done or the channel closes.
func (r *RabbitMQ) Consume(ctx context.Context, handler func(DocumentCreated)) error {
	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("RabbitMQ delivery channel closed")
			}
			ev, err := decodeEvent(d.Body)
			if err != nil {
				r.logger.Warn("dropping message", zap.Error(err))
				continue
			}
			handler(ev)
		}
	}
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return r.conn.Close()
}
