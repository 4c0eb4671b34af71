package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus publishes and consumes document events on one subject.
type NATSBus struct {
	conn     *nats.Conn
	subject  string
	logger   *zap.Logger
	observer Observer
}

func NewNATSBus(url, subject string, logger *zap.Logger, observer Observer) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("staff-arabia-api"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("subject", subject))
	return &NATSBus{conn: conn, subject: subject, logger: logger, observer: observer}, nil
}

func (b *NATSBus) Publish(_ context.Context, event DocumentCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	start := time.Now()
	err = b.conn.Publish(b.subject, data)
	b.observer.ObserveOperation(OperationContext{
		Component: "events",
		Operation: "publish",
		Resource:  b.subject,
		Duration:  time.Since(start),
		Error:     err,
		Size:      int64(len(data)),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject, err)
	}

	b.logger.Debug("published document event",
		zap.String("subject", b.subject),
		zap.String("kind", event.Kind),
		zap.String("id", event.ID))
	return nil
}

func (b *NATSBus) Consume(ctx context.Context, handler func(DocumentCreated)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		ev, err := decodeEvent(msg.Data)
		if err != nil {
			b.logger.Warn("dropping message", zap.Error(err))
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

func (b *NATSBus) Close() error {
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}
