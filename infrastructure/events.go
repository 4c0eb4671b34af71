package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DocumentCreated is published after a document has been stored.
type DocumentCreated struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Document   json.RawMessage `json:"document"`
}

// NewDocumentCreated builds the event for a freshly stored record.
func NewDocumentCreated(kind string, id ObjectID, record any) (DocumentCreated, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return DocumentCreated{}, fmt.Errorf("marshal %s document: %w", kind, err)
	}
	return DocumentCreated{
		Kind:       kind,
		ID:         id.String(),
		OccurredAt: time.Now().UTC(),
		Document:   body,
	}, nil
}

// EventPublisher sends DocumentCreated events to the configured broker.
type EventPublisher interface {
	Publish(ctx context.Context, event DocumentCreated) error
	Close() error
}

// EventConsumer delivers DocumentCreated events to handler until ctx is cancelled.
type EventConsumer interface {
	Consume(ctx context.Context, handler func(DocumentCreated)) error
	Close() error
}

// EventBus is a broker connection that can both publish and consume.
type EventBus interface {
	EventPublisher
	EventConsumer
}

// NewEventBus connects to the broker named by cfg.EventsURL (amqp:// or nats://).
// With no URL it returns a bus that drops published events.
func NewEventBus(cfg *Config, logger *zap.Logger, observer Observer) (EventBus, error) {
	switch {
	case cfg.EventsURL == "":
		logger.Info("EVENTS_URL not set, document events are disabled")
		return NopEventBus{}, nil
	case strings.HasPrefix(cfg.EventsURL, "amqp"):
		rmq, err := NewRabbitMQ(cfg.EventsURL, cfg.EventsTopic, logger, observer)
		if err != nil {
			return nil, err
		}
		return rmq, nil
	case strings.HasPrefix(cfg.EventsURL, "nats"):
		bus, err := NewNATSBus(cfg.EventsURL, cfg.EventsTopic, logger, observer)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported EVENTS_URL scheme in %q", cfg.EventsURL)
	}
}

func decodeEvent(body []byte) (DocumentCreated, error) {
	var ev DocumentCreated
	if err := json.Unmarshal(body, &ev); err != nil {
		return DocumentCreated{}, fmt.Errorf("invalid event format: %w", err)
	}
	return ev, nil
}

// NopEventBus drops published events and never delivers any.
type NopEventBus struct{}

func (NopEventBus) Publish(context.Context, DocumentCreated) error { return nil }

func (NopEventBus) Consume(ctx context.Context, _ func(DocumentCreated)) error {
	<-ctx.Done()
	return nil
}

func (NopEventBus) Close() error { return nil }
