package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hotelops/pkg/config"
	"hotelops/pkg/kafka"
	kafka_config "hotelops/pkg/kafka/config"
	kafka_middleware "hotelops/pkg/kafka/middleware"
	"hotelops/pkg/metrics"
	"hotelops/pkg/middleware"
)

const (
	// HeaderSlotNumber lets consumers filter by slot without decoding the value.
	HeaderSlotNumber = "slot-number"

	publishAttempts   = 2
	publishRetryDelay = 50 * time.Millisecond
)

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer messagePublisher
	source   string
	metrics  *metrics.Metrics
}

// NewKafkaPublisher publishes events through producer, tagging each message
// with source and the request id found in ctx.
func NewKafkaPublisher(producer messagePublisher, source string, m *metrics.Metrics) Publisher {
	return &kafkaPublisher{producer: producer, source: source, metrics: m}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Key()).
		WithValue(event).
		WithEventID("").
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(event.OccurredAt).
		WithHeader(HeaderSlotNumber, strconv.Itoa(event.SlotNumber)).
		Build()
	if err != nil {
		p.metrics.EventPublished(event.Type, err)
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}

	err = p.send(ctx, msg)
	p.metrics.EventPublished(event.Type, err)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// send retries transient producer failures once. Permanent ones, such as an
// invalid message, are returned immediately.
func (p *kafkaPublisher) send(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.producer.Publish(ctx, msg)
		var kafkaErr *kafka.KafkaError
		if err == nil || !errors.As(err, &kafkaErr) || !kafkaErr.IsTransient() || attempt == publishAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(publishRetryDelay):
		}
	}
	return err
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NewFromConfig returns a Kafka publisher when events are enabled, otherwise a
// no-op one.
func NewFromConfig(cfg *config.Config, source string, m *metrics.Metrics) (Publisher, error) {
	if !cfg.EventsEnabled {
		return NewNopPublisher(), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kafka config: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.SlotEventsTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Slot events enabled", "topic", producer.Topic())
	return NewKafkaPublisher(producer, source, m), nil
}
