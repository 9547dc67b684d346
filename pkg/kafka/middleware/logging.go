package kafka_middleware

import (
	"context"
	"errors"
	"time"

	"hotelops/pkg/kafka"
	"hotelops/pkg/logger"
)

// LoggingProducerMiddleware logs every publish with its outcome and latency.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration_ms", time.Since(start).Milliseconds(),
		}

		var kafkaErr *kafka.KafkaError
		switch {
		case err == nil:
			log.Debug("Published Kafka message", attrs...)
		case errors.As(err, &kafkaErr) && kafkaErr.IsTransient():
			log.Warn("Kafka publish failed transiently", append(attrs, "error", err)...)
		case errors.As(err, &kafkaErr) && kafkaErr.IsPermanent():
			log.Error("Kafka message rejected", append(attrs, "error", err)...)
		default:
			log.Error("Failed to publish Kafka message", append(attrs, "error", err)...)
		}

		return err
	}
}
