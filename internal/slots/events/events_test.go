package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"hotelops/pkg/config"
	"hotelops/pkg/kafka"
	"hotelops/pkg/logger"
	"hotelops/pkg/metrics"
	"hotelops/pkg/middleware"
	"hotelops/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	failures []error
	calls    int
	closed   bool
}

func (f *fakeProducer) Publish(ctx context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func sampleRecord() *model.AllocationRecord {
	return &model.AllocationRecord{
		ID:          "42",
		SlotNumber:  7,
		OccupantRef: "ROOM-204",
		AllocatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Sequence:    42,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &fakeProducer{}
	m := metrics.New("test")
	pub := NewKafkaPublisher(producer, "slots-service", m)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Publish(ctx, Allocated(sampleRecord(), at)))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "7", msg.Key)
	assert.Equal(t, TypeSlotAllocated, msg.GetEventType())
	assert.Equal(t, "req-123", msg.GetCorrelationID())
	assert.NotEmpty(t, msg.GetEventID())
	source, _ := msg.GetHeader(kafka.HeaderSource)
	assert.Equal(t, "slots-service", source)
	slot, ok := msg.GetHeader(HeaderSlotNumber)
	assert.True(t, ok)
	assert.Equal(t, "7", slot)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, model.SlotOccupied, decoded.State)
	assert.Equal(t, "ROOM-204", decoded.Record.OccupantRef)

	assert.Contains(t, scrape(t, m), `test_slot_events_published_total{outcome="success",type="slot.allocated"} 1`)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	m := metrics.New("test")
	pub := NewKafkaPublisher(producer, "slots-service", m)

	rec := sampleRecord()
	released := rec.AllocatedAt.Add(time.Hour)
	rec.ReleasedAt = &released

	err := pub.Publish(context.Background(), Released(rec, released))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeSlotReleased)
	assert.Contains(t, scrape(t, m), `test_slot_events_published_total{outcome="error",type="slot.released"} 1`)

	require.NoError(t, pub.Close())
	assert.True(t, producer.closed)
}

func TestKafkaPublisher_RetriesTransientFailure(t *testing.T) {
	producer := &fakeProducer{failures: []error{
		kafka.NewTransientError("failed to publish message", errors.New("leader not available")),
	}}
	m := metrics.New("test")
	pub := NewKafkaPublisher(producer, "slots-service", m)

	require.NoError(t, pub.Publish(context.Background(), Allocated(sampleRecord(), time.Now())))
	assert.Equal(t, 2, producer.calls)
	assert.Len(t, producer.messages, 1)
	assert.Contains(t, scrape(t, m), `test_slot_events_published_total{outcome="success",type="slot.allocated"} 1`)
}

func TestKafkaPublisher_PermanentFailureNotRetried(t *testing.T) {
	producer := &fakeProducer{err: kafka.NewPermanentError("message rejected", errors.New("record too large"))}
	pub := NewKafkaPublisher(producer, "slots-service", nil)

	err := pub.Publish(context.Background(), Allocated(sampleRecord(), time.Now()))
	require.Error(t, err)
	assert.Equal(t, 1, producer.calls)
}

func TestKafkaPublisher_TransientRetriesBounded(t *testing.T) {
	producer := &fakeProducer{err: kafka.NewTransientError("failed to publish message", errors.New("connection refused"))}
	pub := NewKafkaPublisher(producer, "slots-service", nil)

	err := pub.Publish(context.Background(), Allocated(sampleRecord(), time.Now()))
	require.Error(t, err)
	assert.Equal(t, publishAttempts, producer.calls)
}

func TestNewFromConfig_Disabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Log = logger.Nop()
	cfg.EventsEnabled = false

	pub, err := NewFromConfig(cfg, "slots-service", nil)
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(context.Background(), Allocated(sampleRecord(), time.Now())))
	assert.NoError(t, pub.Close())
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "13", Event{SlotNumber: 13}.Key())
}
