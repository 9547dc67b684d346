package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotOperationCounters(t *testing.T) {
	m := New("hotel")

	m.ObserveSlotOperation("allocate", OutcomeSuccess, 3*time.Millisecond)
	m.ObserveSlotOperation("allocate", OutcomeRejected, time.Millisecond)
	m.ObserveSlotOperation("allocate", OutcomeRejected, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.slotOperations.WithLabelValues("allocate", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.slotOperations.WithLabelValues("allocate", OutcomeRejected)))
}

func TestOccupiedGauge(t *testing.T) {
	m := New("hotel")

	m.SetOccupiedSlots(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.occupiedSlots))

	m.SetOccupiedSlots(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.occupiedSlots))
}

func TestEventsPublished(t *testing.T) {
	m := New("hotel")

	m.EventPublished("slot.allocated", nil)
	m.EventPublished("slot.allocated", errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("slot.allocated", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("slot.allocated", OutcomeError)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("hotel")
	m.ObserveHTTP(http.MethodPost, "/api/v1/slots/allocate", http.StatusCreated, 10*time.Millisecond)
	m.StoreRetry("allocate")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `hotel_http_requests_total{method="POST",route="/api/v1/slots/allocate",status="201"} 1`), body)
	assert.True(t, strings.Contains(body, `hotel_store_retries_total{operation="allocate"} 1`), body)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.ObserveSlotOperation("release", OutcomeError, time.Millisecond)
		m.StoreRetry("release")
		m.EventPublished("slot.released", nil)
		m.SetOccupiedSlots(0)
	})
}
