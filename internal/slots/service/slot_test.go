package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	slotserrors "hotelops/internal/slots/errors"
	"hotelops/internal/slots/events"
	"hotelops/internal/slots/repository"
	"hotelops/internal/slots/validator"
	"hotelops/pkg/config"
	apperrors "hotelops/pkg/errors"
	"hotelops/pkg/logger"
	"hotelops/pkg/metrics"
	"hotelops/pkg/model"
)

// ────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────

type mockAllocationStore struct {
	appendFunc       func(ctx context.Context, rec *model.AllocationRecord) (string, error)
	latestFunc       func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error)
	markReleasedFunc func(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error)
	historyFunc      func(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error)
	activeFunc       func(ctx context.Context) ([]*model.AllocationRecord, error)
	allFunc          func(ctx context.Context) ([]*model.AllocationRecord, error)
}

func (m *mockAllocationStore) Append(ctx context.Context, rec *model.AllocationRecord) (string, error) {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, rec)
	}
	rec.ID = "1"
	rec.Sequence = 1
	return rec.ID, nil
}

func (m *mockAllocationStore) LatestForSlot(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
	if m.latestFunc != nil {
		return m.latestFunc(ctx, slotNumber)
	}
	return nil, nil
}

func (m *mockAllocationStore) MarkReleased(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
	if m.markReleasedFunc != nil {
		return m.markReleasedFunc(ctx, id, releasedAt)
	}
	return nil, slotserrors.ErrNotFound
}

func (m *mockAllocationStore) HistoryForSlot(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, slotNumber)
	}
	return []*model.AllocationRecord{}, nil
}

func (m *mockAllocationStore) ActiveAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	if m.activeFunc != nil {
		return m.activeFunc(ctx)
	}
	return []*model.AllocationRecord{}, nil
}

func (m *mockAllocationStore) AllAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	if m.allFunc != nil {
		return m.allFunc(ctx)
	}
	return []*model.AllocationRecord{}, nil
}

func (m *mockAllocationStore) Ping(ctx context.Context) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestConfig() *config.Config {
	return &config.Config{
		Log:                logger.Nop(),
		SlotCount:          20,
		StoreRetryAttempts: 2,
		StoreRetryBackoff:  time.Millisecond,
	}
}

func newTestService(store repository.AllocationStore, opts ...Option) SlotService {
	cfg := newTestConfig()
	return NewSlotService(store, validator.NewSlotValidator(cfg.Log, cfg.SlotCount), cfg, opts...)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

// ────────────────────────────────────────────────
// Lifecycle against the memory store
// ────────────────────────────────────────────────

func TestAllocate_MarksSlotOccupied(t *testing.T) {
	clock := &fakeClock{now: t0}
	svc := newTestService(repository.NewMemoryAllocationStore(), WithClock(clock.Now))
	ctx := context.Background()

	rec, err := svc.Allocate(ctx, 3, "V123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected record ID to be assigned")
	}
	if !rec.AllocatedAt.Equal(t0) {
		t.Errorf("expected allocatedAt %v, got %v", t0, rec.AllocatedAt)
	}
	if rec.ReleasedAt != nil {
		t.Error("new allocation must be active")
	}

	status, err := svc.State(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.State != model.SlotOccupied {
		t.Errorf("expected OCCUPIED, got %s", status.State)
	}
}

func TestAllocateThenRelease_ReturnsFree(t *testing.T) {
	clock := &fakeClock{now: t0}
	svc := newTestService(repository.NewMemoryAllocationStore(), WithClock(clock.Now))
	ctx := context.Background()

	allocated, err := svc.Allocate(ctx, 4, "V123")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	clock.Set(t0.Add(90 * time.Minute))
	released, err := svc.Release(ctx, 4)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.ID != allocated.ID {
		t.Errorf("release closed record %s, expected %s", released.ID, allocated.ID)
	}
	if released.ReleasedAt == nil || !released.ReleasedAt.Equal(t0.Add(90*time.Minute)) {
		t.Errorf("unexpected releasedAt %v", released.ReleasedAt)
	}

	status, err := svc.State(ctx, 4)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if status.State != model.SlotFree {
		t.Errorf("expected FREE, got %s", status.State)
	}
}

func TestAllocate_TwiceFailsAndKeepsOneRecord(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, 5, "V123")
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}

	_, err = svc.Allocate(ctx, 5, "V456")
	requireCode(t, err, apperrors.CodeSlotAlreadyOccupied)

	history, err := store.HistoryForSlot(ctx, 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 record, got %d", len(history))
	}
	if history[0].ID != first.ID || history[0].OccupantRef != "V123" {
		t.Errorf("original record was modified: %+v", history[0])
	}
}

func TestRelease_NeverAllocated(t *testing.T) {
	svc := newTestService(repository.NewMemoryAllocationStore())

	_, err := svc.Release(context.Background(), 8)
	requireCode(t, err, apperrors.CodeSlotNotOccupied)
}

func TestRelease_Twice(t *testing.T) {
	svc := newTestService(repository.NewMemoryAllocationStore())
	ctx := context.Background()

	if _, err := svc.Allocate(ctx, 8, "V123"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.Release(ctx, 8); err != nil {
		t.Fatalf("first release: %v", err)
	}

	_, err := svc.Release(ctx, 8)
	requireCode(t, err, apperrors.CodeSlotNotOccupied)
}

func TestAllocate_ConcurrentSingleWinner(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	svc := newTestService(store)
	ctx := context.Background()

	const callers = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		occupied int
	)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Allocate(ctx, 12, "RACER")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case apperrors.HasCode(err, apperrors.CodeSlotAlreadyOccupied):
				occupied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
	if occupied != callers-1 {
		t.Errorf("expected %d SLOT_ALREADY_OCCUPIED, got %d", callers-1, occupied)
	}

	active, err := store.ActiveAllocations(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active record, got %d", len(active))
	}
}

func TestSlotLifecycle_ReallocationUsesLatestRecord(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	clock := &fakeClock{now: t0}
	svc := newTestService(store, WithClock(clock.Now))
	ctx := context.Background()

	first, err := svc.Allocate(ctx, 7, "V123")
	if err != nil {
		t.Fatalf("allocate at T0: %v", err)
	}
	status, _ := svc.State(ctx, 7)
	if status.State != model.SlotOccupied || status.Record.ID != first.ID {
		t.Fatalf("unexpected state after T0: %+v", status)
	}

	t1 := t0.Add(time.Hour)
	clock.Set(t1)
	released, err := svc.Release(ctx, 7)
	if err != nil {
		t.Fatalf("release at T1: %v", err)
	}
	if released.ID != first.ID || !released.ReleasedAt.Equal(t1) {
		t.Fatalf("unexpected released record: %+v", released)
	}
	status, _ = svc.State(ctx, 7)
	if status.State != model.SlotFree {
		t.Fatalf("expected FREE after T1, got %s", status.State)
	}

	t2 := t0.Add(2 * time.Hour)
	clock.Set(t2)
	second, err := svc.Allocate(ctx, 7, "V456")
	if err != nil {
		t.Fatalf("allocate at T2: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("reallocation must create a new record")
	}

	latest, err := store.LatestForSlot(ctx, 7)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID || !latest.AllocatedAt.Equal(t2) || latest.OccupantRef != "V456" {
		t.Errorf("latest should be the T2 record, got %+v", latest)
	}
}

func TestAllocate_RoundTripsThroughStore(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.FixedZone("CET", 3600))}
	svc := newTestService(store, WithClock(clock.Now))
	ctx := context.Background()

	rec, err := svc.Allocate(ctx, 2, "  V 123\t")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if rec.OccupantRef != "V 123" {
		t.Errorf("expected sanitized occupant, got %q", rec.OccupantRef)
	}
	if rec.AllocatedAt.Location() != time.UTC || rec.AllocatedAt.Nanosecond() != 123000000 {
		t.Errorf("allocatedAt should be UTC at millisecond precision, got %v", rec.AllocatedAt)
	}

	latest, err := store.LatestForSlot(ctx, 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != rec.ID ||
		latest.SlotNumber != rec.SlotNumber ||
		latest.OccupantRef != rec.OccupantRef ||
		!latest.AllocatedAt.Equal(rec.AllocatedAt) ||
		latest.ReleasedAt != nil ||
		latest.Sequence != rec.Sequence {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", latest, rec)
	}
}

func TestBoardAndHistory(t *testing.T) {
	clock := &fakeClock{now: t0}
	svc := newTestService(repository.NewMemoryAllocationStore(), WithClock(clock.Now))
	ctx := context.Background()

	for _, slot := range []int{3, 5} {
		if _, err := svc.Allocate(ctx, slot, "V123"); err != nil {
			t.Fatalf("allocate %d: %v", slot, err)
		}
	}
	clock.Set(t0.Add(time.Hour))
	if _, err := svc.Release(ctx, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	clock.Set(t0.Add(2 * time.Hour))
	if _, err := svc.Allocate(ctx, 3, "V789"); err != nil {
		t.Fatalf("reallocate: %v", err)
	}

	board, err := svc.Board(ctx)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(board))
	}
	for _, status := range board {
		want := model.SlotFree
		if status.SlotNumber == 3 || status.SlotNumber == 5 {
			want = model.SlotOccupied
		}
		if status.State != want {
			t.Errorf("slot %d: expected %s, got %s", status.SlotNumber, want, status.State)
		}
	}

	history, err := svc.History(ctx, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].OccupantRef != "V789" || history[1].OccupantRef != "V123" {
		t.Errorf("history not newest first: %s, %s", history[0].OccupantRef, history[1].OccupantRef)
	}

	log, err := svc.AllocationLog(ctx)
	if err != nil {
		t.Fatalf("allocation log: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 records in the log, got %d", len(log))
	}
	wantSlots := []int{3, 5, 3}
	for i, rec := range log {
		if rec.SlotNumber != wantSlots[i] {
			t.Errorf("log[%d]: expected slot %d, got %d", i, wantSlots[i], rec.SlotNumber)
		}
	}
	if log[0].OccupantRef != "V789" || log[2].ReleasedAt == nil {
		t.Errorf("log not newest first: %+v", log)
	}
}

func TestAllocationLog_StorageFailure(t *testing.T) {
	calls := 0
	store := &mockAllocationStore{
		allFunc: func(ctx context.Context) ([]*model.AllocationRecord, error) {
			calls++
			return nil, errors.New("connection reset")
		},
	}
	svc := newTestService(store)

	_, err := svc.AllocationLog(context.Background())
	requireCode(t, err, apperrors.CodeStorage)
	if calls != 3 {
		t.Errorf("expected 1 call plus 2 retries, got %d", calls)
	}
}

// ────────────────────────────────────────────────
// Validation
// ────────────────────────────────────────────────

func TestValidation_StoreNotTouched(t *testing.T) {
	store := &mockAllocationStore{
		latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
			t.Error("store must not be called for invalid input")
			return nil, nil
		},
		historyFunc: func(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error) {
			t.Error("store must not be called for invalid input")
			return nil, nil
		},
	}
	svc := newTestService(store)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"allocate slot zero", func() error { _, err := svc.Allocate(ctx, 0, "V123"); return err }},
		{"allocate slot out of range", func() error { _, err := svc.Allocate(ctx, 21, "V123"); return err }},
		{"allocate blank occupant", func() error { _, err := svc.Allocate(ctx, 1, " \t "); return err }},
		{"release negative slot", func() error { _, err := svc.Release(ctx, -1); return err }},
		{"state slot zero", func() error { _, err := svc.State(ctx, 0); return err }},
		{"history out of range", func() error { _, err := svc.History(ctx, 99); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, tt.call(), apperrors.CodeValidation)
		})
	}
}

// ────────────────────────────────────────────────
// Store failures and retries
// ────────────────────────────────────────────────

func TestAllocate_RetriesStorageFailures(t *testing.T) {
	calls := 0
	store := &mockAllocationStore{
		latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection reset")
			}
			return nil, nil
		},
	}
	svc := newTestService(store)

	rec, err := svc.Allocate(context.Background(), 1, "V123")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if rec == nil || rec.ID == "" {
		t.Fatal("expected stored record")
	}
	if calls != 3 {
		t.Errorf("expected 3 reads, got %d", calls)
	}
}

func TestAllocate_StorageFailureAfterRetries(t *testing.T) {
	calls := 0
	storeErr := errors.New("no reachable servers")
	store := &mockAllocationStore{
		latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
			calls++
			return nil, storeErr
		},
		appendFunc: func(ctx context.Context, rec *model.AllocationRecord) (string, error) {
			t.Error("append must not run when the state read fails")
			return "", nil
		},
	}
	svc := newTestService(store)

	_, err := svc.Allocate(context.Background(), 1, "V123")
	requireCode(t, err, apperrors.CodeStorage)
	if !errors.Is(err, storeErr) {
		t.Error("storage error should wrap the store failure")
	}
	if calls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d calls", calls)
	}
}

func TestAllocate_UniquenessConflictNotRetried(t *testing.T) {
	appends := 0
	store := &mockAllocationStore{
		appendFunc: func(ctx context.Context, rec *model.AllocationRecord) (string, error) {
			appends++
			return "", slotserrors.ErrActiveAllocationExists
		},
	}
	svc := newTestService(store)

	_, err := svc.Allocate(context.Background(), 1, "V123")
	requireCode(t, err, apperrors.CodeSlotAlreadyOccupied)
	if appends != 1 {
		t.Errorf("business failures must not be retried, got %d appends", appends)
	}
}

func TestAllocate_RetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	store := &mockAllocationStore{
		latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
			calls++
			cancel()
			return nil, errors.New("timeout")
		},
	}
	svc := newTestService(store, WithRetry(5, time.Hour))

	_, err := svc.Allocate(ctx, 1, "V123")
	requireCode(t, err, apperrors.CodeStorage)
	if calls != 1 {
		t.Errorf("expected no retry after cancellation, got %d calls", calls)
	}
}

func TestRelease_StoreMissesMapToNotOccupied(t *testing.T) {
	for _, storeErr := range []error{slotserrors.ErrNotFound, slotserrors.ErrAlreadyReleased} {
		t.Run(storeErr.Error(), func(t *testing.T) {
			store := &mockAllocationStore{
				latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
					return &model.AllocationRecord{ID: "9", SlotNumber: slotNumber, AllocatedAt: t0}, nil
				},
				markReleasedFunc: func(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
					return nil, storeErr
				},
			}
			svc := newTestService(store)

			_, err := svc.Release(context.Background(), 2)
			requireCode(t, err, apperrors.CodeSlotNotOccupied)
		})
	}
}

func TestRelease_ClampsToAllocatedAt(t *testing.T) {
	allocatedAt := t0.Add(time.Minute)
	var got time.Time
	store := &mockAllocationStore{
		latestFunc: func(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
			return &model.AllocationRecord{ID: "9", SlotNumber: slotNumber, AllocatedAt: allocatedAt}, nil
		},
		markReleasedFunc: func(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
			got = releasedAt
			return &model.AllocationRecord{ID: id, SlotNumber: 2, AllocatedAt: allocatedAt, ReleasedAt: &releasedAt}, nil
		},
	}
	clock := &fakeClock{now: t0}
	svc := newTestService(store, WithClock(clock.Now))

	if _, err := svc.Release(context.Background(), 2); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !got.Equal(allocatedAt) {
		t.Errorf("releasedAt should be clamped to %v, got %v", allocatedAt, got)
	}
}

func TestAllocate_ClockBehindPreviousRelease(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	ctx := context.Background()

	ahead := &fakeClock{now: t0.Add(10 * time.Minute)}
	fast := newTestService(store, WithClock(ahead.Now))
	if _, err := fast.Allocate(ctx, 3, "V123"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	released, err := fast.Release(ctx, 3)
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	behind := &fakeClock{now: t0}
	slow := newTestService(store, WithClock(behind.Now))
	rec, err := slow.Allocate(ctx, 3, "V456")
	if err != nil {
		t.Fatalf("allocate on lagging clock: %v", err)
	}
	if rec.AllocatedAt.Before(*released.ReleasedAt) {
		t.Errorf("allocatedAt %v sorts before previous release %v", rec.AllocatedAt, *released.ReleasedAt)
	}

	status, err := slow.State(ctx, 3)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if status.State != model.SlotOccupied || status.Record.ID != rec.ID {
		t.Fatalf("expected OCCUPIED by %s, got %s %+v", rec.ID, status.State, status.Record)
	}

	if _, err := slow.Release(ctx, 3); err != nil {
		t.Fatalf("release on lagging clock: %v", err)
	}
	if _, err := slow.Allocate(ctx, 3, "V789"); err != nil {
		t.Fatalf("slot should be reusable after release: %v", err)
	}
}

func TestAllocationTime(t *testing.T) {
	releasedAt := t0.Add(5 * time.Minute)
	tests := []struct {
		name     string
		now      time.Time
		previous *model.AllocationRecord
		want     time.Time
	}{
		{"never allocated", t0, nil, t0},
		{"clock ahead", t0.Add(time.Hour), &model.AllocationRecord{AllocatedAt: t0, ReleasedAt: &releasedAt}, t0.Add(time.Hour)},
		{"clock behind release", t0, &model.AllocationRecord{AllocatedAt: t0.Add(time.Minute), ReleasedAt: &releasedAt}, releasedAt},
		{"clock behind allocation", t0, &model.AllocationRecord{AllocatedAt: t0.Add(2 * time.Minute)}, t0.Add(2 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allocationTime(tt.now, tt.previous); !got.Equal(tt.want) {
				t.Errorf("allocationTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Metrics
// ────────────────────────────────────────────────

func scrapeMetrics(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestOccupiedGaugeFollowsStore(t *testing.T) {
	store := repository.NewMemoryAllocationStore()
	m := metrics.New("test")
	svc := newTestService(store, WithMetrics(m))
	other := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Allocate(ctx, 1, "V1"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := other.Allocate(ctx, 2, "V2"); err != nil {
		t.Fatalf("allocate on second instance: %v", err)
	}
	if _, err := svc.Allocate(ctx, 4, "V4"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if body := scrapeMetrics(t, m); !strings.Contains(body, "test_slots_occupied 3") {
		t.Errorf("gauge should count allocations made by every instance:\n%s", body)
	}

	if _, err := svc.Allocate(ctx, 4, "V5"); err == nil {
		t.Fatal("expected conflict")
	}
	if _, err := svc.Release(ctx, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if body := scrapeMetrics(t, m); !strings.Contains(body, "test_slots_occupied 2") {
		t.Errorf("gauge should reflect the store after release:\n%s", body)
	}
}

// ────────────────────────────────────────────────
// Events
// ────────────────────────────────────────────────

func TestTransitionsPublishEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(repository.NewMemoryAllocationStore(), WithPublisher(pub))
	ctx := context.Background()

	if _, err := svc.Allocate(ctx, 6, "V123"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.Allocate(ctx, 6, "V456"); err == nil {
		t.Fatal("expected second allocate to fail")
	}
	if _, err := svc.Release(ctx, 6); err != nil {
		t.Fatalf("release: %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].Type != events.TypeSlotAllocated || pub.events[1].Type != events.TypeSlotReleased {
		t.Errorf("unexpected event order: %s, %s", pub.events[0].Type, pub.events[1].Type)
	}
	if pub.events[1].State != model.SlotFree {
		t.Errorf("released event should carry FREE state, got %s", pub.events[1].State)
	}
}

func TestPublishFailureKeepsTransition(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(repository.NewMemoryAllocationStore(), WithPublisher(pub))
	ctx := context.Background()

	if _, err := svc.Allocate(ctx, 6, "V123"); err != nil {
		t.Fatalf("publish failure must not fail allocate: %v", err)
	}

	status, err := svc.State(ctx, 6)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if status.State != model.SlotOccupied {
		t.Errorf("expected OCCUPIED, got %s", status.State)
	}
}
