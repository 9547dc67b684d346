package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "hotelops/internal/slots/errors"
	"hotelops/internal/slots/events"
	"hotelops/internal/slots/repository"
	"hotelops/internal/slots/validator"
	"hotelops/pkg/config"
	apperrors "hotelops/pkg/errors"
	"hotelops/pkg/metrics"
	"hotelops/pkg/model"
	"hotelops/pkg/sanitizer"
	"hotelops/pkg/tracing"
)

const (
	opAllocate = "allocate"
	opRelease  = "release"
	opState    = "state"
	opBoard    = "board"
	opHistory  = "history"
	opLog      = "log"
)

type SlotService interface {
	Allocate(ctx context.Context, slotNumber int, occupantRef string) (*model.AllocationRecord, error)
	Release(ctx context.Context, slotNumber int) (*model.AllocationRecord, error)
	State(ctx context.Context, slotNumber int) (*model.SlotStatus, error)

	Board(ctx context.Context) ([]*model.SlotStatus, error)
	History(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error)
	AllocationLog(ctx context.Context) ([]*model.AllocationRecord, error)
}

type slotService struct {
	repo      repository.AllocationStore
	validator *validator.SlotValidator
	cfg       *config.Config
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time

	retryAttempts int
	retryBackoff  time.Duration
}

type Option func(*slotService)

// WithClock replaces time.Now as the source of allocatedAt and releasedAt.
func WithClock(now func() time.Time) Option {
	return func(s *slotService) {
		s.now = now
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *slotService) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *slotService) {
		s.metrics = m
	}
}

// WithRetry overrides STORE_RETRY_ATTEMPTS and STORE_RETRY_BACKOFF.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *slotService) {
		s.retryAttempts = attempts
		s.retryBackoff = backoff
	}
}

func NewSlotService(
	repo repository.AllocationStore,
	validator *validator.SlotValidator,
	cfg *config.Config,
	opts ...Option,
) SlotService {
	s := &slotService{
		repo:          repo,
		validator:     validator,
		cfg:           cfg,
		publisher:     events.NewNopPublisher(),
		now:           time.Now,
		retryAttempts: cfg.StoreRetryAttempts,
		retryBackoff:  cfg.StoreRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *slotService) Allocate(ctx context.Context, slotNumber int, occupantRef string) (rec *model.AllocationRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.Allocate")
	span.SetInt("slot.number", slotNumber)
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opAllocate, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	req := &model.AllocateRequest{
		SlotNumber:  slotNumber,
		OccupantRef: sanitizer.SanitizeOccupantRef(occupantRef),
	}
	if err := s.validator.ValidateAllocate(req); err != nil {
		return nil, s.validationError(opAllocate, slotNumber, err)
	}

	err = s.withRetry(ctx, opAllocate, func(ctx context.Context) error {
		latest, err := s.repo.LatestForSlot(ctx, req.SlotNumber)
		if err != nil {
			return apperrors.Storage("Failed to read slot state", err)
		}
		if latest.IsActive() {
			return apperrors.SlotAlreadyOccupied(req.SlotNumber)
		}

		candidate := &model.AllocationRecord{
			SlotNumber:  req.SlotNumber,
			OccupantRef: req.OccupantRef,
			AllocatedAt: allocationTime(s.timestamp(), latest),
		}
		if _, err := s.repo.Append(ctx, candidate); err != nil {
			if errors.Is(err, slotserrors.ErrActiveAllocationExists) {
				return apperrors.SlotAlreadyOccupied(req.SlotNumber)
			}
			return apperrors.Storage("Failed to store allocation", err)
		}

		rec = candidate
		return nil
	})
	if err != nil {
		s.logFailure(opAllocate, req.SlotNumber, err)
		return nil, err
	}

	s.refreshOccupiedSlots(ctx)
	s.cfg.Log.Info("Slot allocated",
		"slot_number", rec.SlotNumber,
		"allocation_id", rec.ID,
		"occupant_ref", rec.OccupantRef,
	)
	s.publish(ctx, events.Allocated(rec, rec.AllocatedAt))

	return rec, nil
}

func (s *slotService) Release(ctx context.Context, slotNumber int) (rec *model.AllocationRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.Release")
	span.SetInt("slot.number", slotNumber)
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opRelease, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if err := s.validator.ValidateRelease(&model.ReleaseRequest{SlotNumber: slotNumber}); err != nil {
		return nil, s.validationError(opRelease, slotNumber, err)
	}

	err = s.withRetry(ctx, opRelease, func(ctx context.Context) error {
		latest, err := s.repo.LatestForSlot(ctx, slotNumber)
		if err != nil {
			return apperrors.Storage("Failed to read slot state", err)
		}
		if !latest.IsActive() {
			return apperrors.SlotNotOccupied(slotNumber)
		}

		releasedAt := s.timestamp()
		if releasedAt.Before(latest.AllocatedAt) {
			releasedAt = latest.AllocatedAt
		}

		released, err := s.repo.MarkReleased(ctx, latest.ID, releasedAt)
		if err != nil {
			switch {
			case errors.Is(err, slotserrors.ErrNotFound), errors.Is(err, slotserrors.ErrAlreadyReleased):
				return apperrors.SlotNotOccupied(slotNumber)
			case errors.Is(err, slotserrors.ErrInvalidID):
				return apperrors.Internal("Stored allocation has an invalid ID", err)
			default:
				return apperrors.Storage("Failed to release allocation", err)
			}
		}

		rec = released
		return nil
	})
	if err != nil {
		s.logFailure(opRelease, slotNumber, err)
		return nil, err
	}

	s.refreshOccupiedSlots(ctx)
	s.cfg.Log.Info("Slot released",
		"slot_number", rec.SlotNumber,
		"allocation_id", rec.ID,
		"occupied_for", rec.ReleasedAt.Sub(rec.AllocatedAt).String(),
	)
	s.publish(ctx, events.Released(rec, *rec.ReleasedAt))

	return rec, nil
}

func (s *slotService) State(ctx context.Context, slotNumber int) (status *model.SlotStatus, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.State")
	span.SetInt("slot.number", slotNumber)
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opState, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if err := s.validator.ValidateSlotNumber(slotNumber); err != nil {
		return nil, s.validationError(opState, slotNumber, err)
	}

	var latest *model.AllocationRecord
	err = s.withRetry(ctx, opState, func(ctx context.Context) error {
		var err error
		latest, err = s.repo.LatestForSlot(ctx, slotNumber)
		if err != nil {
			return apperrors.Storage("Failed to read slot state", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(opState, slotNumber, err)
		return nil, err
	}

	return model.StatusOf(slotNumber, latest), nil
}

// Board reports every configured slot, FREE unless it has an active record.
func (s *slotService) Board(ctx context.Context) (board []*model.SlotStatus, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.Board")
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opBoard, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	var active []*model.AllocationRecord
	err = s.withRetry(ctx, opBoard, func(ctx context.Context) error {
		var err error
		active, err = s.repo.ActiveAllocations(ctx)
		if err != nil {
			return apperrors.Storage("Failed to read active allocations", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(opBoard, 0, err)
		return nil, err
	}

	slotCount := s.validator.SlotCount()
	bySlot := make(map[int]*model.AllocationRecord, len(active))
	for _, rec := range active {
		if rec.SlotNumber >= 1 && rec.SlotNumber <= slotCount {
			bySlot[rec.SlotNumber] = rec
		}
	}

	board = make([]*model.SlotStatus, 0, slotCount)
	for n := 1; n <= slotCount; n++ {
		board = append(board, model.StatusOf(n, bySlot[n]))
	}

	s.metrics.SetOccupiedSlots(len(active))
	span.SetInt("slots.occupied", len(bySlot))
	return board, nil
}

func (s *slotService) History(ctx context.Context, slotNumber int) (history []*model.AllocationRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.History")
	span.SetInt("slot.number", slotNumber)
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opHistory, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if err := s.validator.ValidateSlotNumber(slotNumber); err != nil {
		return nil, s.validationError(opHistory, slotNumber, err)
	}

	err = s.withRetry(ctx, opHistory, func(ctx context.Context) error {
		var err error
		history, err = s.repo.HistoryForSlot(ctx, slotNumber)
		if err != nil {
			return apperrors.Storage("Failed to read slot history", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(opHistory, slotNumber, err)
		return nil, err
	}

	return history, nil
}

// AllocationLog lists every allocation across all slots, newest first.
func (s *slotService) AllocationLog(ctx context.Context) (records []*model.AllocationRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "SlotService.AllocationLog")
	start := time.Now()
	defer func() {
		s.metrics.ObserveSlotOperation(opLog, outcomeOf(err), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	err = s.withRetry(ctx, opLog, func(ctx context.Context) error {
		var err error
		records, err = s.repo.AllAllocations(ctx)
		if err != nil {
			return apperrors.Storage("Failed to read allocation log", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(opLog, 0, err)
		return nil, err
	}

	span.SetInt("allocations.count", len(records))
	return records, nil
}

// timestamp is the clock reading in UTC at millisecond precision, the finest
// precision every store keeps.
func (s *slotService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// allocationTime keeps a new record from sorting before the slot's previous
// one when this instance's clock lags the one that wrote it. Ties are broken
// by sequence, so the new record is still the latest.
func allocationTime(now time.Time, previous *model.AllocationRecord) time.Time {
	if previous == nil {
		return now
	}
	if previous.AllocatedAt.After(now) {
		now = previous.AllocatedAt
	}
	if previous.ReleasedAt != nil && previous.ReleasedAt.After(now) {
		now = *previous.ReleasedAt
	}
	return now
}

// withRetry runs fn again after STORAGE_ERROR failures, doubling the backoff
// each time. Any other outcome is returned as is.
func (s *slotService) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	backoff := s.retryBackoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !apperrors.HasCode(err, apperrors.CodeStorage) || attempt >= s.retryAttempts {
			return err
		}

		s.metrics.StoreRetry(operation)
		s.cfg.Log.Warn("Retrying slot store operation",
			"operation", operation,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}
}

// refreshOccupiedSlots sets the occupancy gauge from the store so every
// replica reports the same number. A failed read leaves the gauge as it was.
func (s *slotService) refreshOccupiedSlots(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	active, err := s.repo.ActiveAllocations(ctx)
	if err != nil {
		s.cfg.Log.Warn("Failed to refresh occupied slots gauge", "error", err)
		return
	}
	s.metrics.SetOccupiedSlots(len(active))
}

// publish hands a completed transition to the publisher. The transition is
// already stored, so failures are only logged.
func (s *slotService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.cfg.Log.Error("Failed to publish slot event",
			"event_type", event.Type,
			"slot_number", event.SlotNumber,
			"error", err,
		)
	}
}

func (s *slotService) validationError(operation string, slotNumber int, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		s.cfg.Log.Warn("Slot request validation failed",
			"operation", operation,
			"slot_number", slotNumber,
			"error", verrs[0].Error(),
		)
		return verrs.AppError()
	}
	return apperrors.Validation(fmt.Sprintf("Invalid %s request", operation), map[string]any{
		"error": err.Error(),
	})
}

func (s *slotService) logFailure(operation string, slotNumber int, err error) {
	appErr := apperrors.AsAppError(err)
	attrs := []any{
		"operation", operation,
		"slot_number", slotNumber,
		"code", appErr.Code,
		"error", err,
	}

	if outcomeOf(err) == metrics.OutcomeRejected {
		s.cfg.Log.Warn("Slot operation rejected", attrs...)
		return
	}
	s.cfg.Log.Error("Slot operation failed", attrs...)
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch {
	case apperrors.HasCode(err, apperrors.CodeValidation),
		apperrors.HasCode(err, apperrors.CodeSlotAlreadyOccupied),
		apperrors.HasCode(err, apperrors.CodeSlotNotOccupied):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
