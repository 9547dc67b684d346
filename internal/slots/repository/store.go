package repository

import (
	"context"
	"time"

	"hotelops/pkg/model"
)

// AllocationStore persists the append-only allocation history. Every
// implementation guarantees at most one active record per slot: Append fails
// with ErrActiveAllocationExists rather than writing a second one.
type AllocationStore interface {
	// Append stores rec, assigning ID and Sequence on it, and returns the ID.
	Append(ctx context.Context, rec *model.AllocationRecord) (string, error)
	// LatestForSlot returns the record with the greatest allocatedAt, highest
	// sequence first on ties, or nil when the slot was never allocated.
	LatestForSlot(ctx context.Context, slotNumber int) (*model.AllocationRecord, error)
	// MarkReleased stamps releasedAt once. It fails with ErrNotFound or
	// ErrAlreadyReleased.
	MarkReleased(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error)
	// HistoryForSlot returns every record of the slot, newest first.
	HistoryForSlot(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error)
	ActiveAllocations(ctx context.Context) ([]*model.AllocationRecord, error)
	// AllAllocations returns every record of every slot, newest first.
	AllAllocations(ctx context.Context) ([]*model.AllocationRecord, error)
	Ping(ctx context.Context) error
}

// withTimeout bounds a store call by timeout, keeping an earlier caller deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}
