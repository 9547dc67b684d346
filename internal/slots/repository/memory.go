package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	slotserrors "hotelops/internal/slots/errors"
	"hotelops/pkg/model"
)

type memoryAllocationStore struct {
	mu      sync.RWMutex
	records map[string]*model.AllocationRecord
	bySlot  map[int][]*model.AllocationRecord
	active  map[int]*model.AllocationRecord
	seq     int64
}

// NewMemoryAllocationStore returns a process-local store. Records are lost on exit.
func NewMemoryAllocationStore() AllocationStore {
	return &memoryAllocationStore{
		records: make(map[string]*model.AllocationRecord),
		bySlot:  make(map[int][]*model.AllocationRecord),
		active:  make(map[int]*model.AllocationRecord),
	}
}

func (s *memoryAllocationStore) Append(ctx context.Context, rec *model.AllocationRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReleasedAt == nil {
		if _, exists := s.active[rec.SlotNumber]; exists {
			return "", slotserrors.ErrActiveAllocationExists
		}
	}

	s.seq++
	stored := *rec
	stored.ID = strconv.FormatInt(s.seq, 10)
	stored.Sequence = s.seq

	s.records[stored.ID] = &stored
	s.bySlot[stored.SlotNumber] = append(s.bySlot[stored.SlotNumber], &stored)
	if stored.ReleasedAt == nil {
		s.active[stored.SlotNumber] = &stored
	}

	rec.ID = stored.ID
	rec.Sequence = stored.Sequence
	return stored.ID, nil
}

func (s *memoryAllocationStore) LatestForSlot(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.AllocationRecord
	for _, rec := range s.bySlot[slotNumber] {
		if latest == nil || newer(rec, latest) {
			latest = rec
		}
	}
	return clone(latest), nil
}

func (s *memoryAllocationStore) MarkReleased(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	if rec.ReleasedAt != nil {
		return nil, slotserrors.ErrAlreadyReleased
	}

	ts := releasedAt
	rec.ReleasedAt = &ts
	if s.active[rec.SlotNumber] == rec {
		delete(s.active, rec.SlotNumber)
	}
	return clone(rec), nil
}

func (s *memoryAllocationStore) HistoryForSlot(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]*model.AllocationRecord, 0, len(s.bySlot[slotNumber]))
	for _, rec := range s.bySlot[slotNumber] {
		history = append(history, clone(rec))
	}
	sort.Slice(history, func(i, j int) bool { return newer(history[i], history[j]) })
	return history, nil
}

func (s *memoryAllocationStore) ActiveAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*model.AllocationRecord, 0, len(s.active))
	for _, rec := range s.active {
		active = append(active, clone(rec))
	}
	sort.Slice(active, func(i, j int) bool { return active[i].SlotNumber < active[j].SlotNumber })
	return active, nil
}

func (s *memoryAllocationStore) AllAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.AllocationRecord, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, clone(rec))
	}
	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })
	return all, nil
}

func (s *memoryAllocationStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// newer orders by allocatedAt, then by insertion sequence.
func newer(a, b *model.AllocationRecord) bool {
	if !a.AllocatedAt.Equal(b.AllocatedAt) {
		return a.AllocatedAt.After(b.AllocatedAt)
	}
	return a.Sequence > b.Sequence
}

func clone(rec *model.AllocationRecord) *model.AllocationRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	if rec.ReleasedAt != nil {
		ts := *rec.ReleasedAt
		out.ReleasedAt = &ts
	}
	return &out
}
