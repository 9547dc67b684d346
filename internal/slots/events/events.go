package events

import (
	"context"
	"strconv"
	"time"

	"hotelops/pkg/model"
)

const (
	TypeSlotAllocated = "slot.allocated"
	TypeSlotReleased  = "slot.released"

	SchemaVersion = "1"
)

// Event is a completed slot transition. Record is the stored allocation record
// after the transition.
type Event struct {
	Type       string                  `json:"eventType"`
	SlotNumber int                     `json:"slotNumber"`
	State      model.SlotState         `json:"state"`
	Record     *model.AllocationRecord `json:"record"`
	OccurredAt time.Time               `json:"occurredAt"`
}

func Allocated(rec *model.AllocationRecord, at time.Time) Event {
	return Event{
		Type:       TypeSlotAllocated,
		SlotNumber: rec.SlotNumber,
		State:      model.SlotOccupied,
		Record:     rec,
		OccurredAt: at.UTC(),
	}
}

func Released(rec *model.AllocationRecord, at time.Time) Event {
	return Event{
		Type:       TypeSlotReleased,
		SlotNumber: rec.SlotNumber,
		State:      model.SlotFree,
		Record:     rec,
		OccurredAt: at.UTC(),
	}
}

// Key partitions events by slot so each slot's transitions stay ordered.
func (e Event) Key() string {
	return strconv.Itoa(e.SlotNumber)
}

// Publisher announces slot transitions. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func (nopPublisher) Close() error { return nil }
