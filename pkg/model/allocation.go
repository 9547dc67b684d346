package model

import "time"

type SlotState string

const (
	SlotFree     SlotState = "FREE"
	SlotOccupied SlotState = "OCCUPIED"
)

// AllocationRecord is one occupancy interval of a slot. ReleasedAt is nil while
// the record is the slot's active occupancy.
type AllocationRecord struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	SlotNumber  int        `json:"slotNumber" bson:"slot_number"`
	OccupantRef string     `json:"occupantRef" bson:"occupant_ref"`
	AllocatedAt time.Time  `json:"allocatedAt" bson:"allocated_at"`
	ReleasedAt  *time.Time `json:"releasedAt,omitempty" bson:"released_at,omitempty"`
	Sequence    int64      `json:"sequence" bson:"seq"`
}

func (r *AllocationRecord) IsActive() bool {
	return r != nil && r.ReleasedAt == nil
}

type SlotStatus struct {
	SlotNumber int               `json:"slotNumber"`
	State      SlotState         `json:"state"`
	Record     *AllocationRecord `json:"record,omitempty"`
}

// StatusOf derives a slot's state from its latest record, which may be nil.
func StatusOf(slotNumber int, latest *AllocationRecord) *SlotStatus {
	if latest.IsActive() {
		return &SlotStatus{SlotNumber: slotNumber, State: SlotOccupied, Record: latest}
	}
	return &SlotStatus{SlotNumber: slotNumber, State: SlotFree, Record: latest}
}

type AllocateRequest struct {
	SlotNumber  int    `json:"slotNumber" validate:"required,slot_number"`
	OccupantRef string `json:"occupantRef" validate:"required,max=64"`
}

type ReleaseRequest struct {
	SlotNumber int `json:"slotNumber" validate:"required,slot_number"`
}

type StateRequest struct {
	SlotNumber int `json:"slotNumber"`
}
