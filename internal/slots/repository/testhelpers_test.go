package repository

import (
	"time"

	"hotelops/pkg/model"
)

func newRecord(slot int, occupant string, at time.Time) *model.AllocationRecord {
	return &model.AllocationRecord{
		SlotNumber:  slot,
		OccupantRef: occupant,
		AllocatedAt: at,
	}
}
