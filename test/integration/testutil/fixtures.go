//go:build integration

package testutil

import (
	"fmt"
	"sync/atomic"

	"hotelops/pkg/model"
)

var occupantSeq atomic.Int64

// Allocate builds an allocate request with a unique occupant reference.
func Allocate(slotNumber int) model.AllocateRequest {
	return model.AllocateRequest{
		SlotNumber:  slotNumber,
		OccupantRef: fmt.Sprintf("IT-%d", occupantSeq.Add(1)),
	}
}

func Release(slotNumber int) model.ReleaseRequest {
	return model.ReleaseRequest{SlotNumber: slotNumber}
}
