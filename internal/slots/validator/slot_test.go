package validator

import (
	"errors"
	"strings"
	"testing"

	apperrors "hotelops/pkg/errors"
	"hotelops/pkg/logger"
	"hotelops/pkg/model"
)

func newTestValidator() *SlotValidator {
	return NewSlotValidator(logger.Nop(), 20)
}

func TestValidateAllocate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		req       *model.AllocateRequest
		wantField string
	}{
		{
			name: "valid",
			req:  &model.AllocateRequest{SlotNumber: 7, OccupantRef: "ROOM-204"},
		},
		{
			name:      "missing slot",
			req:       &model.AllocateRequest{OccupantRef: "ROOM-204"},
			wantField: "slotNumber",
		},
		{
			name:      "slot above range",
			req:       &model.AllocateRequest{SlotNumber: 21, OccupantRef: "ROOM-204"},
			wantField: "slotNumber",
		},
		{
			name:      "negative slot",
			req:       &model.AllocateRequest{SlotNumber: -3, OccupantRef: "ROOM-204"},
			wantField: "slotNumber",
		},
		{
			name:      "empty occupant",
			req:       &model.AllocateRequest{SlotNumber: 7},
			wantField: "occupantRef",
		},
		{
			name:      "occupant too long",
			req:       &model.AllocateRequest{SlotNumber: 7, OccupantRef: strings.Repeat("X", 65)},
			wantField: "occupantRef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAllocate(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verrs[0].Field)
			}
		})
	}
}

func TestValidateRelease(t *testing.T) {
	v := newTestValidator()

	if err := v.ValidateRelease(&model.ReleaseRequest{SlotNumber: 20}); err != nil {
		t.Errorf("slot 20 should be valid: %v", err)
	}
	if err := v.ValidateRelease(&model.ReleaseRequest{SlotNumber: 0}); err == nil {
		t.Error("slot 0 should be rejected")
	}
}

func TestValidateSlotNumber(t *testing.T) {
	v := newTestValidator()

	for _, n := range []int{1, 10, 20} {
		if err := v.ValidateSlotNumber(n); err != nil {
			t.Errorf("slot %d: unexpected error %v", n, err)
		}
	}

	err := v.ValidateSlotNumber(99)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Field != "slotNumber" {
		t.Errorf("unexpected field %q", verrs[0].Field)
	}
	if !strings.Contains(verrs[0].Message, "between 1 and 20") {
		t.Errorf("unexpected message %q", verrs[0].Message)
	}
}

func TestValidationErrors_AppError(t *testing.T) {
	verrs := ValidationErrors{{Field: "slotNumber", Message: "is required"}}

	appErr := verrs.AppError()
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
	if appErr.Message != "slotNumber: is required" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}
