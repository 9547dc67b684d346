package validator

import (
	"errors"
	"fmt"
	"strings"

	apperrors "hotelops/pkg/errors"
	"hotelops/pkg/logger"
	"hotelops/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

// AppError converts the collected field errors into a VALIDATION_ERROR whose
// message names the first failing field.
func (v ValidationErrors) AppError() *apperrors.AppError {
	if len(v) == 0 {
		return apperrors.Validation("validation failed", nil)
	}
	return apperrors.Validation(v[0].Error(), map[string]any{"errors": []ValidationError(v)})
}

type SlotValidator struct {
	validate  *validator.Validate
	slotCount int
	log       *logger.Logger
}

// NewSlotValidator accepts slot numbers in 1..slotCount.
func NewSlotValidator(log *logger.Logger, slotCount int) *SlotValidator {
	v := validator.New()
	sv := &SlotValidator{validate: v, slotCount: slotCount, log: log}

	if err := v.RegisterValidation("slot_number", sv.validateSlotNumber); err != nil {
		log.Fatal("Failed to register slot_number validation", "error", err)
	}

	return sv
}

func (v *SlotValidator) SlotCount() int {
	return v.slotCount
}

func (v *SlotValidator) ValidateAllocate(req *model.AllocateRequest) error {
	return v.validateStruct(req)
}

func (v *SlotValidator) ValidateRelease(req *model.ReleaseRequest) error {
	return v.validateStruct(req)
}

// ValidateSlotNumber checks a bare slot number, e.g. one taken from the URL path.
func (v *SlotValidator) ValidateSlotNumber(slotNumber int) error {
	if err := v.validate.Var(slotNumber, "required,slot_number"); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			out := v.translateValidationErrors(validationErrs)
			for i := range out {
				out[i].Field = "slotNumber"
			}
			return out
		}
		return err
	}
	return nil
}

func (v *SlotValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SlotValidator) validateSlotNumber(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n >= 1 && n <= int64(v.slotCount)
}

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := jsonFieldName(err.Field())
		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: v.messageFor(err),
		})
	}

	return validationErrors
}

func (v *SlotValidator) messageFor(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "slot_number":
		return fmt.Sprintf("must be between 1 and %d", v.slotCount)
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
