package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"lattice/internal/types"
)

// Validator wraps go-playground/validator so handlers get AppErrors with
// structured per-field details instead of the library's opaque error strings.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates the given struct against its `validate` tags.
// On failure it returns a *types.AppError with code
// "validation_missing_required_field" and a details map listing every failed
// field, so clients can surface every failure at once rather than one per
// round trip.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError (nil or non-struct input) is a programming
		// error, not a client error.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fieldErrors := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		map[string]any{"validation_errors": fieldErrors},
	)
}
