package core

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"zonetime/internal/types"
)

// Validator wraps go-playground/validator with the domain rules used by
// request bodies.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags:
//
//	zone_id - a Home Assistant zone entity ID ("zone.<name>").
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("zone_id", validateZoneID); err != nil {
		logger.Error("failed to register zone_id validation", "error", err)
	}
	return &Validator{validate: v, logger: logger}
}

func validateZoneID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	name, ok := strings.CutPrefix(id, "zone.")
	return ok && name != "" && types.Slugify(name) == name
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateStruct returns nil when v passes, or a validation AppError listing
// every failed field under details.fields.
func (val *Validator) ValidateStruct(v any) error {
	err := val.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	fields := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}

	code := types.ErrCodeValidationMissingField
	for _, f := range fields {
		if f.Code != "required" {
			code = types.ErrCodeValidationInvalidZone
			break
		}
	}
	return types.NewAppErrorWithDetails(code, "request validation failed", err,
		map[string]any{"fields": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "zone_id":
		return fe.Field() + " must be a zone entity id such as zone.home"
	case "min", "max":
		return fe.Field() + " must satisfy " + fe.Tag() + "=" + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
