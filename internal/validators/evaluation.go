package validators

import (
	"context"
	"slices"
	"strings"

	"github.com/MKhiriev/go-care-keeper/models"
)

// Field names accepted by [EvaluationValidator].
const (
	FieldID              = "id"
	FieldPatientName     = "patientName"
	FieldPatientDocument = "patientDocument"
	FieldStatus          = "status"
	FieldComplexity      = "complexity"
	FieldScheduledAt     = "scheduledAt"
)

// MaxComplexity is the highest care complexity level.
const MaxComplexity = 5

var allowedStatuses = []models.EvaluationStatus{
	models.EvaluationDraft,
	models.EvaluationScheduled,
	models.EvaluationCompleted,
	models.EvaluationCancelled,
}

var allEvaluationFields = []string{
	FieldID,
	FieldPatientName,
	FieldPatientDocument,
	FieldStatus,
	FieldComplexity,
	FieldScheduledAt,
}

// EvaluationValidator validates [models.Evaluation] values and pointers.
type EvaluationValidator struct{}

func NewEvaluationValidator() Validator {
	return &EvaluationValidator{}
}

func (v *EvaluationValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.Evaluation:
		return v.validateEvaluation(value, fields...)
	case *models.Evaluation:
		if value == nil {
			return ErrUnsupportedType
		}
		return v.validateEvaluation(*value, fields...)
	default:
		return ErrUnsupportedType
	}
}

func (v *EvaluationValidator) validateEvaluation(e models.Evaluation, fields ...string) error {
	if len(fields) == 0 {
		fields = allEvaluationFields
	}

	for _, f := range fields {
		switch f {
		case FieldID:
			if strings.TrimSpace(e.ID) == "" {
				return ErrEmptyID
			}
		case FieldPatientName:
			if strings.TrimSpace(e.PatientName) == "" {
				return ErrEmptyPatientName
			}
		case FieldPatientDocument:
			if strings.TrimSpace(e.PatientDocument) == "" {
				return ErrEmptyPatientDocument
			}
		case FieldStatus:
			if !slices.Contains(allowedStatuses, e.Status) {
				return ErrInvalidStatus
			}
		case FieldComplexity:
			if e.Complexity < 0 || e.Complexity > MaxComplexity {
				return ErrInvalidComplexity
			}
		case FieldScheduledAt:
			if e.Status == models.EvaluationScheduled && (e.ScheduledAt == nil || e.ScheduledAt.IsZero()) {
				return ErrMissingSchedule
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}
