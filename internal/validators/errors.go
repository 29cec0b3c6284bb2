package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrEmptyID              = errors.New("evaluation id is required")
	ErrEmptyPatientName     = errors.New("patient name is required")
	ErrEmptyPatientDocument = errors.New("patient document is required")
	ErrInvalidStatus        = errors.New("invalid evaluation status")
	ErrInvalidComplexity    = errors.New("complexity out of range")
	ErrMissingSchedule      = errors.New("scheduled evaluation needs scheduledAt")
)
