// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError lists every rejected field with the rule it broke.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}

// ConflictError names the shift that already holds the till, when known.
type ConflictError struct {
	Detail  string  `json:"detail"`
	ShiftID *string `json:"shift_id,omitempty"`
}

func NewConflict(msg string, shiftID *string) *ConflictError {
	return &ConflictError{Detail: msg, ShiftID: shiftID}
}

// UnavailableError is a retry-later condition. OutcomeUnknown tells the
// client to re-query state before retrying a write.
type UnavailableError struct {
	Detail         string `json:"detail"`
	OutcomeUnknown bool   `json:"outcome_unknown"`
}

func NewUnavailable(msg string, outcomeUnknown bool) *UnavailableError {
	return &UnavailableError{Detail: msg, OutcomeUnknown: outcomeUnknown}
}
