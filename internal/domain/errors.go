package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Session specific errors
	CodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	CodeInvalidPhase      ErrorCode = "INVALID_PHASE"
	CodeStaleSession      ErrorCode = "STALE_SESSION"
	CodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	CodeInvalidCategory   ErrorCode = "INVALID_CATEGORY"
	CodeInvalidDifficulty ErrorCode = "INVALID_DIFFICULTY"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
// Sentinel values like ErrInvalidPhase match any error carrying their code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// WithContext attaches a key/value pair that the HTTP layer reports as details.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

var (
	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = NewError(CodeInvalidPhase, "operation not allowed in current phase", nil)
	// ErrStaleSession is returned by Start when the session was reset while questions were loading.
	ErrStaleSession = NewError(CodeStaleSession, "session was reset while loading questions", nil)
	// ErrSourceUnavailable marks any failure of the remote question source.
	ErrSourceUnavailable = NewError(CodeSourceUnavailable, "question source unavailable", nil)
)

// Helper functions for common errors
func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(CodeInternal, message, err)
}

func NewSessionNotFoundError(sessionID string) *DomainError {
	return NewError(CodeSessionNotFound, fmt.Sprintf("Session not found with ID: %s", sessionID), nil)
}

func NewInvalidPhaseError(op string, phase Phase) *DomainError {
	return NewError(CodeInvalidPhase, fmt.Sprintf("cannot %s while %s", op, phase), nil).
		WithContext("phase", phase.String())
}

func NewSourceUnavailableError(message string, err error) *DomainError {
	return NewError(CodeSourceUnavailable, message, err)
}

func NewInvalidCategoryError(categoryID int) *DomainError {
	return NewError(CodeInvalidCategory, fmt.Sprintf("Invalid category: %d", categoryID), nil)
}

func NewInvalidDifficultyError(difficulty string) *DomainError {
	return NewError(CodeInvalidDifficulty, fmt.Sprintf("Invalid difficulty: %s", difficulty), nil)
}

// ValidationError describes a single invalid request field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every field error found in one request
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "field is required"}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Message: "invalid format", Value: value}
}

func NewOutOfRangeError(field string, value interface{}, min, max int) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be between %d and %d", min, max),
		Value:   value,
	}
}
