package errors

import (
	"errors"
	"fmt"
	"strings"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a business rule violation
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"
)

// Codes surfaced by the recalculation engine.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeDiscussionEnded      = "DISCUSSION_ENDED"
	CodeDivisionByZero       = "DIVISION_BY_ZERO"
	CodeMaxDepthExceeded     = "MAX_DEPTH_EXCEEDED"
	CodeInvalidOperationKind = "INVALID_OPERATION_KIND"
	CodeAlreadyEnded         = "DISCUSSION_ALREADY_ENDED"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type      DomainErrorType        `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// Is matches on Type and Code so fresh errors compare equal to the sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Sentinels for errors.Is. Never call With* on these; use the constructors
// below to obtain an error carrying details.
var (
	ErrValidation           = NewDomainError(DomainValidationError, CodeValidation, "validation failed")
	ErrNotFound             = NewDomainError(DomainNotFoundError, CodeNotFound, "not found")
	ErrDiscussionEnded      = NewDomainError(DomainBusinessRuleError, CodeDiscussionEnded, "discussion has ended")
	ErrDivisionByZero       = NewDomainError(DomainBusinessRuleError, CodeDivisionByZero, "cannot divide by zero")
	ErrMaxDepthExceeded     = NewDomainError(DomainBusinessRuleError, CodeMaxDepthExceeded, "maximum tree depth exceeded")
	ErrInvalidOperationKind = NewDomainError(DomainValidationError, CodeInvalidOperationKind, "invalid operation kind")
	ErrAlreadyEnded         = NewDomainError(DomainConflictError, CodeAlreadyEnded, "Discussion is already ended")
)

// Validation returns a fresh VALIDATION_ERROR.
func Validation(message string) *DomainError {
	return NewDomainError(DomainValidationError, CodeValidation, message)
}

// NotFound returns a fresh NOT_FOUND error for the named resource.
func NotFound(resource, id string) *DomainError {
	return NewDomainError(DomainNotFoundError, CodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func DiscussionEnded(discussionID string) *DomainError {
	return NewDomainError(DomainBusinessRuleError, CodeDiscussionEnded, "Cannot modify operations in an ended discussion").
		WithDetail("discussion_id", discussionID)
}

func DiscussionAlreadyEnded(discussionID string) *DomainError {
	return NewDomainError(DomainConflictError, CodeAlreadyEnded, "Discussion is already ended").
		WithDetail("discussion_id", discussionID)
}

func DivisionByZero() *DomainError {
	return NewDomainError(DomainBusinessRuleError, CodeDivisionByZero, "Cannot divide by zero")
}

// MaxDepthExceeded reports an attempt to admit a node deeper than maxDepth.
func MaxDepthExceeded(attempted, maxDepth int) *DomainError {
	msg := fmt.Sprintf("Maximum tree depth of %d exceeded. Cannot add operation at depth %d.", maxDepth, attempted)
	return NewDomainError(DomainBusinessRuleError, CodeMaxDepthExceeded, msg).
		WithDetail("attempted_depth", attempted).
		WithDetail("max_depth", maxDepth)
}

func InvalidOperationKind(kind string) *DomainError {
	return NewDomainError(DomainValidationError, CodeInvalidOperationKind, fmt.Sprintf("Invalid operation type: %s", kind)).
		WithDetail("kind", kind)
}

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr
	}
	return nil
}

// IsDomainType checks the category of a DomainError in the chain.
func IsDomainType(err error, errType DomainErrorType) bool {
	domErr := GetDomainError(err)
	return domErr != nil && domErr.Type == errType
}

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]*DomainError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field string, message string) {
	err := Validation(message).WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(messages, "; "))
}

// Is lets errors.Is(err, ErrValidation) match an aggregate.
func (v *ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ToMap groups messages by field.
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)

	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "general"
		}
		result[field] = append(result[field], err.Message)
	}

	return result
}
