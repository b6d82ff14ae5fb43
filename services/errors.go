package services

import (
	"errors"
	"fmt"
)

// ErrorType categorizes failures for translation at the pipeline boundary. Stage
// internals never leak to clients; handlers map types to stable response shapes.
type ErrorType string

const (
	// ErrorTypeValidation covers malformed client input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnauthorized covers bad passwords, bad or expired tokens and bad
	// federated assertions
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeInactiveAccount covers missing or deactivated accounts
	ErrorTypeInactiveAccount ErrorType = "inactive_account"
	// ErrorTypeUpgradeRequired covers tier denials; not fatal, carries tier detail
	ErrorTypeUpgradeRequired ErrorType = "upgrade_required"
	// ErrorTypeConflict covers uniqueness collisions (duplicate email)
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUpstream covers unreachable identity provider or data store; retryable
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeInternal covers anything unanticipated
	ErrorTypeInternal ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthorized, "invalid credentials", nil)
	ErrInvalidToken       = NewDomainError(ErrorTypeUnauthorized, "invalid token", nil)
	ErrInvalidAssertion   = NewDomainError(ErrorTypeUnauthorized, "invalid identity assertion", nil)
	ErrInactiveAccount    = NewDomainError(ErrorTypeInactiveAccount, "account missing or inactive", nil)
	ErrUpgradeRequired    = NewDomainError(ErrorTypeUpgradeRequired, "upgrade required", nil)
	ErrDuplicateEmail     = NewDomainError(ErrorTypeConflict, "email already registered", nil)
	ErrUpstream           = NewDomainError(ErrorTypeUpstream, "upstream unavailable", nil)
	ErrInternal           = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string otherwise
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil otherwise
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsUpstreamError checks if an error is a retryable upstream error
func IsUpstreamError(err error) bool {
	return GetErrorType(err) == ErrorTypeUpstream
}

// WrapError wraps an error with a type and message
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapUpstream wraps an error as a retryable upstream failure
func WrapUpstream(message string, err error) error {
	return NewDomainError(ErrorTypeUpstream, message, err)
}

// WrapInternal wraps an error as an internal fault
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
