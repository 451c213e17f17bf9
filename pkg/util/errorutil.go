package util

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for expected lifecycle outcomes and infrastructure failures.
const (
	CodeUnknownCategory  = "UNKNOWN_CATEGORY"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeThrottled        = "THROTTLED"
	CodeDuplicateTicket  = "DUPLICATE_TICKET"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyClaimed   = "ALREADY_CLAIMED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeTransportFailure = "TRANSPORT_FAILURE"
	CodeParseFailure     = "PARSE_FAILURE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

func NewUnknownCategory(category string) error {
	return NewDomainError(CodeUnknownCategory, fmt.Sprintf("unknown ticket category %q", category), map[string]any{"category": category})
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, details)
}

func NewThrottled(retryAfter time.Duration) error {
	return NewDomainError(CodeThrottled, "ticket creation throttled", map[string]any{"retry_after": retryAfter.String()})
}

func NewDuplicateTicket(ticketID string) error {
	return NewDomainError(CodeDuplicateTicket, "ticket already registered", map[string]any{"ticket_id": ticketID})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

func NewAlreadyClaimed(claimantID string) error {
	return NewDomainError(CodeAlreadyClaimed, "ticket already claimed", map[string]any{"claimant_id": claimantID})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, nil)
}

func NewTransportFailure(operation string, err error) error {
	return &DomainError{
		Code:    CodeTransportFailure,
		Message: fmt.Sprintf("platform call %s failed", operation),
		Details: map[string]any{"operation": operation},
		Err:     err,
	}
}

func NewParseFailure(conversationID string, err error) error {
	return &DomainError{
		Code:    CodeParseFailure,
		Message: "conversation marker could not be parsed",
		Details: map[string]any{"conversation_id": conversationID},
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:    CodeInternalError,
		Message: "internal error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:    CodeInternalError,
		Message: "internal error",
		Err:     err,
	}
}

// CodeOf returns the error code, or INTERNAL_ERROR for unknown errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ClaimantFromError extracts the current claimant from an AlreadyClaimed error.
func ClaimantFromError(err error) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != CodeAlreadyClaimed {
		return ""
	}
	if id, ok := domainErr.Details["claimant_id"].(string); ok {
		return id
	}
	return ""
}
