// Package apperrors defines the business error taxonomy shared by the stock
// engine and its workflows. Every failure detected inside a transaction is
// one of these kinds; handlers map kinds to HTTP status codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business error
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindInsufficientInventory  Kind = "INSUFFICIENT_INVENTORY"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindAlreadyVoided          Kind = "ALREADY_VOIDED"
	KindPolicyViolation        Kind = "POLICY_VIOLATION"
	KindStorage                Kind = "STORAGE_ERROR"
)

// Error is a business error with a kind and an operator-facing message.
type Error struct {
	Kind    Kind
	Message string
	// Available/Requested are populated for KindInsufficientInventory so
	// callers can decide whether a retry is worthwhile.
	Available int
	Requested int
	// Err is the wrapped cause, set for KindStorage.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing entity, e.g. "product", "transfer".
func NotFound(entity string, args ...interface{}) *Error {
	msg := entity + " not found"
	if len(args) > 0 {
		msg = fmt.Sprintf("%s %v not found", entity, args[0])
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

// InvalidInput reports a validation failure.
func InvalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InsufficientInventory reports a change that would drive stock negative.
func InsufficientInventory(available, requested int) *Error {
	return &Error{
		Kind:      KindInsufficientInventory,
		Message:   fmt.Sprintf("insufficient inventory: available %d, requested %d", available, requested),
		Available: available,
		Requested: requested,
	}
}

// InvalidStateTransition reports an operation against the wrong state.
func InvalidStateTransition(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidStateTransition, Message: fmt.Sprintf(format, args...)}
}

// AlreadyVoided reports a second void attempt against the same sale.
func AlreadyVoided(saleID string) *Error {
	return &Error{Kind: KindAlreadyVoided, Message: fmt.Sprintf("sale %s is already voided", saleID)}
}

// PolicyViolation reports an operation blocked by business policy.
func PolicyViolation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPolicyViolation, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps an unexpected storage-layer error so callers can tell it
// apart from business-rule failures.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op + " failed", Err: err}
}

// KindOf extracts the kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the response status the HTTP layer uses.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindInsufficientInventory, KindInvalidStateTransition, KindAlreadyVoided:
		return http.StatusConflict
	case KindPolicyViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
