package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidDate        = "INVALID_DATE"
	CodeNotFound           = "NOT_FOUND"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeConflict           = "CONFLICT"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeTransferIncomplete = "TRANSFER_INCOMPLETE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. A DomainError matches a sentinel when the codes are equal.
var (
	ErrInvalidInput       = &DomainError{Code: CodeInvalidInput, Message: "invalid input", HTTPStatus: http.StatusBadRequest}
	ErrInvalidDate        = &DomainError{Code: CodeInvalidDate, Message: "invalid date", HTTPStatus: http.StatusBadRequest}
	ErrNotFound           = &DomainError{Code: CodeNotFound, Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrCapacityExceeded   = &DomainError{Code: CodeCapacityExceeded, Message: "capacity exceeded", HTTPStatus: http.StatusConflict}
	ErrConflict           = &DomainError{Code: CodeConflict, Message: "conflict", HTTPStatus: http.StatusConflict}
	ErrStoreUnavailable   = &DomainError{Code: CodeStoreUnavailable, Message: "roster store unavailable", HTTPStatus: http.StatusServiceUnavailable}
	ErrTransferIncomplete = &DomainError{Code: CodeTransferIncomplete, Message: "transfer incomplete", HTTPStatus: http.StatusInternalServerError}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
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

// Is reports whether target carries the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewInvalidInput(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidInput, message, http.StatusBadRequest, details)
}

func NewInvalidDate(input string) error {
	return NewDomainError(CodeInvalidDate, fmt.Sprintf("unrecognized date %q", input), http.StatusBadRequest,
		map[string]any{"input": input})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewCapacityExceeded(message string, details map[string]any) error {
	return NewDomainError(CodeCapacityExceeded, message, http.StatusConflict, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewStoreUnavailable wraps a persistence failure. These are fatal to a batch.
func NewStoreUnavailable(op string, err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    fmt.Sprintf("roster store %s failed", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

func NewTransferIncomplete(sourceID string, err error) error {
	return &DomainError{
		Code:       CodeTransferIncomplete,
		Message:    "duties copied to target but source was not cleared",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"source_staff_id": sourceID},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
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
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError wraps non-domain errors as internal errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsDomain reports whether err is one of the recoverable domain outcomes
// rather than a persistence or internal failure.
func IsDomain(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Code {
	case CodeStoreUnavailable, CodeInternal, CodeTransferIncomplete:
		return false
	}
	return true
}
