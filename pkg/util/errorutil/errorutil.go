package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the pipeline stages and the HTTP layer.
const (
	CodeValidation           = "VALIDATION_FAILED"
	CodeEmptyInput           = "EMPTY_INPUT"
	CodeSchemaViolation      = "SCHEMA_VIOLATION"
	CodeClassificationFailed = "CLASSIFICATION_FAILED"
	CodeRetrievalUnavailable = "RETRIEVAL_UNAVAILABLE"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeTimeout              = "TIMEOUT"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
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

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
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

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewEmptyInputError reports a blank question. It is raised before any external call.
func NewEmptyInputError() error {
	return NewDomainError(CodeEmptyInput, "question must not be empty", http.StatusBadRequest, nil)
}

// NewSchemaViolationError reports model output that failed the classification or answer contract.
func NewSchemaViolationError(violations []string, err error) error {
	details := map[string]any{}
	if len(violations) > 0 {
		details["violations"] = violations
	}
	return &DomainError{
		Code:       CodeSchemaViolation,
		Message:    "model output violated the response schema",
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

// NewClassificationError wraps a failed classification call.
func NewClassificationError(err error) error {
	return &DomainError{
		Code:       CodeClassificationFailed,
		Message:    "classification call failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewRetrievalUnavailableError reports that the vector store or embedding service could not be reached.
func NewRetrievalUnavailableError(collection string, err error) error {
	return &DomainError{
		Code:       CodeRetrievalUnavailable,
		Message:    "retrieval service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"collection": collection},
		Err:        err,
	}
}

// NewGenerationError wraps a failed answer generation call.
func NewGenerationError(err error) error {
	return &DomainError{
		Code:       CodeGenerationFailed,
		Message:    "answer generation failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewTimeoutError reports a cancelled or expired stage.
func NewTimeoutError(stage string, err error) error {
	return &DomainError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", stage),
		HTTPStatus: http.StatusGatewayTimeout,
		Details:    map[string]any{"stage": stage},
		Err:        err,
	}
}

// Is reports whether err wraps a DomainError with the given code.
func Is(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsContextError reports whether err stems from cancellation or an expired deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
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
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if IsContextError(err) {
		if de, ok := NewTimeoutError("request", err).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

var codeStatus = map[string]int{
	CodeValidation:           http.StatusBadRequest,
	CodeEmptyInput:           http.StatusBadRequest,
	CodeSchemaViolation:      http.StatusBadGateway,
	CodeClassificationFailed: http.StatusBadGateway,
	CodeRetrievalUnavailable: http.StatusServiceUnavailable,
	CodeGenerationFailed:     http.StatusBadGateway,
	CodeTimeout:              http.StatusGatewayTimeout,
	CodeNotFound:             http.StatusNotFound,
	CodeUnauthorized:         http.StatusUnauthorized,
	CodeForbidden:            http.StatusForbidden,
}

// FromCode rebuilds a DomainError from a code and a rendered message, as carried by
// a pipeline result. Unknown codes map to 500.
func FromCode(code, message string) error {
	status, ok := codeStatus[code]
	if !ok {
		code, status = CodeInternal, http.StatusInternalServerError
	}
	return NewDomainError(code, message, status, nil)
}
