package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentExists      = errors.New("document already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")

	ErrEmptyResult    = errors.New("empty result")
	ErrInvalidGroup   = errors.New("invalid group")
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnknownFeature = errors.New("unknown feature")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// EmptyResult reports a matrix or record set that filtering left empty.
func EmptyResult(format string, args ...any) *AppError {
	return Newf(ErrEmptyResult, http.StatusUnprocessableEntity, format, args...)
}

// InvalidGroup reports a grouping variable or group label that does not exist.
func InvalidGroup(format string, args ...any) *AppError {
	return Newf(ErrInvalidGroup, http.StatusBadRequest, format, args...)
}

// DivisionByZero reports a zero-sum row under proportional weighting.
func DivisionByZero(format string, args ...any) *AppError {
	return Newf(ErrDivisionByZero, http.StatusUnprocessableEntity, format, args...)
}

// UnknownFeature reports a queried feature absent from every document.
func UnknownFeature(format string, args ...any) *AppError {
	return Newf(ErrUnknownFeature, http.StatusNotFound, format, args...)
}

// InvalidInput reports a malformed request parameter.
func InvalidInput(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrUnknownFeature):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists), errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidGroup):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyResult), errors.Is(err, ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
