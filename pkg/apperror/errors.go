package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeInvalidAmount      = "ACC_001"
	CodeInsufficientFunds  = "ACC_002"
	CodeAccountNotFound    = "ACC_003"
	CodeAccountExists      = "ACC_004"
	CodeInvalidRequest     = "REQ_001"
	CodeNotFound           = "REQ_002"
	CodeIdempotencyBusy    = "REQ_003"
	CodeLockAcquisition    = "LOCK_001"
	CodeDeskClosed         = "DESK_001"
	CodeDeskSubmitAborted  = "DESK_002"
	CodeRateLimitExceeded  = "RATE_001"
	CodeInternal           = "SYS_001"
	CodeDependencyDegraded = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ---- Accounts (ACC) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be a positive number", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in source account", http.StatusUnprocessableEntity)
}

func ErrAccountNotFound(id string) *AppError {
	return New(CodeAccountNotFound, fmt.Sprintf("Account %s not found", id), http.StatusNotFound)
}

func ErrAccountExists(id string) *AppError {
	return New(CodeAccountExists, fmt.Sprintf("Account %s already exists", id), http.StatusConflict)
}

// ---- Requests (REQ) ----

func ErrInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrIdempotencyBusy() *AppError {
	return New(CodeIdempotencyBusy, "A request with this Idempotency-Key is still in progress", http.StatusConflict)
}

// ---- Locking & Desks (LOCK, DESK) ----

func ErrLockAcquisition(err error) *AppError {
	return Wrap(CodeLockAcquisition, "Failed to acquire account locks", http.StatusServiceUnavailable, err)
}

func ErrDeskClosed() *AppError {
	return New(CodeDeskClosed, "Transfer desk is shut down", http.StatusServiceUnavailable)
}

func ErrDeskSubmitAborted(err error) *AppError {
	return Wrap(CodeDeskSubmitAborted, "Transfer queue is full", http.StatusServiceUnavailable, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrDependencyDegraded(err error) *AppError {
	return Wrap(CodeDependencyDegraded, "Service dependency unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return ErrInvalidRequest(message)
}
