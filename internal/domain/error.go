package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCodeLocked         = errors.New("discount code is locked by a concurrent checkout")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ErrorCode is the closed, machine-readable taxonomy surfaced to API callers.
// The first eight are expected validation outcomes; the rest are infrastructure
// conditions that must never leak store internals.
type ErrorCode string

const (
	CodeInvalidCode       ErrorCode = "INVALID_CODE"
	CodeExpired           ErrorCode = "EXPIRED"
	CodeMaxUses           ErrorCode = "MAX_USES"
	CodeAlreadyUsed       ErrorCode = "ALREADY_USED"
	CodeInactive          ErrorCode = "INACTIVE"
	CodeNotYetValid       ErrorCode = "NOT_YET_VALID"
	CodePlanUnavailable   ErrorCode = "PLAN_UNAVAILABLE"
	CodeReservationExists ErrorCode = "RESERVATION_EXISTS"
	CodeCodeLocked        ErrorCode = "CODE_LOCKED"
	CodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	CodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// ValidationError is a user-facing rejection of a reserve/redeem request.
// It is an expected outcome, logged as an audit event rather than an error.
type ValidationError struct {
	Code       ErrorCode
	Message    string
	Suggestion string     // only ever set for INVALID_CODE
	ValidUntil *time.Time // only ever set for EXPIRED
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(code ErrorCode, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg}
}

// AsValidation unwraps err into a *ValidationError, or nil.
func AsValidation(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
