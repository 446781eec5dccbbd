package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ErrorCode string

const (
	ErrorNotFound           ErrorCode = "not_found"
	ErrorConflict           ErrorCode = "conflict"
	ErrorInvariantViolation ErrorCode = "invariant_violation"
	ErrorUnavailable        ErrorCode = "unavailable"
	ErrorInvalid            ErrorCode = "invalid"
	ErrorForbidden          ErrorCode = "forbidden"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewInvariantViolation(msg string) error {
	return &ServiceError{Code: ErrorInvariantViolation, Message: msg}
}

func NewUnavailableError(msg string, err error) error {
	return &ServiceError{Code: ErrorUnavailable, Message: msg, Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a ServiceError carrying code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// SQLSTATE codes that mean "try again later" rather than "you asked for something wrong".
var transientSQLStates = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled
	"53300": {}, // too_many_connections
}

// classify maps a storage error onto the service error codes. what names the
// entity for not-found and conflict messages. ServiceErrors pass through.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsServiceError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewConflictError(what + " already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewUnavailableError("operation timed out", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return NewConflictError(what + " already exists")
		}
		if _, ok := transientSQLStates[pgErr.Code]; ok {
			return NewUnavailableError("database busy", err)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return NewConflictError(what + " already exists")
	case strings.Contains(msg, "database is locked"):
		return NewUnavailableError("database busy", err)
	}
	return err
}
