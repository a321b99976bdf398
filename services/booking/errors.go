package booking

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeSessionNotFound Code = "SessionNotFound"
	CodeBookingNotFound Code = "BookingNotFound"
	CodeInvalidInput    Code = "InvalidInput"
	CodeUnavailable     Code = "StoreUnavailable"
	CodeInProgress      Code = "BookingInProgress"
)

// ErrSessionNotFound is returned by a SessionStore for unknown or expired keys.
var ErrSessionNotFound = errors.New("booking session not found or expired")

// ErrLocked is returned by a Locker when another holder owns the key.
var ErrLocked = errors.New("lock is held by another owner")

type BookingError struct {
	Code    Code
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BookingError) Unwrap() error { return e.Err }

func NewBookingError(code Code, msg string, err error) error {
	return &BookingError{Code: code, Message: msg, Err: err}
}

func CodeOf(err error) Code {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
