package beckn

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindGatewayUnavailable Kind = "GatewayUnavailable"
	KindProtocol           Kind = "ProtocolError"
	KindAuth               Kind = "AuthError"
	// KindOutOfOrder is returned when a phase is called before the phase it
	// depends on has succeeded in the same transaction.
	KindOutOfOrder Kind = "OutOfOrder"
)

// PhaseError is returned by every gateway phase.
type PhaseError struct {
	Code    Kind
	Action  Action
	Message string
	Err     error
}

func (e *PhaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Action, e.Message)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func newPhaseError(code Kind, action Action, msg string, err error) error {
	return &PhaseError{Code: code, Action: action, Message: msg, Err: err}
}

// KindOf returns the phase error kind carried by err, or "" if err did not
// come from the gateway client.
func KindOf(err error) Kind {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
