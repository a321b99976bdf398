package ledger

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindCommitFailed Kind = "LedgerCommitFailed"
	KindQueryFailed  Kind = "LedgerQueryFailed"
)

type LedgerError struct {
	Code Kind
	Op   string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

func commitFailed(op string, err error) error {
	return &LedgerError{Code: KindCommitFailed, Op: op, Err: err}
}

func queryFailed(op string, err error) error {
	return &LedgerError{Code: KindQueryFailed, Op: op, Err: err}
}

// ErrReverted is returned when a call or transaction was reverted by the
// contract.
var ErrReverted = errors.New("execution reverted")

// ErrNonceGap is returned for a batched transaction queued behind a nonce the
// node rejected and that could not be filled. It may still be mined once a
// later transaction takes the missing nonce.
var ErrNonceGap = errors.New("queued behind an unfilled nonce")
