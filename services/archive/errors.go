package archive

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnavailable Kind = "ArchiveUnavailable"
	KindNotFound    Kind = "NotFound"
)

// ErrBlobNotFound is returned by a BlobStore that holds nothing at an address.
var ErrBlobNotFound = errors.New("blob not found")

type ArchiveError struct {
	Code    Kind
	Address string
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Address, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func unavailable(address string, err error) error {
	return &ArchiveError{Code: KindUnavailable, Address: address, Err: err}
}

func notFound(address string, err error) error {
	return &ArchiveError{Code: KindNotFound, Address: address, Err: err}
}
