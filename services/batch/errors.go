package batch

import "errors"

// ErrMissingResult marks an operation the submitter returned no result for.
var ErrMissingResult = errors.New("batch: no result for operation")
