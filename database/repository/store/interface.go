package store

import (
	"context"
	"errors"
)

// Collections used by the booking service.
const (
	CollectionBookings       = "bookings"
	CollectionReviews        = "reviews"
	CollectionArchiveRecords = "archive_records"
	CollectionTransactions   = "transactions"
)

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Filter matches documents field by field. A []string value matches any of
// its elements; every other value must be equal.
type Filter map[string]any

// BookingStore is the document store the orchestrator persists into. There are
// no transactions across collections.
type BookingStore interface {
	Put(ctx context.Context, collection, id string, record any) error
	// Get decodes the document into out, a pointer.
	Get(ctx context.Context, collection, id string, out any) error
	// Query decodes at most limit matching documents into out, a pointer to a slice.
	Query(ctx context.Context, collection string, filter Filter, limit int, out any) error
}
