package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/batch"
	"villagestay/services/beckn"
	"villagestay/services/events"
	"villagestay/services/ledger"
	"villagestay/utils"

	"go.uber.org/zap"
)

// Gateway runs the four negotiation phases.
type Gateway interface {
	Search(ctx context.Context, txn *beckn.Transaction, intent beckn.SearchIntent) ([]beckn.ProviderResult, error)
	Quote(ctx context.Context, txn *beckn.Transaction, req beckn.QuoteRequest) (*beckn.Quote, error)
	InitBooking(ctx context.Context, txn *beckn.Transaction, quoteID string, user models.UserDetails) (*beckn.InitResult, error)
	ConfirmBooking(ctx context.Context, txn *beckn.Transaction, orderID string, payment models.PaymentDetails) (*beckn.Confirmation, error)
}

// Archiver stores immutable booking and review records.
type Archiver interface {
	StoreBooking(ctx context.Context, b models.Booking) (*models.ContentRecord, error)
	StoreReview(ctx context.Context, r models.Review) (*models.ContentRecord, error)
	StoreBatch(ctx context.Context, items []archive.BatchItem) []batch.Outcome[archive.BatchItem, *models.ContentRecord]
	VerifyIntegrity(ctx context.Context, bookingID string) (*archive.VerifyResult, error)
	RetrieveRaw(ctx context.Context, address string) (json.RawMessage, error)
}

// Anchorer commits references to the ledger.
type Anchorer interface {
	AnchorBooking(ctx context.Context, bookingID, contentAddress string, amount int64) (*models.LedgerReference, error)
	AnchorRating(ctx context.Context, bookingID string, rating int, reviewAddress string) (*models.LedgerReference, error)
	QueryBooking(ctx context.Context, bookingID string) (*ledger.BookingEntry, error)
	AnchorBatch(ctx context.Context, ops []ledger.Operation) []batch.Outcome[ledger.Operation, *models.LedgerReference]
}

// SessionStore keeps negotiation state between HTTP requests.
type SessionStore interface {
	Save(ctx context.Context, key string, txn *beckn.Transaction) error
	Load(ctx context.Context, key string) (*beckn.Transaction, error)
	Take(ctx context.Context, key string) (*beckn.Transaction, error)
	Delete(ctx context.Context, keys ...string) error
}

// VerifyCache holds recent verification reports.
type VerifyCache interface {
	Get(ctx context.Context, bookingID string) (*VerifyReport, bool)
	Set(ctx context.Context, bookingID string, report *VerifyReport)
	Delete(ctx context.Context, bookingID string)
}

// Locker grants an exclusive, expiring claim on a key. Acquire returns
// ErrLocked when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// BookingService is the booking transaction orchestrator.
type BookingService interface {
	Search(ctx context.Context, intent beckn.SearchIntent) (*SearchResult, error)
	Quote(ctx context.Context, transactionID string, req beckn.QuoteRequest) (*beckn.Quote, error)
	Book(ctx context.Context, req BookRequest) (*BookingResult, error)
	Rate(ctx context.Context, req RatingRequest) (*RatingResult, error)
	Verify(ctx context.Context, bookingID string) (*VerifyReport, error)
	VerifyLedger(ctx context.Context, bookingID string) (*ledger.BookingEntry, error)
	RetrieveArchive(ctx context.Context, address string) (json.RawMessage, error)
	PendingBookings(ctx context.Context, limit int) ([]models.BookingDocument, error)
	Resecure(ctx context.Context, bookingID string) (models.IntegrityLevel, error)
	ResecureBatch(ctx context.Context, bookingIDs []string) []ResecureResult
}

// DefaultBookingService implements BookingService. Archive and Ledger may be
// nil, in which case bookings stop at the corresponding integrity level.
// Locks serialises the integrity steps of a booking between Book and the
// reconciler; nil disables locking.
type DefaultBookingService struct {
	Gateway     Gateway
	Archive     Archiver
	Ledger      Anchorer
	Store       store.BookingStore
	Sessions    SessionStore
	VerifyCache VerifyCache
	Locks       Locker
	LockTTL     time.Duration
	Events      events.Publisher
	Logger      *zap.Logger
	Metrics     *utils.Metrics
	Now         func() time.Time
}

func (s *DefaultBookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const defaultLockTTL = 5 * time.Minute

// claim locks bookingID for the integrity steps.
func (s *DefaultBookingService) claim(ctx context.Context, bookingID string) (func(), error) {
	if s.Locks == nil {
		return func() {}, nil
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	release, err := s.Locks.Acquire(ctx, bookingID, ttl)
	if errors.Is(err, ErrLocked) {
		return nil, NewBookingError(CodeInProgress, "booking "+bookingID+" is being secured", err)
	}
	if err != nil {
		return nil, NewBookingError(CodeUnavailable, "could not lock booking", err)
	}
	return release, nil
}

func (s *DefaultBookingService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *DefaultBookingService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	e.OccurredAt = s.now().UTC()
	if err := s.Events.Publish(ctx, e); err != nil {
		s.logger().Warn("Failed to publish booking event", zap.String("type", e.Type), zap.String("bookingId", e.BookingID), zap.Error(err))
	}
}
