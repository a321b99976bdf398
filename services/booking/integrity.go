package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/events"
	"villagestay/services/ledger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errArchiveDisabled = errors.New("content archive is not configured")
	errLedgerDisabled  = errors.New("ledger is not configured")
)

// secure archives and anchors the booking, resuming from whatever doc already
// holds, and sets doc's integrity level to the furthest step reached.
func (s *DefaultBookingService) secure(ctx context.Context, doc *models.BookingDocument) {
	b := doc.Booking
	log := s.logger().With(zap.String("bookingId", b.ID))

	if doc.ContentAddress == "" {
		if err := s.archiveBooking(ctx, doc); err != nil {
			doc.IntegrityLevel = models.IntegrityUnverified
			doc.LastError = err.Error()
			log.Warn("Booking left unverified", zap.Error(err))
			return
		}
	}

	if doc.Ledger == nil {
		if err := s.anchorBooking(ctx, doc); err != nil {
			doc.IntegrityLevel = models.IntegrityPartiallyVerified
			doc.LastError = err.Error()
			log.Warn("Booking left partially verified", zap.String("contentAddress", doc.ContentAddress), zap.Error(err))
			return
		}
	}

	doc.IntegrityLevel = models.IntegrityVerified
	doc.LastError = ""
}

func (s *DefaultBookingService) archiveBooking(ctx context.Context, doc *models.BookingDocument) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("archive skipped: %w", err)
	}
	if s.Archive == nil {
		return errArchiveDisabled
	}
	rec, err := s.Archive.StoreBooking(ctx, doc.Booking)
	if err != nil {
		return err
	}
	doc.ContentAddress = rec.Address
	return nil
}

func (s *DefaultBookingService) anchorBooking(ctx context.Context, doc *models.BookingDocument) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("anchor skipped: %w", err)
	}
	if s.Ledger == nil {
		return errLedgerDisabled
	}
	ref, err := s.Ledger.AnchorBooking(ctx, doc.Booking.ID, doc.ContentAddress, ledgerAmount(doc.Booking.TotalAmount))
	if err != nil {
		return err
	}
	doc.Ledger = ref
	return nil
}

// Rate archives and anchors a review of an existing booking. Failures in
// either step degrade the review's integrity level only.
func (s *DefaultBookingService) Rate(ctx context.Context, req RatingRequest) (*RatingResult, error) {
	if req.Rating == nil || *req.Rating < 0 || *req.Rating > 5 {
		return nil, NewBookingError(CodeInvalidInput, "rating must be between 0 and 5", nil)
	}
	if _, err := s.loadBooking(ctx, req.BookingID); err != nil {
		return nil, err
	}

	r := models.Review{
		ID:        req.ReviewData.ID,
		BookingID: req.BookingID,
		UserID:    req.ReviewData.UserID,
		Rating:    *req.Rating,
		Comment:   req.ReviewData.Comment,
		Timestamp: models.FormatTimestamp(s.now()),
		Verified:  true,
	}
	if r.ID == "" {
		r.ID = "rev_" + uuid.NewString()
	}
	r.IntegrityHash = r.ComputeHash()

	now := s.now().UTC()
	doc := models.ReviewDocument{Review: r, IntegrityLevel: models.IntegrityUnverified, CreatedAt: now}
	log := s.logger().With(zap.String("bookingId", r.BookingID), zap.String("reviewId", r.ID))

	switch {
	case ctx.Err() != nil:
		log.Warn("Review archive skipped", zap.Error(ctx.Err()))
	case s.Archive == nil:
		log.Warn("Review left unverified", zap.Error(errArchiveDisabled))
	default:
		rec, err := s.Archive.StoreReview(ctx, r)
		if err != nil {
			log.Warn("Review left unverified", zap.Error(err))
			break
		}
		doc.ContentAddress = rec.Address
		doc.IntegrityLevel = models.IntegrityPartiallyVerified

		if s.Ledger == nil {
			log.Warn("Review left partially verified", zap.Error(errLedgerDisabled))
			break
		}
		ref, err := s.Ledger.AnchorRating(ctx, r.BookingID, r.Rating, rec.Address)
		if err != nil {
			log.Warn("Review left partially verified", zap.Error(err))
			break
		}
		doc.Ledger = ref
		doc.IntegrityLevel = models.IntegrityVerified
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := s.Store.Put(persistCtx, store.CollectionReviews, r.ID, doc); err != nil {
		log.Error("Failed to persist review", zap.Error(err))
	}

	res := &RatingResult{Success: true, Review: r, ContentAddress: doc.ContentAddress, IntegrityLevel: doc.IntegrityLevel}
	if doc.Ledger != nil {
		res.TxHash = doc.Ledger.TxHash
	}
	s.Metrics.ObserveIntegrity(models.DataTypeReview, string(doc.IntegrityLevel))
	s.publish(persistCtx, events.Event{
		Type:           events.TypeReviewRecorded,
		BookingID:      r.BookingID,
		ReviewID:       r.ID,
		IntegrityLevel: string(doc.IntegrityLevel),
		ContentAddress: doc.ContentAddress,
		TxHash:         res.TxHash,
	})
	return res, nil
}

// Verify checks the archived booking against its integrity hash and the
// ledger entry against the archive address and amount. Problems found are
// reported in the result.
func (s *DefaultBookingService) Verify(ctx context.Context, bookingID string) (*VerifyReport, error) {
	if s.VerifyCache != nil {
		if report, ok := s.VerifyCache.Get(ctx, bookingID); ok {
			return report, nil
		}
	}

	doc, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{BookingID: bookingID, IntegrityLevel: doc.IntegrityLevel}
	transient := false

	if s.Archive == nil {
		report.ArchiveError = errArchiveDisabled.Error()
	} else if res, err := s.Archive.VerifyIntegrity(ctx, bookingID); err != nil {
		report.ArchiveError = err.Error()
		transient = archive.KindOf(err) != archive.KindNotFound
	} else {
		report.Archive = res
		if !res.Verified {
			report.IntegrityViolation = true
		}
	}

	if s.Ledger == nil {
		report.LedgerError = errLedgerDisabled.Error()
	} else if entry, err := s.Ledger.QueryBooking(ctx, bookingID); err != nil {
		report.LedgerError = err.Error()
		transient = true
	} else {
		report.Ledger = entry
		switch {
		case entry.Exists:
			report.LedgerMatches = entry.Address == doc.ContentAddress && entry.Amount == ledgerAmount(doc.Booking.TotalAmount)
			if !report.LedgerMatches {
				report.IntegrityViolation = true
			}
		case doc.Ledger != nil || doc.IntegrityLevel == models.IntegrityVerified:
			// The store says the booking was anchored but the chain has no entry.
			report.IntegrityViolation = true
		}
	}

	report.Verified = report.Archive != nil && report.Archive.Verified && !report.IntegrityViolation
	s.Metrics.ObserveIntegrity("verification", verificationLabel(report))

	if report.IntegrityViolation {
		s.logger().Warn("Integrity violation detected", zap.String("bookingId", bookingID),
			zap.Bool("archiveVerified", report.Archive != nil && report.Archive.Verified),
			zap.Bool("ledgerMatches", report.LedgerMatches))
	}
	if s.VerifyCache != nil && !transient {
		s.VerifyCache.Set(ctx, bookingID, report)
	}
	return report, nil
}

func verificationLabel(r *VerifyReport) string {
	switch {
	case r.IntegrityViolation:
		return "violation"
	case r.Verified:
		return "verified"
	default:
		return "unverifiable"
	}
}

// VerifyLedger returns the ledger entry for bookingID.
func (s *DefaultBookingService) VerifyLedger(ctx context.Context, bookingID string) (*ledger.BookingEntry, error) {
	if s.Ledger == nil {
		return nil, NewBookingError(CodeUnavailable, "ledger query failed", errLedgerDisabled)
	}
	return s.Ledger.QueryBooking(ctx, bookingID)
}

// RetrieveArchive returns the record stored at address.
func (s *DefaultBookingService) RetrieveArchive(ctx context.Context, address string) (json.RawMessage, error) {
	if s.Archive == nil {
		return nil, NewBookingError(CodeUnavailable, "archive retrieval failed", errArchiveDisabled)
	}
	return s.Archive.RetrieveRaw(ctx, address)
}

func (s *DefaultBookingService) loadBooking(ctx context.Context, bookingID string) (*models.BookingDocument, error) {
	var doc models.BookingDocument
	if err := s.Store.Get(ctx, store.CollectionBookings, bookingID, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewBookingError(CodeBookingNotFound, "booking "+bookingID+" not found", err)
		}
		return nil, NewBookingError(CodeUnavailable, "could not load booking", err)
	}
	return &doc, nil
}
