package booking

import (
	"context"
	"fmt"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/events"
	"villagestay/services/ledger"

	"go.uber.org/zap"
)

// ResecureResult is the outcome of resecuring one booking.
type ResecureResult struct {
	BookingID string
	Level     models.IntegrityLevel
	Err       error
}

// pendingDoc is a locked booking going through a resecure batch.
type pendingDoc struct {
	index   int
	doc     *models.BookingDocument
	before  models.IntegrityLevel
	release func()
	err     error
}

// PendingBookings lists confirmed bookings whose archive or ledger step has
// not completed.
func (s *DefaultBookingService) PendingBookings(ctx context.Context, limit int) ([]models.BookingDocument, error) {
	var docs []models.BookingDocument
	filter := store.Filter{"integrityLevel": []string{
		string(models.IntegrityUnverified),
		string(models.IntegrityPartiallyVerified),
	}}
	if err := s.Store.Query(ctx, store.CollectionBookings, filter, limit, &docs); err != nil {
		return nil, NewBookingError(CodeUnavailable, "could not list pending bookings", err)
	}
	return docs, nil
}

// Resecure retries the integrity steps a booking has not completed and
// returns the level it reached.
func (s *DefaultBookingService) Resecure(ctx context.Context, bookingID string) (models.IntegrityLevel, error) {
	res := s.ResecureBatch(ctx, []string{bookingID})[0]
	return res.Level, res.Err
}

// ResecureBatch resumes the integrity steps of several bookings. Archive
// writes go out as one archive batch and ledger commits as one ledger batch.
// A booking locked by an in-flight Book is skipped with CodeInProgress.
func (s *DefaultBookingService) ResecureBatch(ctx context.Context, bookingIDs []string) []ResecureResult {
	results := make([]ResecureResult, len(bookingIDs))
	var pending []*pendingDoc
	defer func() {
		for _, p := range pending {
			p.release()
		}
	}()

	for i, id := range bookingIDs {
		results[i].BookingID = id
		release, err := s.claim(ctx, id)
		if err != nil {
			results[i].Err = err
			continue
		}
		doc, err := s.loadBooking(ctx, id)
		if err != nil {
			release()
			results[i].Err = err
			continue
		}
		if doc.IntegrityLevel == models.IntegrityVerified {
			release()
			results[i].Level = doc.IntegrityLevel
			continue
		}
		pending = append(pending, &pendingDoc{index: i, doc: doc, before: doc.IntegrityLevel, release: release})
	}
	if len(pending) == 0 {
		return results
	}

	s.archiveBatch(ctx, pending)
	s.anchorBatch(ctx, pending)

	persistCtx := context.WithoutCancel(ctx)
	for _, p := range pending {
		results[p.index].Level, results[p.index].Err = s.settle(persistCtx, p)
	}
	return results
}

func (s *DefaultBookingService) archiveBatch(ctx context.Context, pending []*pendingDoc) {
	var items []archive.BatchItem
	var owners []*pendingDoc
	for _, p := range pending {
		if p.doc.ContentAddress != "" {
			continue
		}
		switch {
		case ctx.Err() != nil:
			p.err = fmt.Errorf("archive skipped: %w", ctx.Err())
		case s.Archive == nil:
			p.err = errArchiveDisabled
		default:
			items = append(items, archive.BatchItem{ID: p.doc.Booking.ID, Data: p.doc.Booking})
			owners = append(owners, p)
		}
	}
	if len(items) == 0 {
		return
	}
	for i, out := range s.Archive.StoreBatch(ctx, items) {
		if out.Err != nil {
			owners[i].err = out.Err
			continue
		}
		owners[i].doc.ContentAddress = out.Result.Address
	}
}

func (s *DefaultBookingService) anchorBatch(ctx context.Context, pending []*pendingDoc) {
	var ops []ledger.Operation
	var owners []*pendingDoc
	for _, p := range pending {
		if p.err != nil || p.doc.ContentAddress == "" || p.doc.Ledger != nil {
			continue
		}
		switch {
		case ctx.Err() != nil:
			p.err = fmt.Errorf("anchor skipped: %w", ctx.Err())
		case s.Ledger == nil:
			p.err = errLedgerDisabled
		default:
			ops = append(ops, ledger.Operation{
				Type:      ledger.RecordBooking,
				BookingID: p.doc.Booking.ID,
				Address:   p.doc.ContentAddress,
				Amount:    ledgerAmount(p.doc.Booking.TotalAmount),
			})
			owners = append(owners, p)
		}
	}
	if len(ops) == 0 {
		return
	}
	for i, out := range s.Ledger.AnchorBatch(ctx, ops) {
		if out.Err != nil {
			owners[i].err = out.Err
			continue
		}
		owners[i].doc.Ledger = out.Result
	}
}

// settle sets the level a batched booking reached and persists it.
func (s *DefaultBookingService) settle(ctx context.Context, p *pendingDoc) (models.IntegrityLevel, error) {
	doc := p.doc
	id := doc.Booking.ID
	log := s.logger().With(zap.String("bookingId", id))

	switch {
	case doc.ContentAddress == "":
		doc.IntegrityLevel = models.IntegrityUnverified
	case doc.Ledger == nil:
		doc.IntegrityLevel = models.IntegrityPartiallyVerified
	default:
		doc.IntegrityLevel = models.IntegrityVerified
	}
	doc.LastError = ""
	if p.err != nil {
		doc.LastError = p.err.Error()
		log.Warn("Booking left "+string(doc.IntegrityLevel), zap.Error(p.err))
	}

	doc.UpdatedAt = s.now().UTC()
	if err := s.Store.Put(ctx, store.CollectionBookings, id, doc); err != nil {
		return doc.IntegrityLevel, NewBookingError(CodeUnavailable, "could not persist booking integrity", err)
	}

	if s.VerifyCache != nil {
		s.VerifyCache.Delete(ctx, id)
	}
	s.Metrics.ObserveReconciled(string(doc.IntegrityLevel))
	if doc.IntegrityLevel != p.before {
		s.publish(ctx, events.Event{
			Type:           events.TypeBookingIntegrity,
			BookingID:      id,
			IntegrityLevel: string(doc.IntegrityLevel),
			ContentAddress: doc.ContentAddress,
			TxHash:         txHash(doc.Ledger),
		})
		log.Info("Booking integrity advanced", zap.String("from", string(p.before)), zap.String("to", string(doc.IntegrityLevel)))
	}
	return doc.IntegrityLevel, nil
}

func txHash(ref *models.LedgerReference) string {
	if ref == nil {
		return ""
	}
	return ref.TxHash
}
