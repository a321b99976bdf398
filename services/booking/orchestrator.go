package booking

import (
	"context"
	"errors"
	"math"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/beckn"
	"villagestay/services/events"

	"go.uber.org/zap"
)

// Search starts a booking attempt and keeps its transaction for a later quote.
func (s *DefaultBookingService) Search(ctx context.Context, intent beckn.SearchIntent) (*SearchResult, error) {
	txn := beckn.NewTransaction()
	providers, err := s.Gateway.Search(ctx, txn, intent)
	if err != nil {
		s.logger().Warn("Search failed", zap.String("transactionId", txn.ID), zap.Error(err))
		return nil, err
	}
	if err := s.saveSession(ctx, txn, txn.ID); err != nil {
		return nil, err
	}
	return &SearchResult{TransactionID: txn.ID, Providers: providers}, nil
}

// Quote selects an item. transactionID continues a prior search; an empty id
// starts a new attempt.
func (s *DefaultBookingService) Quote(ctx context.Context, transactionID string, req beckn.QuoteRequest) (*beckn.Quote, error) {
	txn := beckn.NewTransaction()
	if transactionID != "" {
		loaded, err := s.loadSession(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		txn = loaded
	}

	quote, err := s.Gateway.Quote(ctx, txn, req)
	if err != nil {
		s.forget(ctx, txn.ID)
		return nil, err
	}
	if err := s.saveSession(ctx, txn, txn.ID, quote.ID); err != nil {
		return nil, err
	}
	return quote, nil
}

// Book drives the negotiation to confirm, then archives and anchors the
// booking. Once the gateway has confirmed, Book returns a result even if the
// integrity steps fail; the result's IntegrityLevel says how far they got.
func (s *DefaultBookingService) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	start := s.now()

	txn, quoteID, err := s.negotiate(ctx, req)
	if err != nil {
		return nil, err
	}

	initRes, err := s.Gateway.InitBooking(ctx, txn, quoteID, req.UserDetails)
	if err != nil {
		s.forget(ctx, txn.ID, quoteID)
		s.logger().Warn("Init failed", zap.String("transactionId", txn.ID), zap.Error(err))
		return nil, err
	}
	conf, err := s.Gateway.ConfirmBooking(ctx, txn, initRes.OrderID, req.PaymentDetails)
	s.forget(ctx, txn.ID, quoteID)
	if err != nil {
		s.logger().Warn("Confirm failed", zap.String("transactionId", txn.ID), zap.String("orderId", initRes.OrderID), zap.Error(err))
		return nil, err
	}

	b := s.newBooking(txn, conf, req.UserID)
	now := s.now().UTC()
	doc := models.BookingDocument{Booking: b, IntegrityLevel: models.IntegrityUnverified, CreatedAt: now, UpdatedAt: now}

	// The marketplace booking exists now; its record is written even if the
	// caller has gone away.
	persistCtx := context.WithoutCancel(ctx)

	// The lock is taken before the first write so the reconciler never sees
	// this booking unlocked while Book is still securing it.
	release, err := s.claim(persistCtx, b.ID)
	if err != nil {
		s.logger().Warn("Securing booking without lock", zap.String("bookingId", b.ID), zap.Error(err))
		release = func() {}
	}
	defer release()

	if err := s.Store.Put(persistCtx, store.CollectionBookings, b.ID, doc); err != nil {
		s.logger().Error("Failed to persist confirmed booking", zap.String("bookingId", b.ID), zap.Error(err))
	}

	s.secure(ctx, &doc)

	doc.UpdatedAt = s.now().UTC()
	if err := s.Store.Put(persistCtx, store.CollectionBookings, b.ID, doc); err != nil {
		s.logger().Error("Failed to persist booking integrity", zap.String("bookingId", b.ID), zap.Error(err))
	}

	res := &BookingResult{Success: true, Booking: b, ContentAddress: doc.ContentAddress, IntegrityLevel: doc.IntegrityLevel}
	if doc.Ledger != nil {
		res.TxHash = doc.Ledger.TxHash
		res.BlockNumber = doc.Ledger.BlockNumber
	}

	s.Metrics.ObserveIntegrity(models.DataTypeBooking, string(doc.IntegrityLevel))
	s.Metrics.ObserveBookingSeconds(s.now().Sub(start).Seconds())
	s.publish(persistCtx, events.Event{
		Type:           events.TypeBookingConfirmed,
		BookingID:      b.ID,
		IntegrityLevel: string(doc.IntegrityLevel),
		ContentAddress: doc.ContentAddress,
		TxHash:         res.TxHash,
	})
	s.logger().Info("Booking confirmed",
		zap.String("bookingId", b.ID),
		zap.String("transactionId", txn.ID),
		zap.String("integrityLevel", string(doc.IntegrityLevel)))
	return res, nil
}

// negotiate returns a quoted transaction, either from the session saved by a
// prior quote or by running search and select now. A quote session is
// consumed here, so a quote can be booked once.
func (s *DefaultBookingService) negotiate(ctx context.Context, req BookRequest) (*beckn.Transaction, string, error) {
	if req.QuoteID != "" {
		txn, err := s.takeSession(ctx, req.QuoteID)
		if err != nil {
			return nil, "", err
		}
		return txn, req.QuoteID, nil
	}

	if req.DestinationID == "" || req.CheckIn == "" || req.CheckOut == "" || req.GuestCount < 1 {
		return nil, "", NewBookingError(CodeInvalidInput, "quoteId, or destinationId with checkIn, checkOut and guestCount, is required", nil)
	}

	dates := models.DateRange{CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	query := req.Query
	if query == "" {
		query = req.DestinationID
	}

	txn := beckn.NewTransaction()
	if _, err := s.Gateway.Search(ctx, txn, beckn.SearchIntent{Query: query, Location: req.Location, DateRange: dates}); err != nil {
		return nil, "", err
	}
	quote, err := s.Gateway.Quote(ctx, txn, beckn.QuoteRequest{
		ItemID:     req.DestinationID,
		ProviderID: req.ProviderID,
		GuestCount: req.GuestCount,
		Dates:      dates,
	})
	if err != nil {
		return nil, "", err
	}
	return txn, quote.ID, nil
}

func (s *DefaultBookingService) newBooking(txn *beckn.Transaction, conf *beckn.Confirmation, userID string) models.Booking {
	b := models.Booking{
		ID:            conf.OrderID,
		UserID:        userID,
		DestinationID: conf.ItemID,
		ProviderID:    conf.ProviderID,
		CheckIn:       conf.CheckIn,
		CheckOut:      conf.CheckOut,
		GuestCount:    conf.GuestCount,
		TotalAmount:   conf.Amount,
		Currency:      conf.Currency,
		Status:        models.BookingStatusConfirmed,
		Timestamp:     models.FormatTimestamp(s.now()),
		TransactionID: txn.ID,
	}
	b.IntegrityHash = b.ComputeHash()
	return b
}

func (s *DefaultBookingService) saveSession(ctx context.Context, txn *beckn.Transaction, keys ...string) error {
	for _, key := range keys {
		if err := s.Sessions.Save(ctx, key, txn); err != nil {
			return NewBookingError(CodeUnavailable, "could not save booking session", err)
		}
	}
	return nil
}

func (s *DefaultBookingService) loadSession(ctx context.Context, key string) (*beckn.Transaction, error) {
	txn, err := s.Sessions.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, NewBookingError(CodeSessionNotFound, "no open booking session for "+key, err)
		}
		return nil, NewBookingError(CodeUnavailable, "could not load booking session", err)
	}
	return txn, nil
}

// takeSession removes the quote session as it reads it.
func (s *DefaultBookingService) takeSession(ctx context.Context, quoteID string) (*beckn.Transaction, error) {
	txn, err := s.Sessions.Take(ctx, quoteID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, NewBookingError(CodeSessionNotFound, "no open booking session for "+quoteID, err)
		}
		return nil, NewBookingError(CodeUnavailable, "could not load booking session", err)
	}
	return txn, nil
}

func (s *DefaultBookingService) forget(ctx context.Context, keys ...string) {
	if err := s.Sessions.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger().Warn("Failed to delete booking session", zap.Strings("keys", keys), zap.Error(err))
	}
}

// ledgerAmount converts a booking total to the contract's whole-unit amount.
func ledgerAmount(total float64) int64 {
	return int64(math.Round(total))
}
