package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/beckn"
	"villagestay/services/booking"
	"villagestay/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	bookRes   *booking.BookingResult
	bookErr   error
	lastBook  booking.BookRequest
	rateRes   *booking.RatingResult
	rateErr   error
	report    *booking.VerifyReport
	verifyErr error
	entry     *ledger.BookingEntry
	ledgerErr error
	raw       json.RawMessage
	rawErr    error
	search    *booking.SearchResult
	quote     *beckn.Quote
	lastTxn   string
	phaseErr  error
}

func (s *stubService) Search(_ context.Context, _ beckn.SearchIntent) (*booking.SearchResult, error) {
	return s.search, s.phaseErr
}

func (s *stubService) Quote(_ context.Context, txnID string, _ beckn.QuoteRequest) (*beckn.Quote, error) {
	s.lastTxn = txnID
	return s.quote, s.phaseErr
}

func (s *stubService) Book(_ context.Context, req booking.BookRequest) (*booking.BookingResult, error) {
	s.lastBook = req
	return s.bookRes, s.bookErr
}

func (s *stubService) Rate(context.Context, booking.RatingRequest) (*booking.RatingResult, error) {
	return s.rateRes, s.rateErr
}

func (s *stubService) Verify(context.Context, string) (*booking.VerifyReport, error) {
	return s.report, s.verifyErr
}

func (s *stubService) VerifyLedger(context.Context, string) (*ledger.BookingEntry, error) {
	return s.entry, s.ledgerErr
}

func (s *stubService) RetrieveArchive(context.Context, string) (json.RawMessage, error) {
	return s.raw, s.rawErr
}

func (s *stubService) PendingBookings(context.Context, int) ([]models.BookingDocument, error) {
	return nil, nil
}

func (s *stubService) Resecure(context.Context, string) (models.IntegrityLevel, error) {
	return models.IntegrityVerified, nil
}

func (s *stubService) ResecureBatch(_ context.Context, ids []string) []booking.ResecureResult {
	out := make([]booking.ResecureResult, len(ids))
	for i, id := range ids {
		out[i] = booking.ResecureResult{BookingID: id, Level: models.IntegrityVerified}
	}
	return out
}

func newTestRouter(svc booking.BookingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewBookingHandler(svc, zap.NewNop())
	r.POST("/api/beckn/search", h.SearchHandler)
	r.POST("/api/beckn/quote", h.QuoteHandler)
	r.POST("/api/book", h.BookHandler)
	r.POST("/api/rating", h.RatingHandler)
	r.GET("/api/verify/:bookingId", h.VerifyHandler)
	r.POST("/api/ledger/verify", h.LedgerVerifyHandler)
	r.GET("/api/archive/:address", h.ArchiveHandler)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func validBookBody() map[string]any {
	return map[string]any{
		"quoteId":        "quote-1",
		"userId":         "U1",
		"userDetails":    map[string]any{"name": "Asha"},
		"paymentDetails": map[string]any{"method": "UPI", "transactionId": "pay-1", "amount": 5000},
	}
}

func TestBookHandlerReturnsIntegrityLevel(t *testing.T) {
	svc := &stubService{bookRes: &booking.BookingResult{
		Success:        true,
		Booking:        models.Booking{ID: "B1"},
		ContentAddress: "bafy-B1",
		IntegrityLevel: models.IntegrityPartiallyVerified,
	}}
	w, body := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/book", validBookBody())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "partially-verified", body["integrityLevel"])
	assert.Equal(t, "bafy-B1", body["contentAddress"])
	assert.NotContains(t, body, "txHash")
	assert.Equal(t, "quote-1", svc.lastBook.QuoteID)
}

func TestBookHandlerRejectsMissingUser(t *testing.T) {
	body := validBookBody()
	delete(body, "userId")
	w, resp := doJSON(t, newTestRouter(&stubService{}), http.MethodPost, "/api/book", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "InvalidInput", resp["kind"])
}

func TestBookHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"protocol", &beckn.PhaseError{Code: beckn.KindProtocol, Action: beckn.ActionConfirm}, http.StatusBadGateway, "ProtocolError"},
		{"gateway", &beckn.PhaseError{Code: beckn.KindGatewayUnavailable, Action: beckn.ActionSearch}, http.StatusBadGateway, "GatewayUnavailable"},
		{"auth", &beckn.PhaseError{Code: beckn.KindAuth, Action: beckn.ActionInit}, http.StatusInternalServerError, "AuthError"},
		{"out of order", &beckn.PhaseError{Code: beckn.KindOutOfOrder, Action: beckn.ActionInit}, http.StatusConflict, string(beckn.KindOutOfOrder)},
		{"session", booking.NewBookingError(booking.CodeSessionNotFound, "gone", nil), http.StatusNotFound, "SessionNotFound"},
		{"in progress", booking.NewBookingError(booking.CodeInProgress, "busy", booking.ErrLocked), http.StatusConflict, "BookingInProgress"},
		{"store", booking.NewBookingError(booking.CodeUnavailable, "down", errors.New("redis")), http.StatusServiceUnavailable, "StoreUnavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := doJSON(t, newTestRouter(&stubService{bookErr: tc.err}), http.MethodPost, "/api/book", validBookBody())
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.kind, body["kind"])
			assert.NotContains(t, body, "details", "internal details are hidden outside development")
		})
	}
}

func TestRatingHandlerValidatesRange(t *testing.T) {
	w, _ := doJSON(t, newTestRouter(&stubService{}), http.MethodPost, "/api/rating", map[string]any{
		"bookingId":  "B1",
		"rating":     9,
		"reviewData": map[string]any{"userId": "U1"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRatingHandlerAcceptsZero(t *testing.T) {
	svc := &stubService{rateRes: &booking.RatingResult{Success: true, IntegrityLevel: models.IntegrityVerified, TxHash: "0xdef"}}
	w, body := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/rating", map[string]any{
		"bookingId":  "B1",
		"rating":     0,
		"reviewData": map[string]any{"userId": "U1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xdef", body["txHash"])
}

func TestVerifyHandler(t *testing.T) {
	svc := &stubService{report: &booking.VerifyReport{BookingID: "B1", Verified: true, LedgerMatches: true}}
	w, body := doJSON(t, newTestRouter(svc), http.MethodGet, "/api/verify/B1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["verified"])

	svc = &stubService{verifyErr: booking.NewBookingError(booking.CodeBookingNotFound, "missing", nil)}
	w, _ = doJSON(t, newTestRouter(svc), http.MethodGet, "/api/verify/B9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveHandler(t *testing.T) {
	svc := &stubService{raw: json.RawMessage(`{"id":"B1","totalAmount":5000}`)}
	w, body := doJSON(t, newTestRouter(svc), http.MethodGet, "/api/archive/bafy-B1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "B1", body["data"].(map[string]any)["id"])

	svc = &stubService{rawErr: &archive.ArchiveError{Code: archive.KindNotFound, Address: "bafy-x"}}
	w, body = doJSON(t, newTestRouter(svc), http.MethodGet, "/api/archive/bafy-x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["kind"])

	svc = &stubService{rawErr: &archive.ArchiveError{Code: archive.KindUnavailable, Address: "bafy-x"}}
	w, _ = doJSON(t, newTestRouter(svc), http.MethodGet, "/api/archive/bafy-x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLedgerVerifyHandler(t *testing.T) {
	svc := &stubService{entry: &ledger.BookingEntry{Address: "bafy-B1", Amount: 5000, Exists: true}}
	w, body := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/ledger/verify", map[string]any{"bookingId": "B1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5000), body["data"].(map[string]any)["amount"])

	svc = &stubService{ledgerErr: &ledger.LedgerError{Code: ledger.KindQueryFailed, Op: "getBooking"}}
	w, _ = doJSON(t, newTestRouter(svc), http.MethodPost, "/api/ledger/verify", map[string]any{"bookingId": "B1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSearchAndQuoteHandlers(t *testing.T) {
	svc := &stubService{
		search: &booking.SearchResult{TransactionID: "txn_1", Providers: []beckn.ProviderResult{{ID: "p1"}}},
		quote:  &beckn.Quote{ID: "quote-1", TransactionID: "txn_1", Total: 5000},
	}
	r := newTestRouter(svc)

	w, body := doJSON(t, r, http.MethodPost, "/api/beckn/search", map[string]any{"query": "mud house", "checkIn": "2026-11-01", "checkOut": "2026-11-03"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "txn_1", body["data"].(map[string]any)["transactionId"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/beckn/quote", map[string]any{
		"transactionId": "txn_1",
		"destinationId": "stay-1",
		"guestCount":    2,
		"dates":         map[string]any{"checkIn": "2026-11-01", "checkOut": "2026-11-03"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "txn_1", svc.lastTxn)

	w, _ = doJSON(t, r, http.MethodPost, "/api/beckn/quote", map[string]any{"destinationId": "stay-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
