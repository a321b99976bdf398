package handlers

import (
	"context"
	"errors"
	"net/http"

	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/beckn"
	"villagestay/services/booking"
	"villagestay/services/ledger"
	"villagestay/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking orchestrator over HTTP.
type BookingHandler struct {
	Service booking.BookingService
	Logger  *zap.Logger
}

func NewBookingHandler(svc booking.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Service: svc, Logger: logger}
}

type searchRequest struct {
	Query     string            `json:"query"`
	Location  string            `json:"location"`
	DateRange *models.DateRange `json:"dateRange"`
	CheckIn   string            `json:"checkIn"`
	CheckOut  string            `json:"checkOut"`
}

type quoteRequest struct {
	TransactionID string           `json:"transactionId"`
	DestinationID string           `json:"destinationId" binding:"required"`
	ProviderID    string           `json:"providerId"`
	GuestCount    int              `json:"guestCount" binding:"required,min=1"`
	Dates         models.DateRange `json:"dates" binding:"required"`
}

type ledgerVerifyRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
}

// SearchHandler runs the search phase and returns the providers found with
// the transaction id to quote against.
func (h *BookingHandler) SearchHandler(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid search request", string(booking.CodeInvalidInput), err)
		return
	}
	dates := models.DateRange{CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	if req.DateRange != nil {
		dates = *req.DateRange
	}

	res, err := h.Service.Search(c.Request.Context(), beckn.SearchIntent{Query: req.Query, Location: req.Location, DateRange: dates})
	if err != nil {
		h.fail(c, "Search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// QuoteHandler selects an item and returns the provider's quote.
func (h *BookingHandler) QuoteHandler(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid quote request", string(booking.CodeInvalidInput), err)
		return
	}

	quote, err := h.Service.Quote(c.Request.Context(), req.TransactionID, beckn.QuoteRequest{
		ItemID:     req.DestinationID,
		ProviderID: req.ProviderID,
		GuestCount: req.GuestCount,
		Dates:      req.Dates,
	})
	if err != nil {
		h.fail(c, "Quote failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": quote})
}

// BookHandler confirms a booking. A confirmed booking is always a 200; the
// integrityLevel field says whether it was archived and anchored.
func (h *BookingHandler) BookHandler(c *gin.Context) {
	var req booking.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid booking request", string(booking.CodeInvalidInput), err)
		return
	}

	res, err := h.Service.Book(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "Booking failed", err)
		return
	}
	if res.IntegrityLevel != models.IntegrityVerified {
		getLogger(c, h.Logger).Warn("Booking confirmed without full integrity",
			zap.String("bookingId", res.Booking.ID),
			zap.String("integrityLevel", string(res.IntegrityLevel)))
	}
	c.JSON(http.StatusOK, res)
}

// RatingHandler records a review of a booking.
func (h *BookingHandler) RatingHandler(c *gin.Context) {
	var req booking.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid rating request", string(booking.CodeInvalidInput), err)
		return
	}

	res, err := h.Service.Rate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "Rating failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// VerifyHandler checks a booking against its archived record and ledger entry.
func (h *BookingHandler) VerifyHandler(c *gin.Context) {
	report, err := h.Service.Verify(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		h.fail(c, "Verification failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// LedgerVerifyHandler returns the raw ledger entry for a booking.
func (h *BookingHandler) LedgerVerifyHandler(c *gin.Context) {
	var req ledgerVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid ledger verification request", string(booking.CodeInvalidInput), err)
		return
	}

	entry, err := h.Service.VerifyLedger(c.Request.Context(), req.BookingID)
	if err != nil {
		h.fail(c, "Ledger verification failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entry})
}

// ArchiveHandler returns the record stored at a content address.
func (h *BookingHandler) ArchiveHandler(c *gin.Context) {
	data, err := h.Service.RetrieveArchive(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, "Archive retrieval failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *BookingHandler) fail(c *gin.Context, message string, err error) {
	status, kind := classify(err)
	utils.JSONError(c, status, message, kind, err)
}

// classify maps service errors to an HTTP status and the error kind reported
// to the caller.
func classify(err error) (int, string) {
	if code := booking.CodeOf(err); code != "" {
		switch code {
		case booking.CodeSessionNotFound, booking.CodeBookingNotFound:
			return http.StatusNotFound, string(code)
		case booking.CodeInvalidInput:
			return http.StatusBadRequest, string(code)
		case booking.CodeInProgress:
			return http.StatusConflict, string(code)
		default:
			return http.StatusServiceUnavailable, string(code)
		}
	}
	if kind := beckn.KindOf(err); kind != "" {
		switch kind {
		case beckn.KindOutOfOrder:
			return http.StatusConflict, string(kind)
		case beckn.KindAuth:
			return http.StatusInternalServerError, string(kind)
		default:
			return http.StatusBadGateway, string(kind)
		}
	}
	if kind := archive.KindOf(err); kind != "" {
		if kind == archive.KindNotFound {
			return http.StatusNotFound, string(kind)
		}
		return http.StatusServiceUnavailable, string(kind)
	}
	if kind := ledger.KindOf(err); kind != "" {
		return http.StatusServiceUnavailable, string(kind)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout, "Timeout"
	}
	return http.StatusInternalServerError, "Internal"
}
