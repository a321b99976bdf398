package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups the endpoint handlers registered by routes.
type HandlerBundle struct {
	// Negotiation endpoints
	SearchHandler gin.HandlerFunc
	QuoteHandler  gin.HandlerFunc
	BookHandler   gin.HandlerFunc

	// Integrity endpoints
	RatingHandler       gin.HandlerFunc
	VerifyHandler       gin.HandlerFunc
	LedgerVerifyHandler gin.HandlerFunc
	ArchiveHandler      gin.HandlerFunc
}

func NewHandlerBundle(h *BookingHandler) *HandlerBundle {
	return &HandlerBundle{
		SearchHandler:       h.SearchHandler,
		QuoteHandler:        h.QuoteHandler,
		BookHandler:         h.BookHandler,
		RatingHandler:       h.RatingHandler,
		VerifyHandler:       h.VerifyHandler,
		LedgerVerifyHandler: h.LedgerVerifyHandler,
		ArchiveHandler:      h.ArchiveHandler,
	}
}
