package booking

import (
	"villagestay/models"
	"villagestay/services/archive"
	"villagestay/services/beckn"
	"villagestay/services/ledger"
)

type SearchResult struct {
	TransactionID string                 `json:"transactionId"`
	Providers     []beckn.ProviderResult `json:"providers"`
}

// BookRequest books a stay. With a QuoteID from a prior quote the negotiation
// resumes at init; otherwise DestinationID, dates and GuestCount are used to
// run all four phases.
type BookRequest struct {
	QuoteID        string                `json:"quoteId"`
	UserID         string                `json:"userId" binding:"required"`
	DestinationID  string                `json:"destinationId"`
	ProviderID     string                `json:"providerId"`
	Query          string                `json:"query"`
	Location       string                `json:"location"`
	CheckIn        string                `json:"checkIn"`
	CheckOut       string                `json:"checkOut"`
	GuestCount     int                   `json:"guestCount" binding:"gte=0"`
	UserDetails    models.UserDetails    `json:"userDetails" binding:"required"`
	PaymentDetails models.PaymentDetails `json:"paymentDetails" binding:"required"`
}

type BookingResult struct {
	Success        bool                  `json:"success"`
	Booking        models.Booking        `json:"booking"`
	ContentAddress string                `json:"contentAddress,omitempty"`
	TxHash         string                `json:"txHash,omitempty"`
	BlockNumber    uint64                `json:"blockNumber,omitempty"`
	IntegrityLevel models.IntegrityLevel `json:"integrityLevel"`
}

type RatingRequest struct {
	BookingID  string             `json:"bookingId" binding:"required"`
	Rating     *int               `json:"rating" binding:"required,min=0,max=5"`
	ReviewData models.ReviewInput `json:"reviewData" binding:"required"`
}

type RatingResult struct {
	Success        bool                  `json:"success"`
	Review         models.Review         `json:"review"`
	ContentAddress string                `json:"contentAddress,omitempty"`
	TxHash         string                `json:"txHash,omitempty"`
	IntegrityLevel models.IntegrityLevel `json:"integrityLevel"`
}

// VerifyReport combines the archive integrity check with the ledger entry.
type VerifyReport struct {
	BookingID          string                `json:"bookingId"`
	Verified           bool                  `json:"verified"`
	IntegrityViolation bool                  `json:"integrityViolation"`
	IntegrityLevel     models.IntegrityLevel `json:"integrityLevel"`
	Archive            *archive.VerifyResult `json:"archive,omitempty"`
	ArchiveError       string                `json:"archiveError,omitempty"`
	Ledger             *ledger.BookingEntry  `json:"ledger,omitempty"`
	LedgerMatches      bool                  `json:"ledgerMatches"`
	LedgerError        string                `json:"ledgerError,omitempty"`
}
