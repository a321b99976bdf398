package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// TimestampLayout is the ISO-8601 form used inside hashed records. Keeping the
// timestamp as a string makes the integrity hash survive JSON round-trips.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

const BookingStatusConfirmed = "confirmed"

// IntegrityLevel describes how far a confirmed booking or review got through
// archiving and ledger anchoring.
type IntegrityLevel string

const (
	IntegrityVerified          IntegrityLevel = "verified"
	IntegrityPartiallyVerified IntegrityLevel = "partially-verified"
	IntegrityUnverified        IntegrityLevel = "unverified"
)

// Booking represents a confirmed stay.
type Booking struct {
	ID            string  `bson:"id" json:"id"`                       // Gateway-assigned order id
	UserID        string  `bson:"userId" json:"userId"`               // Guest who booked
	DestinationID string  `bson:"destinationId" json:"destinationId"` // Item/homestay booked
	ProviderID    string  `bson:"providerId,omitempty" json:"providerId,omitempty"`
	CheckIn       string  `bson:"checkIn" json:"checkIn"`
	CheckOut      string  `bson:"checkOut" json:"checkOut"`
	GuestCount    int     `bson:"guestCount" json:"guestCount"`
	TotalAmount   float64 `bson:"totalAmount" json:"totalAmount"`
	Currency      string  `bson:"currency,omitempty" json:"currency,omitempty"`
	Status        string  `bson:"status" json:"status"`
	Timestamp     string  `bson:"timestamp" json:"timestamp"`
	IntegrityHash string  `bson:"hash" json:"hash"`
	TransactionID string  `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
}

// ComputeHash digests the identifying fields of the booking. It never reads
// IntegrityHash, so it can be used to check a stored hash.
func (b Booking) ComputeHash() string {
	return digest(b.ID, b.UserID, b.DestinationID, formatAmount(b.TotalAmount), b.Timestamp)
}

// Review is a guest's rating of a completed booking.
type Review struct {
	ID            string `bson:"id" json:"id"`
	BookingID     string `bson:"bookingId" json:"bookingId"`
	UserID        string `bson:"userId" json:"userId"`
	Rating        int    `bson:"rating" json:"rating"`
	Comment       string `bson:"comment" json:"comment"`
	Timestamp     string `bson:"timestamp" json:"timestamp"`
	Verified      bool   `bson:"verified" json:"verified"`
	IntegrityHash string `bson:"hash" json:"hash"`
}

func (r Review) ComputeHash() string {
	return digest(r.BookingID, r.UserID, strconv.Itoa(r.Rating), r.Timestamp)
}

// BookingDocument is what the booking store keeps for a booking: the immutable
// booking plus the correlation metadata attached after archiving and anchoring.
type BookingDocument struct {
	Booking        Booking          `bson:"booking" json:"booking"`
	ContentAddress string           `bson:"contentAddress,omitempty" json:"contentAddress,omitempty"`
	Ledger         *LedgerReference `bson:"ledger,omitempty" json:"ledger,omitempty"`
	IntegrityLevel IntegrityLevel   `bson:"integrityLevel" json:"integrityLevel"`
	LastError      string           `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt      time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// ReviewDocument mirrors BookingDocument for reviews.
type ReviewDocument struct {
	Review         Review           `bson:"review" json:"review"`
	ContentAddress string           `bson:"contentAddress,omitempty" json:"contentAddress,omitempty"`
	Ledger         *LedgerReference `bson:"ledger,omitempty" json:"ledger,omitempty"`
	IntegrityLevel IntegrityLevel   `bson:"integrityLevel" json:"integrityLevel"`
	CreatedAt      time.Time        `bson:"createdAt" json:"createdAt"`
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// formatAmount prints the shortest decimal form, so 5000 hashes as "5000".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
