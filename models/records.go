package models

import "time"

// Archive record data types.
const (
	DataTypeBooking = "booking"
	DataTypeReview  = "review"
	DataTypeBatch   = "batch"
)

// ContentRecord is what the archive hands back after storing a payload.
type ContentRecord struct {
	Address string `json:"address"`
	Size    int64  `json:"size"`
}

// ArchiveRecord links a booking or review id to the content address its
// record was stored under.
type ArchiveRecord struct {
	ID        string    `bson:"id" json:"id"`
	BookingID string    `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	ReviewID  string    `bson:"reviewId,omitempty" json:"reviewId,omitempty"`
	Address   string    `bson:"address" json:"address"`
	DataType  string    `bson:"dataType" json:"dataType"`
	Size      int64     `bson:"size" json:"size"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// LedgerReference is the on-chain receipt of an anchored record.
type LedgerReference struct {
	TxHash      string `bson:"txHash" json:"txHash"`
	BlockNumber uint64 `bson:"blockNumber" json:"blockNumber"`
	Address     string `bson:"address" json:"address"`
	Amount      int64  `bson:"amount,omitempty" json:"amount,omitempty"`
	Rating      int    `bson:"rating,omitempty" json:"rating,omitempty"`
}

// LedgerRecord is the booking-store copy of an anchoring transaction.
type LedgerRecord struct {
	ID          string    `bson:"id" json:"id"`
	BookingID   string    `bson:"bookingId" json:"bookingId"`
	Type        string    `bson:"type" json:"type"`
	TxHash      string    `bson:"txHash" json:"txHash"`
	BlockNumber uint64    `bson:"blockNumber" json:"blockNumber"`
	Address     string    `bson:"address" json:"address"`
	Amount      int64     `bson:"amount,omitempty" json:"amount,omitempty"`
	Rating      int       `bson:"rating,omitempty" json:"rating,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}
