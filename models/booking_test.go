package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking() Booking {
	return Booking{
		ID:            "B1",
		UserID:        "U1",
		DestinationID: "stay-1",
		TotalAmount:   5000,
		Timestamp:     "2026-10-01T09:30:00.000Z",
	}
}

func TestBookingHashIsPure(t *testing.T) {
	b := sampleBooking()
	assert.Equal(t, b.ComputeHash(), b.ComputeHash())
	assert.Len(t, b.ComputeHash(), 64)

	b.IntegrityHash = "anything"
	b.Status = BookingStatusConfirmed
	b.GuestCount = 4
	assert.Equal(t, sampleBooking().ComputeHash(), b.ComputeHash(), "only identifying fields are hashed")
}

func TestBookingHashFieldSensitivity(t *testing.T) {
	base := sampleBooking().ComputeHash()
	mutations := map[string]func(*Booking){
		"id":          func(b *Booking) { b.ID = "B2" },
		"user":        func(b *Booking) { b.UserID = "U2" },
		"destination": func(b *Booking) { b.DestinationID = "stay-2" },
		"amount":      func(b *Booking) { b.TotalAmount = 5000.5 },
		"timestamp":   func(b *Booking) { b.Timestamp = "2026-10-01T09:30:00.001Z" },
	}
	for name, mutate := range mutations {
		b := sampleBooking()
		mutate(&b)
		assert.NotEqual(t, base, b.ComputeHash(), name)
	}
}

func TestBookingHashSurvivesJSON(t *testing.T) {
	b := sampleBooking()
	b.IntegrityHash = b.ComputeHash()

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	var back Booking
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, back.IntegrityHash, back.ComputeHash())
}

func TestReviewHash(t *testing.T) {
	r := Review{BookingID: "B1", UserID: "U1", Rating: 5, Timestamp: "2026-10-01T09:30:00.000Z"}
	h := r.ComputeHash()
	r.Comment = "changed"
	assert.Equal(t, h, r.ComputeHash())
	r.Rating = 4
	assert.NotEqual(t, h, r.ComputeHash())
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 10, 1, 15, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "2026-10-01T09:30:00.000Z", FormatTimestamp(ts))
}
