package beckn

import (
	"fmt"
	"time"

	"villagestay/models"

	"github.com/google/uuid"
)

// State is the position of a transaction in the four phase negotiation.
type State string

const (
	StateSearching State = "searching"
	StateQuoted    State = "quoted"
	StateInitiated State = "initiated"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Transaction carries one booking attempt through the gateway phases. It is
// serialized into the session store between HTTP requests, so every field is
// exported.
type Transaction struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	ItemID     string           `json:"itemId,omitempty"`
	ProviderID string           `json:"providerId,omitempty"`
	GuestCount int              `json:"guestCount,omitempty"`
	Dates      models.DateRange `json:"dates"`
	QuoteID    string           `json:"quoteId,omitempty"`
	OrderID    string           `json:"orderId,omitempty"`
	Total      float64          `json:"total,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	FailedWith string           `json:"failedWith,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// NewTransaction starts an attempt with a fresh transaction id.
func NewTransaction() *Transaction {
	return &Transaction{ID: newID("txn"), State: StateSearching, UpdatedAt: time.Now().UTC()}
}

var transitions = map[State][]State{
	StateSearching: {StateQuoted},
	StateQuoted:    {StateQuoted, StateInitiated},
	StateInitiated: {StateConfirmed},
}

func (t *Transaction) advance(to State) error {
	for _, next := range transitions[t.State] {
		if next == to {
			t.State = to
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("transaction %s cannot move from %s to %s", t.ID, t.State, to)
}

// Fail moves the transaction to its terminal failure state. A confirmed
// transaction stays confirmed.
func (t *Transaction) Fail(err error) {
	if t.State == StateConfirmed {
		return
	}
	t.State = StateFailed
	t.UpdatedAt = time.Now().UTC()
	if err != nil {
		t.FailedWith = err.Error()
	}
}

func (t *Transaction) Terminal() bool {
	return t.State == StateConfirmed || t.State == StateFailed
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
