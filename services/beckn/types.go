package beckn

import (
	"encoding/json"
	"fmt"
	"strconv"

	"villagestay/models"
)

type Action string

const (
	ActionSearch  Action = "search"
	ActionSelect  Action = "select"
	ActionInit    Action = "init"
	ActionConfirm Action = "confirm"
)

// TransactionContext is the context block sent with every gateway call.
type TransactionContext struct {
	Domain        string `json:"domain"`
	Country       string `json:"country"`
	City          string `json:"city"`
	Action        Action `json:"action"`
	CoreVersion   string `json:"core_version"`
	BapID         string `json:"bap_id"`
	BapURI        string `json:"bap_uri,omitempty"`
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	Timestamp     string `json:"timestamp"`
}

// SearchIntent is what a guest is looking for.
type SearchIntent struct {
	Query     string           `json:"query"`
	Location  string           `json:"location"`
	DateRange models.DateRange `json:"dateRange" binding:"required"`
}

type ProviderResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location map[string]any `json:"location,omitempty"`
	Items    []Item         `json:"items"`
}

type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

// QuoteRequest selects one item for a number of guests and dates.
type QuoteRequest struct {
	ItemID     string           `json:"itemId" binding:"required"`
	ProviderID string           `json:"providerId"`
	GuestCount int              `json:"guestCount" binding:"required,gte=1"`
	Dates      models.DateRange `json:"dates" binding:"required"`
}

type BreakupLine struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

type Quote struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	ItemID        string        `json:"itemId"`
	ProviderID    string        `json:"providerId,omitempty"`
	GuestCount    int           `json:"guestCount"`
	Breakup       []BreakupLine `json:"breakup"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency,omitempty"`
}

type InitResult struct {
	OrderID string         `json:"orderId"`
	Status  string         `json:"status"`
	Payment map[string]any `json:"payment,omitempty"`
}

// Confirmation holds the confirmed order fields a Booking is built from.
type Confirmation struct {
	OrderID    string
	Status     string
	ItemID     string
	ProviderID string
	CheckIn    string
	CheckOut   string
	GuestCount int
	Amount     float64
	Currency   string
	CreatedAt  string
}

// Amount decodes gateway prices, which arrive as either strings or numbers.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n = json.Number(s)
	} else {
		n = json.Number(b)
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", string(b))
	}
	*a = Amount(f)
	return nil
}
