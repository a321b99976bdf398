package models

// DateRange is a stay window in ISO-8601 dates.
type DateRange struct {
	CheckIn  string `json:"checkIn" binding:"required"`
	CheckOut string `json:"checkOut" binding:"required"`
}

// Billing is passed through to the gateway untouched.
type Billing map[string]any

// UserDetails identifies the guest to the gateway during init.
type UserDetails struct {
	Name    string  `json:"name" binding:"required"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email" binding:"omitempty,email"`
	Billing Billing `json:"billing,omitempty"`
}

// PaymentDetails is the opaque payment outcome supplied by the caller. The
// service never talks to a payment provider itself.
type PaymentDetails struct {
	Method        string  `json:"method" binding:"required"`
	TransactionID string  `json:"transactionId" binding:"required"`
	Amount        float64 `json:"amount" binding:"gte=0"`
	Status        string  `json:"status,omitempty"`
}

// ReviewInput is the caller-supplied part of a review.
type ReviewInput struct {
	ID      string `json:"id,omitempty"`
	UserID  string `json:"userId" binding:"required"`
	Comment string `json:"comment"`
}
