package beckn

import "encoding/json"

type envelope struct {
	Context TransactionContext `json:"context"`
	Message any                `json:"message"`
}

type responseEnvelope struct {
	Context *TransactionContext `json:"context"`
	Message json.RawMessage     `json:"message"`
	Error   *wireError          `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireDescriptor struct {
	Name string `json:"name"`
}

type wirePrice struct {
	Currency string `json:"currency,omitempty"`
	Value    Amount `json:"value"`
}

type wireTime struct {
	Time string `json:"time,omitempty"`
}

type wireQuantity struct {
	Count int `json:"count"`
}

type wireItem struct {
	ID         string          `json:"id"`
	Descriptor *wireDescriptor `json:"descriptor,omitempty"`
	Price      *wirePrice      `json:"price,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	Quantity   *wireQuantity   `json:"quantity,omitempty"`
}

type wireProvider struct {
	ID         string           `json:"id"`
	Descriptor *wireDescriptor  `json:"descriptor,omitempty"`
	Locations  []map[string]any `json:"locations,omitempty"`
	Items      []wireItem       `json:"items,omitempty"`
}

type wireCatalog struct {
	Providers []wireProvider `json:"bpp_providers"`
}

type wirePerson struct {
	Name string `json:"name"`
}

type wireContact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type wireCustomer struct {
	Person  wirePerson  `json:"person"`
	Contact wireContact `json:"contact"`
}

type wireFulfillment struct {
	Type     string        `json:"type,omitempty"`
	Start    *wireTime     `json:"start,omitempty"`
	End      *wireTime     `json:"end,omitempty"`
	Customer *wireCustomer `json:"customer,omitempty"`
}

type wireBreakup struct {
	Title string    `json:"title"`
	Price wirePrice `json:"price"`
}

type wireQuote struct {
	Price   wirePrice     `json:"price"`
	Breakup []wireBreakup `json:"breakup"`
}

type wirePaymentParams struct {
	TransactionID string  `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

type wirePayment struct {
	Type   string            `json:"type"`
	Status string            `json:"status"`
	Params wirePaymentParams `json:"params"`
}

type wireOrder struct {
	ID          string           `json:"id,omitempty"`
	Status      string           `json:"status,omitempty"`
	Provider    *wireProvider    `json:"provider,omitempty"`
	Items       []wireItem       `json:"items,omitempty"`
	Quote       *wireQuote       `json:"quote,omitempty"`
	Billing     map[string]any   `json:"billing,omitempty"`
	Fulfillment *wireFulfillment `json:"fulfillment,omitempty"`
	Payment     any              `json:"payment,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
}

type searchMessage struct {
	Intent wireIntent `json:"intent"`
}

type wireIntent struct {
	Item struct {
		Descriptor wireDescriptor `json:"descriptor"`
		Location   string         `json:"location,omitempty"`
		Time       any            `json:"time,omitempty"`
	} `json:"item"`
	Category struct {
		ID string `json:"id"`
	} `json:"category"`
	Fulfillment wireFulfillment `json:"fulfillment"`
}

type orderMessage struct {
	Order wireOrder `json:"order"`
}

type catalogMessage struct {
	Catalog *wireCatalog `json:"catalog"`
}

type orderResponse struct {
	Order *wireOrder `json:"order"`
}
