package beckn

import (
	"context"
	"fmt"

	"villagestay/models"
)

const paymentStatusPaid = "PAID"

// Search sends the discovery phase and flattens the returned catalog.
func (c *Client) Search(ctx context.Context, txn *Transaction, intent SearchIntent) ([]ProviderResult, error) {
	if txn.State != StateSearching {
		return nil, outOfOrder(ActionSearch, txn)
	}

	var msg searchMessage
	msg.Intent.Item.Descriptor.Name = intent.Query
	msg.Intent.Item.Location = intent.Location
	msg.Intent.Item.Time = intent.DateRange
	msg.Intent.Category.ID = c.cfg.Domain
	msg.Intent.Fulfillment = wireFulfillment{
		Type:  "homestay",
		Start: &wireTime{Time: intent.DateRange.CheckIn},
		End:   &wireTime{Time: intent.DateRange.CheckOut},
	}

	var resp catalogMessage
	if err := c.call(ctx, txn, ActionSearch, msg, &resp); err != nil {
		txn.Fail(err)
		return nil, err
	}
	results, err := normalizeCatalog(resp)
	if err != nil {
		txn.Fail(err)
		return nil, err
	}
	txn.Dates = intent.DateRange
	return results, nil
}

// Quote sends the select phase for one item. It may be repeated to re-quote
// before init.
func (c *Client) Quote(ctx context.Context, txn *Transaction, req QuoteRequest) (*Quote, error) {
	if txn.State != StateSearching && txn.State != StateQuoted {
		return nil, outOfOrder(ActionSelect, txn)
	}

	item := wireItem{ID: req.ItemID, Quantity: &wireQuantity{Count: req.GuestCount}}
	msg := orderMessage{Order: wireOrder{
		Items: []wireItem{item},
		Fulfillment: &wireFulfillment{
			Start: &wireTime{Time: req.Dates.CheckIn},
			End:   &wireTime{Time: req.Dates.CheckOut},
		},
	}}
	if req.ProviderID != "" {
		msg.Order.Provider = &wireProvider{ID: req.ProviderID}
	}

	var resp orderResponse
	if err := c.call(ctx, txn, ActionSelect, msg, &resp); err != nil {
		txn.Fail(err)
		return nil, err
	}
	quote, err := normalizeQuote(resp, req)
	if err != nil {
		txn.Fail(err)
		return nil, err
	}
	quote.TransactionID = txn.ID

	txn.ItemID = quote.ItemID
	txn.ProviderID = quote.ProviderID
	txn.GuestCount = quote.GuestCount
	txn.Dates = req.Dates
	txn.QuoteID = quote.ID
	txn.Total = quote.Total
	txn.Currency = quote.Currency
	if err := txn.advance(StateQuoted); err != nil {
		return nil, newPhaseError(KindOutOfOrder, ActionSelect, err.Error(), nil)
	}
	return quote, nil
}

// InitBooking sends the init phase, carrying quoteID forward as the order id.
func (c *Client) InitBooking(ctx context.Context, txn *Transaction, quoteID string, user models.UserDetails) (*InitResult, error) {
	if txn.State != StateQuoted || txn.QuoteID != quoteID {
		return nil, outOfOrder(ActionInit, txn)
	}

	msg := orderMessage{Order: wireOrder{
		ID:      quoteID,
		Billing: user.Billing,
		Fulfillment: &wireFulfillment{
			Customer: &wireCustomer{
				Person:  wirePerson{Name: user.Name},
				Contact: wireContact{Phone: user.Phone, Email: user.Email},
			},
		},
	}}

	var resp orderResponse
	if err := c.call(ctx, txn, ActionInit, msg, &resp); err != nil {
		txn.Fail(err)
		return nil, err
	}
	result, err := normalizeInit(resp, quoteID)
	if err != nil {
		txn.Fail(err)
		return nil, err
	}

	txn.OrderID = result.OrderID
	if err := txn.advance(StateInitiated); err != nil {
		return nil, newPhaseError(KindOutOfOrder, ActionInit, err.Error(), nil)
	}
	return result, nil
}

// ConfirmBooking sends the confirm phase for an initiated order.
func (c *Client) ConfirmBooking(ctx context.Context, txn *Transaction, orderID string, payment models.PaymentDetails) (*Confirmation, error) {
	if txn.State != StateInitiated || txn.OrderID != orderID {
		return nil, outOfOrder(ActionConfirm, txn)
	}

	status := payment.Status
	if status == "" {
		status = paymentStatusPaid
	}
	msg := orderMessage{Order: wireOrder{
		ID: orderID,
		Payment: wirePayment{
			Type:   payment.Method,
			Status: status,
			Params: wirePaymentParams{TransactionID: payment.TransactionID, Amount: payment.Amount},
		},
	}}

	var resp orderResponse
	if err := c.call(ctx, txn, ActionConfirm, msg, &resp); err != nil {
		txn.Fail(err)
		return nil, err
	}
	conf, err := normalizeConfirmation(resp, txn, payment)
	if err != nil {
		txn.Fail(err)
		return nil, err
	}
	if err := txn.advance(StateConfirmed); err != nil {
		return nil, newPhaseError(KindOutOfOrder, ActionConfirm, err.Error(), nil)
	}
	return conf, nil
}

func outOfOrder(action Action, txn *Transaction) error {
	return newPhaseError(KindOutOfOrder, action, fmt.Sprintf("not allowed while transaction %s is %s", txn.ID, txn.State), nil)
}
