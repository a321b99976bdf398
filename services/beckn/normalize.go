package beckn

import (
	"strings"
	"time"

	"villagestay/models"
)

func normalizeCatalog(resp catalogMessage) ([]ProviderResult, error) {
	if resp.Catalog == nil {
		return nil, newPhaseError(KindProtocol, ActionSearch, "response has no catalog", nil)
	}

	results := make([]ProviderResult, 0, len(resp.Catalog.Providers))
	for _, p := range resp.Catalog.Providers {
		if p.ID == "" {
			return nil, newPhaseError(KindProtocol, ActionSearch, "catalog provider without id", nil)
		}
		r := ProviderResult{ID: p.ID, Name: descriptorName(p.Descriptor), Items: make([]Item, 0, len(p.Items))}
		if len(p.Locations) > 0 {
			r.Location = p.Locations[0]
		}
		for _, it := range p.Items {
			item := Item{ID: it.ID, Name: descriptorName(it.Descriptor), Category: it.CategoryID}
			if it.Price != nil {
				item.Price = float64(it.Price.Value)
			}
			r.Items = append(r.Items, item)
		}
		results = append(results, r)
	}
	return results, nil
}

func normalizeQuote(resp orderResponse, req QuoteRequest) (*Quote, error) {
	order := resp.Order
	if order == nil {
		return nil, newPhaseError(KindProtocol, ActionSelect, "response has no order", nil)
	}
	if order.Quote == nil {
		return nil, newPhaseError(KindProtocol, ActionSelect, "order has no quote", nil)
	}

	q := &Quote{
		ID:         order.ID,
		ItemID:     req.ItemID,
		ProviderID: req.ProviderID,
		GuestCount: req.GuestCount,
		Total:      float64(order.Quote.Price.Value),
		Currency:   order.Quote.Price.Currency,
		Breakup:    make([]BreakupLine, 0, len(order.Quote.Breakup)),
	}
	// Some providers only assign an order id at init.
	if q.ID == "" {
		q.ID = newID("qt")
	}
	if len(order.Items) > 0 && order.Items[0].ID != "" {
		q.ItemID = order.Items[0].ID
		if order.Items[0].Quantity != nil && order.Items[0].Quantity.Count > 0 {
			q.GuestCount = order.Items[0].Quantity.Count
		}
	}
	if order.Provider != nil && order.Provider.ID != "" {
		q.ProviderID = order.Provider.ID
	}
	for _, b := range order.Quote.Breakup {
		q.Breakup = append(q.Breakup, BreakupLine{Title: b.Title, Price: float64(b.Price.Value)})
	}
	return q, nil
}

func normalizeInit(resp orderResponse, quoteID string) (*InitResult, error) {
	order := resp.Order
	if order == nil {
		return nil, newPhaseError(KindProtocol, ActionInit, "response has no order", nil)
	}
	res := &InitResult{OrderID: order.ID, Status: order.Status}
	if res.OrderID == "" {
		res.OrderID = quoteID
	}
	if m, ok := order.Payment.(map[string]any); ok {
		res.Payment = m
	}
	return res, nil
}

// normalizeConfirmation fills gaps in the confirmed order from what the
// transaction already negotiated.
func normalizeConfirmation(resp orderResponse, txn *Transaction, payment models.PaymentDetails) (*Confirmation, error) {
	order := resp.Order
	if order == nil {
		return nil, newPhaseError(KindProtocol, ActionConfirm, "response has no order", nil)
	}
	if order.ID == "" {
		return nil, newPhaseError(KindProtocol, ActionConfirm, "confirmed order has no id", nil)
	}
	if order.ID != txn.OrderID {
		return nil, newPhaseError(KindProtocol, ActionConfirm, "confirmed order id "+order.ID+" does not match "+txn.OrderID, nil)
	}
	if strings.EqualFold(order.Status, "cancelled") {
		return nil, newPhaseError(KindProtocol, ActionConfirm, "order was cancelled by provider", nil)
	}

	c := &Confirmation{
		OrderID:    order.ID,
		Status:     order.Status,
		ItemID:     txn.ItemID,
		ProviderID: txn.ProviderID,
		CheckIn:    txn.Dates.CheckIn,
		CheckOut:   txn.Dates.CheckOut,
		GuestCount: txn.GuestCount,
		Amount:     txn.Total,
		Currency:   txn.Currency,
		CreatedAt:  order.CreatedAt,
	}
	if len(order.Items) > 0 {
		if order.Items[0].ID != "" {
			c.ItemID = order.Items[0].ID
		}
		if order.Items[0].Quantity != nil && order.Items[0].Quantity.Count > 0 {
			c.GuestCount = order.Items[0].Quantity.Count
		}
	}
	if order.Provider != nil && order.Provider.ID != "" {
		c.ProviderID = order.Provider.ID
	}
	if f := order.Fulfillment; f != nil {
		if f.Start != nil && f.Start.Time != "" {
			c.CheckIn = f.Start.Time
		}
		if f.End != nil && f.End.Time != "" {
			c.CheckOut = f.End.Time
		}
	}
	if order.Quote != nil && order.Quote.Price.Value > 0 {
		c.Amount = float64(order.Quote.Price.Value)
		if order.Quote.Price.Currency != "" {
			c.Currency = order.Quote.Price.Currency
		}
	} else if c.Amount == 0 {
		c.Amount = payment.Amount
	}
	if c.CreatedAt == "" {
		c.CreatedAt = models.FormatTimestamp(time.Now())
	}
	return c, nil
}

func descriptorName(d *wireDescriptor) string {
	if d == nil {
		return ""
	}
	return d.Name
}
