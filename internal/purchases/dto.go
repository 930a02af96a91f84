package purchases

import (
	"time"

	"github.com/glowdesk/glowdesk/internal/customers"
)

// CreatePurchaseRequest is the payload for recording a sale. Exactly one of
// CustomerID and Customer identifies the buyer. TotalAmount and PurchaseDate
// are filled in when omitted.
type CreatePurchaseRequest struct {
	CustomerID   string              `json:"customerId,omitempty"`
	Customer     *customers.Customer `json:"customer,omitempty"`
	Products     []LineItemInput     `json:"products"`
	TotalAmount  *float64            `json:"totalAmount,omitempty"`
	FreebieID    string              `json:"freebieId,omitempty"`
	PurchaseDate *time.Time          `json:"purchaseDate,omitempty"`
}

// LineItemInput is a requested line. Price is required; a missing subtotal
// becomes price x qty.
type LineItemInput struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name,omitempty"`
	Variant   string   `json:"variant,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Qty       int      `json:"qty"`
	Subtotal  *float64 `json:"subtotal,omitempty"`
}

// ListPurchasesRequest selects a purchase lookup.
type ListPurchasesRequest struct {
	CustomerID  string
	From        time.Time
	To          time.Time
	HasRange    bool
	WithFreebie bool
}
