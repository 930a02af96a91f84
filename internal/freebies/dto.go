package freebies

import "time"

// ListFreebiesRequest selects a freebie lookup.
type ListFreebiesRequest struct {
	Search    string `json:"search,omitempty"`
	Available bool   `json:"available,omitempty"`
}

// ListSentRequest filters the redemption ledger. From and To apply together.
type ListSentRequest struct {
	CustomerID string
	From       time.Time
	To         time.Time
	HasRange   bool
}
