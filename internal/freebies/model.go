package freebies

import (
	"time"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
)

// Freebie is a promotional item, optionally a blend of existing products.
type Freebie struct {
	repository.Meta
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Blend        []string `json:"blend,omitempty"`
	Value        float64  `json:"value,omitempty"`
	AvailableQty int      `json:"availableQty"`
}

// Sent is one redemption ledger entry. Entries are written once and never
// edited.
type Sent struct {
	repository.Meta
	CustomerID  string    `json:"customerId"`
	FreebieID   string    `json:"freebieId"`
	PurchaseID  string    `json:"purchaseId"`
	FreebieName string    `json:"freebieName"`
	SentDate    time.Time `json:"sentDate"`
}

// Repository is the freebie collection.
type Repository = repository.Repository[Freebie]

// LedgerRepository is the freebiesSent collection.
type LedgerRepository = repository.Repository[Sent]

// NewRepository binds the freebie schema to store.
func NewRepository(store docstore.Store) *Repository {
	return repository.New[Freebie](store, schemas.FreebiesCollection, schemas.Freebie)
}

// NewLedgerRepository binds the redemption ledger schema to store.
func NewLedgerRepository(store docstore.Store) *LedgerRepository {
	return repository.New[Sent](store, schemas.FreebiesSentCollection, schemas.FreebieSent)
}
