package freebies

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// Service exposes freebie CRUD, availability and the redemption ledger.
type Service struct {
	repo   *Repository
	ledger *LedgerRepository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, ledger *LedgerRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// Create validates and stores a freebie.
func (s *Service) Create(ctx context.Context, f Freebie) (Freebie, error) {
	return s.repo.Create(ctx, f)
}

// Get returns the freebie with id.
func (s *Service) Get(ctx context.Context, id string) (Freebie, error) {
	return s.repo.Get(ctx, id)
}

// List returns every freebie.
func (s *Service) List(ctx context.Context) ([]Freebie, error) {
	return s.repo.All(ctx)
}

// Update replaces the freebie with id.
func (s *Service) Update(ctx context.Context, id string, f Freebie) (Freebie, error) {
	return s.repo.Update(ctx, id, f)
}

// Delete removes the freebie with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Validate checks f without storing it.
func (s *Service) Validate(f Freebie) validation.Result {
	return s.repo.Validate(f)
}

// Find dispatches req to the matching lookup, or lists everything.
func (s *Service) Find(ctx context.Context, req ListFreebiesRequest) ([]Freebie, error) {
	switch {
	case req.Search != "":
		return s.SearchByName(ctx, req.Search)
	case req.Available:
		return s.Available(ctx)
	}
	return s.List(ctx)
}

// SearchByName matches term case-insensitively against the freebie name.
func (s *Service) SearchByName(ctx context.Context, term string) ([]Freebie, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	out := make([]Freebie, 0)
	for _, f := range all {
		if strings.Contains(fold.String(f.Name), needle) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Available returns freebies with stock left.
func (s *Service) Available(ctx context.Context) ([]Freebie, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("availableQty", docstore.OpGt, 0)}, docstore.QueryOptions{})
}

// RecordSent appends a ledger entry and takes one unit of the freebie's
// stock, never going below zero. A missing freebie only skips the decrement.
func (s *Service) RecordSent(ctx context.Context, entry Sent) (Sent, error) {
	created, err := s.AppendLedger(ctx, entry)
	if err != nil {
		return Sent{}, err
	}
	if _, _, err := s.TakeOne(ctx, entry.FreebieID); err != nil {
		return created, err
	}
	return created, nil
}

// AppendLedger writes one redemption entry.
func (s *Service) AppendLedger(ctx context.Context, entry Sent) (Sent, error) {
	if entry.SentDate.IsZero() {
		entry.SentDate = time.Now().UTC()
	}
	return s.ledger.Create(ctx, entry)
}

// RemoveLedgerEntry deletes a ledger entry. It exists for compensating a
// failed purchase and is not exposed over HTTP.
func (s *Service) RemoveLedgerEntry(ctx context.Context, id string) error {
	return s.ledger.Delete(ctx, id)
}

// TakeOne decrements availableQty by one with a floor of zero and returns
// the quantity before and after.
func (s *Service) TakeOne(ctx context.Context, id string) (before, after int, err error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	before = f.AvailableQty
	after = before - 1
	if after < 0 {
		after = 0
	}
	if after == before {
		s.logger.Warn("freebie out of stock at redemption", "freebie_id", id)
		return before, after, nil
	}
	f.AvailableQty = after
	if _, err := s.repo.Update(ctx, id, f); err != nil {
		return before, before, err
	}
	return before, after, nil
}

// SetAvailable overwrites availableQty, used to restore stock on rollback.
func (s *Service) SetAvailable(ctx context.Context, id string, qty int) error {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	f.AvailableQty = qty
	_, err = s.repo.Update(ctx, id, f)
	return err
}

// HasReceived reports whether customerID already got freebieID.
func (s *Service) HasReceived(ctx context.Context, customerID, freebieID string) (bool, error) {
	entries, err := s.ledger.Query(ctx, []docstore.Filter{
		docstore.Where("customerId", docstore.OpEq, customerID),
		docstore.Where("freebieId", docstore.OpEq, freebieID),
	}, docstore.QueryOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// SentToCustomer returns every ledger entry for customerID, newest first.
func (s *Service) SentToCustomer(ctx context.Context, customerID string) ([]Sent, error) {
	return s.ledger.Query(ctx, []docstore.Filter{
		docstore.Where("customerId", docstore.OpEq, customerID),
	}, docstore.QueryOptions{OrderBy: "sentDate", Direction: docstore.Desc})
}

// NotReceivedBy returns in-stock freebies customerID has not received yet.
func (s *Service) NotReceivedBy(ctx context.Context, customerID string) ([]Freebie, error) {
	sent, err := s.SentToCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	received := make(map[string]struct{}, len(sent))
	for _, entry := range sent {
		received[entry.FreebieID] = struct{}{}
	}
	available, err := s.Available(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Freebie, 0, len(available))
	for _, f := range available {
		if _, ok := received[f.ID]; !ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// SentBetween returns ledger entries with sentDate in [from, to], newest first.
func (s *Service) SentBetween(ctx context.Context, from, to time.Time) ([]Sent, error) {
	return s.ledger.Query(ctx, []docstore.Filter{
		docstore.Where("sentDate", docstore.OpGte, from),
		docstore.Where("sentDate", docstore.OpLte, to),
	}, docstore.QueryOptions{OrderBy: "sentDate", Direction: docstore.Desc})
}

// ListSent filters the ledger by customer and/or date range.
func (s *Service) ListSent(ctx context.Context, req ListSentRequest) ([]Sent, error) {
	filters := make([]docstore.Filter, 0, 3)
	if req.CustomerID != "" {
		filters = append(filters, docstore.Where("customerId", docstore.OpEq, req.CustomerID))
	}
	if req.HasRange {
		filters = append(filters,
			docstore.Where("sentDate", docstore.OpGte, req.From),
			docstore.Where("sentDate", docstore.OpLte, req.To),
		)
	}
	return s.ledger.Query(ctx, filters, docstore.QueryOptions{OrderBy: "sentDate", Direction: docstore.Desc})
}

// AllSent returns the full ledger.
func (s *Service) AllSent(ctx context.Context) ([]Sent, error) {
	return s.ledger.All(ctx)
}
