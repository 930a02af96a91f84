package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/shared"
)

const idempotencyModule = "purchases"

// Dependencies wires the services the purchase workflow writes through.
type Dependencies struct {
	Customers   CustomerDirectory
	Inventory   Inventory
	Freebies    FreebieLedger
	Idempotency *shared.IdempotencyStore
	Metrics     Recorder
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Service records purchases and answers purchase queries.
type Service struct {
	repo        *Repository
	customers   CustomerDirectory
	inventory   Inventory
	freebies    FreebieLedger
	idempotency *shared.IdempotencyStore
	metrics     Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(repo *Repository, deps Dependencies) *Service {
	s := &Service{
		repo:        repo,
		customers:   deps.Customers,
		inventory:   deps.Inventory,
		freebies:    deps.Freebies,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create runs the purchase workflow. A non-empty idempotency key is claimed
// first and released again when the workflow fails.
func (s *Service) Create(ctx context.Context, req CreatePurchaseRequest, idempotencyKey string) (Purchase, error) {
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Purchase{}, err
			}
			return Purchase{}, fmt.Errorf("purchases: claim idempotency key: %w", err)
		}
	}
	created, err := s.run(ctx, req)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Delete(context.WithoutCancel(ctx), idempotencyKey, idempotencyModule); relErr != nil {
				s.logger.Warn("release idempotency key failed", "error", relErr)
			}
		}
		return Purchase{}, err
	}
	return created, nil
}

// Get returns the purchase with id.
func (s *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns every purchase.
func (s *Service) List(ctx context.Context) ([]Purchase, error) {
	return s.repo.All(ctx)
}

// Delete removes a purchase record. Stock and ledger entries are left as they
// are.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Find dispatches req to the matching lookup, or lists everything.
func (s *Service) Find(ctx context.Context, req ListPurchasesRequest) ([]Purchase, error) {
	filters := make([]docstore.Filter, 0, 4)
	if req.CustomerID != "" {
		filters = append(filters, docstore.Where("customerId", docstore.OpEq, req.CustomerID))
	}
	if req.HasRange {
		filters = append(filters,
			docstore.Where("purchaseDate", docstore.OpGte, req.From),
			docstore.Where("purchaseDate", docstore.OpLte, req.To),
		)
	}
	if req.WithFreebie {
		filters = append(filters, docstore.Where("freebieId", docstore.OpNe, ""))
	}
	if len(filters) == 0 {
		return s.List(ctx)
	}
	return s.repo.Query(ctx, filters, newestFirst)
}

var newestFirst = docstore.QueryOptions{OrderBy: "purchaseDate", Direction: docstore.Desc}

// ByCustomer returns a customer's purchases, newest first.
func (s *Service) ByCustomer(ctx context.Context, customerID string) ([]Purchase, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("customerId", docstore.OpEq, customerID)}, newestFirst)
}

// Between returns purchases dated within [from, to], newest first.
func (s *Service) Between(ctx context.Context, from, to time.Time) ([]Purchase, error) {
	return s.repo.Query(ctx, []docstore.Filter{
		docstore.Where("purchaseDate", docstore.OpGte, from),
		docstore.Where("purchaseDate", docstore.OpLte, to),
	}, newestFirst)
}

// WithFreebies returns purchases that redeemed a freebie.
func (s *Service) WithFreebies(ctx context.Context) ([]Purchase, error) {
	return s.repo.Query(ctx, []docstore.Filter{docstore.Where("freebieId", docstore.OpNe, "")}, newestFirst)
}

// TotalSales sums totalAmount over purchases dated within [from, to].
func (s *Service) TotalSales(ctx context.Context, from, to time.Time) (float64, error) {
	list, err := s.Between(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return Sum(list), nil
}

// MonthlyStats returns twelve entries for year, January first.
func (s *Service) MonthlyStats(ctx context.Context, year int) ([]MonthStat, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	list, err := s.Between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return MonthlyBreakdown(list, year), nil
}

// CurrentMonthCount counts purchases dated in the current calendar month.
func (s *Service) CurrentMonthCount(ctx context.Context) (int, error) {
	from, to := shared.MonthBounds(s.now().UTC())
	list, err := s.Between(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Sum adds the totals of list using exact decimal arithmetic.
func Sum(list []Purchase) float64 {
	total := decimal.Zero
	for _, p := range list {
		total = total.Add(schemas.Money(p.TotalAmount))
	}
	return total.InexactFloat64()
}

// MonthlyBreakdown groups list into the twelve months of year. Purchases
// from other years are ignored.
func MonthlyBreakdown(list []Purchase, year int) []MonthStat {
	totals := make([]decimal.Decimal, 12)
	counts := make([]int, 12)
	for _, p := range list {
		date := p.PurchaseDate.UTC()
		if date.Year() != year {
			continue
		}
		m := int(date.Month()) - 1
		totals[m] = totals[m].Add(schemas.Money(p.TotalAmount))
		counts[m]++
	}
	out := make([]MonthStat, 12)
	for i := range out {
		out[i] = MonthStat{Month: i + 1, Total: totals[i].InexactFloat64(), Count: counts[i]}
		if counts[i] > 0 {
			out[i].Average = totals[i].Div(decimal.NewFromInt(int64(counts[i]))).Round(2).InexactFloat64()
		}
	}
	return out
}
