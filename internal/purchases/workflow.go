package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// Workflow step names, used in wrapped errors, logs and metrics.
const (
	StepValidateDraft    = "validate request"
	StepResolveCustomer  = "resolve customer"
	StepValidateRecord   = "validate purchase"
	StepPersist          = "persist purchase"
	StepDecrementStock   = "decrement stock"
	StepRecordFreebie    = "record freebie"
	StepDecrementFreebie = "decrement freebie"
)

const rollbackTimeout = 10 * time.Second

// CustomerDirectory resolves an inline customer to a stored one.
type CustomerDirectory interface {
	FindByPhone(ctx context.Context, phone string) ([]customers.Customer, error)
	FindByEmail(ctx context.Context, email string) ([]customers.Customer, error)
	Create(ctx context.Context, c customers.Customer) (customers.Customer, error)
}

// Inventory adjusts product stock.
type Inventory interface {
	AdjustQuantity(ctx context.Context, id string, change int) (products.Product, error)
}

// FreebieLedger records redemptions and moves freebie stock.
type FreebieLedger interface {
	Get(ctx context.Context, id string) (freebies.Freebie, error)
	AppendLedger(ctx context.Context, entry freebies.Sent) (freebies.Sent, error)
	RemoveLedgerEntry(ctx context.Context, id string) error
	TakeOne(ctx context.Context, id string) (before, after int, err error)
	SetAvailable(ctx context.Context, id string, qty int) error
}

// Recorder receives workflow outcomes. *observability.Metrics implements it.
type Recorder interface {
	PurchaseCompleted(outcome string)
	CompensationRan(step string, err error)
}

type noopRecorder struct{}

func (noopRecorder) PurchaseCompleted(string) {}

func (noopRecorder) CompensationRan(string, error) {}

type undo struct {
	step string
	fn   func(ctx context.Context) error
}

// saga collects undo actions for completed steps and runs them in reverse
// when a later step fails.
type saga struct {
	logger  *slog.Logger
	metrics Recorder
	undos   []undo
}

func (s *saga) onRollback(step string, fn func(ctx context.Context) error) {
	s.undos = append(s.undos, undo{step: step, fn: fn})
}

// fail rolls back and builds the error returned to the caller.
func (s *saga) fail(ctx context.Context, step, purchaseID string, cause error) error {
	wrapped := fmt.Errorf("purchases: %s: %w", step, cause)
	if len(s.undos) == 0 {
		return wrapped
	}
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	var failures []error
	for i := len(s.undos) - 1; i >= 0; i-- {
		u := s.undos[i]
		err := u.fn(rollbackCtx)
		s.metrics.CompensationRan(u.step, err)
		if err != nil {
			failures = append(failures, fmt.Errorf("undo %s: %w", u.step, err))
		}
	}
	if len(failures) == 0 {
		s.metrics.PurchaseCompleted("rolled_back")
		s.logger.Warn("purchase rolled back", "step", step, "purchase_id", purchaseID, "error", cause)
		return wrapped
	}
	s.metrics.PurchaseCompleted("partial_failure")
	s.logger.Error("purchase rollback incomplete",
		"step", step, "purchase_id", purchaseID, "error", cause, "compensation_errors", errors.Join(failures...))
	return &PartialFailureError{Step: step, Cause: wrapped, PurchaseID: purchaseID, Compensation: failures}
}

// run executes the purchase creation steps in order.
func (s *Service) run(ctx context.Context, req CreatePurchaseRequest) (Purchase, error) {
	tx := &saga{logger: s.logger, metrics: s.metrics}

	if err := validateDraft(req); err != nil {
		return Purchase{}, fmt.Errorf("purchases: %s: %w", StepValidateDraft, err)
	}

	customerID, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return Purchase{}, fmt.Errorf("purchases: %s: %w", StepResolveCustomer, err)
	}

	purchase := s.assemble(customerID, req)
	if err := s.repo.Validate(purchase).Err(); err != nil {
		return Purchase{}, fmt.Errorf("purchases: %s: %w", StepValidateRecord, err)
	}

	created, err := s.repo.Create(ctx, purchase)
	if err != nil {
		return Purchase{}, tx.fail(ctx, StepPersist, "", err)
	}
	tx.onRollback(StepPersist, func(ctx context.Context) error {
		return s.repo.Delete(ctx, created.ID)
	})

	for _, line := range created.Products {
		if _, err := s.inventory.AdjustQuantity(ctx, line.ProductID, -line.Qty); err != nil {
			return Purchase{}, tx.fail(ctx, StepDecrementStock, created.ID, fmt.Errorf("product %s: %w", line.ProductID, err))
		}
		tx.onRollback(StepDecrementStock, func(ctx context.Context) error {
			_, err := s.inventory.AdjustQuantity(ctx, line.ProductID, line.Qty)
			return err
		})
	}

	if created.FreebieID != "" {
		if err := s.redeemFreebie(ctx, tx, created); err != nil {
			return Purchase{}, err
		}
	}

	s.metrics.PurchaseCompleted("created")
	return created, nil
}

func (s *Service) redeemFreebie(ctx context.Context, tx *saga, p Purchase) error {
	freebie, err := s.freebies.Get(ctx, p.FreebieID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("freebie not found, redemption skipped", "freebie_id", p.FreebieID, "purchase_id", p.ID)
		return nil
	}
	if err != nil {
		return tx.fail(ctx, StepRecordFreebie, p.ID, err)
	}

	entry, err := s.freebies.AppendLedger(ctx, freebies.Sent{
		CustomerID:  p.CustomerID,
		FreebieID:   freebie.ID,
		PurchaseID:  p.ID,
		FreebieName: freebie.Name,
		SentDate:    p.PurchaseDate,
	})
	if err != nil {
		return tx.fail(ctx, StepRecordFreebie, p.ID, err)
	}
	tx.onRollback(StepRecordFreebie, func(ctx context.Context) error {
		return s.freebies.RemoveLedgerEntry(ctx, entry.ID)
	})

	before, after, err := s.freebies.TakeOne(ctx, freebie.ID)
	if err != nil {
		return tx.fail(ctx, StepDecrementFreebie, p.ID, err)
	}
	if before != after {
		tx.onRollback(StepDecrementFreebie, func(ctx context.Context) error {
			return s.freebies.SetAvailable(ctx, freebie.ID, before)
		})
	}
	return nil
}

// resolveCustomer returns the explicit customerId, or finds the inline
// customer by phone then email, creating it when neither matches.
func (s *Service) resolveCustomer(ctx context.Context, req CreatePurchaseRequest) (string, error) {
	if req.CustomerID != "" {
		return req.CustomerID, nil
	}
	inline := *req.Customer
	if inline.Phone != "" {
		found, err := s.customers.FindByPhone(ctx, inline.Phone)
		if err != nil {
			return "", err
		}
		if len(found) > 0 {
			return found[0].ID, nil
		}
	}
	if inline.Email != "" {
		found, err := s.customers.FindByEmail(ctx, inline.Email)
		if err != nil {
			return "", err
		}
		if len(found) > 0 {
			return found[0].ID, nil
		}
	}
	inline.Meta = repository.Meta{}
	created, err := s.customers.Create(ctx, inline)
	if err != nil {
		return "", err
	}
	s.logger.Info("customer created from purchase", "customer_id", created.ID)
	return created.ID, nil
}

// assemble builds the stored record, filling subtotals, total and date. The
// draft has already been validated, so every line carries a price.
func (s *Service) assemble(customerID string, req CreatePurchaseRequest) Purchase {
	lines := make([]LineItem, 0, len(req.Products))
	for _, in := range req.Products {
		var price float64
		if in.Price != nil {
			price = *in.Price
		}
		subtotal := schemas.Subtotal(price, float64(in.Qty)).InexactFloat64()
		if in.Subtotal != nil {
			subtotal = *in.Subtotal
		}
		lines = append(lines, LineItem{
			ProductID: in.ProductID,
			Name:      in.Name,
			Variant:   in.Variant,
			Price:     price,
			Qty:       in.Qty,
			Subtotal:  subtotal,
		})
	}
	p := Purchase{
		CustomerID:   customerID,
		Products:     lines,
		FreebieID:    req.FreebieID,
		PurchaseDate: s.now().UTC(),
	}
	if req.PurchaseDate != nil {
		p.PurchaseDate = req.PurchaseDate.UTC()
	}
	if req.TotalAmount != nil {
		p.TotalAmount = *req.TotalAmount
	} else {
		total := schemas.Money(0)
		for _, line := range lines {
			total = total.Add(schemas.Money(line.Subtotal))
		}
		p.TotalAmount = total.InexactFloat64()
	}
	return p
}

func validateDraft(req CreatePurchaseRequest) error {
	if req.Products == nil {
		req.Products = []LineItemInput{}
	}
	rec, err := repository.ToRecord(req)
	if err != nil {
		return err
	}
	return validation.Validate(rec, schemas.PurchaseDraft).Err()
}
