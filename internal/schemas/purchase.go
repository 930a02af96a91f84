package schemas

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	v "github.com/glowdesk/glowdesk/internal/validation"
)

var (
	errNoProducts     = errors.New("At least one product is required")
	errTotalMismatch  = errors.New("Total amount does not match the sum of line items")
	errSubtotal       = errors.New("Subtotal must equal price x qty")
	errBothCustomers  = errors.New("Provide either customerId or customer, not both")
	errCustomerLookup = errors.New("Customer phone or email is required")
)

// LineItem rules for one entry of a purchase's products array.
var LineItem = v.Schema{
	Name: "lineItem",
	Fields: []v.Field{
		{Name: "productId", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "name", Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "variant", Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "price", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0)}},
		{Name: "qty", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(1), v.Custom(wholeNumber("qty"))}},
		{Name: "subtotal", Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0), v.Custom(subtotalMatches)}},
	},
}

// Purchase rules for the stored record.
var Purchase = v.Schema{
	Name: "purchase",
	Fields: []v.Field{
		{Name: "customerId", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.Custom(notBothCustomers)}},
		{Name: "products", Required: true, Rules: []v.Rule{v.Type(v.KindArray), v.Custom(lineItems)}},
		{Name: "totalAmount", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0), v.Custom(totalMatches)}},
		{Name: "freebieId", Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "purchaseDate", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.Custom(timestamp("purchaseDate"))}},
	},
}

// PurchaseDraft rules for a create request, checked before any write. Either
// customerId or an inline customer must be given; the total and date may be
// left for the server to fill in.
var PurchaseDraft = v.Schema{
	Name: "purchaseDraft",
	Fields: []v.Field{
		{
			Name:         "customerId",
			RequiredWhen: func(rec v.Record) bool { return !v.Present(rec, "customer") },
			Rules:        []v.Rule{v.Type(v.KindString), v.Custom(notBothCustomers)},
		},
		{
			Name:         "customer",
			RequiredWhen: func(rec v.Record) bool { return !v.Present(rec, "customerId") },
			Rules:        []v.Rule{v.Type(v.KindObject), v.Custom(inlineCustomer)},
		},
		{Name: "products", Required: true, Rules: []v.Rule{v.Type(v.KindArray), v.Custom(lineItems)}},
		{Name: "totalAmount", Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0), v.Custom(totalMatches)}},
		{Name: "freebieId", Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "purchaseDate", Rules: []v.Rule{v.Type(v.KindString), v.Custom(timestamp("purchaseDate"))}},
	},
}

func notBothCustomers(_ any, rec v.Record) error {
	if v.Present(rec, "customerId") && v.Present(rec, "customer") {
		return errBothCustomers
	}
	return nil
}

// inlineCustomer only checks that the customer can be looked up. The full
// Customer schema applies when no stored customer matches and one is created.
func inlineCustomer(value any, _ v.Record) error {
	rec, ok := asRecord(value)
	if !ok {
		return nil
	}
	for _, key := range []string{"phone", "email"} {
		if raw, present := rec[key]; present && !v.IsEmpty(raw) {
			if _, isString := raw.(string); !isString {
				return fmt.Errorf("Customer %s must be a string", key)
			}
		}
	}
	if !v.Present(rec, "phone") && !v.Present(rec, "email") {
		return errCustomerLookup
	}
	return nil
}

func lineItems(value any, _ v.Record) error {
	items, ok := asSlice(value)
	if !ok || len(items) == 0 {
		return errNoProducts
	}
	for i, item := range items {
		rec, ok := asRecord(item)
		if !ok {
			return fmt.Errorf("Line item %d must be an object", i+1)
		}
		res := v.Validate(rec, LineItem)
		if !res.Valid {
			return fmt.Errorf("Line item %d: %s", i+1, firstMessage(res.Errors))
		}
	}
	return nil
}

func subtotalMatches(value any, rec v.Record) error {
	subtotal, ok := v.Number(value)
	if !ok {
		return nil
	}
	price, okPrice := v.Number(rec["price"])
	qty, okQty := v.Number(rec["qty"])
	if !okPrice || !okQty {
		return nil
	}
	if !Money(subtotal).Equal(Subtotal(price, qty)) {
		return errSubtotal
	}
	return nil
}

func totalMatches(value any, rec v.Record) error {
	total, ok := v.Number(value)
	if !ok {
		return nil
	}
	sum, ok := LineTotal(rec["products"])
	if !ok {
		return nil
	}
	if !Money(total).Equal(sum) {
		return errTotalMismatch
	}
	return nil
}

// LineTotal sums the subtotals of a products array, using price x qty for
// items without a subtotal. ok is false when the array cannot be summed.
func LineTotal(products any) (decimal.Decimal, bool) {
	items, ok := asSlice(products)
	if !ok {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, item := range items {
		rec, ok := asRecord(item)
		if !ok {
			return decimal.Zero, false
		}
		if st, ok := v.Number(rec["subtotal"]); ok {
			sum = sum.Add(Money(st))
			continue
		}
		price, okPrice := v.Number(rec["price"])
		qty, okQty := v.Number(rec["qty"])
		if !okPrice || !okQty {
			return decimal.Zero, false
		}
		sum = sum.Add(Subtotal(price, qty))
	}
	return sum, true
}

// firstMessage picks a deterministic message from a field error map.
func firstMessage(errs map[string]string) string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return errs[names[0]]
}
