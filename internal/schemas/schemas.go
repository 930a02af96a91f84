package schemas

import (
	"fmt"

	v "github.com/glowdesk/glowdesk/internal/validation"
)

// Collection names used by the document store.
const (
	CustomersCollection    = "customers"
	ProductsCollection     = "products"
	FreebiesCollection     = "freebies"
	PurchasesCollection    = "purchases"
	FreebiesSentCollection = "freebiesSent"
	UsersCollection        = "users"
)

// Customer is the canonical customer shape.
var Customer = v.Schema{
	Name: "customer",
	Fields: []v.Field{
		{Name: "firstName", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MinLength(1), v.MaxLength(50)}},
		{Name: "lastName", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MinLength(1), v.MaxLength(50)}},
		{Name: "phone", Required: true, Rules: []v.Rule{
			v.Type(v.KindString),
			v.Pattern(phonePattern, "Phone must contain 7 to 15 digits"),
		}},
		{Name: "email", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100), v.Tag("email", "Invalid email address")}},
		{Name: "street", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(200)}},
		{Name: "city", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100)}},
		{Name: "state", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100)}},
		{Name: "pincode", Rules: []v.Rule{
			v.Type(v.KindString),
			v.MinLength(5),
			v.MaxLength(10),
			v.Pattern(pincodePattern, "Pincode must contain only numbers"),
		}},
		{Name: "dob", Rules: []v.Rule{v.Type(v.KindString), v.Custom(validDate)}},
		{Name: "anniversary", Rules: []v.Rule{v.Type(v.KindString), v.Custom(validDate)}},
		{Name: "skinType", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(50)}},
		{Name: "hairType", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(50)}},
		{Name: "forOwnConsumption", Rules: []v.Rule{v.Type(v.KindBoolean)}},
	},
}

// Product rules.
var Product = v.Schema{
	Name: "product",
	Fields: []v.Field{
		{Name: "name", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MinLength(1), v.MaxLength(100)}},
		{Name: "variant", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100)}},
		{Name: "category", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MinLength(1), v.MaxLength(50)}},
		{Name: "price", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0)}},
		{Name: "qty", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0), v.Custom(wholeNumber("qty"))}},
	},
}

// Freebie rules.
var Freebie = v.Schema{
	Name: "freebie",
	Fields: []v.Field{
		{Name: "name", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MinLength(1), v.MaxLength(100)}},
		{Name: "description", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(500)}},
		{Name: "blend", Rules: []v.Rule{v.Type(v.KindArray), v.Custom(blendIDs)}},
		{Name: "value", Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0)}},
		{Name: "availableQty", Required: true, Rules: []v.Rule{v.Type(v.KindNumber), v.Min(0), v.Custom(wholeNumber("availableQty"))}},
	},
}

func blendIDs(value any, _ v.Record) error {
	items, ok := asSlice(value)
	if !ok {
		return nil
	}
	for i, item := range items {
		id, ok := item.(string)
		if !ok || id == "" {
			return fmt.Errorf("blend item %d must be a product id", i+1)
		}
	}
	return nil
}

// FreebieSent rules for the redemption ledger.
var FreebieSent = v.Schema{
	Name: "freebieSent",
	Fields: []v.Field{
		{Name: "customerId", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "freebieId", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "purchaseId", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "freebieName", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "sentDate", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.Custom(timestamp("sentDate"))}},
	},
}

// User rules for sign-in accounts.
var User = v.Schema{
	Name: "user",
	Fields: []v.Field{
		{Name: "email", Required: true, Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100), v.Tag("email", "Invalid email address")}},
		{Name: "displayName", Rules: []v.Rule{v.Type(v.KindString), v.MaxLength(100)}},
		{Name: "passwordHash", Required: true, Rules: []v.Rule{v.Type(v.KindString)}},
		{Name: "isActive", Rules: []v.Rule{v.Type(v.KindBoolean)}},
	},
}
