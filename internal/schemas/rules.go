// Package schemas declares the validation rule sets of every stored entity.
package schemas

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowdesk/glowdesk/internal/validation"
)

var (
	phonePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	pincodePattern = regexp.MustCompile(`^\d+$`)
)

// DateLayout is the calendar-date form accepted for dob and anniversary.
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func validDate(value any, _ validation.Record) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	if _, err := ParseDate(s); err != nil {
		return errors.New("Invalid date format")
	}
	return nil
}

func timestamp(field string) validation.CheckFunc {
	return func(value any, _ validation.Record) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("%s must be an RFC 3339 timestamp", field)
		}
		return nil
	}
}

func wholeNumber(field string) validation.CheckFunc {
	return func(value any, _ validation.Record) error {
		f, ok := validation.Number(value)
		if !ok {
			return nil
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("%s must be a whole number", field)
		}
		return nil
	}
}

// Subtotal is price x qty computed exactly.
func Subtotal(price, qty float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty))
}

// Money converts a stored float amount into a decimal.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func asRecord(v any) (validation.Record, bool) {
	switch m := v.(type) {
	case validation.Record:
		return m, true
	case map[string]any:
		return validation.Record(m), true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []validation.Record:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}
