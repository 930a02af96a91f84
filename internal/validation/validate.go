package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("validation failed")

// Result is the outcome of validating one record.
type Result struct {
	Valid  bool
	Errors map[string]string
}

// Err returns the result as an *Error, or nil when the record is valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Fields: r.Errors}
}

// Error carries the per-field messages of a failed validation.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalid) match.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// FieldError builds an *Error for a single field.
func FieldError(field, message string) *Error {
	return &Error{Fields: map[string]string{field: message}}
}

// Validate evaluates rec against every field of schema.
func Validate(rec Record, schema Schema) Result {
	res := Result{Valid: true, Errors: map[string]string{}}
	for _, f := range schema.Fields {
		if msg, ok := validateField(f, rec); !ok {
			res.Valid = false
			res.Errors[f.Name] = msg
		}
	}
	return res
}

func validateField(f Field, rec Record) (string, bool) {
	value, present := rec[f.Name]
	if !present || IsEmpty(value) {
		if f.Required || (f.RequiredWhen != nil && f.RequiredWhen(rec)) {
			return fmt.Sprintf("%s is required", f.Name), false
		}
		return "", true
	}

	rules := make([]Rule, len(f.Rules))
	copy(rules, f.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].stage() < rules[j].stage() })

	msg, ok := "", true
	for _, rule := range rules {
		if m, passed := rule.check(f.Name, value, rec); !passed {
			msg, ok = m, false
		}
	}
	return msg, ok
}

// IsEmpty reports whether v counts as absent: nil or the empty string.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Present reports whether rec holds a non-empty value for field.
func Present(rec Record, field string) bool {
	v, ok := rec[field]
	return ok && !IsEmpty(v)
}
