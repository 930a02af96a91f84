// Package validation evaluates records against declarative field schemas.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Record is the field-name to value view of an entity that rules are evaluated on.
type Record map[string]any

// Kind names the value types a Type rule can demand.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Field binds a set of rules to one record field.
type Field struct {
	Name     string
	Required bool
	// RequiredWhen makes the field conditionally required based on the rest of the record.
	RequiredWhen func(rec Record) bool
	Rules        []Rule
}

// Schema is an ordered list of field rules.
type Schema struct {
	Name   string
	Fields []Field
}

// Field returns the rules declared for name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Rule is one check applied to a present value. The set of rules is closed:
// only the constructors in this package produce them.
type Rule interface {
	stage() stage
	check(field string, value any, rec Record) (string, bool)
}

// stage fixes evaluation order independent of declaration order.
type stage int

const (
	stageType stage = iota
	stageMinLength
	stageMaxLength
	stageMin
	stageMax
	stagePattern
	stageTag
	stageCustom
)

type typeRule struct{ kind Kind }

// Type requires the value to be of the given kind.
func Type(kind Kind) Rule { return typeRule{kind: kind} }

func (r typeRule) stage() stage { return stageType }

func (r typeRule) check(field string, value any, _ Record) (string, bool) {
	if isKind(value, r.kind) {
		return "", true
	}
	if r.kind == KindArray {
		return fmt.Sprintf("%s must be an array", field), false
	}
	return fmt.Sprintf("%s must be a %s", field, r.kind), false
}

type minLengthRule struct{ n int }

// MinLength sets an inclusive lower bound on string or sequence length.
func MinLength(n int) Rule { return minLengthRule{n: n} }

func (r minLengthRule) stage() stage { return stageMinLength }

func (r minLengthRule) check(field string, value any, _ Record) (string, bool) {
	n, ok := length(value)
	if !ok || n >= r.n {
		return "", true
	}
	return fmt.Sprintf("%s must be at least %d characters", field, r.n), false
}

type maxLengthRule struct{ n int }

// MaxLength sets an inclusive upper bound on string or sequence length.
func MaxLength(n int) Rule { return maxLengthRule{n: n} }

func (r maxLengthRule) stage() stage { return stageMaxLength }

func (r maxLengthRule) check(field string, value any, _ Record) (string, bool) {
	n, ok := length(value)
	if !ok || n <= r.n {
		return "", true
	}
	return fmt.Sprintf("%s cannot exceed %d characters", field, r.n), false
}

type minRule struct{ x float64 }

// Min sets an inclusive lower bound on numeric values.
func Min(x float64) Rule { return minRule{x: x} }

func (r minRule) stage() stage { return stageMin }

func (r minRule) check(field string, value any, _ Record) (string, bool) {
	f, ok := Number(value)
	if !ok || f >= r.x {
		return "", true
	}
	return fmt.Sprintf("%s must be at least %s", field, formatNumber(r.x)), false
}

type maxRule struct{ x float64 }

// Max sets an inclusive upper bound on numeric values.
func Max(x float64) Rule { return maxRule{x: x} }

func (r maxRule) stage() stage { return stageMax }

func (r maxRule) check(field string, value any, _ Record) (string, bool) {
	f, ok := Number(value)
	if !ok || f <= r.x {
		return "", true
	}
	return fmt.Sprintf("%s cannot exceed %s", field, formatNumber(r.x)), false
}

type patternRule struct {
	expr    *regexp.Regexp
	message string
}

// Pattern tests string values against expr. message replaces the generic
// failure text when non-empty.
func Pattern(expr *regexp.Regexp, message string) Rule {
	return patternRule{expr: expr, message: message}
}

func (r patternRule) stage() stage { return stagePattern }

func (r patternRule) check(field string, value any, _ Record) (string, bool) {
	s, ok := value.(string)
	if !ok || r.expr.MatchString(s) {
		return "", true
	}
	if r.message != "" {
		return r.message, false
	}
	return fmt.Sprintf("%s format is invalid", field), false
}

var tagValidator = validator.New()

type tagRule struct {
	tag     string
	message string
}

// Tag checks the value with a go-playground/validator tag such as "email".
func Tag(tag, message string) Rule { return tagRule{tag: tag, message: message} }

func (r tagRule) stage() stage { return stageTag }

func (r tagRule) check(field string, value any, _ Record) (string, bool) {
	if err := tagValidator.Var(value, r.tag); err == nil {
		return "", true
	}
	if r.message != "" {
		return r.message, false
	}
	return fmt.Sprintf("%s is invalid", field), false
}

// CheckFunc is a custom predicate. A nil error passes; the text of a non-nil
// error becomes the field message.
type CheckFunc func(value any, rec Record) error

type customRule struct{ fn CheckFunc }

// Custom wraps fn as a rule.
func Custom(fn CheckFunc) Rule { return customRule{fn: fn} }

func (r customRule) stage() stage { return stageCustom }

func (r customRule) check(field string, value any, rec Record) (string, bool) {
	if r.fn == nil {
		return "", true
	}
	err := r.fn(value, rec)
	if err == nil {
		return "", true
	}
	if msg := err.Error(); msg != "" {
		return msg, false
	}
	return fmt.Sprintf("%s is invalid", field), false
}

// Number reports the float64 value of any Go numeric type.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isKind(v any, kind Kind) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		_, ok := Number(v)
		return ok
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindObject:
		if _, ok := v.(Record); ok {
			return true
		}
		rv := reflect.ValueOf(v)
		return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct ||
			(rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct)
	case KindArray:
		return isSequence(v)
	}
	return false
}

func isSequence(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if isSequence(v) {
		return reflect.ValueOf(v).Len(), true
	}
	return 0, false
}

func formatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
