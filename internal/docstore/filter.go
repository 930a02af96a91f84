package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// normalizeData gives every driver the same value shapes: JSON numbers become
// float64, timestamps become RFC 3339 strings and nothing aliases the caller.
func normalizeData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode data: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: decode data: %w", err)
	}
	for _, key := range []string{FieldID, FieldCreatedAt, FieldUpdatedAt} {
		delete(out, key)
	}
	return out, nil
}

func fieldValue(doc Document, field string) (any, bool) {
	switch field {
	case FieldID:
		return doc.ID, true
	case FieldCreatedAt:
		return doc.CreatedAt, true
	case FieldUpdatedAt:
		return doc.UpdatedAt, true
	}
	v, ok := doc.Data[field]
	return v, ok
}

func matchAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		got, ok := fieldValue(doc, f.Field)
		if !ok || !evaluate(got, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func evaluate(got any, op Op, want any) bool {
	c, ordered, ok := compareValues(got, want)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	}
	if !ordered {
		return false
	}
	switch op {
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

// compareValues orders got relative to want. ordered is false for kinds that
// only support equality; ok is false when the kinds cannot be compared at all.
func compareValues(got, want any) (c int, ordered bool, ok bool) {
	if want == nil {
		if got == nil {
			return 0, false, true
		}
		return 1, false, true
	}
	switch w := want.(type) {
	case time.Time:
		g, ok := asTime(got)
		if !ok {
			return 0, false, false
		}
		return g.Compare(w), true, true
	case string:
		g, ok := got.(string)
		if !ok {
			return 0, false, false
		}
		return strings.Compare(g, w), true, true
	case bool:
		g, ok := got.(bool)
		if !ok {
			return 0, false, false
		}
		if g == w {
			return 0, false, true
		}
		return 1, false, true
	}
	wf, ok := number(want)
	if !ok {
		return 0, false, false
	}
	gf, ok := number(got)
	if !ok {
		return 0, false, false
	}
	switch {
	case gf < wf:
		return -1, true, true
	case gf > wf:
		return 1, true, true
	}
	return 0, true, true
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sortByCreation is the store order used by GetAll and unordered queries.
func sortByCreation(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// applyQuery filters, orders and truncates docs in process. docs is expected
// in store order already. Documents lacking the OrderBy field are dropped.
func applyQuery(docs []Document, filters []Filter, opts QueryOptions) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if !matchAll(doc, filters) {
			continue
		}
		if opts.OrderBy != "" {
			if v, ok := fieldValue(doc, opts.OrderBy); !ok || v == nil {
				continue
			}
		}
		out = append(out, doc)
	}
	if opts.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := fieldValue(out[i], opts.OrderBy)
			b, _ := fieldValue(out[j], opts.OrderBy)
			if opts.Direction == Desc {
				return lessValue(b, a)
			}
			return lessValue(a, b)
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// lessValue orders mixed kinds by kind rank first, then by value.
func lessValue(a, b any) bool {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra < rb
	}
	c, ordered, ok := compareValues(a, b)
	if !ok || !ordered {
		if ga, ok := a.(bool); ok {
			gb, _ := b.(bool)
			return !ga && gb
		}
		return false
	}
	return c < 0
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		if _, ok := asTime(v); ok {
			return 3
		}
		return 4
	case time.Time:
		return 3
	}
	if _, ok := number(v); ok {
		return 2
	}
	return 5
}
