// Package docstore is the client contract for the external document store
// along with the memory, Redis and Postgres drivers that implement it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document id does not exist in a collection.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a concurrent writer modified the same document.
	ErrConflict = errors.New("docstore: concurrent modification")
	// ErrInvalidQuery is returned for unknown operators or directions.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// Metadata keys maintained by the store. Filters and ordering may reference them.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is one stored record.
type Document struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Op is a comparison operator used in filters.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Direction orders query results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// QueryOptions controls ordering and truncation of query results.
type QueryOptions struct {
	OrderBy   string
	Direction Direction
	Limit     int
}

// Store is implemented by every driver. Timestamps come from the store's own
// clock and ids are assigned by the store.
type Store interface {
	Add(ctx context.Context, collection string, data map[string]any) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Update(ctx context.Context, collection, id string, data map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters []Filter, opts QueryOptions) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

func validateQuery(filters []Filter, opts QueryOptions) error {
	for _, f := range filters {
		switch f.Op {
		case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
		if f.Field == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidQuery)
		}
	}
	switch opts.Direction {
	case "", Asc, Desc:
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidQuery, opts.Direction)
	}
	if opts.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}
