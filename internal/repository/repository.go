// Package repository provides the generic validated CRUD layer shared by
// every entity service.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// ErrNotFound marks an absent record. It is never used for store failures.
var ErrNotFound = errors.New("record not found")

// Meta holds the store-assigned fields every entity embeds.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChangeHook runs after every successful write to a collection.
type ChangeHook func(ctx context.Context, collection string)

// Repository validates and persists entities of type T in one collection.
// T is expected to embed Meta.
type Repository[T any] struct {
	store      docstore.Store
	collection string
	schema     validation.Schema
	hooks      []ChangeHook
}

// New constructs a repository.
func New[T any](store docstore.Store, collection string, schema validation.Schema) *Repository[T] {
	return &Repository[T]{store: store, collection: collection, schema: schema}
}

// OnChange registers a hook fired after writes. Register hooks before use.
func (r *Repository[T]) OnChange(hook ChangeHook) {
	if hook != nil {
		r.hooks = append(r.hooks, hook)
	}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.collection
}

// Validate checks entity against the schema without touching the store.
func (r *Repository[T]) Validate(entity T) validation.Result {
	rec, err := ToRecord(entity)
	if err != nil {
		return validation.Result{Errors: map[string]string{"record": err.Error()}}
	}
	return validation.Validate(rec, r.schema)
}

// Create validates and stores entity, returning it with id and timestamps.
func (r *Repository[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	rec, err := ToRecord(entity)
	if err != nil {
		return zero, fmt.Errorf("repository: create %s: %w", r.collection, err)
	}
	if err := validation.Validate(rec, r.schema).Err(); err != nil {
		return zero, err
	}
	doc, err := r.store.Add(ctx, r.collection, rec)
	if err != nil {
		return zero, fmt.Errorf("repository: create %s: %w", r.collection, err)
	}
	r.changed(ctx)
	return r.decode(doc)
}

// Get returns the entity with id or ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.store.Get(ctx, r.collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("repository: get %s/%s: %w", r.collection, id, err)
	}
	return r.decode(doc)
}

// All returns every entity in store order.
func (r *Repository[T]) All(ctx context.Context) ([]T, error) {
	docs, err := r.store.GetAll(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("repository: list %s: %w", r.collection, err)
	}
	return r.decodeAll(docs)
}

// Update re-validates the full replacement and stores it. Only UpdatedAt is
// refreshed.
func (r *Repository[T]) Update(ctx context.Context, id string, entity T) (T, error) {
	var zero T
	rec, err := ToRecord(entity)
	if err != nil {
		return zero, fmt.Errorf("repository: update %s/%s: %w", r.collection, id, err)
	}
	if err := validation.Validate(rec, r.schema).Err(); err != nil {
		return zero, err
	}
	doc, err := r.store.Update(ctx, r.collection, id, rec)
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("repository: update %s/%s: %w", r.collection, id, err)
	}
	r.changed(ctx)
	return r.decode(doc)
}

// Delete removes the entity. Deleting an absent id succeeds.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("repository: delete %s/%s: %w", r.collection, id, err)
	}
	r.changed(ctx)
	return nil
}

// Query returns entities matching every filter.
func (r *Repository[T]) Query(ctx context.Context, filters []docstore.Filter, opts docstore.QueryOptions) ([]T, error) {
	docs, err := r.store.Query(ctx, r.collection, filters, opts)
	if err != nil {
		return nil, fmt.Errorf("repository: query %s: %w", r.collection, err)
	}
	return r.decodeAll(docs)
}

func (r *Repository[T]) changed(ctx context.Context) {
	for _, hook := range r.hooks {
		hook(ctx, r.collection)
	}
}

func (r *Repository[T]) decodeAll(docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *Repository[T]) decode(doc docstore.Document) (T, error) {
	entity, err := FromDocument[T](doc)
	if err != nil {
		return entity, fmt.Errorf("repository: decode %s/%s: %w", r.collection, doc.ID, err)
	}
	return entity, nil
}

// ToRecord converts entity into its validation/storage record: its JSON
// object form without the metadata keys.
func ToRecord(entity any) (validation.Record, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	rec := validation.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	delete(rec, docstore.FieldID)
	delete(rec, docstore.FieldCreatedAt)
	delete(rec, docstore.FieldUpdatedAt)
	return rec, nil
}

// FromDocument rebuilds T from a stored document.
func FromDocument[T any](doc docstore.Document) (T, error) {
	var entity T
	payload := make(map[string]any, len(doc.Data)+3)
	for k, v := range doc.Data {
		payload[k] = v
	}
	payload[docstore.FieldID] = doc.ID
	payload[docstore.FieldCreatedAt] = doc.CreatedAt
	payload[docstore.FieldUpdatedAt] = doc.UpdatedAt
	raw, err := json.Marshal(payload)
	if err != nil {
		return entity, err
	}
	err = json.Unmarshal(raw, &entity)
	return entity, err
}
