package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. It backs tests and local
// development.
type MemoryStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	docs  map[string]Document
	order []string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the store clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:         time.Now,
		collections: make(map[string]*memoryCollection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		s.collections[name] = c
	}
	return c
}

// Add stores data under a new id.
func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	doc := Document{ID: uuid.NewString(), Data: clean, CreatedAt: now, UpdatedAt: now}
	c := s.collection(collection)
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)
	return copyDocument(doc), nil
}

// Get returns the document with id.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDocument(doc), nil
}

// GetAll returns every document in insertion order.
func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection), nil
}

func (s *MemoryStore) snapshot(collection string) []Document {
	c, ok := s.collections[collection]
	if !ok {
		return []Document{}
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, copyDocument(c.docs[id]))
	}
	return out
}

// Update replaces the data of an existing document and refreshes UpdatedAt.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = clean
	doc.UpdatedAt = s.now().UTC()
	c.docs[id] = doc
	return copyDocument(doc), nil
}

// Delete removes the document. Missing ids are not an error.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query evaluates filters and options over the collection.
func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, opts QueryOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(filters, opts); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := s.snapshot(collection)
	s.mu.RUnlock()
	return applyQuery(docs, filters, opts), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyDocument(doc Document) Document {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = deepCopy(v)
	}
	doc.Data = data
	return doc
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = deepCopy(inner)
		}
		return out
	}
	return v
}
