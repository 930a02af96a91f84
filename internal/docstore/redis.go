package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each collection in one Redis hash keyed by document id.
// Timestamps come from the Redis server clock.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisEnvelope struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewRedisStore constructs a store over client. prefix namespaces every key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "glowdesk"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection string) string {
	return fmt.Sprintf("%s:docs:%s", s.prefix, collection)
}

func (s *RedisStore) serverTime(ctx context.Context) (time.Time, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("docstore/redis: time: %w", err)
	}
	return now.UTC(), nil
}

// Add stores data under a new id.
func (s *RedisStore) Add(ctx context.Context, collection string, data map[string]any) (Document, error) {
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	now, err := s.serverTime(ctx)
	if err != nil {
		return Document{}, err
	}
	doc := Document{ID: uuid.NewString(), Data: clean, CreatedAt: now, UpdatedAt: now}
	payload, err := encodeEnvelope(doc)
	if err != nil {
		return Document{}, err
	}
	ok, err := s.client.HSetNX(ctx, s.key(collection), doc.ID, payload).Result()
	if err != nil {
		return Document{}, fmt.Errorf("docstore/redis: add %s: %w", collection, err)
	}
	if !ok {
		return Document{}, fmt.Errorf("docstore/redis: add %s: %w", collection, ErrConflict)
	}
	return doc, nil
}

// Get returns the document with id.
func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	payload, err := s.client.HGet(ctx, s.key(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore/redis: get %s: %w", collection, err)
	}
	return decodeEnvelope(payload)
}

// GetAll returns every document ordered by creation time.
func (s *RedisStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	entries, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore/redis: get all %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(entries))
	for _, payload := range entries {
		doc, err := decodeEnvelope([]byte(payload))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sortByCreation(docs)
	return docs, nil
}

// Update replaces the data of an existing document. The hash field is
// watched so a concurrent writer aborts this update with ErrConflict.
func (s *RedisStore) Update(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	key := s.key(collection)
	var updated Document
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.HGet(ctx, key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		now, err := s.serverTime(ctx)
		if err != nil {
			return err
		}
		current.Data = clean
		current.UpdatedAt = now
		encoded, err := encodeEnvelope(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, encoded)
			return nil
		})
		if err != nil {
			return err
		}
		updated = current
		return nil
	}, key)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrNotFound):
		return Document{}, ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		return Document{}, fmt.Errorf("docstore/redis: update %s/%s: %w", collection, id, ErrConflict)
	default:
		return Document{}, fmt.Errorf("docstore/redis: update %s/%s: %w", collection, id, err)
	}
}

// Delete removes the document. Missing ids are not an error.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.HDel(ctx, s.key(collection), id).Err(); err != nil {
		return fmt.Errorf("docstore/redis: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query loads the collection and evaluates filters in process.
func (s *RedisStore) Query(ctx context.Context, collection string, filters []Filter, opts QueryOptions) ([]Document, error) {
	if err := validateQuery(filters, opts); err != nil {
		return nil, err
	}
	docs, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, filters, opts), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("docstore/redis: ping: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

func encodeEnvelope(doc Document) ([]byte, error) {
	payload, err := json.Marshal(redisEnvelope{ID: doc.ID, Data: doc.Data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
	if err != nil {
		return nil, fmt.Errorf("docstore/redis: encode: %w", err)
	}
	return payload, nil
}

func decodeEnvelope(payload []byte) (Document, error) {
	var env redisEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Document{}, fmt.Errorf("docstore/redis: decode: %w", err)
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	return Document{ID: env.ID, Data: env.Data, CreatedAt: env.CreatedAt.UTC(), UpdatedAt: env.UpdatedAt.UTC()}, nil
}
