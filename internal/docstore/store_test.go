package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func drivers() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, "test")
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, factory := range drivers() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			added, err := store.Add(ctx, "products", map[string]any{"name": "Rose Soap", "qty": 20, "id": "ignored"})
			require.NoError(t, err)
			require.NotEmpty(t, added.ID)
			require.NotEqual(t, "ignored", added.ID)
			require.Equal(t, added.CreatedAt, added.UpdatedAt)
			_, hasID := added.Data["id"]
			require.False(t, hasID)

			got, err := store.Get(ctx, "products", added.ID)
			require.NoError(t, err)
			require.Equal(t, added.ID, got.ID)
			require.Equal(t, "Rose Soap", got.Data["name"])
			require.Equal(t, float64(20), got.Data["qty"])
			require.True(t, added.CreatedAt.Equal(got.CreatedAt))

			_, err = store.Get(ctx, "products", "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Delete(ctx, "products", added.ID))
			require.NoError(t, store.Delete(ctx, "products", added.ID))
			_, err = store.Get(ctx, "products", added.ID)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	for name, factory := range drivers() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			added, err := store.Add(ctx, "freebies", map[string]any{"name": "Gift", "availableQty": 2})
			require.NoError(t, err)

			updated, err := store.Update(ctx, "freebies", added.ID, map[string]any{"name": "Gift", "availableQty": 1})
			require.NoError(t, err)
			require.Equal(t, float64(1), updated.Data["availableQty"])
			require.True(t, added.CreatedAt.Equal(updated.CreatedAt))
			require.False(t, updated.UpdatedAt.Before(added.UpdatedAt))

			_, err = store.Update(ctx, "freebies", "missing", map[string]any{"name": "x"})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreQuery(t *testing.T) {
	for name, factory := range drivers() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			seed := []map[string]any{
				{"name": "Aloe Gel", "qty": 3, "category": "Gels", "active": true, "soldAt": "2024-01-10T00:00:00Z"},
				{"name": "Rose Soap", "qty": 20, "category": "Soaps", "active": false, "soldAt": "2024-03-10T00:00:00Z"},
				{"name": "Neem Soap", "qty": 5, "category": "Soaps"},
				{"name": "Odd", "qty": "7"},
			}
			for _, data := range seed {
				_, err := store.Add(ctx, "products", data)
				require.NoError(t, err)
			}

			docs, err := store.Query(ctx, "products", []Filter{Where("qty", OpLte, 5)}, QueryOptions{OrderBy: "name"})
			require.NoError(t, err)
			require.Equal(t, []string{"Aloe Gel", "Neem Soap"}, names(docs))

			docs, err = store.Query(ctx, "products", []Filter{Where("category", OpEq, "Soaps")}, QueryOptions{OrderBy: "qty", Direction: Desc, Limit: 1})
			require.NoError(t, err)
			require.Equal(t, []string{"Rose Soap"}, names(docs))

			docs, err = store.Query(ctx, "products", []Filter{Where("active", OpEq, true)}, QueryOptions{})
			require.NoError(t, err)
			require.Equal(t, []string{"Aloe Gel"}, names(docs))

			docs, err = store.Query(ctx, "products", []Filter{Where("active", OpGt, false)}, QueryOptions{})
			require.NoError(t, err)
			require.Empty(t, docs)

			from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			docs, err = store.Query(ctx, "products", []Filter{Where("soldAt", OpGte, from)}, QueryOptions{})
			require.NoError(t, err)
			require.Equal(t, []string{"Rose Soap"}, names(docs))

			docs, err = store.Query(ctx, "products", []Filter{Where("category", OpNe, "Soaps")}, QueryOptions{OrderBy: "name"})
			require.NoError(t, err)
			require.Equal(t, []string{"Aloe Gel"}, names(docs))

			_, err = store.Query(ctx, "products", []Filter{{Field: "qty", Op: "~", Value: 1}}, QueryOptions{})
			require.True(t, errors.Is(err, ErrInvalidQuery))
		})
	}
}

func TestStoreGetAllOrder(t *testing.T) {
	for name, factory := range drivers() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			for _, n := range []string{"first", "second", "third"} {
				_, err := store.Add(ctx, "customers", map[string]any{"name": n})
				require.NoError(t, err)
				time.Sleep(2 * time.Millisecond)
			}
			docs, err := store.GetAll(ctx, "customers")
			require.NoError(t, err)
			require.Len(t, docs, 3)
			for i := 1; i < len(docs); i++ {
				require.False(t, docs[i].CreatedAt.Before(docs[i-1].CreatedAt))
			}

			empty, err := store.GetAll(ctx, "nothing")
			require.NoError(t, err)
			require.Empty(t, empty)
		})
	}
}

func TestMemoryStoreClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))

	added, err := store.Add(ctx, "customers", map[string]any{"firstName": "Asha"})
	require.NoError(t, err)
	require.Equal(t, now, added.CreatedAt)

	now = now.Add(time.Hour)
	updated, err := store.Update(ctx, "customers", added.ID, map[string]any{"firstName": "Asha", "lastName": "Rao"})
	require.NoError(t, err)
	require.Equal(t, added.CreatedAt, updated.CreatedAt)
	require.Equal(t, now, updated.UpdatedAt)

	docs, err := store.Query(ctx, "customers", []Filter{Where(FieldCreatedAt, OpLt, now)}, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	data := map[string]any{"blend": []any{"p1"}}
	added, err := store.Add(ctx, "freebies", data)
	require.NoError(t, err)

	data["blend"] = []any{"changed"}
	added.Data["blend"].([]any)[0] = "mutated"

	got, err := store.Get(ctx, "freebies", added.ID)
	require.NoError(t, err)
	require.Equal(t, []any{"p1"}, got.Data["blend"])
}

func TestRedisStoreServerClock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	fixed := time.Date(2023, 12, 24, 18, 30, 0, 0, time.UTC)
	mr.SetTime(fixed)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client, "clock")

	added, err := store.Add(ctx, "purchases", map[string]any{"totalAmount": 10})
	require.NoError(t, err)
	require.True(t, fixed.Equal(added.CreatedAt))
	require.True(t, mr.Exists("clock:docs:purchases"))
}

func names(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data["name"].(string))
	}
	return out
}
