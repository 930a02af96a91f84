package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/platform/db"
)

// OpenStore builds the document store selected by STORE_DRIVER. The redis
// driver shares client; the postgres driver opens and migrates its own pool,
// which Close on the returned store releases.
func OpenStore(ctx context.Context, cfg *Config, client *redis.Client, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return docstore.NewMemoryStore(), nil
	case StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("app: redis store requires a redis client")
		}
		return docstore.NewRedisStore(client, cfg.StorePrefix), nil
	case StorePostgres:
		pool, err := db.Open(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		store := docstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
}
