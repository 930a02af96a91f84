package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowdesk/glowdesk/internal/platform/db"
)

// documentsDDL creates the single table every collection lives in.
const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_created_idx ON documents (collection, created_at, id);
CREATE INDEX IF NOT EXISTS documents_data_gin_idx ON documents USING GIN (data jsonb_path_ops);
CREATE OR REPLACE FUNCTION docstore_timestamptz(value TEXT) RETURNS TIMESTAMPTZ
LANGUAGE plpgsql STABLE AS $$
BEGIN
	RETURN value::timestamptz;
EXCEPTION WHEN others THEN
	RETURN NULL;
END;
$$;
`

// timestampShape pre-filters string fields before the guarded cast so the
// exception path only runs for values that look like RFC 3339 timestamps.
const timestampShape = "^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}"

// PostgresStore keeps documents as JSONB rows. Timestamps come from now() on
// the server and each operation is a single statement.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// migrateLockKey serialises Migrate across processes starting together.
const migrateLockKey = 0x676c6f77

// Migrate creates the documents table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := db.WithAdvisoryLock(ctx, s.pool, migrateLockKey, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, documentsDDL)
		return err
	})
	if err != nil {
		return fmt.Errorf("docstore/postgres: migrate: %w", err)
	}
	return nil
}

// Add stores data under a new id.
func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (Document, error) {
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return Document{}, fmt.Errorf("docstore/postgres: encode: %w", err)
	}
	doc := Document{ID: uuid.NewString(), Data: clean}
	row := s.pool.QueryRow(ctx, `INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, now(), now())
RETURNING created_at, updated_at`, collection, doc.ID, string(raw))
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Document{}, fmt.Errorf("docstore/postgres: add %s: %w", collection, ErrConflict)
		}
		return Document{}, fmt.Errorf("docstore/postgres: add %s: %w", collection, err)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

// Get returns the document with id.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore/postgres: get %s: %w", collection, err)
	}
	return doc, nil
}

// GetAll returns every document ordered by creation time.
func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, collection, nil, QueryOptions{})
}

// Update replaces the data of an existing document and refreshes updated_at.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	clean, err := normalizeData(data)
	if err != nil {
		return Document{}, err
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return Document{}, fmt.Errorf("docstore/postgres: encode: %w", err)
	}
	row := s.pool.QueryRow(ctx, `UPDATE documents SET data = $3::jsonb, updated_at = now()
WHERE collection = $1 AND id = $2
RETURNING id, data, created_at, updated_at`, collection, id, string(raw))
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore/postgres: update %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Delete removes the document. Missing ids are not an error.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("docstore/postgres: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query translates filters into JSONB comparisons.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters []Filter, opts QueryOptions) ([]Document, error) {
	sql, args, err := buildSelect(collection, filters, opts)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore/postgres: query %s: %w", collection, err)
	}
	defer rows.Close()
	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore/postgres: scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore/postgres: query %s: %w", collection, err)
	}
	return docs, nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("docstore/postgres: ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc Document
		raw []byte
	)
	if err := row.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return Document{}, fmt.Errorf("decode data: %w", err)
		}
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

var metadataColumns = map[string]string{
	FieldID:        "id",
	FieldCreatedAt: "created_at",
	FieldUpdatedAt: "updated_at",
}

// buildSelect renders a parameterised SELECT for the given query. Each data
// filter also pins the JSON type so mismatched kinds never match.
func buildSelect(collection string, filters []Filter, opts QueryOptions) (string, []any, error) {
	if err := validateQuery(filters, opts); err != nil {
		return "", nil, err
	}
	args := []any{collection}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var b strings.Builder
	b.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1")
	for _, f := range filters {
		clause, err := filterClause(f, next)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" AND ")
		b.WriteString(clause)
	}

	if opts.OrderBy != "" {
		dir := "ASC"
		if opts.Direction == Desc {
			dir = "DESC"
		}
		if col, ok := metadataColumns[opts.OrderBy]; ok {
			fmt.Fprintf(&b, " ORDER BY %s %s, id %s", col, dir, dir)
		} else {
			field := next(opts.OrderBy)
			fmt.Fprintf(&b, " AND jsonb_typeof(data->%s) IS DISTINCT FROM 'null' AND data ? %s", field, field)
			fmt.Fprintf(&b, " ORDER BY data->%s %s, created_at ASC, id ASC", field, dir)
		}
	} else {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", next(opts.Limit))
	}
	return b.String(), args, nil
}

func filterClause(f Filter, next func(any) string) (string, error) {
	op := string(f.Op)
	if op == string(OpNe) {
		op = "<>"
	}

	if col, ok := metadataColumns[f.Field]; ok {
		switch v := f.Value.(type) {
		case time.Time:
			if col == "id" {
				return "FALSE", nil
			}
			return fmt.Sprintf("%s %s %s::timestamptz", col, op, next(v.UTC())), nil
		case string:
			if col == "id" {
				return fmt.Sprintf("id %s %s", op, next(v)), nil
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return "FALSE", nil
			}
			return fmt.Sprintf("%s %s %s::timestamptz", col, op, next(t.UTC())), nil
		}
		return "FALSE", nil
	}

	field := next(f.Field)
	switch v := f.Value.(type) {
	case nil:
		switch f.Op {
		case OpEq:
			return fmt.Sprintf("data->%s = 'null'::jsonb", field), nil
		case OpNe:
			return fmt.Sprintf("data->%s <> 'null'::jsonb", field), nil
		}
		return "FALSE", nil
	case time.Time:
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(data->%s) = 'string' AND data->>%s ~ '%s' THEN docstore_timestamptz(data->>%s) %s %s::timestamptz ELSE FALSE END)",
			field, field, timestampShape, field, op, next(v.UTC())), nil
	case bool:
		if f.Op != OpEq && f.Op != OpNe {
			return "FALSE", nil
		}
		return fmt.Sprintf("(jsonb_typeof(data->%s) = 'boolean' AND data->%s %s %s::jsonb)", field, field, op, next(jsonLiteral(v))), nil
	case string:
		return fmt.Sprintf("(jsonb_typeof(data->%s) = 'string' AND data->%s %s %s::jsonb)", field, field, op, next(jsonLiteral(v))), nil
	}
	if n, ok := number(f.Value); ok {
		return fmt.Sprintf("(jsonb_typeof(data->%s) = 'number' AND data->%s %s %s::jsonb)", field, field, op, next(jsonLiteral(n))), nil
	}
	return "", fmt.Errorf("%w: unsupported value %T for %s", ErrInvalidQuery, f.Value, f.Field)
}

func jsonLiteral(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
