package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildSelectFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, args, err := buildSelect("purchases", []Filter{
		Where("customerId", OpEq, "c1"),
		Where("totalAmount", OpGte, 100),
		Where("purchaseDate", OpGte, from),
	}, QueryOptions{OrderBy: "purchaseDate", Direction: Desc, Limit: 10})
	require.NoError(t, err)

	require.Contains(t, sql, "collection = $1")
	require.Contains(t, sql, "(jsonb_typeof(data->$2) = 'string' AND data->$2 = $3::jsonb)")
	require.Contains(t, sql, "(jsonb_typeof(data->$4) = 'number' AND data->$4 >= $5::jsonb)")
	require.Contains(t, sql, "docstore_timestamptz(data->>$6) >= $7::timestamptz")
	require.Contains(t, sql, "ORDER BY data->$8 DESC")
	require.Contains(t, sql, "LIMIT $9")
	require.Equal(t, []any{"purchases", "customerId", `"c1"`, "totalAmount", "100", "purchaseDate", from, "purchaseDate", 10}, args)
}

func TestBuildSelectMetadataAndDefaults(t *testing.T) {
	sql, args, err := buildSelect("customers", nil, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, "SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 ORDER BY created_at ASC, id ASC", sql)
	require.Equal(t, []any{"customers"}, args)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sql, _, err = buildSelect("customers", []Filter{Where(FieldCreatedAt, OpLt, at)}, QueryOptions{OrderBy: FieldCreatedAt, Direction: Desc})
	require.NoError(t, err)
	require.Contains(t, sql, "created_at < $2::timestamptz")
	require.Contains(t, sql, "ORDER BY created_at DESC, id DESC")
}

func TestBuildSelectEqualityOnlyKinds(t *testing.T) {
	sql, _, err := buildSelect("customers", []Filter{Where("forOwnConsumption", OpLt, true)}, QueryOptions{})
	require.NoError(t, err)
	require.Contains(t, sql, "AND FALSE")

	sql, _, err = buildSelect("customers", []Filter{Where("email", OpNe, nil)}, QueryOptions{})
	require.NoError(t, err)
	require.Contains(t, sql, "data->$2 <> 'null'::jsonb")

	_, _, err = buildSelect("customers", []Filter{Where("tags", OpEq, []string{"a"})}, QueryOptions{})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, _, err = buildSelect("customers", nil, QueryOptions{Direction: "sideways"})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBuildSelectGuardsTimestampCast(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sql, args, err := buildSelect("customers", []Filter{Where("dob", OpLt, at)}, QueryOptions{})
	require.NoError(t, err)

	require.Contains(t, sql, "(CASE WHEN jsonb_typeof(data->$2) = 'string' AND data->>$2 ~ '"+timestampShape+"' THEN docstore_timestamptz(data->>$2) < $3::timestamptz ELSE FALSE END)")
	require.NotContains(t, sql, "(data->>$2)::timestamptz")
	require.Equal(t, []any{"customers", "dob", at}, args)
	require.Contains(t, documentsDDL, "EXCEPTION WHEN others THEN")
}
