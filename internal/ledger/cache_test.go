package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *StatementCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatementCache(client, time.Minute)
}

func TestStatementCacheFetchPopulatesOnce(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	key, err := cache.Key(ctx, 1)
	require.NoError(t, err)

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return map[string]string{"value": "fresh"}, nil
	}

	var first, second map[string]string
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, loads)
	require.Equal(t, first, second)
}

func TestStatementCacheBumpRotatesKey(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	before, err := cache.Key(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx, 1))

	after, err := cache.Key(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	// Other customers keep their keys.
	otherBefore, err := cache.Key(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx, 1))
	otherAfter, err := cache.Key(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, otherBefore, otherAfter)
}

func TestStatementServedFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.addCustomer(1)
	repo.addInvoice(1, "INV-00001", time.Now(), decimal.RequireFromString("1000"), decimal.Zero)
	svc := NewService(repo, newTestCache(t), nil, nil)

	stmt, err := svc.Statement(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stmt.Lines, 1)

	// A write that bypasses the service is invisible until the cache
	// is invalidated.
	repo.addInvoice(1, "INV-00002", time.Now(), decimal.RequireFromString("500"), decimal.Zero)
	stmt, err = svc.Statement(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stmt.Lines, 1)

	svc.InvalidateStatement(ctx, 1)
	stmt, err = svc.Statement(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stmt.Lines, 2)
}

func TestNilCacheIsPassthrough(t *testing.T) {
	ctx := context.Background()
	var cache *StatementCache

	key, err := cache.Key(ctx, 9)
	require.NoError(t, err)

	var out map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return map[string]int{"n": 1}, nil
	}))
	require.Equal(t, map[string]int{"n": 1}, out)
	require.NoError(t, cache.Bump(ctx, 9))
}
