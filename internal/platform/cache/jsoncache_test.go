package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type preview struct {
	StoreID int64   `json:"store_id"`
	Qty     float64 `json:"qty"`
}

func TestJSONCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewJSONCache(client, "papyrus:preview:", time.Minute)
	ctx := context.Background()

	var got preview
	hit, err := c.Get(ctx, "store:1", &got)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Set(ctx, "store:1", preview{StoreID: 1, Qty: 42}))
	hit, err = c.Get(ctx, "store:1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.InDelta(t, 42, got.Qty, 1e-9)

	require.NoError(t, c.Delete(ctx, "store:1"))
	hit, err = c.Get(ctx, "store:1", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestJSONCachePoisonedEntryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewJSONCache(client, "p:", 0)
	require.NoError(t, mr.Set("p:bad", "{not json"))

	var got preview
	hit, err := c.Get(context.Background(), "bad", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestJSONCacheNilClientIsNoop(t *testing.T) {
	var c *JSONCache
	var got preview
	hit, err := c.Get(context.Background(), "x", &got)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, c.Set(context.Background(), "x", got))
	require.NoError(t, c.Delete(context.Background(), "x"))
}
