package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofi161/martapp/internal/domain"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func sampleCart(t *testing.T) domain.Cart {
	t.Helper()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c, err := domain.AddItem(domain.NewCart("user-1"), domain.ProductSnapshot{
		ProductID: "p1", SellerID: "s1", Title: "Lamp", UnitPrice: 1990,
	}, 2, now)
	require.NoError(t, err)
	c, err = domain.AddItem(c, domain.ProductSnapshot{ProductID: "p2", SellerID: "s2", Title: "Mug", UnitPrice: 500}, 1, now)
	require.NoError(t, err)
	return c
}

func TestCartStore_SaveAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client, 24*time.Hour)
	ctx := context.Background()
	cart := sampleCart(t)

	require.NoError(t, store.Save(ctx, cart))
	assert.True(t, mr.Exists("cart:user-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:user-1"))

	got, found, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cart, got)
	assert.Equal(t, "p1", got.Lines()[0].ProductID)
}

func TestCartStore_GetMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewCartStore(client, time.Hour)

	_, found, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCartStore_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart(t)))
	mr.FastForward(2 * time.Hour)

	_, found, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCartStore_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart(t)))
	require.NoError(t, store.Delete(ctx, "user-1"))
	assert.False(t, mr.Exists("cart:user-1"))

	require.NoError(t, store.Delete(ctx, "user-1"))
}

func TestCartStore_CorruptPayload(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client, time.Hour)
	require.NoError(t, mr.Set("cart:user-1", "{broken"))

	_, _, err := store.Get(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestCartStore_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCartStore(client, time.Hour)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	_, _, err := store.Get(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), sampleCart(t)))
}
