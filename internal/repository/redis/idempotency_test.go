package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutKeyStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewCheckoutKeyStore(client, 24*time.Hour)
	ctx := context.Background()

	_, found, err := store.Lookup(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remember(ctx, "buyer-1", "k1", "ord-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("idem:checkout:buyer-1:k1"))

	orderID, found, err := store.Lookup(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ord-1", orderID)
}

func TestCheckoutKeyStore_FirstOrderWins(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewCheckoutKeyStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "buyer-1", "k1", "ord-1"))
	require.NoError(t, store.Remember(ctx, "buyer-1", "k1", "ord-2"))

	orderID, _, err := store.Lookup(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
}

func TestCheckoutKeyStore_ScopedPerBuyer(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewCheckoutKeyStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "buyer-1", "k1", "ord-1"))

	_, found, err := store.Lookup(ctx, "buyer-2", "k1")
	require.NoError(t, err)
	assert.False(t, found)
}
