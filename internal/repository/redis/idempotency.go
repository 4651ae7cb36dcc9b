package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sofi161/martapp/internal/repository"
)

const checkoutKeyPrefix = "idem:checkout:"

// CheckoutKeyStore implements repository.CheckoutKeyStore using Redis.
// The first order recorded for a (buyer, key) pair wins.
type CheckoutKeyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckoutKeyStore(client *redis.Client, ttl time.Duration) *CheckoutKeyStore {
	return &CheckoutKeyStore{client: client, ttl: ttl}
}

var _ repository.CheckoutKeyStore = (*CheckoutKeyStore)(nil)

func checkoutKey(buyerID, key string) string {
	return checkoutKeyPrefix + buyerID + ":" + key
}

func (s *CheckoutKeyStore) Lookup(ctx context.Context, buyerID, key string) (string, bool, error) {
	orderID, err := s.client.Get(ctx, checkoutKey(buyerID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get checkout key: %w", err)
	}
	return orderID, true, nil
}

func (s *CheckoutKeyStore) Remember(ctx context.Context, buyerID, key, orderID string) error {
	if err := s.client.SetNX(ctx, checkoutKey(buyerID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set checkout key: %w", err)
	}
	return nil
}
