package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"karatpos/internal/domain"
)

const (
	ratesKey      = "karatpos:rates"
	cartKeyPrefix = "karatpos:cart:"
)

// RedisCache serves both the rate cache and the cart store from one client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetRates(ctx context.Context) (*domain.RateTable, bool, error) {
	var rates domain.RateTable
	ok, err := c.getJSON(ctx, ratesKey, &rates)
	if !ok || err != nil {
		return nil, false, err
	}
	return &rates, true, nil
}

func (c *RedisCache) SetRates(ctx context.Context, rates *domain.RateTable, ttl time.Duration) error {
	if rates == nil {
		return nil
	}
	return c.setJSON(ctx, ratesKey, rates, ttl)
}

func (c *RedisCache) InvalidateRates(ctx context.Context) error {
	return c.client.Del(ctx, ratesKey).Err()
}

func (c *RedisCache) GetCart(ctx context.Context, terminalID string) (*domain.Cart, bool, error) {
	var cart domain.Cart
	ok, err := c.getJSON(ctx, cartKeyPrefix+terminalID, &cart)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cart, true, nil
}

func (c *RedisCache) SaveCart(ctx context.Context, cart domain.Cart, ttl time.Duration) error {
	return c.setJSON(ctx, cartKeyPrefix+cart.TerminalID, cart, ttl)
}

func (c *RedisCache) ClearCart(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, cartKeyPrefix+terminalID).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
