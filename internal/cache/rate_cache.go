// Package cache holds the short-lived carrier rate-quote cache. Carrier
// rating calls are slow and rates barely move within minutes, so quote
// endpoints read through this cache; label purchases never do.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"solebid/internal/domain"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("rate cache miss")

// RateCache stores quoted rate lists keyed by shipment payload
type RateCache interface {
	Get(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error)
	Set(ctx context.Context, details *domain.ShipmentDetails, rates []domain.CarrierRate) error
}

type redisRateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRateCache creates a rate cache backed by Redis
func NewRedisRateCache(client *redis.Client, ttl time.Duration) RateCache {
	return &redisRateCache{client: client, ttl: ttl}
}

func (r *redisRateCache) Get(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	key, err := cacheKey(details)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rates []domain.CarrierRate
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("unmarshal cached rates failed: %w", err)
	}

	return rates, nil
}

func (r *redisRateCache) Set(ctx context.Context, details *domain.ShipmentDetails, rates []domain.CarrierRate) error {
	key, err := cacheKey(details)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("marshal rates failed: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// cacheKey hashes the full shipment payload so any change in addresses,
// weight, or dimensions produces a distinct key.
func cacheKey(details *domain.ShipmentDetails) (string, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshal shipment details failed: %w", err)
	}

	sum := sha256.Sum256(payload)
	return "rates:" + hex.EncodeToString(sum[:]), nil
}
