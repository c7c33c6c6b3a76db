package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgehound/edgehound/internal/domain"
)

// EstimateCache implements domain.EstimateCache using JSON-serialized
// estimates under a per-ticker key. A hit means the contract was forecast
// recently enough that the orchestrator skips the LLM for it this cycle.
//
// Key schema: estimate:{ticker}
type EstimateCache struct {
	rdb *redis.Client
}

// NewEstimateCache creates an EstimateCache backed by the given Client.
func NewEstimateCache(c *Client) *EstimateCache {
	return &EstimateCache{rdb: c.Underlying()}
}

func estimateKey(ticker string) string { return "estimate:" + ticker }

// Set stores an estimate with the given TTL.
func (ec *EstimateCache) Set(ctx context.Context, est domain.Estimate, ttl time.Duration) error {
	data, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("redis: marshal estimate %s: %w", est.Ticker, err)
	}
	if err := ec.rdb.Set(ctx, estimateKey(est.Ticker), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set estimate %s: %w", est.Ticker, err)
	}
	return nil
}

// Get retrieves the cached estimate for a ticker. It returns
// domain.ErrNotFound when no fresh estimate exists.
func (ec *EstimateCache) Get(ctx context.Context, ticker string) (domain.Estimate, error) {
	data, err := ec.rdb.Get(ctx, estimateKey(ticker)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Estimate{}, domain.ErrNotFound
		}
		return domain.Estimate{}, fmt.Errorf("redis: get estimate %s: %w", ticker, err)
	}

	var est domain.Estimate
	if err := json.Unmarshal(data, &est); err != nil {
		return domain.Estimate{}, fmt.Errorf("redis: unmarshal estimate %s: %w", ticker, err)
	}
	return est, nil
}

// Invalidate drops the cached estimate for a ticker.
func (ec *EstimateCache) Invalidate(ctx context.Context, ticker string) error {
	if err := ec.rdb.Del(ctx, estimateKey(ticker)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate estimate %s: %w", ticker, err)
	}
	return nil
}

var _ domain.EstimateCache = (*EstimateCache)(nil)
