package domain

import (
	"context"
	"io"
	"time"
)

// EstimateCache holds recent forecasts so an unchanged contract does not hit
// the forecaster again on the next cycle.
type EstimateCache interface {
	Set(ctx context.Context, est Estimate, ttl time.Duration) error
	Get(ctx context.Context, ticker string) (Estimate, error)
	Invalidate(ctx context.Context, ticker string) error
}

// RateLimiter provides distributed rate limiting for the forecaster budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// BlobWriter uploads serialized archives to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
