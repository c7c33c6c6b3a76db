// Package forecast is the boundary to the external probability forecaster.
// The orchestrator treats it as a collaborator that may fail per contract
// without aborting a batch; the client here owns retry and backoff toward
// its upstream LLM provider.
package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/edgehound/edgehound/internal/domain"
)

// Forecaster supplies a probability-of-YES estimate for one contract.
type Forecaster interface {
	Forecast(ctx context.Context, c domain.Contract) (domain.Estimate, error)
}

// RateLimitError signals that the provider throttled the request. RetryAfter
// carries the provider-supplied hint when present; 0 means no hint and the
// caller computes its own backoff.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "forecast: " + domain.ErrRateLimited.Error()
}

// Unwrap lets errors.Is(err, domain.ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// backoffFor returns the delay before the given retry attempt (0-based): the
// provider hint when one was supplied, otherwise base doubled per attempt and
// capped at max.
func backoffFor(err error, attempt int, base, max time.Duration) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	d := base << attempt
	if d > max {
		d = max
	}
	return d
}
