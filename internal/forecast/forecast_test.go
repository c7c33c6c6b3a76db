package forecast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
)

func TestBackoffFor_ProviderHintWins(t *testing.T) {
	err := &RateLimitError{RetryAfter: 7 * time.Second}
	assert.Equal(t, 7*time.Second, backoffFor(err, 3, time.Second, time.Minute))
}

func TestBackoffFor_DoublesAndCaps(t *testing.T) {
	base, max := 2*time.Second, 10*time.Second
	err := errors.New("transient")

	assert.Equal(t, 2*time.Second, backoffFor(err, 0, base, max))
	assert.Equal(t, 4*time.Second, backoffFor(err, 1, base, max))
	assert.Equal(t, 8*time.Second, backoffFor(err, 2, base, max))
	assert.Equal(t, 10*time.Second, backoffFor(err, 3, base, max))
}

func TestBackoffFor_HintlessRateLimitUsesExponential(t *testing.T) {
	err := &RateLimitError{}
	assert.Equal(t, 4*time.Second, backoffFor(err, 1, 2*time.Second, time.Minute))
}

func TestRateLimitError_UnwrapsSentinel(t *testing.T) {
	var err error = &RateLimitError{RetryAfter: time.Second}
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestParseEstimate_StripsMarkdownFence(t *testing.T) {
	content := "```json\n{\"probability\": 0.72, \"confidence\": 0.6, \"rationale\": \"polls\", \"sources\": [\"a\"]}\n```"

	est, err := parseEstimate("MKT", content)
	require.NoError(t, err)
	assert.Equal(t, "MKT", est.Ticker)
	assert.InDelta(t, 0.72, est.ProbYes, 1e-9)
	assert.InDelta(t, 0.6, est.Confidence, 1e-9)
	assert.Equal(t, "polls", est.Rationale)
}

func TestParseEstimate_ClampsExtremes(t *testing.T) {
	est, err := parseEstimate("SURE", `{"probability": 1.0, "confidence": 0.9}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, est.ProbYes, 1e-9)

	est, err = parseEstimate("NEVER", `{"probability": 0.0, "confidence": 0.9}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, est.ProbYes, 1e-9)
}

func TestParseEstimate_RejectsNonJSON(t *testing.T) {
	_, err := parseEstimate("MKT", "I think it is quite likely.")
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, 5*time.Second, parseRetryAfter(" 5 "))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}

func newTestForecaster(t *testing.T, url string, maxRetries int) *LLMForecaster {
	t.Helper()
	f := NewLLMForecaster(Config{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxRetries:  maxRetries,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func completion(body string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + body + `}}]}`
}

func TestForecast_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(completion(`"{\"probability\": 0.64, \"confidence\": 0.55, \"rationale\": \"ok\"}"`)))
	}))
	defer srv.Close()

	f := newTestForecaster(t, srv.URL, 0)
	est, err := f.Forecast(context.Background(), domain.Contract{Ticker: "MKT", Title: "Will it?"})
	require.NoError(t, err)
	assert.InDelta(t, 0.64, est.ProbYes, 1e-9)
	assert.InDelta(t, 0.55, est.Confidence, 1e-9)
}

func TestForecast_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(completion(`"{\"probability\": 0.4, \"confidence\": 0.7}"`)))
	}))
	defer srv.Close()

	f := newTestForecaster(t, srv.URL, 3)
	est, err := f.Forecast(context.Background(), domain.Contract{Ticker: "MKT", Title: "Will it?"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.InDelta(t, 0.4, est.ProbYes, 1e-9)
}

func TestForecast_ClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := newTestForecaster(t, srv.URL, 3)
	_, err := f.Forecast(context.Background(), domain.Contract{Ticker: "MKT", Title: "Will it?"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestForecast_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestForecaster(t, srv.URL, 2)
	_, err := f.Forecast(context.Background(), domain.Contract{Ticker: "MKT", Title: "Will it?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
