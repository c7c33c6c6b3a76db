package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgehound/edgehound/internal/domain"
)

// Config holds the LLM forecaster parameters.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	UseSearch   bool // enable the provider's search-augmented mode
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// LLMForecaster obtains probability estimates from an OpenAI-style chat
// completion endpoint. Transient failures are retried with bounded
// exponential backoff; a provider Retry-After hint takes precedence over the
// computed delay. Once retries are exhausted the error is returned and the
// caller drops that single contract from the batch.
type LLMForecaster struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewLLMForecaster creates an LLMForecaster.
func NewLLMForecaster(cfg Config, logger *slog.Logger) *LLMForecaster {
	return &LLMForecaster{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.With(slog.String("component", "forecaster")),
		sleep:      sleepCtx,
	}
}

const systemPrompt = `You are a forecasting assistant for binary prediction markets.
Given a market question, respond with ONLY a JSON object:
{"probability": <probability the question resolves YES, 0-1>,
 "confidence": <your confidence in that estimate, 0-1>,
 "rationale": "<one short paragraph>",
 "sources": ["<source>", ...]}`

// chat DTOs for the completion endpoint.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	WebSearch bool          `json:"web_search,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// estimatePayload is the JSON object the model is instructed to emit.
type estimatePayload struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	Rationale   string   `json:"rationale"`
	Sources     []string `json:"sources"`
}

// Forecast requests a probability estimate for one contract.
func (f *LLMForecaster) Forecast(ctx context.Context, c domain.Contract) (domain.Estimate, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffFor(lastErr, attempt-1, f.cfg.BaseBackoff, f.cfg.MaxBackoff)
			f.logger.Warn("forecast retry",
				slog.String("ticker", c.Ticker),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return domain.Estimate{}, err
			}
		}

		est, err := f.requestOnce(ctx, c)
		if err == nil {
			return est, nil
		}
		lastErr = err

		if !retryable(err) {
			return domain.Estimate{}, err
		}
	}
	return domain.Estimate{}, fmt.Errorf("forecast: %s: retries exhausted: %w", c.Ticker, lastErr)
}

func (f *LLMForecaster) requestOnce(ctx context.Context, c domain.Contract) (domain.Estimate, error) {
	question := c.Title
	if !c.ExpiresAt.IsZero() {
		question += " (resolves by " + c.ExpiresAt.Format("2006-01-02") + ")"
	}

	reqBody := chatRequest{
		Model: f.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
		WebSearch: f.cfg.UseSearch,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("forecast: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("forecast: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Estimate{}, &transportError{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Estimate{}, &transportError{err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Estimate{}, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return domain.Estimate{}, &transportError{fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return domain.Estimate{}, fmt.Errorf("forecast: status %d: %s", resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return domain.Estimate{}, fmt.Errorf("forecast: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return domain.Estimate{}, fmt.Errorf("forecast: empty completion")
	}

	return parseEstimate(c.Ticker, chat.Choices[0].Message.Content)
}

// parseEstimate extracts the JSON payload from the model's message content.
// Models sometimes wrap the object in a markdown fence; strip it first.
func parseEstimate(ticker, content string) (domain.Estimate, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var p estimatePayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return domain.Estimate{}, fmt.Errorf("forecast: parse estimate for %s: %w", ticker, err)
	}

	est := domain.Estimate{
		Ticker:     ticker,
		ProbYes:    p.Probability,
		Confidence: p.Confidence,
		Rationale:  p.Rationale,
		Sources:    p.Sources,
		CreatedAt:  time.Now().UTC(),
	}
	return est.ClampProbs(), nil
}

// transportError marks errors worth retrying (network faults, 5xx).
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "forecast: transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var (
		rle *RateLimitError
		te  *transportError
	)
	return errors.As(err, &rle) || errors.As(err, &te)
}

// parseRetryAfter handles the delay-seconds form of the header; the
// http-date form is rare enough from LLM providers to ignore.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
