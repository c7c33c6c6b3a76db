// Package kalshi is the REST client for the Kalshi-style exchange API that
// supplies tradeable contracts and, in live mode, accepts limit orders.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/edgehound/edgehound/internal/domain"
)

// pageSize is the per-request market page size; the exchange caps at 1000.
const pageSize = 1000

// Client is the REST client for the exchange API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an exchange client. apiKey may be empty for read-only
// market-data use.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// GetMarkets returns one page of markets plus the cursor for the next page.
// An empty returned cursor means the listing is exhausted.
func (c *Client) GetMarkets(ctx context.Context, status, cursor string) ([]APIMarket, string, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageSize))
	if status != "" {
		params.Set("status", status)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	body, err := c.do(ctx, http.MethodGet, "/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("kalshi: get markets: %w", err)
	}

	var resp struct {
		Markets []APIMarket `json:"markets"`
		Cursor  string      `json:"cursor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("kalshi: decode markets: %w", err)
	}
	return resp.Markets, resp.Cursor, nil
}

// ListOpenContracts walks the cursor pagination and returns every open
// market as a domain contract snapshot.
func (c *Client) ListOpenContracts(ctx context.Context) ([]domain.Contract, error) {
	var contracts []domain.Contract
	cursor := ""
	for {
		markets, next, err := c.GetMarkets(ctx, "open", cursor)
		if err != nil {
			return nil, err
		}
		for _, m := range markets {
			contracts = append(contracts, m.ToContract())
		}
		if next == "" || len(markets) == 0 {
			break
		}
		cursor = next
	}
	return contracts, nil
}

// GetMarket returns a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.Contract, error) {
	body, err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(ticker), nil)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market APIMarket `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Contract{}, fmt.Errorf("kalshi: decode market: %w", err)
	}
	return resp.Market.ToContract(), nil
}

// PlaceOrder submits a signal as a limit order on the exchange.
func (c *Client) PlaceOrder(ctx context.Context, sig domain.TradeSignal) error {
	if sig.LimitPrice <= 0 {
		return fmt.Errorf("kalshi: place order %s: %w", sig.Ticker, domain.ErrNoQuote)
	}
	order := APIOrder{
		Ticker: sig.Ticker,
		Action: string(sig.Action),
		Side:   string(sig.Side),
		Type:   "limit",
		Count:  sig.Contracts,
	}
	price := sig.LimitPrice
	if sig.Side == domain.SideYes {
		order.YesPrice = &price
	} else {
		order.NoPrice = &price
	}

	body, err := c.do(ctx, http.MethodPost, "/portfolio/orders", order)
	if err != nil {
		return fmt.Errorf("kalshi: place order %s: %w", sig.Ticker, err)
	}

	var resp struct {
		Order struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("kalshi: decode order response: %w", err)
	}
	if resp.Order.Status == "canceled" {
		return fmt.Errorf("kalshi: order %s immediately cancelled", resp.Order.OrderID)
	}
	return nil
}

// GetBalance returns the account cash balance in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp struct {
		BalanceCents int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}
	return float64(resp.BalanceCents) / 100, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			if apiErr.Code == "insufficient_balance" {
				return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, apiErr.Message, domain.ErrInsufficientFunds)
			}
			return nil, fmt.Errorf("status %d: %s (%s)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
