package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Balance is the backend's view of a user's credits.
type Balance struct {
	UserID         string  `json:"userId"`
	Credits        Credits `json:"credits"`
	TotalPurchased int     `json:"totalPurchased"`
}

// Order authorises one checkout attempt.
type Order struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// OrderRequest is the create-order payload. Credits uses the backend
// representation, so -1 means unlimited.
type OrderRequest struct {
	Amount  int `json:"amount"`
	Credits int `json:"credits"`
}

// Client talks to the credits and payments backend.
type Client struct {
	client  *http.Client
	baseURL string
}

// ClientOption configures the Client during construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// NewClient constructs a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 12 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBalance returns the caller's credit balance.
func (c *Client) FetchBalance(ctx context.Context, token string) (Balance, error) {
	var balance Balance
	if err := c.do(ctx, http.MethodGet, "/api/credits/balance", token, nil, &balance, "Failed to fetch credits"); err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// CreateOrder asks the backend for a payment order.
func (c *Client) CreateOrder(ctx context.Context, token string, req OrderRequest) (Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/api/payments/create-order", token, req, &order, MessageOrderFailed); err != nil {
		return Order{}, err
	}
	if order.OrderID == "" {
		return Order{}, fmt.Errorf("create order: response carried no order id")
	}
	return order, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any, fallbackMessage string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body, fallbackMessage)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func errorMessage(body io.Reader, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		return fallback
	}
	return payload.Message
}
