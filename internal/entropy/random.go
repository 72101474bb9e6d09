// Package entropy provides two-die roll providers for flower navigation.
// True randomness comes from random.org when an API key is configured,
// falling back to crypto/rand when the API is unavailable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	defaultEndpoint = "https://api.random.org/json-rpc/4/invoke"
	refillBelow     = 10  // dice left in the pool before a refill
	refillCount     = 100 // dice requested per refill
)

// Roll is the outcome of rolling two six-sided dice.
type Roll struct {
	Dice  []int `json:"dice,omitempty"` // Faces; empty when the total was supplied by the caller
	Total int   `json:"total"`
}

// NewRoll builds a roll from two faces.
func NewRoll(a, b int) Roll {
	return Roll{Dice: []int{a, b}, Total: a + b}
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the random.org JSON-RPC endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient overrides the HTTP client used for refills.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// Client provides true random dice from random.org with a local pool.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []int
}

// NewClient creates a random.org client. Returns nil if apiKey is empty;
// a nil *Client still rolls, using crypto/rand.
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		return nil
	}
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Roll draws two dice from the pool, refilling from random.org when low.
// Falls back to crypto/rand on API failure; it never returns an error.
func (c *Client) Roll(ctx context.Context) (Roll, error) {
	if !c.Enabled() {
		return cryptoRoll()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < refillBelow {
		c.refill(ctx)
	}
	if len(c.pool) < 2 {
		return cryptoRoll()
	}

	a, b := c.pool[0], c.pool[1]
	c.pool = c.pool[2:]
	return NewRoll(a, b), nil
}

func (c *Client) refill(ctx context.Context) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey":      c.apiKey,
			"n":           refillCount,
			"min":         1,
			"max":         6,
			"replacement": true,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org request failed", "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	for _, v := range result.Result.Random.Data {
		if v < 1 || v > 6 {
			slog.Debug("random.org returned out-of-range die", "value", v)
			return
		}
	}

	c.pool = append(c.pool, result.Result.Random.Data...)
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
}

// Crypto rolls dice with crypto/rand. The zero value is ready to use.
type Crypto struct{}

// Roll implements the two-die roll provider.
func (Crypto) Roll(context.Context) (Roll, error) {
	return cryptoRoll()
}

func cryptoRoll() (Roll, error) {
	a, err := cryptoDie()
	if err != nil {
		return Roll{}, err
	}
	b, err := cryptoDie()
	if err != nil {
		return Roll{}, err
	}
	return NewRoll(a, b), nil
}

func cryptoDie() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(6))
	if err != nil {
		return 0, fmt.Errorf("read random die: %w", err)
	}
	return int(n.Int64()) + 1, nil
}
