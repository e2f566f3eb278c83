package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPError is a non-2xx response from the feed.
type HTTPError struct {
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("feed %s: HTTP %d: %s", e.Path, e.Status, e.Body)
}

// Client is a Source backed by the fleet REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	limiter *rate.Limiter
}

// ClientOption tweaks a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.HTTP = h } }

// WithRateLimit caps outbound requests per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(8), 4),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ListAssets(ctx context.Context) ([]AssetRecord, error) {
	var out []AssetRecord
	if err := c.list(ctx, "/drones/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]OrderRecord, error) {
	var out []OrderRecord
	if err := c.list(ctx, "/orders/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRoutes(ctx context.Context) ([]RouteRecord, error) {
	var out []RouteRecord
	if err := c.list(ctx, "/routes/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRegions(ctx context.Context) ([]RegionRecord, error) {
	var out []RegionRecord
	if err := c.list(ctx, "/zones/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// list GETs path and decodes either a bare JSON array or a paginated
// {"results": [...]} envelope into out.
func (c *Client) list(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("feed %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &HTTPError{Path: path, Status: resp.StatusCode, Body: snippet}
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("feed %s: %w", path, err)
		}
		body = page.Results
	}
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("feed %s: %w", path, err)
	}
	return nil
}
