package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

// RequestIDHeader carries a per-request id so backend logs can be correlated.
const RequestIDHeader = "X-Request-Id"

// Client talks to the FrictionLog backend over HTTP/JSON.
type Client struct {
	BaseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client. A zero timeout leaves requests bounded only by ctx.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Health reports whether the backend answers {"status": "ok"}.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var result map[string]string
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &result); err != nil {
		return false, err
	}
	return result["status"] == "ok", nil
}

// ListItems returns the items matching filter.
func (c *Client) ListItems(ctx context.Context, filter friction.Filter) ([]friction.Item, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Category != "" {
		q.Set("category", string(filter.Category))
	}
	path := "/api/friction-items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var items []friction.Item
	if err := c.do(ctx, "list_items", http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, id int64) (*friction.Item, error) {
	var item friction.Item
	if err := c.do(ctx, "get_item", http.MethodGet, itemPath(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem creates an item and returns the backend's canonical copy.
func (c *Client) CreateItem(ctx context.Context, req friction.ItemCreate) (*friction.Item, error) {
	var item friction.Item
	if err := c.do(ctx, "create_item", http.MethodPost, "/api/friction-items", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem sends only the fields set on update.
func (c *Client) UpdateItem(ctx context.Context, id int64, update friction.ItemUpdate) (*friction.Item, error) {
	var item friction.Item
	if err := c.do(ctx, "update_item", http.MethodPut, itemPath(id), update, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item. Any non-2xx answer is an error.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_item", http.MethodDelete, itemPath(id), nil, nil)
}

// IncrementEncounter records one encounter and returns the updated item.
func (c *Client) IncrementEncounter(ctx context.Context, id int64) (*friction.Item, error) {
	var item friction.Item
	if err := c.do(ctx, "increment_encounter", http.MethodPost, itemPath(id)+"/encounter", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Score returns the current aggregate score.
func (c *Client) Score(ctx context.Context) (*friction.Score, error) {
	var score friction.Score
	if err := c.do(ctx, "score", http.MethodGet, "/api/analytics/score", nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// Trend returns one point per day for the last days days, oldest first.
func (c *Client) Trend(ctx context.Context, days int) ([]friction.TrendPoint, error) {
	var points []friction.TrendPoint
	path := "/api/analytics/trend?days=" + strconv.Itoa(days)
	if err := c.do(ctx, "trend", http.MethodGet, path, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// CategoryBreakdown returns per-category score totals.
func (c *Client) CategoryBreakdown(ctx context.Context) (*friction.CategoryBreakdown, error) {
	var b friction.CategoryBreakdown
	if err := c.do(ctx, "by_category", http.MethodGet, "/api/analytics/by-category", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MostAnnoying returns up to limit items ranked by impact.
func (c *Client) MostAnnoying(ctx context.Context, limit int) ([]friction.RankedItem, error) {
	var ranked []friction.RankedItem
	path := "/api/analytics/most-annoying?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, "most_annoying", http.MethodGet, path, nil, &ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}

// GlobalLimit returns the configured global daily limit, nil if unlimited.
func (c *Client) GlobalLimit(ctx context.Context) (*int, error) {
	var gl friction.GlobalLimit
	if err := c.do(ctx, "get_global_limit", http.MethodGet, "/api/analytics/global-limit", nil, &gl); err != nil {
		return nil, err
	}
	return gl.Limit, nil
}

// SetGlobalLimit sets the global daily limit; nil clears it.
func (c *Client) SetGlobalLimit(ctx context.Context, limit *int) error {
	var ack friction.GlobalLimit
	return c.do(ctx, "set_global_limit", http.MethodPut, "/api/analytics/global-limit", friction.GlobalLimit{Limit: limit}, &ack)
}

func itemPath(id int64) string {
	return "/api/friction-items/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, body, out)
	observe(endpoint, start, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID))

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
