package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khidmaapp/availability/internal/plan"
)

// Client talks to the marketplace backend that owns the published
// availability state. All operations are scoped to one listing.
type Client interface {
	UpdatePlan(ctx context.Context, listingID string, wire plan.Wire) error
	ListExceptions(ctx context.Context, listingID string) ([]plan.ExceptionResource, error)
	DeleteExceptions(ctx context.Context, listingID string, ids []string) error
	CreateException(ctx context.Context, exc plan.WireException) error
	EnsureOpen(ctx context.Context, listingID string) error
}

type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL string, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) UpdatePlan(ctx context.Context, listingID string, wire plan.Wire) error {
	path := "/v1/listings/" + url.PathEscape(listingID) + "/availability-plan"
	return c.do(ctx, http.MethodPut, path, wire, nil)
}

func (c *HTTPClient) ListExceptions(ctx context.Context, listingID string) ([]plan.ExceptionResource, error) {
	path := "/v1/listings/" + url.PathEscape(listingID) + "/availability-exceptions"
	var out struct {
		Exceptions []plan.ExceptionResource `json:"exceptions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Exceptions, nil
}

func (c *HTTPClient) DeleteExceptions(ctx context.Context, listingID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	path := "/v1/listings/" + url.PathEscape(listingID) + "/availability-exceptions/delete"
	payload := map[string][]string{"ids": ids}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) CreateException(ctx context.Context, exc plan.WireException) error {
	path := "/v1/listings/" + url.PathEscape(exc.ListingID) + "/availability-exceptions"
	return c.do(ctx, http.MethodPost, path, exc, nil)
}

func (c *HTTPClient) EnsureOpen(ctx context.Context, listingID string) error {
	path := "/v1/listings/" + url.PathEscape(listingID) + "/state"
	payload := map[string]string{"state": "open"}
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

func (c *HTTPClient) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("marketplace %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode marketplace response: %w", err)
		}
	}
	return nil
}
