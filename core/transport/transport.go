// Package transport holds the JSON-over-HTTP plumbing shared by the upstream API clients.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of a failed response is kept in the error message.
const maxErrorBody = 512

// APIError is a non-2xx upstream response.
type APIError struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.URL, e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code to retry classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Client performs JSON requests against one upstream service.
type Client struct {
	Service   string
	HTTP      *http.Client
	UserAgent string
}

// New creates a client with the given timeout (DefaultTimeout when zero).
func New(service string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Service: service, HTTP: &http.Client{Timeout: timeout}, UserAgent: "card-sync/1.0"}
}

// GetJSON performs a GET and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request GET %s: %w", url, err)
	}
	return c.Do(req, target)
}

// PostJSON encodes body as JSON, POSTs it and decodes the response into target.
func (c *Client) PostJSON(ctx context.Context, url string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req, target)
}

// Do sends req and decodes the response. A nil target discards the body.
func (c *Client) Do(req *http.Request, target any) error {
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.Service, req.Method, req.URL, err)
	}
	return c.decode(req, resp, target)
}

func (c *Client) decode(req *http.Request, resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.Service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &APIError{
			Service:    c.Service,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", c.Service, err)
	}
	return nil
}
