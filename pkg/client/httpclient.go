package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultRequestTimeout = 10 * time.Second

// HttpClient is the transport shared by the typed API clients. Every request
// carries a fresh X-Request-ID so calls can be matched with server logs.
type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
}

func NewHttpClient(baseURL string) *HttpClient {
	return &HttpClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
		Headers:    map[string]string{},
	}
}

type Response struct {
	*http.Response
	Body      []byte
	RequestID string
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// ToString renders the status line and body for error messages.
func (r *Response) ToString() string {
	if r == nil || r.Response == nil {
		return "<nil response>"
	}
	return fmt.Sprintf("%s %s: %s", r.Request.Method, r.Status, string(r.Body))
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Metadata is the pagination envelope of list endpoints.
type Metadata struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int64 `json:"offset"`
}

func (c *HttpClient) GET(path string) (*Response, error) {
	return c.Do(context.Background(), http.MethodGet, path, nil, nil)
}

func (c *HttpClient) POST(path string, body any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, path, body, nil)
}

func (c *HttpClient) PATCH(path string, body any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPatch, path, body, nil)
}

func (c *HttpClient) PUT(path string, body any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPut, path, body, nil)
}

func (c *HttpClient) DELETE(path string) (*Response, error) {
	return c.Do(context.Background(), http.MethodDelete, path, nil, nil)
}

func (c *HttpClient) POSTWithHeaders(path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, path, body, headers)
}

// POSTRaw and PATCHRaw send bodies verbatim, for exercising malformed input.
func (c *HttpClient) POSTRaw(path string, rawBody []byte) (*Response, error) {
	return c.send(context.Background(), http.MethodPost, path, bytes.NewReader(rawBody), true, nil)
}

func (c *HttpClient) PATCHRaw(path string, rawBody []byte) (*Response, error) {
	return c.send(context.Background(), http.MethodPatch, path, bytes.NewReader(rawBody), true, nil)
}

// Do encodes body as JSON when it is non-nil and performs the request under ctx.
func (c *HttpClient) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	if body == nil {
		return c.send(ctx, method, path, nil, false, headers)
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.send(ctx, method, path, bytes.NewReader(jsonData), true, headers)
}

func (c *HttpClient) send(ctx context.Context, method, path string, reqBody io.Reader, hasBody bool, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if echoed := resp.Header.Get("X-Request-ID"); echoed != "" {
		requestID = echoed
	}
	return &Response{Response: resp, Body: respBody, RequestID: requestID}, nil
}

// WaitForReady polls /ready until the service and its stores answer, ctx is
// done or maxWait elapses.
func (c *HttpClient) WaitForReady(ctx context.Context, maxWait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		resp, err := c.Do(ctx, http.MethodGet, "/ready", nil, nil)
		if err == nil && resp.StatusCode == http.StatusOK {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("service did not become ready within %v", maxWait)
		case <-ticker.C:
		}
	}
}

// GetErrorMessage extracts the error text of an API error body.
func GetErrorMessage(resp *Response) string {
	var errResp struct {
		Error   string         `json:"error"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		return fmt.Sprintf("failed to unmarshal error: %v", err)
	}

	if errResp.Error != "" {
		return errResp.Error
	}
	return errResp.Code
}
