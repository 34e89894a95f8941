// Package backend is the client of the external pharmacy REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 10 << 20

// Client calls the backend. It never retries: a failed call is reported once
// and the caller keeps its previous state.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New constructs a Client for baseURL (for example http://127.0.0.1:3001/api).
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, logger)
}

// NewWithHTTPClient constructs a Client around an existing http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, logger: logger}
}

// URL joins the base URL and an endpoint path.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, m messages) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out, m)
}

func (c *Client) send(req *http.Request, out any, m messages) error {
	req.Header.Set("Accept", "application/json")
	path := req.URL.Path

	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := transportError(err)
		c.logger.Warn("backend unreachable",
			zap.String("method", req.Method), zap.String("path", path), zap.String("kind", apiErr.Kind.String()), zap.Error(err))
		return apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := transportError(err)
		c.logger.Warn("backend response interrupted", zap.String("path", path), zap.Error(err))
		return apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, data, m)
		c.logger.Warn("backend call failed",
			zap.String("method", req.Method), zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("kind", apiErr.Kind.String()))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("backend returned malformed JSON", zap.String("path", path), zap.Error(err))
		return &APIError{Kind: KindUnknown, Status: resp.StatusCode, Message: MsgUnknown, Err: err}
	}
	return nil
}

func transportError(err error) *APIError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{Kind: KindTimeout, Message: MsgTimeout, Err: err}
	}
	return &APIError{Kind: KindNetwork, Message: MsgNetwork, Err: err}
}

// DecodeList accepts both a bare JSON array and a paginated {"results": [...]}
// envelope. null and an envelope without results decode to an empty slice.
func DecodeList[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	out := []T{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	if page.Results != nil {
		out = page.Results
	}
	return out, nil
}

func getList[T any](ctx context.Context, c *Client, method, path string, body any, m messages) ([]T, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, method, path, body, &raw, m); err != nil {
		return nil, err
	}
	list, err := DecodeList[T](raw)
	if err != nil {
		c.logger.Warn("backend returned an unexpected list shape", zap.String("path", path), zap.Error(err))
		return nil, &APIError{Kind: KindUnknown, Status: http.StatusOK, Message: MsgUnknown, Err: err}
	}
	return list, nil
}
