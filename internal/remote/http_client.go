// Package remote provides the HTTP implementation of the data service.
package remote

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

	apperrors "github.com/carebridge/carebridge-core/internal/errors"
)

// HTTPClient talks to the hosted backend's REST data API. Timeouts are
// the transport's concern; the sync manager treats any error from here as
// a retryable remote failure.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the given base URL, e.g.
// "https://api.example.com/rest/v1".
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Create implements Service.
func (c *HTTPClient) Create(ctx context.Context, resource string, payload json.RawMessage) (Row, error) {
	body, err := c.do(ctx, http.MethodPost, c.resourceURL(resource, ""), payload)
	if err != nil {
		return nil, err
	}

	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteOperation,
			"create response is not a row", err)
	}
	return row, nil
}

// Update implements Service.
func (c *HTTPClient) Update(ctx context.Context, resource, id string, payload json.RawMessage) error {
	_, err := c.do(ctx, http.MethodPatch, c.resourceURL(resource, id), payload)
	return err
}

// Delete implements Service.
func (c *HTTPClient) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.resourceURL(resource, id), nil)
	return err
}

// Query implements Service.
func (c *HTTPClient) Query(ctx context.Context, resource string, filter map[string]string) ([]Row, error) {
	u := c.resourceURL(resource, "")
	if len(filter) > 0 {
		params := url.Values{}
		for k, v := range filter {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteOperation,
			"query response is not a row list", err)
	}
	return rows, nil
}

func (c *HTTPClient) resourceURL(resource, id string) string {
	u := c.baseURL + "/" + url.PathEscape(resource)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// do executes one request and returns the response body, mapping every
// transport or status failure to REMOTE_OPERATION_FAILED.
func (c *HTTPClient) do(ctx context.Context, method, u string, payload json.RawMessage) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteOperation,
			"failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteOperation,
			fmt.Sprintf("%s %s failed", method, u), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteOperation,
			"failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.ErrRemoteOperation,
			fmt.Sprintf("%s %s: status %d: %s",
				method, u, resp.StatusCode, truncate(string(body), 200)))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
