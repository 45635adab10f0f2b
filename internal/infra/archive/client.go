// Package archive talks to the permanent write-once archive. The archive is
// append-only: publishing the same bytes twice wastes a transaction but is
// never unsafe, so idempotency checks here are a cost optimization.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Client is the HTTP permanent-archive client.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("archive base url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		httpDo:  doer,
	}, nil
}

type publishResponse struct {
	TxID string `json:"tx_id"`
}

type statusResponse struct {
	Published bool   `json:"published"`
	TxID      string `json:"tx_id,omitempty"`
}

// PublishTransaction submits payload to the archive and returns its
// transaction id.
func (c *Client) PublishTransaction(ctx context.Context, payload []byte, contentType string, identifier string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/tx?id=" + url.QueryEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return "", fmt.Errorf("archive publish: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("archive publish read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("archive publish: status %d", resp.StatusCode)
	}
	var parsed publishResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("archive publish decode: %w", err)
	}
	if parsed.TxID == "" {
		return "", errors.New("archive publish: empty tx id")
	}
	return parsed.TxID, nil
}

// IsPublished reports whether the archive already holds a transaction for
// identifier.
func (c *Client) IsPublished(ctx context.Context, identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/published?id=" + url.QueryEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return false, fmt.Errorf("archive status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("archive status read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("archive status: status %d", resp.StatusCode)
	}
	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("archive status decode: %w", err)
	}
	return parsed.Published, nil
}

// FetchByTxID retrieves the raw bytes of a previously published transaction.
func (c *Client) FetchByTxID(ctx context.Context, txID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/tx/" + url.PathEscape(txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return nil, fmt.Errorf("archive fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive fetch: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
