package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "http://localhost:9090"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func (c *Client) ResolveStakeholder(ctx context.Context, identity string) (Stakeholder, error) {
	if identity == "" {
		return Stakeholder{}, fmt.Errorf("identity is required")
	}
	query := url.Values{}
	query.Set("identity", identity)
	raw, err := c.doRequest(ctx, http.MethodGet, "/stakeholder", query, nil)
	if err != nil {
		return Stakeholder{}, err
	}
	var out Stakeholder
	if err := json.Unmarshal(raw, &out); err != nil {
		return Stakeholder{}, fmt.Errorf("failed to decode stakeholder: %w", err)
	}
	return out, nil
}

func (c *Client) IsVerified(ctx context.Context, identity string) (bool, error) {
	sh, err := c.ResolveStakeholder(ctx, identity)
	if err != nil {
		return false, err
	}
	return sh.IsVerified, nil
}

func (c *Client) GetChemical(ctx context.Context, chemicalID string) (Chemical, error) {
	if chemicalID == "" {
		return Chemical{}, fmt.Errorf("chemical id is required")
	}
	query := url.Values{}
	query.Set("id", chemicalID)
	raw, err := c.doRequest(ctx, http.MethodGet, "/chemical", query, nil)
	if err != nil {
		return Chemical{}, err
	}
	var out Chemical
	if err := json.Unmarshal(raw, &out); err != nil {
		return Chemical{}, fmt.Errorf("failed to decode chemical: %w", err)
	}
	return out, nil
}

func (c *Client) MarkChemicalDelivered(ctx context.Context, chemicalID string) error {
	if chemicalID == "" {
		return fmt.Errorf("chemical id is required")
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/chemical/delivered", nil, map[string]string{"id": chemicalID})
	return err
}

// Ping is used by the health probe; any well-formed response counts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}
