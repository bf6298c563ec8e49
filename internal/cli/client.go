// Package cli provides the HTTP client and output formatting for the
// command line interface.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// Client talks to a running kotae server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Ingest submits a note or url for ingestion.
func (c *Client) Ingest(ctx context.Context, kind models.ItemKind, content string) error {
	var ack map[string]string
	err := c.post(ctx, "/ingest", &models.IngestRequest{Type: kind, Content: content}, &ack)
	if err != nil {
		return err
	}
	if ack["status"] != "ok" {
		return fmt.Errorf("unexpected ingest response: %v", ack)
	}
	return nil
}

// Query asks the server a question.
func (c *Client) Query(ctx context.Context, question string, topK int) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	err := c.post(ctx, "/query", &models.QueryRequest{Question: question, TopK: topK}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Items lists all ingested items, newest first.
func (c *Client) Items(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item
	if err := c.get(ctx, "/items", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Status fetches server counters and configuration.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	var status map[string]interface{}
	if err := c.get(ctx, "/status", &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, path string, body, into interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, into)
}

func (c *Client) get(ctx context.Context, path string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, into)
}

func (c *Client) do(req *http.Request, into interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.Unmarshal(data, into)
}
