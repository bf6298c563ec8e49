package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Error describes a failed URL fetch. StatusCode is zero when the
// request never produced a response.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fetcher retrieves remote pages and reduces them to plain text.
type Fetcher struct {
	client  *http.Client
	maxBody int64
}

// NewFetcher creates a fetcher with the given request timeout and
// response body size limit in bytes.
func NewFetcher(timeout time.Duration, maxBody int64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBody,
	}
}

// FetchText downloads rawURL and returns its visible text content.
// HTML responses are stripped of markup; anything else is returned as is,
// with whitespace normalized either way.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", "kotae/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}

	text := string(body)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") || contentType == "" {
		text = StripHTML(text)
	}
	return strings.Join(strings.Fields(text), " "), nil
}
