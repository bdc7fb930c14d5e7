// Package ingest loads documentation pages and stores them as embedded chunks.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	maxPageBytes        = 5 << 20
	defaultFetchTimeout = 20 * time.Second
	userAgent           = "ticket-router-ingest/1.0"
)

// Page is the readable text of one fetched URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// LoadURLList reads a JSON array of URLs.
func LoadURLList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("url list %s must be a JSON array of strings: %w", path, err)
	}
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

// Loader fetches pages and extracts their readable content.
type Loader struct {
	client *http.Client
}

// NewLoader builds a loader with the given per-request timeout.
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Loader{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads rawURL. HTML is reduced to its main article text; other
// text content is returned as is.
func (l *Loader) Fetch(ctx context.Context, rawURL string) (Page, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return Page{}, fmt.Errorf("read %s: %w", rawURL, err)
		}
		return Page{URL: rawURL, Text: strings.TrimSpace(string(raw))}, nil
	}

	article, err := readability.FromReader(body, parsedURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	var text bytes.Buffer
	if err := article.RenderText(&text); err != nil {
		return Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return Page{URL: rawURL, Title: article.Title(), Text: strings.TrimSpace(text.String())}, nil
}
