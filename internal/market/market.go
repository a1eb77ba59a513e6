// Package market collects the data behind the daily report: index quotes,
// the CNN fear & greed score, and top business headlines. It also persists
// them under the data directory the chat server reads from.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Layout names the files under the data directory.
type Layout struct {
	DataDir string
}

func (l Layout) FearGreedCSV() string { return filepath.Join(l.DataDir, "raw", "fear_greed_index.csv") }
func (l Layout) NewsDir() string      { return filepath.Join(l.DataDir, "raw", "news") }
func (l Layout) ImagesDir() string    { return filepath.Join(l.DataDir, "images", "market_data") }

// Quote is the latest close of one index.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	ChangePercent float64 `json:"change_percent"`
}

// FearGreed is one CNN fear & greed reading.
type FearGreed struct {
	Score     float64   `json:"value"`
	Rating    string    `json:"rating,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Article is a collected headline in the persisted news format.
type Article struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Summary     string `json:"summary"`
	FullContent string `json:"full_content,omitempty"`
}

// Text returns the best available body for indexing.
func (a Article) Text() string {
	if a.FullContent != "" {
		return a.FullContent
	}
	return a.Summary
}

// NewsBatch is one collection run as written to disk.
type NewsBatch struct {
	Status        string    `json:"status"`
	Timestamp     string    `json:"timestamp"`
	TotalArticles int       `json:"total_articles"`
	Articles      []Article `json:"articles"`
}

// StatusError is returned when an upstream API answers with a non-200 status.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("market: %s returned status %d: %s", e.Service, e.Status, e.Body)
}

func getJSON(ctx context.Context, client *http.Client, service, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("market: build %s request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("market: %s request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: service, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("market: decode %s response: %w", service, err)
	}
	return nil
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 20 * time.Second}
}
