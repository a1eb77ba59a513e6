// Package search answers questions from live web results: find pages,
// extract their paragraph text, and let the LLM answer from it.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ossterm/marketbot/pkg/logging"
)

const (
	noResultsText    = "No search results found or an error occurred."
	generateFailText = "An error occurred while generating the response."

	answerSystem = "You are a participant in a 1:1 dialogue. Respond to the question using the search results.\n\nSearch Results:\n%s"
)

// Result is one search hit.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Provider finds pages for a query.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Asker completes one system/user exchange.
type Asker interface {
	Ask(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	Provider   Provider
	Fetcher    *Fetcher
	Asker      Asker
	MaxResults int
	Logger     *logging.Logger
}

// Searcher runs search, scrape and summarize as one step.
type Searcher struct {
	provider   Provider
	fetcher    *Fetcher
	asker      Asker
	maxResults int
	logger     *logging.Logger
}

func New(cfg Config) *Searcher {
	if cfg.Provider == nil || cfg.Asker == nil {
		panic("search: provider and asker are required")
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewFetcher(nil, 0)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Searcher{
		provider:   cfg.Provider,
		fetcher:    cfg.Fetcher,
		asker:      cfg.Asker,
		maxResults: cfg.MaxResults,
		logger:     cfg.Logger,
	}
}

// Search never returns an error for missing results or a failed
// completion; those produce fixed user-facing texts instead.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	results, err := s.provider.Search(ctx, query, s.maxResults)
	if err != nil {
		s.logger.Warn("web search failed", "provider", s.provider.Name(), "error", err)
		return noResultsText, nil
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	pages := s.fetcher.FetchAll(ctx, urls)
	if len(pages) == 0 {
		return noResultsText, nil
	}

	answer, err := s.asker.Ask(ctx, fmt.Sprintf(answerSystem, strings.Join(pages, "\n")), query)
	if err != nil {
		s.logger.Warn("search answer failed", "error", err)
		return generateFailText, nil
	}
	return answer, nil
}
