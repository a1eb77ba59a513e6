package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

const (
	userAgent     = "Mozilla/5.0 (compatible; marketbot/1.0)"
	maxPageWords  = 400
	maxPageBytes  = 2 << 20
	fetchParallel = 5
)

// Fetcher downloads pages concurrently and keeps their paragraph text.
type Fetcher struct {
	httpClient *http.Client
	parallel   int
}

func NewFetcher(client *http.Client, parallel int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if parallel <= 0 {
		parallel = fetchParallel
	}
	return &Fetcher{httpClient: client, parallel: parallel}
}

// FetchAll returns the truncated paragraph text of every page that loaded,
// in input order. Pages that fail or have no paragraphs are dropped.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []string {
	texts := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallel)
	for i, u := range urls {
		g.Go(func() error {
			text, err := f.Text(gctx, u)
			if err == nil {
				texts[i] = truncateWords(text, maxPageWords)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Text returns the full paragraph text of one page.
func (f *Fetcher) Text(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return paragraphText(doc), nil
}

// paragraphText joins the text of every <p>, leaving out link text.
func paragraphText(doc *html.Node) string {
	var paragraphs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.P:
				var b strings.Builder
				writeText(n, &b)
				if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(paragraphs, "\n\n")
}

func writeText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
}

func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) > limit {
		words = words[:limit]
	}
	return strings.Join(words, " ")
}
