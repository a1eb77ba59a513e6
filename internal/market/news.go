package market

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultNewsAPIURL = "https://newsapi.org/v2"
	defaultNewsLimit  = 20
)

var priorityKeywords = map[string]int{
	"breaking":   15,
	"urgent":     12,
	"exclusive":  10,
	"alert":      8,
	"just in":    8,
	"developing": 7,
	"major":      6,
	"critical":   6,
	"important":  5,
}

var trustedSources = map[string]int{
	"Reuters":                 15,
	"Bloomberg":               15,
	"Associated Press":        14,
	"The Wall Street Journal": 13,
	"The New York Times":      12,
	"CNBC":                    11,
	"Financial Times":         11,
	"BBC News":                10,
	"CNN":                     9,
	"The Washington Post":     9,
}

// ContentFetcher loads the readable text of an article page.
type ContentFetcher interface {
	Text(ctx context.Context, pageURL string) (string, error)
}

type NewsConfig struct {
	APIKey     string
	BaseURL    string
	Limit      int
	Fetcher    ContentFetcher
	HTTPClient *http.Client
}

// NewsClient collects US top headlines from NewsAPI, ranks them and
// optionally loads each article's full text.
type NewsClient struct {
	apiKey     string
	baseURL    string
	limit      int
	fetcher    ContentFetcher
	httpClient *http.Client
	now        func() time.Time
}

func NewNewsClient(cfg NewsConfig) (*NewsClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("market: news api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNewsAPIURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultNewsLimit
	}
	return &NewsClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limit:      cfg.Limit,
		fetcher:    cfg.Fetcher,
		httpClient: defaultHTTPClient(cfg.HTTPClient),
		now:        time.Now,
	}, nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// Collect returns the ranked top headlines as a batch ready to persist.
func (c *NewsClient) Collect(ctx context.Context) (NewsBatch, error) {
	params := url.Values{
		"country":  {"us"},
		"language": {"en"},
		"pageSize": {"100"},
		"from":     {c.now().AddDate(0, 0, -1).Format("2006-01-02")},
		"apiKey":   {c.apiKey},
	}
	var out newsAPIResponse
	if err := getJSON(ctx, c.httpClient, "newsapi", c.baseURL+"/top-headlines?"+params.Encode(), nil, &out); err != nil {
		return NewsBatch{}, err
	}
	if out.Status != "" && out.Status != "ok" {
		return NewsBatch{}, errors.New("market: newsapi error: " + out.Message)
	}

	articles := make([]Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Summary:     a.Content,
		})
	}
	articles = RankArticles(articles)
	if len(articles) > c.limit {
		articles = articles[:c.limit]
	}
	c.loadContent(ctx, articles)

	return NewsBatch{
		Status:        "success",
		Timestamp:     c.now().Format(time.RFC3339),
		TotalArticles: len(articles),
		Articles:      articles,
	}, nil
}

func (c *NewsClient) loadContent(ctx context.Context, articles []Article) {
	if c.fetcher == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range articles {
		if articles[i].URL == "" {
			continue
		}
		g.Go(func() error {
			if text, err := c.fetcher.Text(gctx, articles[i].URL); err == nil {
				articles[i].FullContent = text
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RankArticles orders articles by headline urgency and source reputation.
// Equal scores keep their original order.
func RankArticles(articles []Article) []Article {
	ranked := make([]Article, len(articles))
	copy(ranked, articles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return articleScore(ranked[i]) > articleScore(ranked[j])
	})
	return ranked
}

func articleScore(a Article) int {
	score := 0
	title := strings.ToLower(a.Title)
	for keyword, points := range priorityKeywords {
		if strings.Contains(title, keyword) {
			score += points
		}
	}
	score += trustedSources[a.Source]
	if a.Summary != "" {
		score += 5
	}
	if a.URL != "" {
		score += 3
	}
	return score
}
