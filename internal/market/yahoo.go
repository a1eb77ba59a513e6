package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultYahooURL = "https://query1.finance.yahoo.com"

// Index is a tracked market index.
type Index struct {
	Symbol string
	Name   string
}

// MajorIndices are reported in this order.
var MajorIndices = []Index{
	{Symbol: "^GSPC", Name: "S&P 500"},
	{Symbol: "^DJI", Name: "Dow Jones"},
	{Symbol: "^IXIC", Name: "NASDAQ"},
}

// YahooClient reads quotes from the Yahoo Finance chart API.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewYahooClient(baseURL string, client *http.Client) *YahooClient {
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	return &YahooClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: defaultHTTPClient(client)}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote fetches the latest price for one symbol.
func (c *YahooClient) Quote(ctx context.Context, idx Index) (Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", c.baseURL, url.PathEscape(idx.Symbol))

	var out chartResponse
	if err := getJSON(ctx, c.httpClient, "yahoo", endpoint, nil, &out); err != nil {
		return Quote{}, err
	}
	if out.Chart.Error != nil {
		return Quote{}, fmt.Errorf("market: yahoo %s: %s", idx.Symbol, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("market: yahoo returned no data for %s", idx.Symbol)
	}

	meta := out.Chart.Result[0].Meta
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}
	name := idx.Name
	if name == "" {
		name = meta.ShortName
	}
	q := Quote{Symbol: idx.Symbol, Name: name, Price: meta.RegularMarketPrice, PreviousClose: prev}
	if prev != 0 {
		q.ChangePercent = (q.Price - prev) / prev * 100
	}
	return q, nil
}

// Summary fetches every index. A failed index is skipped; only a run where
// every index failed is an error.
func (c *YahooClient) Summary(ctx context.Context, indices []Index) ([]Quote, error) {
	quotes := make([]Quote, 0, len(indices))
	var errs []error
	for _, idx := range indices {
		q, err := c.Quote(ctx, idx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return quotes, nil
}
