// Package reports builds the canned chat replies that point at report
// images rendered by the daily job.
package reports

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/market"
)

// ErrMissingArtifact is returned when no rendered image matches a report.
var ErrMissingArtifact = errors.New("reports: artifact not rendered yet")

const (
	imageRoute = "data/images/market_data/"

	correlationText = "Stock Price & Index Correlation Matrix between famous U.S companies\n" +
		"미국 주요 주가 지수와 대표 기업들의 주가의 상관관계에 관한 지표입니다. 1에 가까울수록 연관성이 높습니다."
	fearGreedTitle = "Fear & Greed Index"
	fearGreedDesc  = "현재 시장의 감정적 흐름에 대해 나타냅니다. %s, 시장의 Fear & Greed index 지수는 %d입니다."
)

type Config struct {
	DataDir  string
	Location *time.Location
}

// Builder resolves report images under the data directory and wraps them
// in skill responses.
type Builder struct {
	layout market.Layout
	loc    *time.Location
	now    func() time.Time
}

func NewBuilder(cfg Config) *Builder {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Builder{layout: market.Layout{DataDir: cfg.DataDir}, loc: loc, now: time.Now}
}

func (b *Builder) Correlation(_ context.Context, baseURL string) (*kakao.Response, error) {
	name, err := b.resolve("correlation_matrix_")
	if err != nil {
		return nil, err
	}
	return kakao.Compose(
		kakao.ImageOutput(imageURL(baseURL, name), "Correlation Matrix"),
		kakao.TextOutput(correlationText),
	), nil
}

func (b *Builder) FearGreed(_ context.Context, baseURL string) (*kakao.Response, error) {
	score, err := market.LatestFearGreed(b.layout.FearGreedCSV())
	if err != nil {
		return nil, fmt.Errorf("reports: fear greed score: %w", err)
	}
	name, err := b.resolve("half_circle_gauge_")
	if err != nil {
		return nil, err
	}
	today := b.now().In(b.loc).Format("2006-01-02")
	desc := fmt.Sprintf(fearGreedDesc, today, int(math.Round(score)))
	return kakao.Card(fearGreedTitle, desc, imageURL(baseURL, name)), nil
}

func (b *Builder) Dashboard(_ context.Context, baseURL string) (*kakao.Response, error) {
	return b.images(baseURL, "dashboard_", "table_주요지수_")
}

func (b *Builder) IndexTables(_ context.Context, baseURL string) (*kakao.Response, error) {
	return b.images(baseURL, "table_기술주_", "table_원자재_", "table_국채수익률_")
}

func (b *Builder) images(baseURL string, prefixes ...string) (*kakao.Response, error) {
	outputs := make([]kakao.Output, 0, len(prefixes))
	for _, prefix := range prefixes {
		name, err := b.resolve(prefix)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, kakao.ImageOutput(imageURL(baseURL, name), strings.Trim(prefix, "_")))
	}
	return kakao.Compose(outputs...), nil
}

// resolve prefers today's image and otherwise falls back to the most recent
// rendering with the same prefix.
func (b *Builder) resolve(prefix string) (string, error) {
	dir := b.layout.ImagesDir()
	today := prefix + b.now().In(b.loc).Format("20060102") + ".png"
	if _, err := os.Stat(filepath.Join(dir, today)); err == nil {
		return today, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.png"))
	if err != nil {
		return "", fmt.Errorf("reports: glob %s: %w", prefix, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingArtifact, prefix)
	}
	// Names embed YYYYMMDD[_HHMMSS], so lexical order is chronological.
	sort.Strings(matches)
	return filepath.Base(matches[len(matches)-1]), nil
}

func imageURL(baseURL, name string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + imageRoute + url.PathEscape(name)
}
