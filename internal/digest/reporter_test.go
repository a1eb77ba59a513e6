package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossterm/marketbot/internal/market"
	"github.com/ossterm/marketbot/internal/notify"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/internal/rag"
)

type fakeMarkets struct {
	failures int
	calls    int
}

func (f *fakeMarkets) Summary(context.Context, []market.Index) ([]market.Quote, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("yahoo down")
	}
	return []market.Quote{
		{Name: "S&P 500", Price: 5123.4, ChangePercent: 0.5},
		{Name: "NASDAQ", Price: 16000, ChangePercent: -1.234},
	}, nil
}

type fakeSentiment struct{ err error }

func (f fakeSentiment) Current(context.Context) (market.FearGreed, error) {
	return market.FearGreed{Score: 30, Timestamp: time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)}, f.err
}

type fakeNews struct{ err error }

func (f fakeNews) Collect(context.Context) (market.NewsBatch, error) {
	if f.err != nil {
		return market.NewsBatch{}, f.err
	}
	return market.NewsBatch{Status: "success", TotalArticles: 2, Articles: []market.Article{
		{Title: "Fed holds", Source: "Reuters", URL: "https://r/1", Summary: "rates unchanged"},
		{Title: "No body", Source: "Blog", URL: "https://b/2"},
	}}, nil
}

type fakeSummarizer struct{ prompt string }

func (f *fakeSummarizer) Ask(_ context.Context, _ string, user string) (string, error) {
	f.prompt = user
	return "연준 금리 동결", nil
}

type fakeIngestor struct{ docs []rag.Document }

func (f *fakeIngestor) Ingest(_ context.Context, docs []rag.Document) (int, error) {
	f.docs = docs
	return len(docs), nil
}

type fakeArchive struct{ kinds []string }

func (f *fakeArchive) ArchiveFile(_ context.Context, _ string, kind string) error {
	f.kinds = append(f.kinds, kind)
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) SendText(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

type fakeMailer struct{ msgs []notify.EmailMessage }

func (f *fakeMailer) Send(_ context.Context, msg notify.EmailMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestRunDeliversReport(t *testing.T) {
	dir := t.TempDir()
	summarizer := &fakeSummarizer{}
	ingestor := &fakeIngestor{}
	archive := &fakeArchive{}
	messenger := &fakeMessenger{}
	mailer := &fakeMailer{}
	reg := prometheus.NewRegistry()

	r, err := New(Config{
		Markets:    &fakeMarkets{failures: 1},
		Sentiment:  fakeSentiment{},
		News:       fakeNews{},
		Summarizer: summarizer,
		Ingestor:   ingestor,
		Archive:    archive,
		Messenger:  messenger,
		Mailer:     mailer,
		EmailTo:    "me@example.com",
		DataDir:    dir,
		Attempts:   2,
		Location:   time.UTC,
		Metrics:    metrics.NewReportMetrics(reg),
	})
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC) }

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, messenger.sent, 1)
	report := messenger.sent[0]
	assert.True(t, strings.HasPrefix(report, "📊 일일 시장 리포트 (2024-03-01 07:30)"))
	assert.Contains(t, report, "• S&P 500: 5,123.40 (+0.50%)")
	assert.Contains(t, report, "• NASDAQ: 16,000.00 (-1.23%)")
	assert.Contains(t, report, "• 현재 시장 심리: 공포")
	assert.Contains(t, report, "📰 주요 뉴스 요약\n연준 금리 동결")

	assert.Contains(t, summarizer.prompt, "Fed holds: rates unchanged")
	require.Len(t, ingestor.docs, 1)
	assert.Equal(t, "Fed holds", ingestor.docs[0].Title)
	assert.ElementsMatch(t, []string{"fear_greed", "image", "news"}, archive.kinds)
	require.Len(t, mailer.msgs, 1)
	assert.Equal(t, report, mailer.msgs[0].Body)

	layout := market.Layout{DataDir: dir}
	score, err := market.LatestFearGreed(layout.FearGreedCSV())
	require.NoError(t, err)
	assert.Equal(t, 30.0, score)
	assert.FileExists(t, filepath.Join(layout.ImagesDir(), "half_circle_gauge_20240301.png"))
	news, err := os.ReadDir(layout.NewsDir())
	require.NoError(t, err)
	assert.Len(t, news, 1)
}

func TestRunSendsAlertWhenNewsMissing(t *testing.T) {
	messenger := &fakeMessenger{}
	r, err := New(Config{
		Markets:   &fakeMarkets{},
		News:      fakeNews{err: errors.New("quota exceeded")},
		Messenger: messenger,
		DataDir:   t.TempDir(),
		Attempts:  2,
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.ErrorContains(t, err, "quota exceeded")
	require.Len(t, messenger.sent, 1)
	assert.True(t, strings.HasPrefix(messenger.sent[0], "⚠️ 시스템 오류 발생\n일일 리포트 생성 중 오류 발생: "))
}

func TestRunWithoutSentiment(t *testing.T) {
	messenger := &fakeMessenger{}
	r, err := New(Config{
		Markets:   &fakeMarkets{},
		Sentiment: fakeSentiment{err: errors.New("blocked")},
		News:      fakeNews{},
		Messenger: messenger,
		DataDir:   t.TempDir(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, messenger.sent, 1)
	assert.NotContains(t, messenger.sent[0], "투자 심리 지표")
	assert.NotContains(t, messenger.sent[0], "주요 뉴스 요약")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Markets: &fakeMarkets{}, News: fakeNews{}})
	require.Error(t, err)
	_, err = New(Config{Messenger: &fakeMessenger{}})
	require.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0.50", formatPrice(0.5))
	assert.Equal(t, "999.00", formatPrice(999))
	assert.Equal(t, "1,000.00", formatPrice(1000))
	assert.Equal(t, "-42,123,456.79", formatPrice(-42123456.789))
}

func TestNextRun(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, 3, 1, 7, 0, 0, 0, seoul)

	next, err := NextRun(now, "07:30", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 7, 30, 0, 0, seoul), next)

	next, err = NextRun(now.Add(time.Hour), "07:30", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 7, 30, 0, 0, seoul), next)

	_, err = NextRun(now, "7.30", seoul)
	require.Error(t, err)
}
