// Package digest runs the daily market report: collect, persist, index,
// summarise and deliver.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ossterm/marketbot/internal/market"
	"github.com/ossterm/marketbot/internal/notify"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/internal/rag"
	"github.com/ossterm/marketbot/pkg/logging"
)

// Step names used in logs and metrics.
const (
	StepMarket    = "market"
	StepFearGreed = "fear_greed"
	StepNews      = "news"
)

type MarketSource interface {
	Summary(ctx context.Context, indices []market.Index) ([]market.Quote, error)
}

type SentimentSource interface {
	Current(ctx context.Context) (market.FearGreed, error)
}

type NewsSource interface {
	Collect(ctx context.Context) (market.NewsBatch, error)
}

type Summarizer interface {
	Ask(ctx context.Context, system, user string) (string, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, docs []rag.Document) (int, error)
}

type Archiver interface {
	ArchiveFile(ctx context.Context, path, kind string) error
}

// Messenger delivers the report text, normally to the Kakao "memo to me" API.
type Messenger interface {
	SendText(ctx context.Context, message string) error
}

type Config struct {
	Markets    MarketSource
	Sentiment  SentimentSource
	News       NewsSource
	Summarizer Summarizer
	Ingestor   Ingestor
	Archive    Archiver
	Messenger  Messenger
	Mailer     notify.EmailSender
	EmailTo    string

	DataDir    string
	Indices    []market.Index
	Attempts   int
	RetryDelay time.Duration
	Location   *time.Location
	Metrics    *metrics.ReportMetrics
	Logger     *logging.Logger
}

type Reporter struct {
	cfg    Config
	layout market.Layout
	logger *logging.Logger
	now    func() time.Time
}

func New(cfg Config) (*Reporter, error) {
	if cfg.Markets == nil || cfg.News == nil {
		return nil, errors.New("digest: market and news sources required")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("digest: messenger required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if len(cfg.Indices) == 0 {
		cfg.Indices = market.MajorIndices
	}
	return &Reporter{
		cfg:    cfg,
		layout: market.Layout{DataDir: cfg.DataDir},
		logger: cfg.Logger,
		now:    time.Now,
	}, nil
}

// Run executes one report. When required data cannot be collected an alert
// is delivered in place of the report and the collection error returned.
func (r *Reporter) Run(ctx context.Context) error {
	started := r.now().In(r.cfg.Location)
	r.logger.Info("daily report started")

	report, err := r.build(ctx, started)
	if err != nil {
		r.cfg.Metrics.ObserveRun("failed")
		r.logger.Error("daily report failed", "error", err)
		if sendErr := r.cfg.Messenger.SendText(ctx, Alert(err)); sendErr != nil {
			r.logger.Error("failed to deliver report alert", "error", sendErr)
		}
		return err
	}

	if err := r.cfg.Messenger.SendText(ctx, report); err != nil {
		r.cfg.Metrics.ObserveRun("failed")
		return fmt.Errorf("digest: deliver report: %w", err)
	}
	r.mail(ctx, started, report)

	r.cfg.Metrics.ObserveRun("success")
	r.logger.Info("daily report delivered", "elapsed", r.now().Sub(started).String())
	return nil
}

func (r *Reporter) build(ctx context.Context, at time.Time) (string, error) {
	quotes, marketErr := retry(ctx, r, StepMarket, func(ctx context.Context) ([]market.Quote, error) {
		return r.cfg.Markets.Summary(ctx, r.cfg.Indices)
	})
	news, newsErr := retry(ctx, r, StepNews, r.cfg.News.Collect)
	if err := errors.Join(marketErr, newsErr); err != nil {
		return "", fmt.Errorf("필수 데이터 수집 실패: %w", err)
	}
	if len(quotes) == 0 {
		return "", errors.New("필수 데이터 수집 실패: no index quotes")
	}

	var fg *market.FearGreed
	if r.cfg.Sentiment != nil {
		reading, err := retry(ctx, r, StepFearGreed, r.cfg.Sentiment.Current)
		if err != nil {
			r.logger.Warn("fear & greed unavailable", "error", err)
		} else {
			fg = &reading
		}
	}

	r.persist(ctx, at, fg, news)
	r.ingest(ctx, at, news)
	summary := r.summarize(ctx, news)
	return Format(at, quotes, fg, summary), nil
}

type artifact struct{ path, kind string }

// persist writes the artifacts the chat server serves and archives them.
// Failures here are logged; the report still goes out.
func (r *Reporter) persist(ctx context.Context, at time.Time, fg *market.FearGreed, news market.NewsBatch) {
	var written []artifact

	if fg != nil {
		if err := market.AppendFearGreed(r.layout.FearGreedCSV(), *fg); err != nil {
			r.logger.Error("failed to record fear & greed", "error", err)
		} else {
			written = append(written, artifact{r.layout.FearGreedCSV(), "fear_greed"})
		}
		if path, err := market.SaveGauge(r.layout.ImagesDir(), fg.Score, at); err != nil {
			r.logger.Error("failed to render gauge", "error", err)
		} else {
			written = append(written, artifact{path, "image"})
		}
	}
	if path, err := market.SaveNews(r.layout.NewsDir(), news, at); err != nil {
		r.logger.Error("failed to save news", "error", err)
	} else {
		written = append(written, artifact{path, "news"})
	}

	if r.cfg.Archive == nil {
		return
	}
	for _, w := range written {
		if err := r.cfg.Archive.ArchiveFile(ctx, w.path, w.kind); err != nil {
			r.logger.Warn("failed to archive artifact", "error", err, "path", w.path)
		}
	}
}

func (r *Reporter) ingest(ctx context.Context, at time.Time, news market.NewsBatch) {
	if r.cfg.Ingestor == nil {
		return
	}
	docs := make([]rag.Document, 0, len(news.Articles))
	for _, a := range news.Articles {
		text := a.Text()
		if text == "" {
			continue
		}
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.URL+"|"+a.Title)).String()
		docs = append(docs, rag.Document{
			ID:     id,
			Title:  a.Title,
			Source: a.Source + " " + at.Format("2006-01-02"),
			Text:   text,
		})
	}
	n, err := r.cfg.Ingestor.Ingest(ctx, docs)
	if err != nil {
		r.logger.Error("news ingestion failed", "error", err)
		return
	}
	r.logger.Info("news ingested", "documents", len(docs), "chunks", n)
}

func (r *Reporter) summarize(ctx context.Context, news market.NewsBatch) string {
	if r.cfg.Summarizer == nil || len(news.Articles) == 0 {
		return ""
	}
	summary, err := r.cfg.Summarizer.Ask(ctx, summarySystem, SummaryPrompt(news.Articles))
	if err != nil {
		r.logger.Error("news summary failed", "error", err)
		return ""
	}
	return summary
}

func (r *Reporter) mail(ctx context.Context, at time.Time, report string) {
	if r.cfg.Mailer == nil || r.cfg.EmailTo == "" {
		return
	}
	msg := notify.EmailMessage{
		To:      r.cfg.EmailTo,
		Subject: "일일 시장 리포트 " + at.Format("2006-01-02"),
		Body:    report,
	}
	if err := r.cfg.Mailer.Send(ctx, msg); err != nil {
		r.logger.Warn("report email failed", "error", err)
	}
}

func retry[T any](ctx context.Context, r *Reporter, step string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			r.cfg.Metrics.ObserveStep(step, "success")
			return v, nil
		}
		lastErr = err
		r.cfg.Metrics.ObserveStep(step, "failed")
		r.logger.Warn("report step failed", "step", step, "attempt", attempt, "error", err)

		if attempt == r.cfg.Attempts || r.cfg.RetryDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
	return zero, fmt.Errorf("%s: %w", step, lastErr)
}
