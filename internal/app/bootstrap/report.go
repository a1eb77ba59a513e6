package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/ossterm/marketbot/internal/archive"
	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/digest"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/llm"
	"github.com/ossterm/marketbot/internal/market"
	"github.com/ossterm/marketbot/internal/notify"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/internal/rag"
	"github.com/ossterm/marketbot/internal/search"
	"github.com/ossterm/marketbot/pkg/logging"
)

// ReportDeps are pieces the API process already owns. When nil, the
// reporter builds its own.
type ReportDeps struct {
	Responder *llm.Responder
	Index     *rag.Index
	Embedder  rag.Embedder
}

// BuildDailyReporter wires the collectors, persistence and delivery of the
// daily report.
func BuildDailyReporter(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, shared *ReportDeps, reportMetrics *metrics.ReportMetrics, logger *logging.Logger) (*digest.Reporter, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if shared == nil {
		shared = &ReportDeps{}
	}
	var cleanup closers
	fail := func(err error) (*digest.Reporter, func(), error) {
		cleanup.close()
		return nil, nil, err
	}

	messenger, err := kakao.NewMemoClient(kakao.MemoConfig{
		BaseURL:     cfg.KakaoAPIBaseURL,
		AccessToken: cfg.KakaoAccessToken,
		MaxRetries:  3,
		Logger:      logger.Logger,
	})
	if err != nil {
		return fail(err)
	}
	news, err := market.NewNewsClient(market.NewsConfig{
		APIKey:  cfg.NewsAPIKey,
		Fetcher: search.NewFetcher(nil, 0),
	})
	if err != nil {
		return fail(err)
	}

	rcfg := digest.Config{
		Markets:    market.NewYahooClient("", nil),
		Sentiment:  market.NewCNNClient("", nil),
		News:       news,
		Messenger:  messenger,
		DataDir:    cfg.DataDir,
		Attempts:   cfg.ReportRetryAttempts,
		RetryDelay: cfg.ReportRetryDelay,
		Location:   cfg.ReportLocation(),
		EmailTo:    cfg.ReportEmailTo,
		Metrics:    reportMetrics,
		Logger:     logger,
	}

	responder := shared.Responder
	if responder == nil {
		client, closeClient, err := BuildLLMClient(ctx, cfg, awsCfg, logger)
		if err != nil {
			logger.Warn("news summary disabled", "error", err)
		} else {
			cleanup.add(closeClient)
			responder = llm.NewResponder(llm.ResponderConfig{Client: client, Timeout: cfg.LLMTimeout, Logger: logger})
		}
	}
	if responder != nil {
		rcfg.Summarizer = responder
	}

	if ingestor := buildIngestor(cfg, shared, &cleanup, logger); ingestor != nil {
		rcfg.Ingestor = ingestor
	}

	if awsCfg != nil && strings.TrimSpace(cfg.ReportS3Bucket) != "" {
		rcfg.Archive = archive.NewStore(s3.NewFromConfig(*awsCfg), cfg.ReportS3Bucket, logger)
	}

	var ses notify.SESAPI
	if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
		ses = sesv2.NewFromConfig(*awsCfg)
	}
	if mailer := notify.NewEmailSender(notify.Config{
		SendGridAPIKey: cfg.SendGridAPIKey,
		FromEmail:      cfg.SendGridFromEmail,
		SESFromEmail:   cfg.SESFromEmail,
	}, ses, logger); mailer != nil {
		rcfg.Mailer = mailer
	}

	reporter, err := digest.New(rcfg)
	if err != nil {
		return fail(err)
	}
	return reporter, cleanup.close, nil
}

// buildIngestor reuses the API's index when shared, otherwise opens its own.
// Badger allows one process per directory, so a locked index disables
// ingestion rather than failing the report.
func buildIngestor(cfg *appconfig.Config, shared *ReportDeps, cleanup *closers, logger *logging.Logger) *rag.Ingestor {
	if shared.Index != nil && shared.Embedder != nil {
		return rag.NewIngestor(shared.Embedder, shared.Index, logger)
	}
	embedder, err := rag.NewOpenAIEmbedder(cfg.EmbeddingKey(), cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	if err != nil {
		logger.Warn("news ingestion disabled", "error", err)
		return nil
	}
	index, err := rag.OpenIndex(cfg.IndexPath)
	if err != nil {
		logger.Warn("news ingestion disabled", "error", err, "hint", "set REPORT_EMBEDDED=true to share the API's index")
		return nil
	}
	cleanup.add(func() { _ = index.Close() })
	return rag.NewIngestor(embedder, index, logger)
}
