package bootstrap

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/ossterm/marketbot/internal/chat"
	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/llm"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/internal/rag"
	"github.com/ossterm/marketbot/internal/replylog"
	"github.com/ossterm/marketbot/internal/reports"
	"github.com/ossterm/marketbot/internal/search"
	"github.com/ossterm/marketbot/pkg/logging"
)

// ChatService is everything the webhook needs, plus the shared pieces the
// embedded report job reuses.
type ChatService struct {
	Coordinator *chat.Coordinator
	Dispatcher  *dispatch.Dispatcher
	Responder   *llm.Responder
	// Index and Embedder are nil when no embedding key is configured.
	Index    *rag.Index
	Embedder rag.Embedder

	cleanup closers
}

// Close releases stores, clients and the document index.
func (s *ChatService) Close() {
	if s != nil {
		s.cleanup.close()
	}
}

// BuildChatService wires the reply log, LLM, retrieval, search and report
// collaborators behind the coordinator.
func BuildChatService(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, chatMetrics *metrics.ChatMetrics, logger *logging.Logger) (*ChatService, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	svc := &ChatService{}
	fail := func(err error) (*ChatService, error) {
		svc.Close()
		return nil, err
	}

	store, closeStore, err := BuildReplyLogStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	svc.cleanup.add(closeStore)

	client, closeClient, err := BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	svc.cleanup.add(closeClient)
	svc.Responder = llm.NewResponder(llm.ResponderConfig{Client: client, Timeout: cfg.LLMTimeout, Logger: logger})

	dcfg := dispatch.Config{
		Store:     store,
		Scope:     replylog.ParseScope(cfg.ReplyLogScope),
		Generator: svc.Responder,
		Searcher: search.New(search.Config{
			Provider:   search.NewDuckDuckGo(cfg.SearchBaseURL, nil),
			Asker:      svc.Responder,
			MaxResults: cfg.SearchMaxResults,
			Logger:     logger,
		}),
		Reports: reports.NewBuilder(reports.Config{DataDir: cfg.DataDir, Location: cfg.ReportLocation()}),
		Metrics: chatMetrics,
		Logger:  logger,
	}

	if embedder, err := rag.NewOpenAIEmbedder(cfg.EmbeddingKey(), cfg.EmbeddingBaseURL, cfg.EmbeddingModel); err != nil {
		logger.Warn("retrieval disabled", "error", err)
	} else {
		index, err := rag.OpenIndex(cfg.IndexPath)
		if err != nil {
			return fail(err)
		}
		svc.cleanup.add(func() { _ = index.Close() })
		svc.Index = index
		svc.Embedder = embedder
		dcfg.Retriever = rag.NewRetriever(embedder, index, svc.Responder, cfg.RAGTopK)
	}

	dispatcher, err := dispatch.New(dcfg)
	if err != nil {
		return fail(err)
	}
	svc.Dispatcher = dispatcher

	var deliverer chat.Deliverer
	if cfg.ChatCallbackEnabled {
		deliverer = chat.NewHTTPDeliverer(nil, cfg.CallbackTimeout)
	}
	coordinator, err := chat.NewCoordinator(chat.Config{
		Dispatcher:      dispatcher,
		Deliverer:       deliverer,
		Deadline:        cfg.ChatDeadline,
		CallbackEnabled: cfg.ChatCallbackEnabled,
		AckCallback:     cfg.ChatCallbackAck,
		Metrics:         chatMetrics,
		Logger:          logger,
	})
	if err != nil {
		return fail(err)
	}
	svc.Coordinator = coordinator
	return svc, nil
}
