package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ossterm/marketbot/cmd/mainconfig"
	"github.com/ossterm/marketbot/internal/api/router"
	"github.com/ossterm/marketbot/internal/app/bootstrap"
	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/http/handlers"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting marketbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"replylog_backend", cfg.ReplyLogBackend,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.OptionalAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, chatMetrics, reportMetrics := setupMetrics()

	svc, err := bootstrap.BuildChatService(ctx, cfg, awsCfg, chatMetrics, logger)
	if err != nil {
		logger.Error("failed to build chat service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	reportDone := startEmbeddedReport(ctx, cfg, awsCfg, svc, reportMetrics, logger)

	r := router.New(&router.Config{
		Logger: logger,
		ChatHandler: handlers.NewChatHandler(handlers.ChatHandlerConfig{
			Replier:         svc.Coordinator,
			PublicBaseURL:   cfg.PublicBaseURL,
			RequireCallback: cfg.ChatRequireCallbackURL,
			Logger:          logger,
		}),
		MetricsHandler: metricsHandler,
		DataDir:        cfg.DataDir,
		ChatRateLimit:  cfg.ChatRateLimit,
		ChatRateBurst:  cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Answers still being produced are delivered to their callbacks before exit.
	if err := svc.Coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending callbacks abandoned", "error", err)
	}
	if reportDone != nil {
		select {
		case <-reportDone:
		case <-shutdownCtx.Done():
		}
	}

	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.ChatMetrics, *metrics.ReportMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewChatMetrics(reg), metrics.NewReportMetrics(reg)
}

// startEmbeddedReport runs the daily schedule in this process when
// REPORT_EMBEDDED is set. The returned channel closes when it stops.
func startEmbeddedReport(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, svc *bootstrap.ChatService, reportMetrics *metrics.ReportMetrics, logger *logging.Logger) <-chan struct{} {
	if !cfg.ReportEmbedded {
		return nil
	}
	reporter, cleanup, err := bootstrap.BuildDailyReporter(ctx, cfg, awsCfg, &bootstrap.ReportDeps{
		Responder: svc.Responder,
		Index:     svc.Index,
		Embedder:  svc.Embedder,
	}, reportMetrics, logger)
	if err != nil {
		logger.Error("embedded daily report disabled", "error", err)
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cleanup()
		if err := reporter.RunDaily(ctx, cfg.ReportScheduleAt, cfg.ReportLocation()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("daily report scheduler stopped", "error", err)
		}
	}()
	return done
}
