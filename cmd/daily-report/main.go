package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ossterm/marketbot/cmd/mainconfig"
	"github.com/ossterm/marketbot/internal/app/bootstrap"
	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/pkg/logging"
)

func main() {
	schedule := flag.Bool("schedule", false, "run every day at REPORT_SCHEDULE_AT instead of once")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address while scheduled")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *schedule, *metricsAddr, logger); err != nil {
		logger.Error("daily report exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, schedule bool, metricsAddr string, logger *logging.Logger) error {
	awsCfg, err := mainconfig.OptionalAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reporter, cleanup, err := bootstrap.BuildDailyReporter(ctx, cfg, awsCfg, nil, metrics.NewReportMetrics(reg), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if !schedule {
		return reporter.Run(ctx)
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	logger.Info("daily report scheduler started", "at", cfg.ReportScheduleAt, "timezone", cfg.ReportTimezone)
	if err := reporter.RunDaily(ctx, cfg.ReportScheduleAt, cfg.ReportLocation()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
