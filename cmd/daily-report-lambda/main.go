package main

import (
	"context"
	"fmt"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ossterm/marketbot/cmd/mainconfig"
	"github.com/ossterm/marketbot/internal/app/bootstrap"
	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/pkg/logging"
)

// runner is the part of the reporter the handler needs.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.OptionalAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	reporter, _, err := bootstrap.BuildDailyReporter(ctx, cfg, awsCfg, nil, nil, logger)
	if err != nil {
		panic(err)
	}

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (string, error) {
		return handle(ctx, reporter, logger, evt)
	})
}

// handle runs one report per EventBridge schedule tick.
func handle(ctx context.Context, r runner, logger *logging.Logger, evt events.CloudWatchEvent) (string, error) {
	logger.Info("scheduled report triggered", "event_id", evt.ID, "source", evt.Source, "time", evt.Time)
	if err := r.Run(ctx); err != nil {
		return "", fmt.Errorf("daily report: %w", err)
	}
	return "report delivered", nil
}
