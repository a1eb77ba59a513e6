package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel"

	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/replylog"
	"github.com/ossterm/marketbot/pkg/logging"
)

// BuildReplyLogStore selects the REPLYLOG_BACKEND implementation. The
// returned cleanup releases any connection it opened.
func BuildReplyLogStore(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (replylog.Store, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.ReplyLogBackend {
	case "", "file":
		store, err := replylog.NewFileStore(cfg.ReplyLogPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reply log backend", "backend", "file", "path", cfg.ReplyLogPath)
		return store, func() {}, nil

	case "memory":
		logger.Info("reply log backend", "backend", "memory")
		return replylog.NewMemoryStore(), func() {}, nil

	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, errors.New("bootstrap: redis reply log requires a reachable REDIS_ADDR")
		}
		logger.Info("reply log backend", "backend", "redis", "addr", cfg.RedisAddr)
		store := replylog.NewRedisStore(client, cfg.ReplyLogTTL, otel.Tracer("marketbot/replylog"))
		return store, func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := BuildPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := replylog.NewPGStore(pool, cfg.ReplyLogTable)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("reply log backend", "backend", "postgres", "table", cfg.ReplyLogTable)
		return store, pool.Close, nil

	case "dynamodb":
		if awsCfg == nil {
			return nil, nil, errors.New("bootstrap: dynamodb reply log requires aws config")
		}
		logger.Info("reply log backend", "backend", "dynamodb", "table", cfg.ReplyLogTable)
		store := replylog.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.ReplyLogTable, cfg.ReplyLogTTL)
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown REPLYLOG_BACKEND %q", cfg.ReplyLogBackend)
	}
}
