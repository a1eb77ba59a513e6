package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/ossterm/marketbot/internal/config"
	"github.com/ossterm/marketbot/internal/llm"
	"github.com/ossterm/marketbot/pkg/logging"
)

// BuildLLMClient wires LLM_PROVIDER, wrapped with LLM_FALLBACK_PROVIDER
// when one is set.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (llm.Client, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var cleanup closers
	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup.add(closePrimary)
	logger.Info("llm provider configured", "provider", cfg.LLMProvider)

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		return primary, cleanup.close, nil
	}
	fallback, closeFallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("llm fallback disabled", "provider", fallbackName, "error", err)
		return primary, cleanup.close, nil
	}
	cleanup.add(closeFallback)
	logger.Info("llm fallback configured", "provider", fallbackName)
	return llm.NewFallbackClient(primary, fallback, logger), cleanup.close, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (llm.Client, func(), error) {
	switch name {
	case "", "openai", "groq":
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil

	case "bedrock":
		if awsCfg == nil {
			return nil, nil, errors.New("bootstrap: bedrock requires aws config")
		}
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, errors.New("bootstrap: BEDROCK_MODEL_ID is required")
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil, nil

	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
