package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ossterm/marketbot/pkg/logging"
)

const dialogueSystem = "You are a participant in a 1:1 dialogue. Respond to the question."

// Responder turns a Client into the single-prompt helpers the bot needs.
type Responder struct {
	client    Client
	timeout   time.Duration
	maxTokens int32
	logger    *logging.Logger
}

type ResponderConfig struct {
	Client Client
	// Timeout bounds each completion; zero means no extra bound.
	Timeout   time.Duration
	MaxTokens int32
	Logger    *logging.Logger
}

func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.Client == nil {
		panic("llm: client cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Responder{
		client:    cfg.Client,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// Generate answers a free-form chat prompt.
func (r *Responder) Generate(ctx context.Context, prompt string) (string, error) {
	return r.Ask(ctx, dialogueSystem, prompt)
}

// Ask sends one system instruction and one user message.
func (r *Responder) Ask(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", errors.New("llm: prompt is empty")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.client.Complete(ctx, Request{
		System:      []string{system},
		Messages:    []Message{{Role: RoleUser, Content: user}},
		MaxTokens:   r.maxTokens,
		Temperature: -1,
	})
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	r.logger.Debug("llm completion",
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp.Text, nil
}
