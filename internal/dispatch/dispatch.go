// Package dispatch routes an utterance to exactly one reply generator using an
// ordered, first-match-wins rule table.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/internal/replylog"
	"github.com/ossterm/marketbot/pkg/logging"
)

const (
	apologyText = "죄송합니다. 답변을 만드는 중에 문제가 발생했어요. 잠시 후 다시 시도해 주세요."
	errorText   = "오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	emptyQuery  = "질문 내용을 함께 입력해 주세요. 예: %s 오늘 미국 증시 요약"

	newsQuestion = "주어진 기사들 중 경제와 시장 상황, 투자, 정치에 관련된 기사 10개를 선정해서 각 기사를 한국어로 요약해줘."
	imageAltFmt  = "%s내용에 관한 이미지입니다"
)

// Utterance is one inbound user message plus the request metadata needed to
// build replies.
type Utterance struct {
	Text        string
	CallbackURL string
	// BaseURL is the absolute URL prefix (with trailing slash) that static
	// assets are served under.
	BaseURL string
	UserID  string
}

// Generator answers a free-form prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever answers a question from the persisted document index.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Searcher answers a question from live web search results.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Reports builds the canned market report replies.
type Reports interface {
	Correlation(ctx context.Context, baseURL string) (*kakao.Response, error)
	FearGreed(ctx context.Context, baseURL string) (*kakao.Response, error)
	Dashboard(ctx context.Context, baseURL string) (*kakao.Response, error)
	IndexTables(ctx context.Context, baseURL string) (*kakao.Response, error)
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Store     replylog.Store
	Scope     replylog.Scope
	Generator Generator
	Retriever Retriever
	Searcher  Searcher
	Reports   Reports
	Metrics   *metrics.ChatMetrics
	Logger    *logging.Logger
}

// Dispatcher evaluates the rule table against an utterance.
type Dispatcher struct {
	rules     []Rule
	store     replylog.Store
	scope     replylog.Scope
	generator Generator
	retriever Retriever
	searcher  Searcher
	reports   Reports
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.Store == nil {
		return nil, errors.New("dispatch: reply log store required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("dispatch: generator required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Scope == "" {
		cfg.Scope = replylog.ScopeGlobal
	}
	return &Dispatcher{
		rules:     DefaultRules(),
		store:     cfg.Store,
		scope:     cfg.Scope,
		generator: cfg.Generator,
		retriever: cfg.Retriever,
		searcher:  cfg.Searcher,
		reports:   cfg.Reports,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

// Dispatch runs the first matching rule. Collaborator failures become an
// apology reply; the returned error is reserved for reply log failures.
func (d *Dispatcher) Dispatch(ctx context.Context, u Utterance) (*kakao.Response, error) {
	rule := d.match(u.Text)
	start := time.Now()

	resp, err := rule.Handle(ctx, d, u)
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.ObserveDispatch(rule.Name, status, time.Since(start).Seconds())
	if err != nil {
		d.logger.Error("dispatch failed", "rule", rule.Name, "error", err)
		return nil, fmt.Errorf("dispatch: %s: %w", rule.Name, err)
	}
	return resp, nil
}

// RuleFor reports which rule handles text.
func (d *Dispatcher) RuleFor(text string) string {
	return d.match(text).Name
}

func (d *Dispatcher) match(text string) Rule {
	for _, rule := range d.rules {
		if rule.Match(text) {
			return rule
		}
	}
	return d.rules[len(d.rules)-1]
}

func (d *Dispatcher) key(u Utterance) string {
	return d.scope.Key(u.UserID)
}

// ErrorReply is sent when dispatch fails outright.
func ErrorReply() *kakao.Response {
	return kakao.Text(errorText)
}

func apology() *kakao.Response {
	return kakao.Text(apologyText)
}

func trimCommand(text, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), prefix))
}
