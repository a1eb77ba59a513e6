package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/replylog"
)

// Rule names.
const (
	RuleFinished    = "finished"
	RuleCorrelation = "correlation"
	RuleFearGreed   = "fear_greed"
	RuleDashboard   = "dashboard"
	RuleIndexTables = "index_tables"
	RuleNews        = "news"
	RuleRetrieval   = "retrieval"
	RuleSearch      = "search"
	RuleAsk         = "ask"
)

const (
	correlationPrefix = "/get C"
	retrievalPrefix   = "/v"
	searchPrefix      = "/s"
)

// Rule pairs a predicate over the utterance text with its handler.
type Rule struct {
	Name   string
	Match  func(text string) bool
	Handle func(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error)
}

// DefaultRules returns the rule table in priority order. The last rule
// matches everything.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleFinished, Match: contains(kakao.FinishedMarker), Handle: handleFinished},
		{Name: RuleCorrelation, Match: hasPrefix(correlationPrefix), Handle: reportHandler(Reports.Correlation)},
		{Name: RuleFearGreed, Match: contains("Fear & Greed"), Handle: reportHandler(Reports.FearGreed)},
		{Name: RuleDashboard, Match: equals("Dashboard"), Handle: reportHandler(Reports.Dashboard)},
		{Name: RuleIndexTables, Match: equals("주요 종목"), Handle: reportHandler(Reports.IndexTables)},
		{Name: RuleNews, Match: equals("오늘의 뉴스"), Handle: handleNews},
		{Name: RuleRetrieval, Match: hasPrefix(retrievalPrefix), Handle: handleRetrieval},
		{Name: RuleSearch, Match: hasPrefix(searchPrefix), Handle: handleSearch},
		{Name: RuleAsk, Match: func(string) bool { return true }, Handle: handleAsk},
	}
}

func contains(marker string) func(string) bool {
	return func(text string) bool { return strings.Contains(text, marker) }
}

func hasPrefix(prefix string) func(string) bool {
	return func(text string) bool { return strings.HasPrefix(strings.TrimSpace(text), prefix) }
}

func equals(want string) func(string) bool {
	return func(text string) bool { return strings.TrimSpace(text) == want }
}

// handleFinished replays the pending reply and clears it. With nothing
// pending the timeover placeholder is returned again so the user keeps a way
// to retry.
func handleFinished(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
	key := d.key(u)
	entry, err := d.store.Read(ctx, key)
	if errors.Is(err, replylog.ErrEmpty) {
		return kakao.Timeover(), nil
	}
	if err != nil {
		return nil, err
	}

	var resp *kakao.Response
	if entry.Kind == replylog.KindImage {
		resp = kakao.Image(entry.Answer, fmt.Sprintf(imageAltFmt, entry.Prompt))
	} else {
		resp = kakao.Text(entry.Answer)
	}
	if err := d.store.Clear(ctx, key); err != nil {
		return nil, err
	}
	return resp, nil
}

func reportHandler(build func(Reports, context.Context, string) (*kakao.Response, error)) func(context.Context, *Dispatcher, Utterance) (*kakao.Response, error) {
	return func(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
		if err := d.store.Clear(ctx, d.key(u)); err != nil {
			return nil, err
		}
		if d.reports == nil {
			return apology(), nil
		}
		resp, err := build(d.reports, ctx, u.BaseURL)
		if err != nil {
			d.logger.Warn("report unavailable", "error", err)
			return apology(), nil
		}
		return resp, nil
	}
}

func handleNews(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
	return d.answer(ctx, u, replylog.KindNews, newsQuestion, d.retrieve)
}

func handleRetrieval(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
	query := trimCommand(u.Text, retrievalPrefix)
	if query == "" {
		return d.askForQuery(ctx, u, retrievalPrefix)
	}
	return d.answer(ctx, u, replylog.KindRetrieval, query, d.retrieve)
}

func handleSearch(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
	query := trimCommand(u.Text, searchPrefix)
	if query == "" {
		return d.askForQuery(ctx, u, searchPrefix)
	}
	return d.answer(ctx, u, replylog.KindSearch, query, d.search)
}

func handleAsk(ctx context.Context, d *Dispatcher, u Utterance) (*kakao.Response, error) {
	return d.answer(ctx, u, replylog.KindAsk, u.Text, d.generator.Generate)
}

// askForQuery still clears the slot so a later follow-up cannot replay an
// answer to an older question.
func (d *Dispatcher) askForQuery(ctx context.Context, u Utterance, prefix string) (*kakao.Response, error) {
	if err := d.store.Clear(ctx, d.key(u)); err != nil {
		return nil, err
	}
	return kakao.Text(fmt.Sprintf(emptyQuery, prefix)), nil
}

// answer clears the slot, runs the collaborator, and persists the result so
// the finished rule can replay it.
func (d *Dispatcher) answer(ctx context.Context, u Utterance, kind, prompt string, produce func(context.Context, string) (string, error)) (*kakao.Response, error) {
	key := d.key(u)
	if err := d.store.Clear(ctx, key); err != nil {
		return nil, err
	}

	text, err := produce(ctx, prompt)
	if err != nil {
		d.logger.Warn("collaborator failed", "kind", kind, "error", err)
		return apology(), nil
	}
	if strings.TrimSpace(text) == "" {
		return apology(), nil
	}

	if err := d.store.Write(ctx, key, replylog.Entry{Kind: kind, Answer: text, Prompt: prompt}); err != nil {
		return nil, err
	}
	return kakao.Text(text), nil
}

func (d *Dispatcher) retrieve(ctx context.Context, query string) (string, error) {
	if d.retriever == nil {
		return "", errors.New("retriever not configured")
	}
	return d.retriever.Retrieve(ctx, query)
}

func (d *Dispatcher) search(ctx context.Context, query string) (string, error) {
	if d.searcher == nil {
		return "", errors.New("searcher not configured")
	}
	return d.searcher.Search(ctx, query)
}
