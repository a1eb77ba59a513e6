package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/replylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

type stubRetriever struct {
	answer string
	err    error
	query  string
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	s.query = query
	return s.answer, s.err
}

type stubSearcher struct {
	answer string
	query  string
}

func (s *stubSearcher) Search(ctx context.Context, query string) (string, error) {
	s.query = query
	return s.answer, nil
}

type stubReports struct {
	err    error
	called string
}

func (s *stubReports) build(name string) (*kakao.Response, error) {
	s.called = name
	if s.err != nil {
		return nil, s.err
	}
	return kakao.Text(name), nil
}

func (s *stubReports) Correlation(ctx context.Context, baseURL string) (*kakao.Response, error) {
	return s.build("correlation")
}
func (s *stubReports) FearGreed(ctx context.Context, baseURL string) (*kakao.Response, error) {
	return s.build("fear_greed")
}
func (s *stubReports) Dashboard(ctx context.Context, baseURL string) (*kakao.Response, error) {
	return s.build("dashboard")
}
func (s *stubReports) IndexTables(ctx context.Context, baseURL string) (*kakao.Response, error) {
	return s.build("index_tables")
}

type failingStore struct{ replylog.Store }

func (failingStore) Clear(ctx context.Context, key string) error { return errors.New("disk full") }

func newTestDispatcher(t *testing.T, store replylog.Store) (*Dispatcher, *stubGenerator, *stubRetriever, *stubSearcher, *stubReports) {
	t.Helper()
	gen := &stubGenerator{answer: "world"}
	ret := &stubRetriever{answer: "retrieved"}
	srch := &stubSearcher{answer: "searched"}
	reps := &stubReports{}
	d, err := New(Config{Store: store, Generator: gen, Retriever: ret, Searcher: srch, Reports: reps})
	require.NoError(t, err)
	return d, gen, ret, srch, reps
}

func TestRuleFor_PriorityOrder(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t, replylog.NewMemoryStore())

	cases := map[string]string{
		kakao.FinishedMarker:         RuleFinished,
		"/s " + kakao.FinishedMarker: RuleFinished,
		"/get C":                     RuleCorrelation,
		"/get Correlation":           RuleCorrelation,
		"Fear & Greed":               RuleFearGreed,
		"오늘 Fear & Greed 알려줘":        RuleFearGreed,
		"Dashboard":                  RuleDashboard,
		"Dashboard please":           RuleAsk,
		"주요 종목":                      RuleIndexTables,
		"오늘의 뉴스":                     RuleNews,
		"오늘의 뉴스 알려줘":                 RuleAsk,
		"/v 금리 전망":                   RuleRetrieval,
		"/s 환율":                      RuleSearch,
		"hello":                      RuleAsk,
		"tell me about /v and /s":    RuleAsk,
		"":                           RuleAsk,
	}
	for text, want := range cases {
		assert.Equal(t, want, d.RuleFor(text), "utterance %q", text)
	}
}

func TestDefaultRules_ExactlyOneWinnerAndCatchAllLast(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules)
	last := rules[len(rules)-1]
	assert.Equal(t, RuleAsk, last.Name)
	assert.True(t, last.Match("anything at all"))

	seen := map[string]bool{}
	for _, r := range rules {
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
	}
}

func TestDispatch_DefaultAskPersistsEntry(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, gen, _, _, _ := newTestDispatcher(t, store)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.FirstText())
	assert.Equal(t, []string{"hello"}, gen.prompts)

	entry, err := store.Read(context.Background(), replylog.GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, replylog.Entry{Kind: "ask", Answer: "world", Prompt: "hello"}, entry)
	assert.Equal(t, "ask world hello", replylog.Encode(entry))
}

func TestDispatch_FinishedReplaysAndClears(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, gen, _, _, _ := newTestDispatcher(t, store)
	gen.answer = "a multi word answer"

	_, err := d.Dispatch(context.Background(), Utterance{Text: "what happened today"})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker})
	require.NoError(t, err)
	assert.Equal(t, "a multi word answer", resp.FirstText())

	_, err = store.Read(context.Background(), replylog.GlobalKey)
	assert.ErrorIs(t, err, replylog.ErrEmpty)
}

func TestDispatch_FinishedWithEmptyLogReturnsPlaceholder(t *testing.T) {
	d, gen, _, _, _ := newTestDispatcher(t, replylog.NewMemoryStore())

	resp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.IsPlaceholder())
	assert.Empty(t, gen.prompts)
}

func TestDispatch_FinishedReplaysImageEntry(t *testing.T) {
	store := replylog.NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), replylog.GlobalKey, replylog.Entry{
		Kind: replylog.KindImage, Answer: "https://example.com/a.png", Prompt: "차트",
	}))
	d, _, _, _, _ := newTestDispatcher(t, store)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker})
	require.NoError(t, err)
	require.Len(t, resp.Template.Outputs, 1)
	img := resp.Template.Outputs[0].SimpleImage
	require.NotNil(t, img)
	assert.Equal(t, "https://example.com/a.png", img.ImageURL)
	assert.Equal(t, "차트내용에 관한 이미지입니다", img.AltText)
}

func TestDispatch_ReportsClearLogAndDoNotPersist(t *testing.T) {
	store := replylog.NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), replylog.GlobalKey, replylog.Entry{Kind: "ask", Answer: "old", Prompt: "p"}))
	d, _, _, _, reps := newTestDispatcher(t, store)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "Dashboard", BaseURL: "http://host/"})
	require.NoError(t, err)
	assert.Equal(t, "dashboard", reps.called)
	assert.Equal(t, "dashboard", resp.FirstText())

	_, err = store.Read(context.Background(), replylog.GlobalKey)
	assert.ErrorIs(t, err, replylog.ErrEmpty)
}

func TestDispatch_ReportFailureBecomesApology(t *testing.T) {
	d, _, _, _, reps := newTestDispatcher(t, replylog.NewMemoryStore())
	reps.err = errors.New("missing csv")

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "Fear & Greed"})
	require.NoError(t, err)
	assert.Equal(t, apologyText, resp.FirstText())
}

func TestDispatch_RetrievalAndSearchStripPrefix(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, _, ret, srch, _ := newTestDispatcher(t, store)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "/v 금리 전망"})
	require.NoError(t, err)
	assert.Equal(t, "retrieved", resp.FirstText())
	assert.Equal(t, "금리 전망", ret.query)
	entry, err := store.Read(context.Background(), replylog.GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, replylog.KindRetrieval, entry.Kind)

	resp, err = d.Dispatch(context.Background(), Utterance{Text: "/s 환율 전망"})
	require.NoError(t, err)
	assert.Equal(t, "searched", resp.FirstText())
	assert.Equal(t, "환율 전망", srch.query)
	entry, err = store.Read(context.Background(), replylog.GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, replylog.Entry{Kind: replylog.KindSearch, Answer: "searched", Prompt: "환율 전망"}, entry)
}

func TestDispatch_NewsUsesFixedQuestion(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, _, ret, _, _ := newTestDispatcher(t, store)

	_, err := d.Dispatch(context.Background(), Utterance{Text: "오늘의 뉴스"})
	require.NoError(t, err)
	assert.Equal(t, newsQuestion, ret.query)
	entry, err := store.Read(context.Background(), replylog.GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, replylog.KindNews, entry.Kind)
}

func TestDispatch_EmptyCommandQueryAsksForInput(t *testing.T) {
	for _, command := range []string{"/v", "/s"} {
		t.Run(command, func(t *testing.T) {
			store := replylog.NewMemoryStore()
			d, _, ret, srch, _ := newTestDispatcher(t, store)

			_, err := d.Dispatch(context.Background(), Utterance{Text: "hello"})
			require.NoError(t, err)

			resp, err := d.Dispatch(context.Background(), Utterance{Text: command})
			require.NoError(t, err)
			assert.Contains(t, resp.FirstText(), command)
			assert.Empty(t, ret.query)
			assert.Empty(t, srch.query)

			_, err = store.Read(context.Background(), replylog.GlobalKey)
			assert.ErrorIs(t, err, replylog.ErrEmpty)

			followUp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker})
			require.NoError(t, err)
			assert.True(t, followUp.IsPlaceholder())
		})
	}
}

func TestDispatch_EmptyCommandQuerySurfacesClearFailure(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t, failingStore{Store: replylog.NewMemoryStore()})

	_, err := d.Dispatch(context.Background(), Utterance{Text: "/s"})
	assert.Error(t, err)
}

func TestDispatch_GeneratorFailureBecomesApologyAndSkipsLog(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, gen, _, _, _ := newTestDispatcher(t, store)
	gen.err = errors.New("rate limited")

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, apologyText, resp.FirstText())

	_, err = store.Read(context.Background(), replylog.GlobalKey)
	assert.ErrorIs(t, err, replylog.ErrEmpty)
}

func TestDispatch_MissingRetrieverBecomesApology(t *testing.T) {
	d, err := New(Config{Store: replylog.NewMemoryStore(), Generator: &stubGenerator{answer: "x"}})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "/v anything"})
	require.NoError(t, err)
	assert.Equal(t, apologyText, resp.FirstText())
}

func TestDispatch_StoreFailureIsReturned(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t, failingStore{replylog.NewMemoryStore()})

	resp, err := d.Dispatch(context.Background(), Utterance{Text: "hello"})
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch: ask")
}

func TestDispatch_UserScopeIsolatesSlots(t *testing.T) {
	store := replylog.NewMemoryStore()
	gen := &stubGenerator{answer: "for alice"}
	d, err := New(Config{Store: store, Scope: replylog.ScopeUser, Generator: gen})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), Utterance{Text: "q", UserID: "alice"})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker, UserID: "bob"})
	require.NoError(t, err)
	assert.True(t, resp.IsPlaceholder())

	resp, err = d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "for alice", resp.FirstText())
}

// With the default global slot a second user's question overwrites the
// first user's pending answer. This is the single-slot behavior, not a bug
// in the test.
func TestDispatch_GlobalScopeSharesSlotAcrossUsers(t *testing.T) {
	store := replylog.NewMemoryStore()
	gen := &stubGenerator{answer: "answer"}
	d, err := New(Config{Store: store, Generator: gen})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, _ = d.Dispatch(context.Background(), Utterance{Text: "question from " + user, UserID: user})
		}(user)
	}
	wg.Wait()

	resp, err := d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.FirstText())

	resp, err = d.Dispatch(context.Background(), Utterance{Text: kakao.FinishedMarker, UserID: "bob"})
	require.NoError(t, err)
	assert.True(t, resp.IsPlaceholder(), "the single slot was already consumed")
}

func TestNew_RequiresStoreAndGenerator(t *testing.T) {
	_, err := New(Config{Generator: &stubGenerator{}})
	assert.Error(t, err)
	_, err = New(Config{Store: replylog.NewMemoryStore()})
	assert.Error(t, err)
}
