package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/replylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callbackRecorder struct {
	mu     sync.Mutex
	bodies []kakao.Response
	hits   chan struct{}
	status int
}

func newCallbackServer(t *testing.T, status int) (*httptest.Server, *callbackRecorder) {
	t.Helper()
	rec := &callbackRecorder{hits: make(chan struct{}, 8), status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var resp kakao.Response
		_ = json.Unmarshal(data, &resp)
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, resp)
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
		rec.hits <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func (r *callbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func slowDispatcher(delay time.Duration, text string) Dispatcher {
	return dispatchFunc(func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
		time.Sleep(delay)
		return kakao.Text(text), nil
	})
}

func TestCoordinator_FastWorkIsReturnedInline(t *testing.T) {
	coord, err := NewCoordinator(Config{Dispatcher: slowDispatcher(20*time.Millisecond, "real"), Deadline: time.Second})
	require.NoError(t, err)

	start := time.Now()
	reply := coord.Handle(context.Background(), dispatch.Utterance{Text: "hi"})
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeImmediate, reply.Outcome)
	assert.Equal(t, "real", reply.Response.FirstText())
	assert.NotEmpty(t, reply.TaskID)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestCoordinator_SlowWorkGetsPlaceholderThenOneCallback(t *testing.T) {
	srv, rec := newCallbackServer(t, http.StatusOK)
	coord, err := NewCoordinator(Config{
		Dispatcher:      slowDispatcher(300*time.Millisecond, "late answer"),
		Deadline:        50 * time.Millisecond,
		CallbackEnabled: true,
	})
	require.NoError(t, err)

	start := time.Now()
	reply := coord.Handle(context.Background(), dispatch.Utterance{Text: "hi", CallbackURL: srv.URL})
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeDeferred, reply.Outcome)
	assert.True(t, reply.Response.IsPlaceholder())
	assert.Less(t, elapsed, 250*time.Millisecond)
	assert.Equal(t, 0, rec.count(), "callback must wait for the worker")

	select {
	case <-rec.hits:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was never delivered")
	}
	require.NoError(t, coord.Shutdown(context.Background()))

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "late answer", rec.bodies[0].FirstText())
}

func TestCoordinator_CallbackStartedOnImmediatePathToo(t *testing.T) {
	srv, rec := newCallbackServer(t, http.StatusOK)
	coord, err := NewCoordinator(Config{
		Dispatcher:      slowDispatcher(0, "quick"),
		Deadline:        time.Second,
		CallbackEnabled: true,
	})
	require.NoError(t, err)

	reply := coord.Handle(context.Background(), dispatch.Utterance{Text: "hi", CallbackURL: srv.URL})
	assert.Equal(t, OutcomeImmediate, reply.Outcome)
	require.NoError(t, coord.Shutdown(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestCoordinator_AckModeReturnsUseCallback(t *testing.T) {
	srv, rec := newCallbackServer(t, http.StatusOK)
	coord, err := NewCoordinator(Config{
		Dispatcher:      slowDispatcher(0, "quick"),
		Deadline:        time.Second,
		CallbackEnabled: true,
		AckCallback:     true,
	})
	require.NoError(t, err)

	reply := coord.Handle(context.Background(), dispatch.Utterance{Text: "hi", CallbackURL: srv.URL})
	assert.Equal(t, OutcomeAck, reply.Outcome)
	assert.True(t, reply.Response.UseCallback)
	require.NoError(t, coord.Shutdown(context.Background()))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "quick", rec.bodies[0].FirstText())
}

func TestCoordinator_NoCallbackWithoutURLOrWhenDisabled(t *testing.T) {
	var delivered atomic.Int32
	deliverer := deliverFunc(func(ctx context.Context, url string, resp *kakao.Response) error {
		delivered.Add(1)
		return nil
	})

	coord, err := NewCoordinator(Config{Dispatcher: slowDispatcher(0, "x"), Deliverer: deliverer, CallbackEnabled: true})
	require.NoError(t, err)
	coord.Handle(context.Background(), dispatch.Utterance{Text: "hi"})
	require.NoError(t, coord.Shutdown(context.Background()))

	coord, err = NewCoordinator(Config{Dispatcher: slowDispatcher(0, "x"), Deliverer: deliverer})
	require.NoError(t, err)
	coord.Handle(context.Background(), dispatch.Utterance{Text: "hi", CallbackURL: "http://example.invalid/cb"})
	require.NoError(t, coord.Shutdown(context.Background()))

	assert.Equal(t, int32(0), delivered.Load())
}

func TestCoordinator_CallbackFailureDoesNotAffectReply(t *testing.T) {
	srv, rec := newCallbackServer(t, http.StatusInternalServerError)
	coord, err := NewCoordinator(Config{
		Dispatcher:      slowDispatcher(0, "answer"),
		Deadline:        time.Second,
		CallbackEnabled: true,
	})
	require.NoError(t, err)

	reply := coord.Handle(context.Background(), dispatch.Utterance{Text: "hi", CallbackURL: srv.URL})
	assert.Equal(t, "answer", reply.Response.FirstText())
	require.NoError(t, coord.Shutdown(context.Background()))
	assert.Equal(t, 1, rec.count(), "no retry after a failed delivery")
}

func TestCoordinator_WorkerOutlivesCancelledRequest(t *testing.T) {
	store := replylog.NewMemoryStore()
	d, err := dispatch.New(dispatch.Config{Store: store, Generator: generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		time.Sleep(100 * time.Millisecond)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "finished anyway", nil
	})})
	require.NoError(t, err)

	coord, err := NewCoordinator(Config{Dispatcher: d, Deadline: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reply := coord.Handle(ctx, dispatch.Utterance{Text: "slow question"})
	cancel()
	assert.Equal(t, OutcomeDeferred, reply.Outcome)

	require.NoError(t, coord.Shutdown(context.Background()))

	followUp := coord.Handle(context.Background(), dispatch.Utterance{Text: kakao.FinishedMarker})
	assert.Equal(t, OutcomeImmediate, followUp.Outcome)
	assert.Equal(t, "finished anyway", followUp.Response.FirstText())
}

func TestCoordinator_ShutdownTimesOut(t *testing.T) {
	coord, err := NewCoordinator(Config{Dispatcher: slowDispatcher(500*time.Millisecond, "x"), Deadline: 10 * time.Millisecond})
	require.NoError(t, err)
	coord.Handle(context.Background(), dispatch.Utterance{Text: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, coord.Shutdown(ctx), context.DeadlineExceeded)
}

func TestNewCoordinator_RequiresDispatcher(t *testing.T) {
	_, err := NewCoordinator(Config{})
	assert.Error(t, err)
}

type deliverFunc func(ctx context.Context, url string, resp *kakao.Response) error

func (f deliverFunc) Deliver(ctx context.Context, url string, resp *kakao.Response) error {
	return f(ctx, url, resp)
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
