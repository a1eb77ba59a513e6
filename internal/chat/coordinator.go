// Package chat coordinates one webhook call: it races the dispatched work
// against the reply deadline, answers inline or with a placeholder, and
// keeps a detached waiter that posts the real answer to the callback URL.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/internal/observability/metrics"
	"github.com/ossterm/marketbot/pkg/logging"
)

// Reply outcomes.
const (
	OutcomeImmediate = "immediate"
	OutcomeDeferred  = "deferred"
	OutcomeAck       = "ack"
)

const defaultDeadline = 3500 * time.Millisecond

// Reply is what the webhook returns to the platform.
type Reply struct {
	Response *kakao.Response
	Outcome  string
	TaskID   string
}

// Config wires a Coordinator.
type Config struct {
	Dispatcher Dispatcher
	Deliverer  Deliverer
	// Deadline bounds how long Handle waits for the answer.
	Deadline time.Duration
	// CallbackEnabled starts the detached delivery whenever a callback URL is present.
	CallbackEnabled bool
	// AckCallback answers an in-time reply with the useCallback acknowledgement
	// instead of the payload itself.
	AckCallback bool
	Metrics     *metrics.ChatMetrics
	Logger      *logging.Logger
}

// Coordinator is safe for concurrent use. Each Handle call gets its own
// cell and worker.
type Coordinator struct {
	worker          *Worker
	deliverer       Deliverer
	deadline        time.Duration
	callbackEnabled bool
	ackCallback     bool
	metrics         *metrics.ChatMetrics
	logger          *logging.Logger

	inflight sync.WaitGroup
}

func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("chat: dispatcher required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.CallbackEnabled && cfg.Deliverer == nil {
		cfg.Deliverer = NewHTTPDeliverer(nil, 0)
	}
	return &Coordinator{
		worker:          NewWorker(cfg.Dispatcher, cfg.Logger),
		deliverer:       cfg.Deliverer,
		deadline:        cfg.Deadline,
		callbackEnabled: cfg.CallbackEnabled,
		ackCallback:     cfg.AckCallback,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}, nil
}

// Handle returns within the deadline. The worker is never cancelled: it runs
// to completion on a context detached from the request, and its result still
// reaches the callback URL and the reply log after Handle has returned.
func (c *Coordinator) Handle(ctx context.Context, u dispatch.Utterance) Reply {
	taskID := uuid.NewString()
	logger := c.logger.With("task_id", taskID)
	start := time.Now()

	cell := NewCell()
	workCtx := context.WithoutCancel(ctx)
	c.spawn(func() { c.worker.Run(workCtx, u, cell) })

	callback := c.callbackEnabled && u.CallbackURL != ""
	if callback {
		c.spawn(func() { c.deliver(workCtx, logger, u.CallbackURL, cell) })
	}

	timer := time.NewTimer(c.deadline)
	defer timer.Stop()

	var reply Reply
	select {
	case <-cell.Done():
		resp, err := cell.Wait(workCtx)
		if err != nil {
			logger.Warn("dispatch returned error reply", "error", err)
		}
		reply = Reply{Response: resp, Outcome: OutcomeImmediate, TaskID: taskID}
		if callback && c.ackCallback {
			reply = Reply{Response: kakao.CallbackAck(), Outcome: OutcomeAck, TaskID: taskID}
		}
	case <-timer.C:
		reply = Reply{Response: kakao.Timeover(), Outcome: OutcomeDeferred, TaskID: taskID}
	case <-ctx.Done():
		reply = Reply{Response: kakao.Timeover(), Outcome: OutcomeDeferred, TaskID: taskID}
	}

	c.metrics.ObserveReply(reply.Outcome)
	logger.Info("chat reply decided",
		"outcome", reply.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
		"callback", callback,
	)
	return reply
}

// deliver waits without a timeout for the worker, then posts once.
// Failures are logged and never retried.
func (c *Coordinator) deliver(ctx context.Context, logger *logging.Logger, callbackURL string, cell *Cell) {
	resp, _ := cell.Wait(ctx)
	if resp == nil {
		return
	}
	if err := c.deliverer.Deliver(ctx, callbackURL, resp); err != nil {
		c.metrics.ObserveCallback("failed")
		logger.Warn("callback delivery failed", "error", err)
		return
	}
	c.metrics.ObserveCallback("delivered")
	logger.Debug("callback delivered")
}

func (c *Coordinator) spawn(fn func()) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		fn()
	}()
}

// Shutdown waits for detached workers and deliveries to finish, or for ctx
// to end.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
