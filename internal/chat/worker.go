package chat

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/pkg/logging"
)

// Dispatcher produces the reply for one utterance.
type Dispatcher interface {
	Dispatch(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error)
}

// Worker runs a dispatch and resolves the cell exactly once. It never
// retries; failures and panics resolve the cell with the error reply.
type Worker struct {
	dispatcher Dispatcher
	logger     *logging.Logger
}

func NewWorker(d Dispatcher, logger *logging.Logger) *Worker {
	if d == nil {
		panic("chat: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{dispatcher: d, logger: logger}
}

func (w *Worker) Run(ctx context.Context, u dispatch.Utterance, cell *Cell) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("chat: dispatch panic: %v", r)
			w.logger.Error("dispatch panicked", "error", err, "stack", string(debug.Stack()))
			cell.Resolve(dispatch.ErrorReply(), err)
		}
	}()

	resp, err := w.dispatcher.Dispatch(ctx, u)
	if err != nil {
		cell.Resolve(dispatch.ErrorReply(), err)
		return
	}
	if resp == nil {
		resp = dispatch.ErrorReply()
	}
	cell.Resolve(resp, nil)
}
