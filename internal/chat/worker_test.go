package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFunc func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error)

func (f dispatchFunc) Dispatch(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
	return f(ctx, u)
}

func TestWorker_ResolvesWithReply(t *testing.T) {
	w := NewWorker(dispatchFunc(func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
		return kakao.Text("echo " + u.Text), nil
	}), nil)

	cell := NewCell()
	w.Run(context.Background(), dispatch.Utterance{Text: "hi"}, cell)

	resp, err := cell.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "echo hi", resp.FirstText())
}

func TestWorker_ErrorBecomesErrorReply(t *testing.T) {
	w := NewWorker(dispatchFunc(func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
		return nil, errors.New("disk full")
	}), nil)

	cell := NewCell()
	w.Run(context.Background(), dispatch.Utterance{Text: "hi"}, cell)

	resp, err := cell.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, dispatch.ErrorReply().FirstText(), resp.FirstText())
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	w := NewWorker(dispatchFunc(func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
		panic("nil map")
	}), nil)

	cell := NewCell()
	assert.NotPanics(t, func() {
		w.Run(context.Background(), dispatch.Utterance{Text: "hi"}, cell)
	})

	resp, err := cell.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, dispatch.ErrorReply().FirstText(), resp.FirstText())
}

func TestWorker_NilReplyBecomesErrorReply(t *testing.T) {
	w := NewWorker(dispatchFunc(func(ctx context.Context, u dispatch.Utterance) (*kakao.Response, error) {
		return nil, nil
	}), nil)

	cell := NewCell()
	w.Run(context.Background(), dispatch.Utterance{}, cell)

	resp, err := cell.Wait(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp)
}
