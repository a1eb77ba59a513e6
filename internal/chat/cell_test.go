package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_FirstResolveWins(t *testing.T) {
	cell := NewCell()
	assert.True(t, cell.Resolve(kakao.Text("first"), nil))
	assert.False(t, cell.Resolve(kakao.Text("second"), errors.New("late")))

	resp, err := cell.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", resp.FirstText())
}

func TestCell_BroadcastsToEveryWaiter(t *testing.T) {
	cell := NewCell()

	const waiters = 5
	var wg sync.WaitGroup
	got := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := cell.Wait(context.Background())
			if err == nil {
				got[i] = resp.FirstText()
			}
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	cell.Resolve(kakao.Text("answer"), nil)
	wg.Wait()

	for i := range got {
		assert.Equal(t, "answer", got[i])
	}
}

func TestCell_WaitHonorsContext(t *testing.T) {
	cell := NewCell()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cell.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cell.Done():
		t.Fatal("cell should still be unresolved")
	default:
	}
}
