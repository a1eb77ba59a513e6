package chat

import (
	"context"
	"sync"

	"github.com/ossterm/marketbot/internal/kakao"
)

// Cell is a write-once latch carrying one reply from a worker to any number
// of waiters. Every waiter observes the same value.
type Cell struct {
	once sync.Once
	done chan struct{}
	resp *kakao.Response
	err  error
}

func NewCell() *Cell {
	return &Cell{done: make(chan struct{})}
}

// Resolve stores the result and releases all waiters. Only the first call
// has any effect; it reports whether this call won.
func (c *Cell) Resolve(resp *kakao.Response, err error) bool {
	won := false
	c.once.Do(func() {
		c.resp = resp
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// Done is closed once the cell is resolved.
func (c *Cell) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cell is resolved or ctx ends.
func (c *Cell) Wait(ctx context.Context) (*kakao.Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
