package notifysvc

import (
	"context"
	"sync"

	"github.com/trezcool/rollcall/core/drill"
)

// DummyChannel is a manually fired change stream for tests and local
// runs without a live database.
type DummyChannel struct {
	out       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ drill.ChangeChannel = (*DummyChannel)(nil)

func NewDummyChannel() *DummyChannel {
	return &DummyChannel{
		out:  make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *DummyChannel) Subscribe(_ context.Context, _ string) (<-chan struct{}, error) {
	return c.out, nil
}

// Fire emits one change signal; dropped if the subscriber has one
// pending already.
func (c *DummyChannel) Fire() {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- struct{}{}:
	default:
	}
}

func (c *DummyChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.out)
	})
	return nil
}
