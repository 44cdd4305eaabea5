// Package notifysvc implements the status change stream on Postgres
// LISTEN/NOTIFY. The server fires a NOTIFY from a trigger on every
// status write; subscribers treat each signal as "refetch everything".
package notifysvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/drill"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

type PostgresChannel struct {
	dsn    string
	logger core.Logger

	listener    *pq.Listener
	reconnected chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

var _ drill.ChangeChannel = (*PostgresChannel)(nil)

func NewPostgresChannel(dsn string, logger core.Logger) *PostgresChannel {
	return &PostgresChannel{
		dsn:         dsn,
		logger:      logger,
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Subscribe starts listening on the named channel and returns a stream
// of change signals. Signals are coalesced; delivery order across rows
// is not guaranteed and payloads are dropped.
func (c *PostgresChannel) Subscribe(ctx context.Context, name string) (<-chan struct{}, error) {
	l := pq.NewListener(c.dsn, minReconnectInterval, maxReconnectInterval, c.event)
	if err := l.Listen(name); err != nil {
		_ = l.Close()
		return nil, errors.Wrapf(err, "listening on %q", name)
	}
	c.listener = l

	out := make(chan struct{}, 1)
	go c.relay(ctx, out)
	return out, nil
}

func (c *PostgresChannel) relay(ctx context.Context, out chan<- struct{}) {
	defer close(out)
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-c.listener.Notify:
			// payload is untrusted and ignored
			c.signal(out)
		case <-c.reconnected:
			// writes may have been missed while disconnected
			c.signal(out)
		case <-time.After(pingInterval):
			go func() {
				if err := c.listener.Ping(); err != nil {
					c.logger.Warn(fmt.Sprintf("change stream ping: %v", err), err)
				}
			}()
		}
	}
}

func (c *PostgresChannel) signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}

func (c *PostgresChannel) event(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed:
		c.logger.Warn(fmt.Sprintf("change stream connection attempt failed: %v", err), err)
	case pq.ListenerEventReconnected:
		c.logger.Info("change stream reconnected")
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

// Close tears the subscription down; subsequent calls are no-ops.
func (c *PostgresChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.listener != nil {
			err = c.listener.Close()
		}
	})
	return err
}
