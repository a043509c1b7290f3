// Package subscription is the long-lived push stream of log-bundles, with
// exponential-backoff reconnect and liveness tracking (spec.md §4.4). The
// reconnect loop's shape is grounded on websocket_manager.rs in the
// reference implementation, adapted to Go's background-goroutine idiom the
// way core/connection_pool.go's reaper loop is structured in the wider
// Synnergy codebase.
package subscription

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/obslog"
)

// State is one of the Subscription Client's background-task states
// (spec.md §4.4 "state machine").
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateReconnecting
	StateTerminated
)

// bundleChanCapacity is the bounded channel capacity spec.md §5 names for
// the live subscription's backpressure.
const bundleChanCapacity = 1024

// pollInterval bounds how promptly a stop() signal or a dead connection is
// observed while waiting on the WebSocket read.
const pollInterval = 100 * time.Millisecond

// Policy is the reconnect backoff configuration (spec.md §4.4).
type Policy struct {
	MaxAttempts int // 0 = unlimited
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NextDelay computes the i-th (1-indexed) reconnect delay: min(base *
// 2^(i-1), max) (spec.md §8 testable property 7).
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Client is the Subscription Client. It satisfies chainrpc.Subscriber so
// the Indexer Engine can be driven by a fake in tests.
type Client struct {
	url    string
	filter chainrpc.LogsFilter
	policy Policy
	log    *logrus.Entry

	dialer *websocket.Dialer

	state        atomic.Int32
	lastReceived atomic.Value // time.Time
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// New builds a Subscription Client. dialer may be nil to use
// websocket.DefaultDialer.
func New(url string, filter chainrpc.LogsFilter, policy Policy, log *logrus.Entry, dialer *websocket.Dialer) *Client {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c := &Client{
		url:    url,
		filter: filter,
		policy: policy,
		log:    log,
		dialer: dialer,
		stopCh: make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// LogsSubscribe implements chainrpc.Subscriber. It starts the background
// reconnect-loop task and returns the bounded consumer channel. The
// returned close function ends only this subscription's task; Stop ends
// every task the Client has started.
func (c *Client) LogsSubscribe(ctx context.Context, filter chainrpc.LogsFilter, commitment chainrpc.Commitment) (<-chan chainrpc.LogBundle, func() error, error) {
	c.filter = filter
	out := make(chan chainrpc.LogBundle, bundleChanCapacity)
	subCtx, cancel := context.WithCancel(ctx)
	go c.run(subCtx, out)
	return out, func() error { cancel(); return nil }, nil
}

// State returns the current background-task state.
func (c *Client) State() State { return State(c.state.Load()) }

// TimeSinceLastReceived reports how long ago the last bundle arrived, or
// ok=false if nothing has ever arrived (spec.md §4.4).
func (c *Client) TimeSinceLastReceived() (d time.Duration, ok bool) {
	v := c.lastReceived.Load()
	if v == nil {
		return 0, false
	}
	return time.Since(v.(time.Time)), true
}

// Stop signals the producer task to exit after its current message.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) run(ctx context.Context, out chan<- chainrpc.LogBundle) {
	defer close(out)

	attempts := 0
	for {
		if c.stopped() || ctx.Err() != nil {
			c.state.Store(int32(StateTerminated))
			return
		}

		c.state.Store(int32(StateConnecting))
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			obslog.Error(c.log, "subscribe: dial failed", err, nil)
			if !c.waitForRetry(&attempts) {
				c.state.Store(int32(StateTerminated))
				return
			}
			continue
		}

		if err := sendSubscribeRequest(conn, c.filter); err != nil {
			obslog.Error(c.log, "subscribe: request failed", err, nil)
			_ = conn.Close()
			if !c.waitForRetry(&attempts) {
				c.state.Store(int32(StateTerminated))
				return
			}
			continue
		}

		obslog.Activity(c.log, "subscribe: connection established", nil)
		c.state.Store(int32(StateStreaming))
		attempts = 0

		streamErr := c.stream(ctx, conn, out)
		_ = conn.Close()
		if streamErr == errStopped {
			c.state.Store(int32(StateTerminated))
			return
		}
		obslog.Error(c.log, "subscribe: stream ended, reconnecting", streamErr, nil)

		c.state.Store(int32(StateReconnecting))
		if !c.waitForRetry(&attempts) {
			c.state.Store(int32(StateTerminated))
			return
		}
	}
}

var errStopped = &stoppedError{}

type stoppedError struct{}

func (*stoppedError) Error() string { return "subscription: stopped" }

// waitForRetry sleeps the next backoff delay, incrementing attempts. It
// returns false if the client has exhausted its reconnect budget or has
// been told to stop.
func (c *Client) waitForRetry(attempts *int) bool {
	if c.stopped() {
		return false
	}
	*attempts++
	if c.policy.MaxAttempts > 0 && *attempts > c.policy.MaxAttempts {
		obslog.Activity(c.log, "subscribe: reconnect attempts exhausted", logrus.Fields{"attempts": *attempts})
		return false
	}
	delay := c.policy.NextDelay(*attempts)
	obslog.Activity(c.log, "subscribe: reconnecting", logrus.Fields{"attempt": *attempts, "delay": delay.String()})

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stopCh:
		return false
	}
}

// stream reads bundles off conn until the connection errs, the context is
// cancelled, or stop() is called. It polls with pollInterval so stop() is
// observed promptly (spec.md §5 "the buffer task's receive uses a 100 ms
// poll").
func (c *Client) stream(ctx context.Context, conn *websocket.Conn, out chan<- chainrpc.LogBundle) error {
	msgs := make(chan chainrpc.LogBundle)
	errs := make(chan error, 1)
	go readLoop(conn, msgs, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return errStopped
		case err := <-errs:
			return err
		case b := <-msgs:
			c.lastReceived.Store(time.Now())
			select {
			case out <- b:
			case <-c.stopCh:
				return errStopped
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-time.After(pollInterval):
			// re-check stop/ctx above without blocking indefinitely on a
			// connection that may never send another frame.
		}
	}
}
