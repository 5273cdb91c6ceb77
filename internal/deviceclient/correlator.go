package deviceclient

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Correlator defaults.
const (
	defaultRequestTimeout = 10 * time.Second
	minSweepInterval      = 10 * time.Millisecond
)

// Outcome is the single result delivered to a Future.
type Outcome struct {
	Value any
	Err   error
}

// pending is one outstanding correlated request.
type pending struct {
	createdAt time.Time
	sink      chan Outcome // capacity 1, written once by whoever removes the entry
}

// Future is the caller's handle on a correlated request.
type Future struct {
	id   string
	sink <-chan Outcome
	c    *Correlator
}

// ID returns the request id the future waits on.
func (f *Future) ID() string { return f.id }

// Done returns a channel that receives the outcome exactly once.
func (f *Future) Done() <-chan Outcome { return f.sink }

// Await blocks until the request resolves, expires, or ctx ends.
// The outcome is consumed, so Await is called once per future.
//
// When ctx ends first the request is cancelled, so a late response is
// dropped rather than delivered to nobody.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case out := <-f.sink:
		return out.Value, out.Err
	case <-ctx.Done():
		f.c.Cancel(f.id, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
		// Resolution may have raced the cancel; the sink holds whichever won.
		out := <-f.sink
		return out.Value, out.Err
	}
}

// Correlator matches asynchronous responses to the requests that caused them.
//
// Each entry is resolved at most once: the goroutine that removes it from the
// pending map under the lock is the only one allowed to write its sink.
//
// Thread Safety: all methods are safe for concurrent use.
type Correlator struct {
	prefix  string
	seq     atomic.Uint64
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*pending

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewCorrelator creates a correlator whose requests expire after timeout.
func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Correlator{
		prefix:  uuid.NewString()[:8],
		timeout: timeout,
		now:     time.Now,
		pending: make(map[string]*pending),
		stop:    make(chan struct{}),
	}
}

// NewRequestID returns an id unique for this correlator's lifetime.
func (c *Correlator) NewRequestID() string {
	return c.prefix + "-" + strconv.FormatUint(c.seq.Add(1), 10)
}

// Register creates a pending request. Call it before publishing the request.
func (c *Correlator) Register(requestID string) (*Future, error) {
	sink := make(chan Outcome, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[requestID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequestID, requestID)
	}
	c.pending[requestID] = &pending{createdAt: c.now(), sink: sink}

	return &Future{id: requestID, sink: sink, c: c}, nil
}

// Resolve completes a pending request with value.
//
// It returns false for unknown, expired or already-resolved ids; late and
// retransmitted responses are expected and ignored.
func (c *Correlator) Resolve(requestID string, value any) bool {
	return c.complete(requestID, Outcome{Value: value})
}

// Cancel fails a pending request with err (ErrCancelled when nil).
func (c *Correlator) Cancel(requestID string, err error) bool {
	if err == nil {
		err = ErrCancelled
	}
	return c.complete(requestID, Outcome{Err: err})
}

func (c *Correlator) complete(requestID string, out Outcome) bool {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	p.sink <- out
	return true
}

// CancelAll fails every pending request with err and returns how many there were.
func (c *Correlator) CancelAll(err error) int {
	if err == nil {
		err = ErrCancelled
	}

	c.mu.Lock()
	drained := c.pending
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range drained {
		p.sink <- Outcome{Err: err}
	}
	return len(drained)
}

// Sweep expires requests older than the timeout with ErrTimeout.
// It returns the number of requests expired.
func (c *Correlator) Sweep() int {
	deadline := c.now().Add(-c.timeout)

	var expired []*pending
	c.mu.Lock()
	for id, p := range c.pending {
		if !p.createdAt.After(deadline) {
			expired = append(expired, p)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		p.sink <- Outcome{Err: ErrTimeout}
	}
	return len(expired)
}

// Pending reports whether requestID is still outstanding.
func (c *Correlator) Pending(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[requestID]
	return ok
}

// Len returns the number of outstanding requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start runs Sweep periodically until Stop is called or ctx ends.
// Only the first call starts the sweeper.
func (c *Correlator) Start(ctx context.Context) {
	c.startOnce.Do(func() { c.startSweeper(ctx) })
}

func (c *Correlator) startSweeper(ctx context.Context) {
	interval := c.timeout / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweeper started by Start. Safe to call more than once.
func (c *Correlator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}
