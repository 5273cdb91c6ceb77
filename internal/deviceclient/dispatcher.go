package deviceclient

import (
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 256

// dispatcher runs listener callbacks one at a time, in submission order, on
// its own goroutine. The transport callback only enqueues and never waits:
// paho completes PUBACKs on the same goroutine that delivers messages, so a
// full queue drops the message instead of stalling the connection.
type dispatcher struct {
	queue    chan func()
	done     chan struct{}
	exited   chan struct{}
	deviceID string
	logger   Logger

	// busy is set while a callback runs. A callback that closes the client
	// reaches stop from the loop goroutine, which must not wait on itself.
	busy    atomic.Bool
	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	exitOnce  sync.Once
}

func newDispatcher(size int, deviceID string, logger Logger) *dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &dispatcher{
		queue:    make(chan func(), size),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		deviceID: deviceID,
		logger:   logger,
	}
}

func (d *dispatcher) start() {
	d.startOnce.Do(func() {
		go d.loop()
	})
}

func (d *dispatcher) loop() {
	defer d.markExited()
	for {
		select {
		case fn := <-d.queue:
			d.run(fn)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) markExited() {
	d.exitOnce.Do(func() { close(d.exited) })
}

func (d *dispatcher) run(fn func()) {
	d.busy.Store(true)
	defer func() {
		d.busy.Store(false)
		if r := recover(); r != nil {
			d.logger.Error("listener panic recovered", "device_id", d.deviceID, "panic", r)
		}
	}()
	fn()
}

// submit enqueues fn without blocking. It returns false when the dispatcher
// is stopped or the queue is full; a full queue counts as a drop.
func (d *dispatcher) submit(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("listener queue full, message dropped",
			"device_id", d.deviceID,
			"queue_size", cap(d.queue),
			"dropped", n,
		)
		return false
	}
}

// stop ends the loop. Queued callbacks that have not started are discarded.
// It waits for the loop to exit unless a callback is still running; wait on
// exited for that case.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
	// A dispatcher that never started has nothing to wait for.
	d.startOnce.Do(d.markExited)
	if d.busy.Load() {
		return
	}
	<-d.exited
}
