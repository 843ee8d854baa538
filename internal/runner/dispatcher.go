package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher is an elastic worker pool. It keeps at least min workers alive,
// grows to max when every worker is busy and queues anything beyond that.
// Submit never blocks, so the arrival schedule is never paced by responses.
type Dispatcher struct {
	min, max int
	idle     time.Duration
	exec     func(context.Context, Trigger)
	ctx      context.Context

	jobs chan Trigger
	wake chan struct{}
	done chan struct{}

	mu      sync.Mutex
	pending []Trigger
	workers int
	closed  bool

	wg      sync.WaitGroup
	busy    int64
	peak    int64
	delayed uint64
	dropped uint64
}

// NewDispatcher builds a pool that runs exec for every trigger. Triggers that
// reach a worker after ctx is done are counted as dropped instead.
func NewDispatcher(ctx context.Context, floor, ceiling int, idle time.Duration, exec func(context.Context, Trigger)) *Dispatcher {
	if floor < 0 {
		floor = 0
	}
	if ceiling < 1 {
		ceiling = 1
	}
	if floor > ceiling {
		floor = ceiling
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Dispatcher{
		min:  floor,
		max:  ceiling,
		idle: idle,
		exec: exec,
		ctx:  ctx,
		jobs: make(chan Trigger),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start pre-spawns the worker floor.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.workers < d.min {
		d.spawn(nil)
	}
}

// spawn must be called with mu held.
func (d *Dispatcher) spawn(first *Trigger) {
	d.workers++
	d.wg.Add(1)
	go d.work(first)
}

func (d *Dispatcher) Submit(t Trigger) {
	select {
	case d.jobs <- t:
		return
	default:
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		atomic.AddUint64(&d.dropped, 1)
		return
	}
	if d.workers < d.max {
		d.spawn(&t)
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, t)
	d.mu.Unlock()

	atomic.AddUint64(&d.delayed, 1)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) work(first *Trigger) {
	defer d.wg.Done()

	if first != nil {
		d.run(*first)
	}

	idle := time.NewTimer(d.idle)
	defer idle.Stop()

	for {
		if t, ok := d.pop(); ok {
			d.run(t)
			continue
		}
		if d.retire(false) {
			return
		}

		idle.Reset(d.idle)
		select {
		case t := <-d.jobs:
			d.run(t)
		case <-d.wake:
		case <-d.done:
		case <-idle.C:
			if d.retire(true) {
				return
			}
		}
	}
}

func (d *Dispatcher) pop() (Trigger, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return Trigger{}, false
	}
	t := d.pending[0]
	d.pending[0] = Trigger{}
	d.pending = d.pending[1:]
	return t, true
}

// retire reports whether the calling worker should exit: always once the
// pool is closed and the backlog is empty, and on idle timeout while above
// the floor.
func (d *Dispatcher) retire(idled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) > 0 {
		return false
	}
	if d.closed || (idled && d.workers > d.min) {
		d.workers--
		return true
	}
	return false
}

func (d *Dispatcher) run(t Trigger) {
	if d.ctx.Err() != nil {
		atomic.AddUint64(&d.dropped, 1)
		return
	}

	n := atomic.AddInt64(&d.busy, 1)
	for {
		p := atomic.LoadInt64(&d.peak)
		if n <= p || atomic.CompareAndSwapInt64(&d.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt64(&d.busy, -1)

	d.exec(d.ctx, t)
}

// Close stops intake. Workers finish the backlog and exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}

// Wait blocks until every worker has exited or timeout elapses.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-finished:
		return true
	case <-t.C:
		return false
	}
}

func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workers
}

func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Dispatcher) Peak() int64     { return atomic.LoadInt64(&d.peak) }
func (d *Dispatcher) Delayed() uint64 { return atomic.LoadUint64(&d.delayed) }
func (d *Dispatcher) Dropped() uint64 { return atomic.LoadUint64(&d.dropped) }
