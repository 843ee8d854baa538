// Package stats collects per-request outcomes for a single run.
package stats

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is one request's result. It is never modified after Record.
type Outcome struct {
	Scheduled time.Time     // when the arrival was due
	Start     time.Time     // when the request was issued
	Latency   time.Duration // issue to response (or failure) receipt
	QueueWait time.Duration // Start - Scheduled
	Status    int
	Err       error
	Success   bool
	Bytes     int64
}

// Classify reports success iff there was a response with status in [200, 400).
func Classify(status int, err error) bool {
	return err == nil && status >= 200 && status < 400
}

// Observer receives every recorded outcome, e.g. a metrics exporter.
type Observer interface {
	Observe(Outcome)
}

// Collector accumulates outcomes. Record is safe for concurrent use.
type Collector struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	Latency   *SafeHistogram
	QueueWait *SafeHistogram

	mu        sync.Mutex
	outcomes  []Outcome
	errCounts map[string]uint64
	observers []Observer
}

func NewCollector(observers ...Observer) *Collector {
	return &Collector{
		Latency:   NewSafeHistogram(),
		QueueWait: NewSafeHistogram(),
		errCounts: make(map[string]uint64),
		observers: observers,
	}
}

func (c *Collector) Record(o Outcome) {
	atomic.AddUint64(&c.Requests, 1)
	if o.Success {
		atomic.AddUint64(&c.Success, 1)
	} else {
		atomic.AddUint64(&c.Fail, 1)
	}
	if o.Bytes > 0 {
		atomic.AddUint64(&c.Bytes, uint64(o.Bytes))
	}

	c.Latency.RecordDuration(o.Latency)
	c.QueueWait.RecordDuration(o.QueueWait)

	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	if !o.Success {
		c.errCounts[FailureReason(o)]++
	}
	c.mu.Unlock()

	for _, obs := range c.observers {
		obs.Observe(o)
	}
}

// Outcomes returns a copy of everything recorded so far, in completion order.
func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]Outcome, len(c.outcomes))
	copy(res, c.outcomes)
	return res
}

// ErrorCounts groups failures by reason.
func (c *Collector) ErrorCounts() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make(map[string]uint64, len(c.errCounts))
	for k, v := range c.errCounts {
		res[k] = v
	}
	return res
}

// FailureReason is a short, low-cardinality label for a failed outcome.
func FailureReason(o Outcome) string {
	var netErr net.Error
	switch {
	case o.Err == nil:
		return fmt.Sprintf("HTTP %d", o.Status)
	case errors.Is(o.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(o.Err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(o.Err, context.Canceled):
		return "cancelled"
	default:
		return o.Err.Error()
	}
}

// Snapshot is a cheap copy of live counters for progress displays.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	// Filled in by the runner
	Inflight int64
	Delayed  uint64
	Dropped  uint64
	Elapsed  time.Duration
	Stage    int
	Target   float64 // scheduled arrivals per second

	P50Ms          float64
	P90Ms          float64
	P95Ms          float64
	P99Ms          float64
	MaxMs          float64
	AvgQueueWaitMs float64
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Requests:       atomic.LoadUint64(&c.Requests),
		Success:        atomic.LoadUint64(&c.Success),
		Fail:           atomic.LoadUint64(&c.Fail),
		Bytes:          atomic.LoadUint64(&c.Bytes),
		P50Ms:          c.Latency.QuantileMs(50),
		P90Ms:          c.Latency.QuantileMs(90),
		P95Ms:          c.Latency.QuantileMs(95),
		P99Ms:          c.Latency.QuantileMs(99),
		MaxMs:          c.Latency.MaxMs(),
		AvgQueueWaitMs: c.QueueWait.MeanMs(),
	}
}

// ErrorRate is the failure percentage so far.
func (s Snapshot) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Fail) / float64(s.Requests) * 100
}
