package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fraudload/internal/payload"
	"fraudload/internal/stats"
	"fraudload/internal/telemetry"
)

// Sampler receives every live snapshot, e.g. a metrics exporter.
type Sampler interface {
	Sample(stats.Snapshot)
}

type Runner struct {
	Cfg       Config
	Client    *http.Client
	Collector *stats.Collector
	Generator *payload.Generator

	// Updates receives a snapshot every tick. Sends never block.
	Updates chan stats.Snapshot

	log      *zap.Logger
	tracer   trace.Tracer
	samplers []Sampler

	dispatcher *Dispatcher
	start      time.Time
	inflight   int64
	fired      uint64
	lastStage  int // scheduler goroutine only
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func WithObservers(obs ...stats.Observer) Option {
	return func(r *Runner) { r.Collector = stats.NewCollector(obs...) }
}

func WithSamplers(s ...Sampler) Option {
	return func(r *Runner) { r.samplers = append(r.samplers, s...) }
}

func WithUpdates(ch chan stats.Snapshot) Option {
	return func(r *Runner) { r.Updates = ch }
}

func New(cfg Config, opts ...Option) (*Runner, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	conns := cfg.Scenario.MaxWorkers
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = conns
	t.MaxConnsPerHost = conns
	t.MaxIdleConnsPerHost = conns
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	r := &Runner{
		Cfg: cfg,
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: t,
		},
		Collector: stats.NewCollector(),
		Generator: payload.NewGenerator(payload.NewDevicePool(), cfg.Seed),
		Updates:   make(chan stats.Snapshot, 10),
		log:       zap.NewNop(),
		lastStage: -1,
		tracer:    telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run drives the scenario to completion, drains outstanding work and returns
// what was recorded. Cancelling ctx stops new arrivals early; the drain
// still runs so the report covers everything that was sent.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	sc := r.Cfg.Scenario

	// Requests outlive ctx so an interrupt still drains.
	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	r.start = time.Now()
	r.dispatcher = NewDispatcher(reqCtx, sc.MinWorkers, sc.MaxWorkers, r.Cfg.IdleTimeout, r.execute)
	r.dispatcher.Start()

	r.log.Info("run started",
		zap.String("scenario", sc.Name),
		zap.String("mode", string(sc.Mode)),
		zap.String("url", r.Cfg.URL),
		zap.Duration("duration", sc.Total()),
		zap.Int64("expected_arrivals", sc.ExpectedArrivals()),
		zap.Int("min_workers", sc.MinWorkers),
		zap.Int("max_workers", sc.MaxWorkers),
	)

	ticks, stopTicks := context.WithCancel(context.Background())
	defer stopTicks()

	g := new(errgroup.Group)
	g.Go(func() error {
		r.tickLoop(ticks)
		return nil
	})
	g.Go(func() error {
		defer stopTicks()
		err := Schedule(ctx, sc, r.start, r.submit)
		r.drain(cancelRequests)
		return err
	})

	err := g.Wait()
	res := Result{
		Scenario:    sc.Name,
		Mode:        sc.Mode,
		Outcomes:    r.Collector.Outcomes(),
		ErrorCounts: r.Collector.ErrorCounts(),
		Elapsed:     time.Since(r.start),
		Expected:    sc.ExpectedArrivals(),
		Fired:       atomic.LoadUint64(&r.fired),
		Delayed:     r.dispatcher.Delayed(),
		Dropped:     r.dispatcher.Dropped(),
	}
	r.sendUpdate()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.log.Warn("run interrupted", zap.Uint64("fired", res.Fired))
		res.Interrupted = true
		err = nil
	}
	return res, err
}

func (r *Runner) submit(t Trigger) {
	atomic.AddUint64(&r.fired, 1)
	if t.Stage != r.lastStage {
		r.lastStage = t.Stage
		r.log.Info("stage started",
			zap.Int("stage", t.Stage),
			zap.Float64("target_rate", r.Cfg.Scenario.Steps()[t.Stage].Target),
		)
	}
	r.dispatcher.Submit(t)
}

func (r *Runner) drain(cancelRequests context.CancelFunc) {
	r.dispatcher.Close()
	r.log.Info("draining",
		zap.Int64("inflight", atomic.LoadInt64(&r.inflight)),
		zap.Int("backlog", r.dispatcher.Backlog()),
		zap.Int("workers", r.dispatcher.Workers()),
		zap.Int64("peak_busy", r.dispatcher.Peak()),
		zap.Duration("timeout", r.Cfg.Drain),
	)
	if r.dispatcher.Wait(r.Cfg.Drain) {
		return
	}

	r.log.Warn("drain timed out, cancelling outstanding requests",
		zap.Int64("inflight", atomic.LoadInt64(&r.inflight)),
		zap.Int("backlog", r.dispatcher.Backlog()),
	)
	cancelRequests()
	if !r.dispatcher.Wait(r.Cfg.Drain) {
		r.log.Error("workers did not exit after cancellation")
	}
}

func (r *Runner) execute(ctx context.Context, t Trigger) {
	rec := r.Generator.Generate()

	ctx, span := r.tracer.Start(ctx, "fraud_ingest",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("transaction.id", rec.TransactionID),
			attribute.String("transaction.currency", string(rec.Currency)),
			attribute.Int("scenario.stage", t.Stage),
		),
	)
	defer span.End()

	o := r.post(ctx, rec)
	o.Scheduled = t.Scheduled
	o.QueueWait = o.Start.Sub(t.Scheduled)
	if o.QueueWait < 0 {
		o.QueueWait = 0
	}

	span.SetAttributes(attribute.Int("http.response.status_code", o.Status))
	if !o.Success {
		span.SetStatus(codes.Error, stats.FailureReason(o))
	}

	r.Collector.Record(o)
}

// post issues exactly one request for rec. Errors end up in the outcome.
func (r *Runner) post(ctx context.Context, rec payload.TransactionRecord) stats.Outcome {
	body, err := json.Marshal(rec)
	if err != nil {
		return stats.Outcome{Start: time.Now(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Cfg.URL, bytes.NewReader(body))
	if err != nil {
		return stats.Outcome{Start: time.Now(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TagHeader, TagValue)
	telemetry.Inject(ctx, req.Header)

	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	o := stats.Outcome{Start: time.Now()}
	resp, err := r.Client.Do(req)
	if err == nil {
		o.Status = resp.StatusCode
		o.Bytes, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	o.Latency = time.Since(o.Start)
	o.Err = err
	o.Success = stats.Classify(o.Status, err)
	return o
}

func (r *Runner) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(r.Cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendUpdate()
		}
	}
}

func (r *Runner) sendUpdate() {
	s := r.Snapshot()
	for _, smp := range r.samplers {
		smp.Sample(s)
	}

	select {
	case r.Updates <- s:
	default:
		// consumer is behind; it gets the next one
	}
}

// Snapshot is the live view of the run so far.
func (r *Runner) Snapshot() stats.Snapshot {
	s := r.Collector.Snapshot()
	s.Inflight = atomic.LoadInt64(&r.inflight)
	if r.dispatcher != nil {
		s.Delayed = r.dispatcher.Delayed()
		s.Dropped = r.dispatcher.Dropped()
	}
	if !r.start.IsZero() {
		s.Elapsed = time.Since(r.start)
		if stage, ok := r.Cfg.Scenario.StageAt(s.Elapsed); ok {
			s.Stage = stage
			s.Target = r.Cfg.Scenario.Steps()[stage].Target
		}
	}
	return s
}
