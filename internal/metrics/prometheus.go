// Package metrics exposes a run's live counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fraudload/internal/stats"
)

// Prometheus implements stats.Observer and mirrors runner snapshots into gauges.
type Prometheus struct {
	requests  *prometheus.CounterVec
	latency   prometheus.Histogram
	queueWait prometheus.Histogram

	inflight   prometheus.Gauge
	targetRate prometheus.Gauge
	delayed    prometheus.Gauge
	dropped    prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

func NewPrometheus(scenario string) *Prometheus {
	labels := prometheus.Labels{"scenario": scenario}

	p := &Prometheus{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "fraudload_requests_total",
				Help:        "Ingestion requests by outcome and status code",
				ConstLabels: labels,
			},
			[]string{"outcome", "status"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "fraudload_request_duration_seconds",
			Help:        "End-to-end ingestion request latency",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "fraudload_queue_wait_seconds",
			Help:        "Delay between scheduled arrival and request issue",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fraudload_inflight_requests",
			Help:        "Requests currently awaiting a response",
			ConstLabels: labels,
		}),
		targetRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fraudload_target_rate",
			Help:        "Scheduled arrival rate in requests per second",
			ConstLabels: labels,
		}),
		delayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fraudload_delayed_arrivals",
			Help:        "Arrivals that queued for a free worker",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fraudload_dropped_arrivals",
			Help:        "Arrivals that never issued a request",
			ConstLabels: labels,
		}),
		registry: prometheus.NewRegistry(),
	}

	p.registry.MustRegister(
		p.requests, p.latency, p.queueWait,
		p.inflight, p.targetRate, p.delayed, p.dropped,
	)
	return p
}

// Observe records one finished request.
func (p *Prometheus) Observe(o stats.Outcome) {
	outcome, status := "success", strconv.Itoa(o.Status)
	if !o.Success {
		outcome = "failure"
	}
	if o.Err != nil {
		status = "error"
	}
	p.requests.WithLabelValues(outcome, status).Inc()
	p.latency.Observe(o.Latency.Seconds())
	p.queueWait.Observe(o.QueueWait.Seconds())
}

// Sample copies the runner's live view into the gauges.
func (p *Prometheus) Sample(s stats.Snapshot) {
	p.inflight.Set(float64(s.Inflight))
	p.targetRate.Set(s.Target)
	p.delayed.Set(float64(s.Delayed))
	p.dropped.Set(float64(s.Dropped))
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on addr in the background.
func (p *Prometheus) Start(addr string, onError func(error)) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()
}

func (p *Prometheus) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}
