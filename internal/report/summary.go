// Package report turns a run's outcomes into a summary and a pass/fail verdict.
package report

import (
	"math"
	"sort"
	"time"

	"fraudload/internal/scenario"
	"fraudload/internal/stats"
)

// Input is everything the reporter needs once the run has drained.
type Input struct {
	Scenario string
	Mode     scenario.Mode
	Outcomes []stats.Outcome
	Elapsed  time.Duration

	Expected int64  // arrivals the schedule called for
	Delayed  uint64 // arrivals that waited for a free worker
	Dropped  uint64 // arrivals that never got a request
}

// Summary is computed once at run end and never changed.
type Summary struct {
	Scenario string        `json:"scenario"`
	Mode     scenario.Mode `json:"mode"`

	Requests  int    `json:"total_requests"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Expected  int64  `json:"expected_arrivals"`
	Delayed   uint64 `json:"delayed_arrivals"`
	Dropped   uint64 `json:"dropped_arrivals"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Throughput     float64 `json:"throughput_rps"`

	MeanMs float64 `json:"mean_latency_ms"`
	P95Ms  float64 `json:"p95_latency_ms"`
	MaxMs  float64 `json:"max_latency_ms"`

	SuccessRatio float64 `json:"success_ratio"`
	FailureRatio float64 `json:"failure_ratio"`

	Checks []Check `json:"thresholds"`
	Pass   bool    `json:"pass"`
}

// Summarize aggregates outcomes. Order of outcomes does not matter.
func Summarize(in Input) Summary {
	s := Summary{
		Scenario:       in.Scenario,
		Mode:           in.Mode,
		Requests:       len(in.Outcomes),
		Expected:       in.Expected,
		Delayed:        in.Delayed,
		Dropped:        in.Dropped,
		ElapsedSeconds: in.Elapsed.Seconds(),
	}

	latencies := make([]float64, 0, len(in.Outcomes))
	var sum float64
	for _, o := range in.Outcomes {
		if o.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		ms := float64(o.Latency) / float64(time.Millisecond)
		latencies = append(latencies, ms)
		sum += ms
	}
	sort.Float64s(latencies)

	if n := len(latencies); n > 0 {
		s.MeanMs = sum / float64(n)
		s.P95Ms = Percentile(latencies, 95)
		s.MaxMs = latencies[n-1]
		s.SuccessRatio = float64(s.Succeeded) / float64(n)
		s.FailureRatio = float64(s.Failed) / float64(n)
	}
	if in.Elapsed > 0 {
		s.Throughput = float64(s.Requests) / in.Elapsed.Seconds()
	}

	s.Checks = Evaluate(s)
	s.Pass = true
	for _, c := range s.Checks {
		if !c.Pass {
			s.Pass = false
		}
	}
	return s
}

// Percentile uses the nearest-rank method over an ascending sample: the
// value at rank ceil(p/100 * n). Empty input yields 0.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil((p/100)*float64(len(sorted)))) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

// Violations lists the names of the failed checks.
func (s Summary) Violations() []string {
	var names []string
	for _, c := range s.Checks {
		if !c.Pass {
			names = append(names, c.Name)
		}
	}
	return names
}

// Verdict is PASS or FAIL.
func (s Summary) Verdict() string {
	if s.Pass {
		return "PASS"
	}
	return "FAIL"
}
