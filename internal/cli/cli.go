// Package cli runs a load test end to end: header, live progress, drain
// and the final summary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"fraudload/internal/report"
	"fraudload/internal/runner"
	"fraudload/internal/stats"
	"fraudload/internal/tui"
)

type Options struct {
	Out      io.Writer // summary
	Progress io.Writer // header and progress line
	Format   report.Format
	TUI      bool
	Log      *zap.Logger
	Runner   []runner.Option
}

func (o *Options) setDefaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Progress == nil {
		o.Progress = os.Stderr
	}
	if o.Format == "" {
		o.Format = report.FormatText
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// Start runs cfg to completion and writes the summary to opts.Out.
func Start(ctx context.Context, cfg runner.Config, opts Options) (report.Summary, error) {
	opts.setDefaults()

	updates := make(chan stats.Snapshot, 100)
	ropts := append([]runner.Option{
		runner.WithLogger(opts.Log),
		runner.WithUpdates(updates),
	}, opts.Runner...)

	r, err := runner.New(cfg, ropts...)
	if err != nil {
		return report.Summary{}, err
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	type outcome struct {
		res runner.Result
		err error
	}
	finished := make(chan outcome, 1)
	done := make(chan struct{})
	go func() {
		res, err := r.Run(ctx)
		finished <- outcome{res, err}
		close(done)
	}()

	if opts.TUI {
		m := tui.NewModel(r.Cfg.Scenario, r.Cfg.URL, updates, done, stop)
		if err := tui.Run(m, opts.Progress); err != nil {
			opts.Log.Error("dashboard failed", zap.Error(err))
			stop()
		}
	} else {
		printHeader(opts.Progress, r.Cfg)
		watch(opts.Progress, r.Cfg, updates, done)
	}

	out := <-finished
	if out.err != nil {
		return report.Summary{}, out.err
	}

	s := report.Summarize(report.Input{
		Scenario: out.res.Scenario,
		Mode:     out.res.Mode,
		Outcomes: out.res.Outcomes,
		Elapsed:  out.res.Elapsed,
		Expected: out.res.Expected,
		Delayed:  out.res.Delayed,
		Dropped:  out.res.Dropped,
	})

	opts.Log.Info("run finished",
		zap.Int("requests", s.Requests),
		zap.Int("failed", s.Failed),
		zap.Float64("p95_ms", s.P95Ms),
		zap.Bool("interrupted", out.res.Interrupted),
		zap.String("verdict", s.Verdict()),
	)

	return s, report.Write(opts.Out, opts.Format, s, out.res.ErrorCounts)
}

func watch(w io.Writer, cfg runner.Config, updates <-chan stats.Snapshot, done <-chan struct{}) {
	total := cfg.Scenario.Total()
	stages := len(cfg.Scenario.Steps())
	for {
		select {
		case s := <-updates:
			fmt.Fprint(w, progressLine(s, total, stages))
		case <-done:
			fmt.Fprintln(w)
			return
		}
	}
}

func printHeader(w io.Writer, cfg runner.Config) {
	sc := cfg.Scenario
	fmt.Fprintf(w, "\nfraudload: %s scenario\n", sc.Name)
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target URL : %s\n", cfg.URL)
	fmt.Fprintf(w, "Mode       : %s, %d stage(s), peak %.0f req/s\n", sc.Mode, len(sc.Steps()), sc.PeakRate())
	fmt.Fprintf(w, "Duration   : %s (%d arrivals)\n", sc.Total(), sc.ExpectedArrivals())
	fmt.Fprintf(w, "Workers    : %d-%d\n", sc.MinWorkers, sc.MaxWorkers)
	fmt.Fprintf(w, "Timeout    : %s (drain %s)\n", cfg.Timeout, cfg.Drain)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func progressLine(s stats.Snapshot, total time.Duration, stages int) string {
	pct := 1.0
	if total > 0 {
		pct = s.Elapsed.Seconds() / total.Seconds()
	}
	if pct > 1 {
		pct = 1
	}

	if s.Elapsed >= total {
		return fmt.Sprintf("\r%s %3.0f%% | %s/%s | Draining: %d requests...                ",
			progressBar(1, 20), 100.0,
			s.Elapsed.Round(time.Second), total,
			s.Inflight)
	}

	rps := 0.0
	if s.Elapsed > 0 {
		rps = float64(s.Requests) / s.Elapsed.Seconds()
	}
	return fmt.Sprintf("\r%s %3.0f%% | %s/%s | Stage %d/%d @ %.0f/s | Inf: %3d | RPS: %.1f | OK: %d | Err: %d | P95: %.1fms",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), total,
		s.Stage+1, stages, s.Target,
		s.Inflight,
		rps,
		s.Success,
		s.Fail,
		s.P95Ms,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
