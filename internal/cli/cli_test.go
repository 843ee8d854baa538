package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"fraudload/internal/mock"
	"fraudload/internal/report"
	"fraudload/internal/runner"
	"fraudload/internal/scenario"
	"fraudload/internal/stats"
)

func mockEndpoint(t *testing.T, cfg mock.Config) string {
	t.Helper()
	srv := httptest.NewServer(mock.New(cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + mock.IngestPath
}

func shortScenario() scenario.Config {
	return scenario.Config{
		Name:       "burst",
		Mode:       scenario.ModeConstant,
		Rate:       200,
		Duration:   time.Second,
		MinWorkers: 10,
		MaxWorkers: 100,
	}
}

func TestStartPassesAgainstHealthyEndpoint(t *testing.T) {
	url := mockEndpoint(t, mock.Config{Latency: 5 * time.Millisecond})

	var out, progress bytes.Buffer
	s, err := Start(context.Background(), runner.Config{URL: url, Scenario: shortScenario(), Seed: 1},
		Options{Out: &out, Progress: &progress})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if !s.Pass {
		t.Fatalf("expected PASS, violated %v\n%s", s.Violations(), out.String())
	}
	if s.Requests != 200 || s.Expected != 200 {
		t.Fatalf("requests %d expected %d", s.Requests, s.Expected)
	}
	if !strings.HasPrefix(out.String(), "=== Fraud Ingest Load Test Summary ===\nMode: burst\nTotal requests sent: 200\n") {
		t.Fatalf("unexpected summary:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Verdict: PASS") {
		t.Fatalf("missing verdict:\n%s", out.String())
	}
	if !strings.Contains(progress.String(), "Target URL : "+url) {
		t.Fatalf("header not written to progress stream:\n%s", progress.String())
	}
	if strings.Contains(out.String(), "Target URL") {
		t.Fatalf("progress leaked into the summary stream")
	}
}

func TestStartFailsOnServerErrors(t *testing.T) {
	url := mockEndpoint(t, mock.Config{FailureRatio: 0.05})

	var out bytes.Buffer
	s, err := Start(context.Background(), runner.Config{URL: url, Scenario: shortScenario()},
		Options{Out: &out, Progress: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if s.Pass || s.Failed != 10 {
		t.Fatalf("pass=%v failed=%d", s.Pass, s.Failed)
	}
	for _, want := range []string{
		"10 x HTTP 500",
		"Verdict: FAIL (violated: http_req_failed, success_rate)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestStartJSONFormat(t *testing.T) {
	url := mockEndpoint(t, mock.Config{})

	var out bytes.Buffer
	if _, err := Start(context.Background(), runner.Config{URL: url, Scenario: shortScenario()},
		Options{Out: &out, Progress: &bytes.Buffer{}, Format: report.FormatJSON}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var s report.Summary
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if s.Requests != 200 || !s.Pass {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestStartRejectsBadConfig(t *testing.T) {
	sc := shortScenario()
	sc.Rate = -1
	if _, err := Start(context.Background(), runner.Config{URL: "http://localhost", Scenario: sc}, Options{}); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(stats.Snapshot{
		Requests: 600, Success: 598, Fail: 2, Inflight: 7,
		Elapsed: 2 * time.Second, Stage: 1, Target: 800,
	}, 4*time.Second, 6)

	for _, want := range []string{"[██████████----------]", " 50%", "Stage 2/6 @ 800/s", "RPS: 300.0", "OK: 598", "Err: 2"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}

	draining := progressLine(stats.Snapshot{Elapsed: 5 * time.Second, Inflight: 3}, 4*time.Second, 6)
	if !strings.Contains(draining, "Draining: 3 requests") {
		t.Fatalf("unexpected drain line %q", draining)
	}
}

// The full built-in burst: 60000 arrivals over 20s.

func TestBurstAgainstFastEndpointPasses(t *testing.T) {
	if testing.Short() {
		t.Skip("20s load run")
	}
	sc, err := scenario.Resolve(scenario.Burst)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	url := mockEndpoint(t, mock.Config{Latency: 10 * time.Millisecond})

	var out bytes.Buffer
	s, err := Start(context.Background(), runner.Config{URL: url, Scenario: sc, Seed: 1},
		Options{Out: &out, Progress: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Requests != 60000 {
		t.Fatalf("sent %d, want 60000", s.Requests)
	}
	if !s.Pass {
		t.Fatalf("expected PASS:\n%s", out.String())
	}
	if s.SuccessRatio != 1 || s.Failed != 0 {
		t.Errorf("success ratio %.4f, failed %d", s.SuccessRatio, s.Failed)
	}
	if s.P95Ms < 10 || s.P95Ms >= 50 {
		t.Errorf("p95 %.2fms, want about 10ms", s.P95Ms)
	}
	if math.Abs(s.Throughput-3000) >= 150 {
		t.Errorf("throughput %.1f req/s, want about 3000", s.Throughput)
	}
}

func TestBurstWithFivePercentErrorsFails(t *testing.T) {
	if testing.Short() {
		t.Skip("20s load run")
	}
	sc, err := scenario.Resolve(scenario.Burst)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	url := mockEndpoint(t, mock.Config{Latency: 10 * time.Millisecond, FailureRatio: 0.05})

	var out bytes.Buffer
	s, err := Start(context.Background(), runner.Config{URL: url, Scenario: sc, Seed: 1},
		Options{Out: &out, Progress: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Pass {
		t.Fatalf("expected FAIL:\n%s", out.String())
	}
	if math.Abs(s.FailureRatio-0.05) >= 0.005 {
		t.Errorf("failure ratio %.4f, want about 0.05", s.FailureRatio)
	}
	want := []string{report.ThresholdFailed, report.ThresholdSuccess}
	if v := s.Violations(); !slices.Equal(v, want) {
		t.Fatalf("violations %v, want %v", v, want)
	}
	if !strings.Contains(out.String(), "Verdict: FAIL (violated: http_req_failed, success_rate)") {
		t.Fatalf("verdict line missing:\n%s", out.String())
	}
}
