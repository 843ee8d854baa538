package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"fraudload/internal/scenario"
	"fraudload/internal/stats"
)

func outcomes(n int, latency time.Duration, failEvery int) []stats.Outcome {
	res := make([]stats.Outcome, n)
	for i := range res {
		status := 200
		if failEvery > 0 && i%failEvery == 0 {
			status = 500
		}
		res[i] = stats.Outcome{
			Status:  status,
			Success: stats.Classify(status, nil),
			Latency: latency,
		}
	}
	return res
}

func TestPercentileNearestRank(t *testing.T) {
	sample := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	cases := map[float64]float64{95: 19, 50: 10, 100: 20, 5: 1, 0: 1}
	for p, want := range cases {
		if got := Percentile(sample, p); got != want {
			t.Errorf("Percentile(%v) = %v, want %v", p, got, want)
		}
	}
	if got := Percentile(nil, 95); got != 0 {
		t.Errorf("empty sample: got %v", got)
	}
	if got := Percentile([]float64{42}, 95); got != 42 {
		t.Errorf("single sample: got %v", got)
	}
}

func TestSummarizeAllSuccess(t *testing.T) {
	s := Summarize(Input{
		Scenario: "burst",
		Mode:     scenario.ModeConstant,
		Outcomes: outcomes(3000, 10*time.Millisecond, 0),
		Elapsed:  time.Second,
		Expected: 3000,
	})

	if !s.Pass {
		t.Fatalf("expected PASS, violated %v", s.Violations())
	}
	if s.SuccessRatio != 1 || s.FailureRatio != 0 {
		t.Fatalf("ratios: %v / %v", s.SuccessRatio, s.FailureRatio)
	}
	if s.P95Ms != 10 || s.MeanMs != 10 {
		t.Fatalf("latency: mean %v p95 %v", s.MeanMs, s.P95Ms)
	}
	if s.Throughput != 3000 {
		t.Fatalf("throughput: %v", s.Throughput)
	}
}

func TestSummarizeFivePercentFailures(t *testing.T) {
	s := Summarize(Input{
		Scenario: "burst",
		Outcomes: outcomes(2000, 10*time.Millisecond, 20),
		Elapsed:  time.Second,
	})

	if s.Pass {
		t.Fatalf("expected FAIL")
	}
	if s.FailureRatio != 0.05 {
		t.Fatalf("failure ratio: %v", s.FailureRatio)
	}
	got := strings.Join(s.Violations(), ",")
	if got != ThresholdFailed+","+ThresholdSuccess {
		t.Fatalf("violations: %s", got)
	}
}

func TestSummarizeSlowRunViolatesLatencyOnly(t *testing.T) {
	outs := outcomes(100, 20*time.Millisecond, 0)
	for i := 90; i < 100; i++ {
		outs[i].Latency = 400 * time.Millisecond
	}

	s := Summarize(Input{Scenario: "ramp", Outcomes: outs, Elapsed: time.Second})
	if s.P95Ms != 400 {
		t.Fatalf("p95: got %v", s.P95Ms)
	}
	if v := s.Violations(); len(v) != 1 || v[0] != ThresholdDuration {
		t.Fatalf("violations: %v", v)
	}
}

func TestSummarizeIgnoresCompletionOrder(t *testing.T) {
	outs := outcomes(500, 0, 7)
	for i := range outs {
		outs[i].Latency = time.Duration(i+1) * time.Millisecond
	}
	a := Summarize(Input{Outcomes: outs, Elapsed: time.Second})

	shuffled := append([]stats.Outcome(nil), outs...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	b := Summarize(Input{Outcomes: shuffled, Elapsed: time.Second})

	if a.P95Ms != b.P95Ms || a.MeanMs != b.MeanMs || a.Failed != b.Failed {
		t.Fatalf("summary depends on order: %+v vs %+v", a, b)
	}
}

func TestSummarizeEmptyRunFails(t *testing.T) {
	s := Summarize(Input{Scenario: "burst"})
	if s.Pass {
		t.Fatalf("empty run must not pass")
	}
	if v := s.Violations(); len(v) != 1 || v[0] != ThresholdSuccess {
		t.Fatalf("violations: %v", v)
	}
}

func TestTransportErrorsCountAsFailures(t *testing.T) {
	outs := outcomes(99, time.Millisecond, 0)
	outs = append(outs, stats.Outcome{Err: errors.New("connection reset"), Success: stats.Classify(0, errors.New("x"))})
	s := Summarize(Input{Outcomes: outs, Elapsed: time.Second})
	if s.Failed != 1 || s.FailureRatio != 0.01 {
		t.Fatalf("failed=%d ratio=%v", s.Failed, s.FailureRatio)
	}
	// exactly 1% is not below the 1% limit
	if s.Pass {
		t.Fatalf("expected FAIL at 1%% failures")
	}
}

func TestWriteText(t *testing.T) {
	s := Summarize(Input{
		Scenario: "burst",
		Mode:     scenario.ModeConstant,
		Outcomes: outcomes(20, 12*time.Millisecond, 10),
		Elapsed:  2 * time.Second,
		Expected: 21,
		Dropped:  1,
	})

	var buf bytes.Buffer
	if err := Write(&buf, FormatText, s, map[string]uint64{"HTTP 500": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()

	wantPrefix := strings.Join([]string{
		"=== Fraud Ingest Load Test Summary ===",
		"Mode: burst",
		"Total requests sent: 20",
		"Achieved max throughput (req/sec): 10.00",
		"Average latency (ms): 12.00",
		"P95 latency (ms): 12.00",
	}, "\n")
	if !strings.HasPrefix(out, wantPrefix) {
		t.Fatalf("unexpected header:\n%s", out)
	}
	for _, want := range []string{
		"✗ http_req_failed rate<0.01",
		"✓ http_req_duration p(95)<150",
		"expected: 21  sent: 20  delayed: 0  dropped: 1",
		"2 x HTTP 500",
		"Verdict: FAIL (violated: http_req_failed, success_rate)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	s := Summarize(Input{Scenario: "ramp", Mode: scenario.ModeRamped, Outcomes: outcomes(10, time.Millisecond, 0), Elapsed: time.Second})

	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, s, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["scenario"] != "ramp" || decoded["pass"] != true {
		t.Fatalf("unexpected json: %s", buf.String())
	}
	if checks, ok := decoded["thresholds"].([]any); !ok || len(checks) != 3 {
		t.Fatalf("thresholds: %v", decoded["thresholds"])
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Fatalf("default: %v %v", f, err)
	}
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Fatalf("json: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}
