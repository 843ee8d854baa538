package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Format selects how the summary is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts text (default) or json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Write renders s in format f. errCounts only appears in the text form.
func Write(w io.Writer, f Format, s Summary, errCounts map[string]uint64) error {
	if f == FormatJSON {
		return WriteJSON(w, s)
	}
	return WriteText(w, s, errCounts)
}

// WriteText prints the fixed summary block followed by the threshold
// verdicts. errCounts, if given, is appended as a failure breakdown.
func WriteText(w io.Writer, s Summary, errCounts map[string]uint64) error {
	var b strings.Builder

	b.WriteString("=== Fraud Ingest Load Test Summary ===\n")
	fmt.Fprintf(&b, "Mode: %s\n", s.Scenario)
	fmt.Fprintf(&b, "Total requests sent: %d\n", s.Requests)
	fmt.Fprintf(&b, "Achieved max throughput (req/sec): %.2f\n", s.Throughput)
	fmt.Fprintf(&b, "Average latency (ms): %.2f\n", s.MeanMs)
	fmt.Fprintf(&b, "P95 latency (ms): %.2f\n", s.P95Ms)

	b.WriteString("\nThresholds\n")
	for _, c := range s.Checks {
		mark := "✓"
		if !c.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, c)
	}

	b.WriteString("\nArrivals\n")
	fmt.Fprintf(&b, "  expected: %d  sent: %d  delayed: %d  dropped: %d\n",
		s.Expected, s.Requests, s.Delayed, s.Dropped)
	fmt.Fprintf(&b, "  succeeded: %d  failed: %d  success ratio: %.2f%%\n",
		s.Succeeded, s.Failed, s.SuccessRatio*100)

	if len(errCounts) > 0 {
		b.WriteString("\nFailures\n")
		reasons := make([]string, 0, len(errCounts))
		for r := range errCounts {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "  %d x %s\n", errCounts[r], r)
		}
	}

	fmt.Fprintf(&b, "\nVerdict: %s", s.Verdict())
	if v := s.Violations(); len(v) > 0 {
		fmt.Fprintf(&b, " (violated: %s)", strings.Join(v, ", "))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
