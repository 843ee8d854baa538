package report

import "fmt"

// Threshold names match the metric names the ingestion SLOs are written against.
const (
	ThresholdFailed   = "http_req_failed"
	ThresholdDuration = "http_req_duration"
	ThresholdSuccess  = "success_rate"
)

const (
	maxFailureRatio = 0.01
	maxP95Ms        = 150.0
	minSuccessRatio = 0.99
)

// Check is one evaluated threshold.
type Check struct {
	Name  string  `json:"name"`
	Expr  string  `json:"expr"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

func (c Check) String() string {
	return fmt.Sprintf("%s %s (actual %.4g)", c.Name, c.Expr, c.Value)
}

// Evaluate applies the fixed SLO thresholds. A run with no requests fails
// the success-rate check.
func Evaluate(s Summary) []Check {
	return []Check{
		{
			Name:  ThresholdFailed,
			Expr:  fmt.Sprintf("rate<%g", maxFailureRatio),
			Value: s.FailureRatio,
			Pass:  s.FailureRatio < maxFailureRatio,
		},
		{
			Name:  ThresholdDuration,
			Expr:  fmt.Sprintf("p(95)<%g", maxP95Ms),
			Value: s.P95Ms,
			Pass:  s.P95Ms < maxP95Ms,
		},
		{
			Name:  ThresholdSuccess,
			Expr:  fmt.Sprintf("rate>%g", minSuccessRatio),
			Value: s.SuccessRatio,
			Pass:  s.SuccessRatio > minSuccessRatio,
		},
	}
}
