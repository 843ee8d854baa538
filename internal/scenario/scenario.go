// Package scenario describes how arrival rate varies over a load test.
package scenario

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks a scenario that must not be run.
var ErrInvalid = errors.New("invalid scenario")

// Mode selects how the scenario's rate is declared.
type Mode string

const (
	ModeConstant Mode = "constant"
	ModeRamped   Mode = "ramped"
)

// Stage holds a target arrival rate (requests/second) for a contiguous window.
type Stage struct {
	Target   float64       `yaml:"target" json:"target"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Config is loaded once at startup and never mutated during a run.
type Config struct {
	Name string `yaml:"name" json:"name"`
	Mode Mode   `yaml:"mode" json:"mode"`

	// Constant mode
	Rate     float64       `yaml:"rate,omitempty" json:"rate,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`

	// Ramped mode, applied in declared order
	Stages []Stage `yaml:"stages,omitempty" json:"stages,omitempty"`

	// Worker floor and ceiling for the dispatcher
	MinWorkers int `yaml:"min_workers,omitempty" json:"min_workers"`
	MaxWorkers int `yaml:"max_workers,omitempty" json:"max_workers"`
}

// Validate rejects non-positive rates, durations and worker bounds.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeConstant:
		if c.Rate <= 0 {
			return fmt.Errorf("%w: rate must be positive, got %v", ErrInvalid, c.Rate)
		}
		if c.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalid, c.Duration)
		}
	case ModeRamped:
		if len(c.Stages) == 0 {
			return fmt.Errorf("%w: ramped scenario needs at least one stage", ErrInvalid)
		}
		for i, st := range c.Stages {
			if st.Target <= 0 {
				return fmt.Errorf("%w: stage %d target must be positive, got %v", ErrInvalid, i, st.Target)
			}
			if st.Duration <= 0 {
				return fmt.Errorf("%w: stage %d duration must be positive, got %v", ErrInvalid, i, st.Duration)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}

	if c.MinWorkers <= 0 {
		return fmt.Errorf("%w: min_workers must be positive, got %d", ErrInvalid, c.MinWorkers)
	}
	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("%w: max_workers (%d) below min_workers (%d)", ErrInvalid, c.MaxWorkers, c.MinWorkers)
	}
	return nil
}

// Steps returns the scenario as an ordered list of stages. A constant
// scenario is a single stage.
func (c Config) Steps() []Stage {
	if c.Mode == ModeConstant {
		return []Stage{{Target: c.Rate, Duration: c.Duration}}
	}
	return c.Stages
}

// Total is the wall-clock length of the schedule.
func (c Config) Total() time.Duration {
	var total time.Duration
	for _, st := range c.Steps() {
		total += st.Duration
	}
	return total
}

// PeakRate is the highest target across all stages.
func (c Config) PeakRate() float64 {
	peak := 0.0
	for _, st := range c.Steps() {
		if st.Target > peak {
			peak = st.Target
		}
	}
	return peak
}

// StageAt returns the index of the stage covering elapsed time t.
func (c Config) StageAt(t time.Duration) (int, bool) {
	if t < 0 {
		return 0, false
	}
	var end time.Duration
	for i, st := range c.Steps() {
		end += st.Duration
		if t < end {
			return i, true
		}
	}
	return 0, false
}

// RateAt is the rate table: the target rate held for the whole stage that
// contains t. ok is false once the schedule is over.
func (c Config) RateAt(t time.Duration) (rate float64, ok bool) {
	i, ok := c.StageAt(t)
	if !ok {
		return 0, false
	}
	return c.Steps()[i].Target, true
}

// ExpectedArrivals counts the arrivals the schedule will issue.
func (c Config) ExpectedArrivals() int64 {
	var n int64
	it := c.Arrivals()
	for {
		if _, _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}
