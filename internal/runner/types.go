package runner

import (
	"errors"
	"fmt"
	"time"

	"fraudload/internal/scenario"
	"fraudload/internal/stats"
)

// ErrConfig wraps every configuration problem found by New.
var ErrConfig = errors.New("runner: invalid configuration")

const (
	// TagHeader marks every request so the ingestion side can separate
	// synthetic traffic from real transactions.
	TagHeader = "X-Request-Tag"
	TagValue  = "fraud_ingest"

	DefaultTimeout      = 60 * time.Second
	DefaultDrain        = 30 * time.Second
	DefaultTickInterval = 200 * time.Millisecond
	DefaultIdleTimeout  = 5 * time.Second
)

type Config struct {
	URL      string
	Scenario scenario.Config
	Timeout  time.Duration // per request
	Drain    time.Duration // how long in-flight work may finish after the last arrival
	Seed     int64

	TickInterval time.Duration
	IdleTimeout  time.Duration // before a surplus worker retires
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Drain <= 0 {
		c.Drain = DefaultDrain
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

func (c Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: target url is required", ErrConfig)
	}
	if err := c.Scenario.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// Trigger is one scheduled arrival handed to the dispatcher.
type Trigger struct {
	Scheduled time.Time
	Stage     int
}

// Result is everything a finished run hands to the reporter.
type Result struct {
	Scenario    string
	Mode        scenario.Mode
	Outcomes    []stats.Outcome
	ErrorCounts map[string]uint64
	Elapsed     time.Duration
	Expected    int64
	Fired       uint64
	Delayed     uint64
	Dropped     uint64
	Interrupted bool
}
