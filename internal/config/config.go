// Package config resolves the run configuration from flags, environment and
// an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fraudload/internal/report"
	"fraudload/internal/runner"
	"fraudload/internal/scenario"
)

// ErrInvalid marks every configuration error. The process exits with
// status 2 on it, before any traffic is sent.
var ErrInvalid = errors.New("invalid configuration")

const EnvPrefix = "FRAUDLOAD"

const (
	KeyURL          = "url"
	KeyMode         = "mode"
	KeyScenarioFile = "scenario-file"
	KeyTimeout      = "timeout"
	KeyDrain        = "drain"
	KeyMinWorkers   = "min-workers"
	KeyMaxWorkers   = "max-workers"
	KeySeed         = "seed"
	KeyFormat       = "format"
	KeyMetricsAddr  = "metrics-addr"
	KeyTrace        = "trace"
	KeyTUI          = "tui"
	KeyLogLevel     = "log-level"
	KeyLogFile      = "log-file"
)

const DefaultURL = "http://localhost:8081/api/v1/transactions"

type Config struct {
	URL          string
	Mode         scenario.Name
	ScenarioFile string
	Timeout      time.Duration
	Drain        time.Duration
	MinWorkers   int // 0 keeps the scenario's own floor
	MaxWorkers   int // 0 keeps the scenario's own ceiling
	Seed         int64
	Format       report.Format
	MetricsAddr  string
	Trace        bool
	TUI          bool
	LogLevel     string
	LogFile      string
}

// RegisterFlags defines the run flags on fs and binds them, plus their
// environment variables, into v. TARGET_URL and MODE are honoured alongside
// the prefixed names.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.StringP(KeyURL, "u", DefaultURL, "ingestion endpoint (env TARGET_URL)")
	fs.StringP(KeyMode, "m", string(scenario.DefaultName), "built-in scenario: ramp or burst (env MODE)")
	fs.StringP(KeyScenarioFile, "f", "", "YAML scenario file, overrides --mode")
	fs.Duration(KeyTimeout, runner.DefaultTimeout, "per-request timeout")
	fs.Duration(KeyDrain, runner.DefaultDrain, "how long in-flight requests may finish after the last arrival")
	fs.Int(KeyMinWorkers, 0, "worker floor (0 keeps the scenario default)")
	fs.Int(KeyMaxWorkers, 0, "worker ceiling (0 keeps the scenario default)")
	fs.Int64(KeySeed, 0, "payload random seed (0 picks one from the clock)")
	fs.StringP(KeyFormat, "o", string(report.FormatText), "summary format: text or json")
	fs.String(KeyMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.Bool(KeyTrace, false, "trace every request and propagate W3C trace headers")
	fs.Bool(KeyTUI, false, "show the live dashboard instead of the progress line")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(KeyLogFile, "", "append JSON logs to this file instead of stderr")

	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyURL, EnvPrefix+"_URL", "TARGET_URL"); err != nil {
		return err
	}
	return v.BindEnv(KeyMode, EnvPrefix+"_MODE", "MODE")
}

// Load reads and validates the configuration bound in v.
func Load(v *viper.Viper) (Config, error) {
	mode, err := scenario.ParseName(v.GetString(KeyMode))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	format, err := report.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	c := Config{
		URL:          strings.TrimSpace(v.GetString(KeyURL)),
		Mode:         mode,
		ScenarioFile: v.GetString(KeyScenarioFile),
		Timeout:      v.GetDuration(KeyTimeout),
		Drain:        v.GetDuration(KeyDrain),
		MinWorkers:   v.GetInt(KeyMinWorkers),
		MaxWorkers:   v.GetInt(KeyMaxWorkers),
		Seed:         v.GetInt64(KeySeed),
		Format:       format,
		MetricsAddr:  v.GetString(KeyMetricsAddr),
		Trace:        v.GetBool(KeyTrace),
		TUI:          v.GetBool(KeyTUI),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFile:      v.GetString(KeyLogFile),
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %w", ErrInvalid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) url, got %q", ErrInvalid, c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalid, c.Timeout)
	}
	if c.Drain <= 0 {
		return fmt.Errorf("%w: drain must be positive, got %v", ErrInvalid, c.Drain)
	}
	if c.MinWorkers < 0 || c.MaxWorkers < 0 {
		return fmt.Errorf("%w: worker bounds must not be negative", ErrInvalid)
	}
	if c.MinWorkers > 0 && c.MaxWorkers > 0 && c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("%w: max-workers (%d) below min-workers (%d)", ErrInvalid, c.MaxWorkers, c.MinWorkers)
	}
	return nil
}

// Scenario resolves the scenario to run: the file if one is given,
// otherwise the built-in selected by Mode, with worker overrides applied.
func (c Config) Scenario() (scenario.Config, error) {
	var (
		sc  scenario.Config
		err error
	)
	if c.ScenarioFile != "" {
		sc, err = scenario.LoadFile(c.ScenarioFile)
	} else {
		sc, err = scenario.Resolve(c.Mode)
	}
	if err != nil {
		return scenario.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if c.MinWorkers > 0 {
		sc.MinWorkers = c.MinWorkers
		if c.MaxWorkers == 0 && sc.MaxWorkers < sc.MinWorkers {
			sc.MaxWorkers = sc.MinWorkers
		}
	}
	if c.MaxWorkers > 0 {
		sc.MaxWorkers = c.MaxWorkers
		if c.MinWorkers == 0 && sc.MinWorkers > sc.MaxWorkers {
			sc.MinWorkers = sc.MaxWorkers
		}
	}

	if err := sc.Validate(); err != nil {
		return scenario.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return sc, nil
}

// Runner builds the runner configuration for sc.
func (c Config) Runner(sc scenario.Config) runner.Config {
	return runner.Config{
		URL:      c.URL,
		Scenario: sc,
		Timeout:  c.Timeout,
		Drain:    c.Drain,
		Seed:     c.Seed,
	}
}
