package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownName is returned for a selector that is neither burst nor ramp.
var ErrUnknownName = errors.New("unknown scenario")

// Name is the scenario selector resolved once at startup.
type Name string

const (
	Burst Name = "burst"
	Ramp  Name = "ramp"
)

// DefaultName is used when no selector is given.
const DefaultName = Ramp

const (
	defaultMinWorkers = 400
	defaultMaxWorkers = 4000
)

// BuiltIn returns the hard-coded scenarios keyed by selector.
func BuiltIn() map[Name]Config {
	return map[Name]Config{
		Burst: {
			Name:       string(Burst),
			Mode:       ModeConstant,
			Rate:       3000,
			Duration:   20 * time.Second,
			MinWorkers: defaultMinWorkers,
			MaxWorkers: defaultMaxWorkers,
		},
		Ramp: {
			Name: string(Ramp),
			Mode: ModeRamped,
			Stages: []Stage{
				{Target: 200, Duration: 30 * time.Second},
				{Target: 200, Duration: 30 * time.Second},
				{Target: 800, Duration: 60 * time.Second},
				{Target: 800, Duration: 60 * time.Second},
				{Target: 2000, Duration: 60 * time.Second},
				{Target: 2000, Duration: 60 * time.Second},
			},
			MinWorkers: defaultMinWorkers,
			MaxWorkers: defaultMaxWorkers,
		},
	}
}

// ParseName maps a MODE value onto a selector. Empty means DefaultName.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return DefaultName, nil
	case Burst, Ramp:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownName, s, Burst, Ramp)
	}
}

// Resolve returns the validated built-in scenario for name.
func Resolve(name Name) (Config, error) {
	cfg, ok := BuiltIn()[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
