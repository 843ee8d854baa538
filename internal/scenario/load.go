package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// LoadFile reads a YAML scenario, checks it against the embedded CUE schema
// and then against Validate. Missing worker bounds fall back to the
// built-in defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(path, data)
}

// Parse is LoadFile without the filesystem.
func Parse(filename string, data []byte) (Config, error) {
	if err := ValidateWithCue(filename, data); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, filename, err)
	}

	if cfg.MinWorkers == 0 {
		cfg.MinWorkers = defaultMinWorkers
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = max(defaultMaxWorkers, cfg.MinWorkers)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateWithCue unifies a YAML document with the #Scenario definition.
func ValidateWithCue(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("%w: cannot read YAML %s: %v", ErrInvalid, filename, err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: schema validation failed for %s: %v", ErrInvalid, filename, err)
	}
	return nil
}
