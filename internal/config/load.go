package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML config file, then validates it. Unknown
// keys are fatal: silently ignoring a typo in a config file leads to
// hard-to-debug behavior, so the decoder runs in strict mode.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment. The config file must exist;
// a sync daemon with no tasks has nothing to do, and starting silently
// with an empty task list would look like a successful no-op forever.
func Resolve(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: %s not found; add a config file before launching", path)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, ReadEnv())

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
