package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

// Load reads a YAML config file, expands $(ENV_VAR) placeholders and fills in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the engine cannot act on.
func (c *Config) Validate() error {
	switch c.Watch.OnRecreate {
	case "", "resume", "reset":
	default:
		return fmt.Errorf("watch.onRecreate must be \"resume\" or \"reset\", got %q", c.Watch.OnRecreate)
	}

	if c.Watch.MaxTracked < 0 {
		return fmt.Errorf("watch.maxTracked must not be negative")
	}
	if c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch.pollInterval must not be negative")
	}
	if c.Watch.HashWorkers < 0 {
		return fmt.Errorf("watch.hashWorkers must not be negative")
	}

	return nil
}
