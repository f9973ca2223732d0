package config

import "time"

type Config struct {
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

type WatchConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"pollInterval"` // e.g. 5s; ignored when cron is set
	Cron         string        `yaml:"cron"`         // optional cron schedule for cycles
	MaxTracked   int           `yaml:"maxTracked"`   // soft cap on tracked files
	OnRecreate   string        `yaml:"onRecreate"`   // "resume" or "reset"
	HashWorkers  int           `yaml:"hashWorkers"`  // parallel fingerprinting; 1 = serial
}

type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			PollInterval: 5 * time.Second,
			MaxTracked:   1000,
			OnRecreate:   "resume",
			HashWorkers:  1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
