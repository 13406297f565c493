package config

import (
	"fmt"
	"time"
)

var validEnvs = map[string]bool{
	EnvDevelopment: true,
	EnvTest:        true,
	"staging":      true,
	EnvProduction:  true,
}

var validLevels = map[string]bool{
	"":         true,
	"trace":    true,
	"debug":    true,
	"info":     true,
	"warn":     true,
	"error":    true,
	"fatal":    true,
	"disabled": true,
}

// Validate validates the configuration and returns an error if any field has
// an unrecognized value.
func Validate(cfg *Config) error {
	if !validEnvs[cfg.Service.Env] {
		return fmt.Errorf("service.env %q is not one of development, test, staging, production", cfg.Service.Env)
	}

	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level %q is not a recognized level", cfg.Log.Level)
	}

	switch cfg.Log.Output {
	case "", "stdout", "stderr":
	default:
		return fmt.Errorf("log.output %q is not one of stdout, stderr", cfg.Log.Output)
	}

	if cfg.EventBus.Backend == "jetstream" {
		if len(cfg.EventBus.Servers) == 0 {
			return fmt.Errorf("eventbus.servers is required for the jetstream backend")
		}
		if cfg.EventBus.StreamName == "" {
			return fmt.Errorf("eventbus.stream_name is required for the jetstream backend")
		}
	}

	return nil
}

// applyDefaults applies default values where fields are unset.
func applyDefaults(cfg *Config) {
	if cfg.Service.Env == "" {
		cfg.Service.Env = EnvDevelopment
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.EventBus.Backend == "" {
		cfg.EventBus.Backend = "memory"
	}
	if cfg.EventBus.MaxDeliver == 0 {
		cfg.EventBus.MaxDeliver = 3
	}
	if cfg.EventBus.AckWait == 0 {
		cfg.EventBus.AckWait = 30 * time.Second
	}
	if cfg.EventBus.MaxAckPending == 0 {
		cfg.EventBus.MaxAckPending = 1000
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "ctxlog"
	}
}
