// Package config provides configuration management for the ctxlog library.
// It supports loading configuration from YAML/JSON files and environment
// variables with automatic default application and validation.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml", "CTXLOG")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"
)

// Environment names with recognized behavior.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config represents the complete configuration for the logging core and its
// transport adapters.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Log      LogConfig      `mapstructure:"log"`
	EventBus EventBusConfig `mapstructure:"eventbus"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServiceConfig contains general service identity information. Its fields
// become part of the infrastructure context merged into every log record.
type ServiceConfig struct {
	Name       string `mapstructure:"name"`
	Version    string `mapstructure:"version"`
	Commit     string `mapstructure:"commit"`
	Build      string `mapstructure:"build"`
	Deployment string `mapstructure:"deployment"`
	Env        string `mapstructure:"env"` // development, test, staging, production
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	// Level is the minimum severity: trace, debug, info, warn, error, fatal.
	// Empty means environment-dependent: debug outside production, info in
	// production, disabled entirely when env is test.
	Level string `mapstructure:"level"`

	// PrettyPrint selects human-readable colorized console output instead of
	// one JSON record per line. Unset defaults to true outside production.
	PrettyPrint *bool `mapstructure:"pretty_print"`

	// Output is the destination: stdout (default) or stderr.
	Output string `mapstructure:"output"`

	// Redact lists field names whose values are replaced in place with a
	// redaction marker in every emitted record.
	Redact []string `mapstructure:"redact"`

	// Label is the instance-level default context label prefixed onto
	// messages when no explicit label is given.
	Label string `mapstructure:"label"`
}

// EventBusConfig contains message-event transport (NATS JetStream) configuration.
type EventBusConfig struct {
	Backend       string        `mapstructure:"backend"` // "jetstream" or "memory"
	Servers       []string      `mapstructure:"servers"`
	StreamName    string        `mapstructure:"stream_name"`
	ConsumerName  string        `mapstructure:"consumer_name"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxAckPending int           `mapstructure:"max_ack_pending"`
}

// TracingConfig controls consumption of distributed-trace identifiers.
// The library never starts spans; Enabled only gates the active-span lookup.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Service.Env == EnvProduction
}

// IsTest reports whether the configured environment is test.
func (c *Config) IsTest() bool {
	return c.Service.Env == EnvTest
}

// EffectiveLevel returns the log level after environment defaulting:
// an explicit level always wins; otherwise test disables emission,
// production gets info and everything else gets debug.
func (c *Config) EffectiveLevel() string {
	if c.Log.Level != "" {
		return c.Log.Level
	}
	switch c.Service.Env {
	case EnvTest:
		return "disabled"
	case EnvProduction:
		return "info"
	default:
		return "debug"
	}
}

// EffectivePrettyPrint returns the pretty-print setting after environment
// defaulting: explicit configuration wins, otherwise true outside production.
func (c *Config) EffectivePrettyPrint() bool {
	if c.Log.PrettyPrint != nil {
		return *c.Log.PrettyPrint
	}
	return !c.IsProduction()
}
