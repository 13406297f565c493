package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// knownKeys is the flattened configuration key space, registered with viper
// so environment variables resolve even without a config file.
var knownKeys = []string{
	"service.name",
	"service.version",
	"service.commit",
	"service.build",
	"service.deployment",
	"service.env",
	"log.level",
	"log.pretty_print",
	"log.output",
	"log.redact",
	"log.label",
	"eventbus.backend",
	"eventbus.servers",
	"eventbus.stream_name",
	"eventbus.consumer_name",
	"eventbus.max_deliver",
	"eventbus.ack_wait",
	"eventbus.max_ack_pending",
	"tracing.enabled",
	"metrics.enabled",
	"metrics.namespace",
}

// Load loads configuration from a file and environment variables.
// The prefix parameter is used for environment variable names
// (e.g. "CTXLOG" -> CTXLOG_SERVICE_NAME). If configPath is empty, only
// environment variables are consulted.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only unmarshals keys it knows about; registering the key space
	// lets AutomaticEnv feed Unmarshal without a config file.
	for _, key := range knownKeys {
		v.SetDefault(key, nil)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful in main() where configuration errors should be fatal.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration only from environment variables.
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}
