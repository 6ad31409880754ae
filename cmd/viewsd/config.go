package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the daemon configuration, loaded from a TOML file
type Config struct {
	// ListenAddr serves the prometheus metrics endpoint
	ListenAddr string `toml:"listen_addr"`
	LogLevel   string `toml:"log_level"`
	LogFormat  string `toml:"log_format"`
	// DefinitionsFile holds the aggregation tree definitions (YAML)
	DefinitionsFile string `toml:"definitions"`
	// StatusFile holds the status snapshot input (YAML)
	StatusFile string `toml:"status"`
	// Parallel computes independent branches concurrently
	Parallel bool `toml:"parallel"`

	NATS NATSConfig `toml:"nats"`
}

// NATSConfig configures optional state-change publishing. Publishing is
// disabled when URL is empty.
type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// LoadConfig reads and validates the daemon configuration
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ListenAddr: ":9099",
		LogLevel:   "info",
		LogFormat:  "json",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DefinitionsFile == "" {
		return Config{}, fmt.Errorf("config: definitions file not set")
	}
	if cfg.StatusFile == "" {
		return Config{}, fmt.Errorf("config: status file not set")
	}
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "statetree.states"
	}
	return cfg, nil
}
