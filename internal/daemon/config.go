// Package daemon manages the flight computer lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all flight computer configuration.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	API       APIConfig       `toml:"api"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Uplink    UplinkConfig    `toml:"uplink"`
	Sim       SimConfig       `toml:"sim"`
}

// SchedulerConfig tunes the tick executive.
type SchedulerConfig struct {
	BaseHz      float64 `toml:"base_hz"`
	FaultBudget int     `toml:"fault_budget"`
}

// APIConfig controls the ground-segment HTTP server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// TelemetryConfig controls the onboard data store.
type TelemetryConfig struct {
	Dir string `toml:"dir"`
}

// UplinkConfig bounds the command queue.
type UplinkConfig struct {
	QueueCapacity int `toml:"queue_capacity"`
}

// SimConfig seeds the simulated hardware.
type SimConfig struct {
	Seed int64 `toml:"seed"`
}

// DefaultConfig returns the flight defaults.
func DefaultConfig() Config {
	return Config{
		Scheduler: SchedulerConfig{
			BaseHz:      10,
			FaultBudget: 5,
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    7400,
			Metrics: true,
		},
		Telemetry: TelemetryConfig{
			Dir: filepath.Join(kestrelHome(), "telemetry"),
		},
		Uplink: UplinkConfig{
			QueueCapacity: 32,
		},
		Sim: SimConfig{
			Seed: 1,
		},
	}
}

// LoadConfig reads config from path, or from $KESTREL_HOME/config.toml
// when path is empty, falling back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = filepath.Join(kestrelHome(), "config.toml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Scheduler.BaseHz <= 0 {
		return cfg, fmt.Errorf("config: base_hz must be > 0, got %v", cfg.Scheduler.BaseHz)
	}
	if cfg.Uplink.QueueCapacity <= 0 {
		cfg.Uplink.QueueCapacity = DefaultConfig().Uplink.QueueCapacity
	}
	return cfg, nil
}

// kestrelHome returns the kestrel data directory.
func kestrelHome() string {
	if env := os.Getenv("KESTREL_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kestrel")
}
