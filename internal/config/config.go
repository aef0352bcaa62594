// Package config loads daemon configuration from TOML, the same pattern
// the teacher's daemon config used: sensible defaults, overridden by a
// config file at a conventional path, with no required fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all controller/drone configuration (spec §6 "Environment":
// bus endpoint, storage path, drone identity, cluster name — all injected
// as configuration).
type Config struct {
	Bus       BusConfig       `toml:"bus"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Drone     DroneConfig     `toml:"drone"`
	Store     StoreConfig     `toml:"store"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// BusConfig points at the message bus.
type BusConfig struct {
	URL            string `toml:"url"`
	StreamName     string `toml:"stream_name"`
	RequestTimeout string `toml:"request_timeout"`
}

// SchedulerConfig controls the controller-side Cluster Scheduler.
type SchedulerConfig struct {
	// LivenessWindow is not read by the controller: the scheduler always
	// uses the scheduler.LivenessWindow constant (5s), whatever this holds.
	LivenessWindow string `toml:"liveness_window"`

	// EvictionInterval names the extension point for spec §9 open question
	// (b). It is not read: the liveness index never evicts stale drones,
	// whatever this holds.
	EvictionInterval string `toml:"eviction_interval"`
}

// DroneConfig identifies this drone process.
type DroneConfig struct {
	ID      string `toml:"id"`
	Cluster string `toml:"cluster"`
	IP      string `toml:"ip"`

	// EngineHost is the Docker-equivalent engine endpoint (spec §1: engine
	// plumbing beyond the abstract contract is out of scope — this is
	// only where a production Engine implementation would be pointed).
	EngineHost string `toml:"engine_host"`
}

// StoreConfig points at the Local Routing Store.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls the zap logger (internal/logging).
type LoggingConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	Development bool   `toml:"development"`
}

// TelemetryConfig controls the Prometheus /metrics and /healthz surface.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// Default returns the out-of-the-box configuration: a local NATS server,
// a data directory under the user's home, and console logging.
func Default() Config {
	home := spawnerHome()
	return Config{
		Bus: BusConfig{
			URL:            "nats://127.0.0.1:4222",
			StreamName:     "PLANE",
			RequestTimeout: "10s",
		},
		Scheduler: SchedulerConfig{
			LivenessWindow:   "5s",
			EvictionInterval: "",
		},
		Drone: DroneConfig{
			Cluster: "plane.local",
		},
		Store: StoreConfig{
			Dir: filepath.Join(home, "data"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
	}
}

// Load reads config from path, or from $SPAWNER_HOME/config.toml if path is
// empty, falling back to defaults when no file exists.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = filepath.Join(spawnerHome(), "config.toml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func spawnerHome() string {
	if env := os.Getenv("SPAWNER_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".spawner")
}

// Home is exported for use by other packages (CLI default paths, etc.).
func Home() string { return spawnerHome() }
