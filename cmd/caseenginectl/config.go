package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds every knob caseenginectl exposes, loaded defaults -> TOML
// file -> env vars (env wins), grounded on nevindra-oasis's
// internal/config.Load.
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Store   StoreConfig   `toml:"store"`
	Metrics MetricsConfig `toml:"metrics"`
}

type EngineConfig struct {
	WorkerPoolSize       int    `toml:"worker_pool_size"`
	JoinTimeoutMs        int    `toml:"join_timeout_ms"`
	PersistAfterEachStep bool   `toml:"persist_after_each_step"`
	PathSeparator        string `toml:"path_separator"`
	MaxStepsPerDrive     int    `toml:"max_steps_per_drive"`
}

type StoreConfig struct {
	// Driver selects the Store backend: "memory", "sqlite", or "mysql".
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Default returns a Config with every field set to the engine package's
// own defaults (see engine.defaultConfig), so an unconfigured caseenginectl
// behaves identically to an embedder who takes no Options.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			WorkerPoolSize:       4,
			JoinTimeoutMs:        0,
			PersistAfterEachStep: true,
			PathSeparator:        ".",
			MaxStepsPerDrive:     10000,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load reads cfg: defaults -> TOML file at path (if it exists) -> env vars.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "caseenginectl.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("CASEENGINE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CASEENGINE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CASEENGINE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if os.Getenv("CASEENGINE_METRICS_ENABLED") == "true" || os.Getenv("CASEENGINE_METRICS_ENABLED") == "1" {
		cfg.Metrics.Enabled = true
	}

	return cfg
}
