// Package config defines the exchange process's configuration. Config is
// loaded from a YAML file with overrides via MATCHCORE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly to the YAML
// file structure.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Net      NetConfig      `mapstructure:"net"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig sizes the risk and matching shard pools and the grouping
// batch size every command is assigned into. RingBufferSize, Producer and
// WaitStrategy carry over the original disruptor-backed design's knobs;
// this core dispatches commands through a single goroutine instead of a
// ring buffer (internal/net's dispatchLoop), so they are validated but
// otherwise unused; kept so a config file written for the original
// deployment still loads here without edits.
type PipelineConfig struct {
	RiskEngines     int    `mapstructure:"risk_engines_num"`
	MatchingEngines int    `mapstructure:"matching_engines_num"`
	MsgsPerGroup    int    `mapstructure:"msgs_per_group"`
	RingBufferSize  int    `mapstructure:"ring_buffer_size"`
	ProducerType    string `mapstructure:"producer_type"`
	WaitStrategy    string `mapstructure:"wait_strategy"`
}

// NetConfig controls the TCP command-ingestion server.
type NetConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// JournalConfig points at the write-ahead log file.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig controls where and how often full-state snapshots are
// written.
type SnapshotConfig struct {
	Dir      string `mapstructure:"dir"`
	Interval int    `mapstructure:"interval_commands"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	defaultOnce   sync.Once
	defaultConfig Config
)

// Default returns the zero-file configuration (every field at its
// built-in default), computed once and shared: callers that only need a
// baseline to layer environment overrides onto don't each pay for their
// own copy of the default tree.
func Default() Config {
	defaultOnce.Do(func() { defaultConfig = defaults() })
	return defaultConfig
}

func defaults() Config {
	return Config{
		Pipeline: PipelineConfig{
			RiskEngines:     4,
			MatchingEngines: 4,
			MsgsPerGroup:    256,
			RingBufferSize:  64 * 1024,
			ProducerType:    "single",
			WaitStrategy:    "busy_spin",
		},
		Net: NetConfig{
			Address: "0.0.0.0",
			Port:    9001,
		},
		Journal: JournalConfig{
			Path: "data/journal.bin",
		},
		Snapshot: SnapshotConfig{
			Dir:      "data/snapshots",
			Interval: 100000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config from a YAML file at path, applying MATCHCORE_*
// environment overrides on top. A missing file falls back to defaults
// entirely driven by environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := Default()
	if err := v.MergeConfigMap(structToMap(cfg)); err != nil {
		return nil, fmt.Errorf("seed config defaults: %w", err)
	}

	v.SetConfigFile(path)
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &out, nil
}

// structToMap round-trips cfg through viper's own unmarshal conventions
// so MergeConfigMap sees the same mapstructure tags Unmarshal will later
// read back.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"pipeline": map[string]any{
			"risk_engines_num":     cfg.Pipeline.RiskEngines,
			"matching_engines_num": cfg.Pipeline.MatchingEngines,
			"msgs_per_group":       cfg.Pipeline.MsgsPerGroup,
			"ring_buffer_size":     cfg.Pipeline.RingBufferSize,
			"producer_type":        cfg.Pipeline.ProducerType,
			"wait_strategy":        cfg.Pipeline.WaitStrategy,
		},
		"net": map[string]any{
			"address": cfg.Net.Address,
			"port":    cfg.Net.Port,
		},
		"journal": map[string]any{
			"path": cfg.Journal.Path,
		},
		"snapshot": map[string]any{
			"dir":               cfg.Snapshot.Dir,
			"interval_commands": cfg.Snapshot.Interval,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
	}
}

// Validate checks invariants Load cannot enforce through defaults alone.
func (c *Config) Validate() error {
	if c.Pipeline.RiskEngines <= 0 {
		return fmt.Errorf("pipeline.risk_engines_num must be > 0")
	}
	if c.Pipeline.MatchingEngines <= 0 {
		return fmt.Errorf("pipeline.matching_engines_num must be > 0")
	}
	if c.Pipeline.RiskEngines&(c.Pipeline.RiskEngines-1) != 0 {
		return fmt.Errorf("pipeline.risk_engines_num must be a power of two")
	}
	if c.Pipeline.MatchingEngines&(c.Pipeline.MatchingEngines-1) != 0 {
		return fmt.Errorf("pipeline.matching_engines_num must be a power of two")
	}
	if c.Pipeline.MsgsPerGroup <= 0 {
		return fmt.Errorf("pipeline.msgs_per_group must be > 0")
	}
	if c.Pipeline.RingBufferSize <= 0 || c.Pipeline.RingBufferSize&(c.Pipeline.RingBufferSize-1) != 0 {
		return fmt.Errorf("pipeline.ring_buffer_size must be a power of two")
	}
	switch c.Pipeline.ProducerType {
	case "single", "multi":
	default:
		return fmt.Errorf("pipeline.producer_type must be single or multi")
	}
	switch c.Pipeline.WaitStrategy {
	case "busy_spin", "yielding", "blocking", "sleeping":
	default:
		return fmt.Errorf("pipeline.wait_strategy must be busy_spin, yielding, blocking or sleeping")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}
	if c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot.dir is required")
	}
	return nil
}
