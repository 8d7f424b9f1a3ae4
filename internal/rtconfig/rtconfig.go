// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package rtconfig loads and holds the runtime's configuration, covering
// the keys listed in spec.md §6. Configuration is loaded from
// settings.json (or .yaml/.yml) under $OLLM_HOME via viper, matching the
// teacher's habit of sourcing config from a single well-known file.
package rtconfig

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// CompressionStrategy selects how the compression coordinator reduces
// the message store (spec.md §4.4).
type CompressionStrategy string

const (
	StrategyTruncate  CompressionStrategy = "truncate"
	StrategySummarize CompressionStrategy = "summarize"
	StrategyHybrid    CompressionStrategy = "hybrid"
)

// Config holds every recognized configuration option with its default
// applied. Zero value is not meaningful; use Defaults or Load.
type Config struct {
	mu sync.RWMutex

	ContextTargetSize string // "auto" or an explicit token count, as string
	ContextAutoSize   bool
	ContextVRAMBuffer int // MiB

	CompressionEnabled      bool
	CompressionThreshold    float64
	CompressionStrategy     CompressionStrategy
	CompressionPreserveRecent int // tokens

	SnapshotsMaxPerPurpose int
	SnapshotsPruneAfter    map[string]time.Duration // purpose -> age cap

	HooksEnabled       bool
	HooksTimeout       time.Duration
	HooksTrustWorkspace bool

	ModeAutoSwitch bool

	AgentMaxTurns int
}

// Defaults returns the configuration with every spec.md §6 default
// applied and nothing overridden.
func Defaults() *Config {
	return &Config{
		ContextTargetSize: "auto",
		ContextAutoSize:   false,
		ContextVRAMBuffer: 512,

		CompressionEnabled:        true,
		CompressionThreshold:      0.80,
		CompressionStrategy:       StrategyHybrid,
		CompressionPreserveRecent: 4096,

		SnapshotsMaxPerPurpose: 5,
		SnapshotsPruneAfter: map[string]time.Duration{
			"mode-transition": 2 * time.Hour,
			"recovery":        7 * 24 * time.Hour,
			"rollback":        7 * 24 * time.Hour,
			"emergency":       7 * 24 * time.Hour,
		},

		HooksEnabled:        true,
		HooksTimeout:        5 * time.Second,
		HooksTrustWorkspace: false,

		ModeAutoSwitch: false,

		AgentMaxTurns: 5,
	}
}

// Load reads settings from the given file path (if it exists) layered
// over Defaults(); missing files are not an error, matching the
// teacher's tolerant config loading.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		if strings.Contains(err.Error(), "no such file") {
			return cfg, nil
		}
		return cfg, err
	}

	applyViper(cfg, v)
	return cfg, nil
}

func applyViper(cfg *Config, v *viper.Viper) {
	if v.IsSet("context.target_size") {
		cfg.ContextTargetSize = v.GetString("context.target_size")
	}
	if v.IsSet("context.auto_size") {
		cfg.ContextAutoSize = v.GetBool("context.auto_size")
	}
	if v.IsSet("context.vram_buffer") {
		cfg.ContextVRAMBuffer = v.GetInt("context.vram_buffer")
	}
	if v.IsSet("compression.enabled") {
		cfg.CompressionEnabled = v.GetBool("compression.enabled")
	}
	if v.IsSet("compression.threshold") {
		cfg.CompressionThreshold = v.GetFloat64("compression.threshold")
	}
	if v.IsSet("compression.strategy") {
		cfg.CompressionStrategy = CompressionStrategy(v.GetString("compression.strategy"))
	}
	if v.IsSet("compression.preserve_recent") {
		cfg.CompressionPreserveRecent = v.GetInt("compression.preserve_recent")
	}
	if v.IsSet("snapshots.max_per_purpose") {
		cfg.SnapshotsMaxPerPurpose = v.GetInt("snapshots.max_per_purpose")
	}
	if v.IsSet("hooks.enabled") {
		cfg.HooksEnabled = v.GetBool("hooks.enabled")
	}
	if v.IsSet("hooks.timeout_ms") {
		cfg.HooksTimeout = time.Duration(v.GetInt("hooks.timeout_ms")) * time.Millisecond
	}
	if v.IsSet("hooks.trust_workspace") {
		cfg.HooksTrustWorkspace = v.GetBool("hooks.trust_workspace")
	}
	if v.IsSet("mode.auto_switch") {
		cfg.ModeAutoSwitch = v.GetBool("mode.auto_switch")
	}
	if v.IsSet("agent.max_turns") {
		cfg.AgentMaxTurns = v.GetInt("agent.max_turns")
	}
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Get returns the process-wide configuration, initializing it to
// Defaults() on first use.
func Get() *Config {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		globalCfg = Defaults()
	}
	return globalCfg
}

// Set replaces the process-wide configuration.
func Set(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}
