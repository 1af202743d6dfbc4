package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lioncash/citra/internal/util"
)

// Bytes per GB
const GB = 1024 * 1024 * 1024

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultFreeBytes is the nominal free space every archive reports;
	// real host free space is never queried.
	DefaultFreeBytes = uint64(1 * GB)

	// DefaultVerbose is the CLI verbosity between 1 (error) and 5 (trace).
	DefaultVerbose = 3
)

// Config contains runtime configuration values for the filesystem adapter.
type Config struct {
	MountPoint string        // Host directory guest paths resolve against
	FreeBytes  uint64        // Nominal free space reported by GetFreeBytes (Default 1GB)
	LogLvl     util.LogLevel // Resolved log level (from CLI verbosity)
	LogFilter  string        // Subsystem filter spec, e.g. "Service.FS:debug,*:info"
}

// ConfigOverride uses pointer fields to distinguish between unset and zero
// values when loading partial configuration. See [Config] for field
// descriptions.
type ConfigOverride struct {
	MountPoint *string `yaml:"mount_point,omitempty" json:"mount_point,omitempty"`
	FreeBytes  *uint64 `yaml:"free_bytes,omitempty" json:"free_bytes,omitempty"`
	Verbose    *int    `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	LogFilter  *string `yaml:"log_filter,omitempty" json:"log_filter,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		FreeBytes: DefaultFreeBytes,
		LogLvl:    verboseToLevel(DefaultVerbose),
	}
}

// NewConfig creates a Config from defaults merged with the given override.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.MountPoint != nil {
		c.MountPoint = *override.MountPoint
	}
	if override.FreeBytes != nil {
		c.FreeBytes = *override.FreeBytes
	}
	if override.Verbose != nil {
		c.LogLvl = verboseToLevel(*override.Verbose)
	}
	if override.LogFilter != nil {
		c.LogFilter = *override.LogFilter
	}
}

// verboseToLevel maps CLI verbosity (1=error .. 5=trace, clamped) onto the
// internal log level.
func verboseToLevel(verbose int) util.LogLevel {
	if verbose < 1 {
		verbose = 1
	}
	if verbose > 5 {
		verbose = 5
	}
	levels := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return levels[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
