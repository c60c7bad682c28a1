package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/issuefs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "issuefs"
	DefaultName   = "issuefs"

	DefaultLogLvl = util.InfoLevel

	// DefaultProbeTimeout bounds the one-time tracker version probe at mount
	DefaultProbeTimeout = 10 * time.Second

	// DefaultRefreshOnMount refreshes enabled folders restored from the store
	DefaultRefreshOnMount = true

	// DefaultAttrTimeout is the attribute cache timeout in seconds.
	// Synthetic content changes size between calls so attributes are not cached.
	DefaultAttrTimeout = 0.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO bypasses the page cache so reads always see fresh content
	DefaultDirectIO = true
)

// CLI verbosity values accepted for ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// MountOptions holds high-level settings for mounting.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug  bool   // fuse debug logs
	FsName string // mount's FsName
	Name   string // mount's Name
}

// Config contains runtime configuration values for the issue filesystem.
// It is built once at startup and treated as immutable afterwards.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel
	StorePath      string        // Persistent folder store file (Default user config dir)
	ProbeTimeout   time.Duration // Timeout of the startup version probe (Default 10s)
	RefreshOnMount bool          // Refresh enabled folders loaded from the store (Default true)
	Trackers       TrackerCredentials

	// NOTE: Low-level FUSE config (strongly recommend defaults unless you really know what you're doing):

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for synthetic files (Default true)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1 (error) to 5 (trace)
	StorePath      *string  `yaml:"store_path,omitempty" json:"store_path,omitempty"`
	ProbeTimeout   *string  `yaml:"probe_timeout,omitempty" json:"probe_timeout,omitempty"` // time.ParseDuration format
	RefreshOnMount *bool    `yaml:"refresh_on_mount,omitempty" json:"refresh_on_mount,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO       *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values and no trackers.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		StorePath:      DefaultStorePath(),
		ProbeTimeout:   DefaultProbeTimeout,
		RefreshOnMount: DefaultRefreshOnMount,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
		DirectIO:       DefaultDirectIO,
	}
}

// NewConfig returns the default config with override applied. override may be nil.
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
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.LogLvl != nil {
		c.LogLvl = util.VerbosityLevel(*override.LogLvl)
	}
	if override.StorePath != nil {
		c.StorePath = *override.StorePath
	}
	if override.ProbeTimeout != nil {
		if d, err := time.ParseDuration(*override.ProbeTimeout); err == nil && d > 0 {
			c.ProbeTimeout = d
		} else {
			logger := util.GetLogger("Config.Merge")
			logger.Warn().Str("probe_timeout", *override.ProbeTimeout).Msg("Ignoring invalid probe timeout")
		}
	}
	if override.RefreshOnMount != nil {
		c.RefreshOnMount = *override.RefreshOnMount
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
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
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
