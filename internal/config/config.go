package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Usage counter backends.
const (
	UsageBackendSQLite = "sqlite"
	UsageBackendRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// PrettyLog switches to the colored development encoder
	PrettyLog bool `json:"pretty_log,omitempty" yaml:"pretty_log,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// HistoryRetentionDays purges older history at startup. 0 keeps everything.
	HistoryRetentionDays int `json:"history_retention_days,omitempty" yaml:"history_retention_days,omitempty"`

	// UnknownGroupLabel names the bucket for rows without a group value
	UnknownGroupLabel string `json:"unknown_group_label,omitempty" yaml:"unknown_group_label,omitempty"`

	DefaultPageSize int `json:"default_page_size,omitempty" yaml:"default_page_size,omitempty"`
	MaxPageSize     int `json:"max_page_size,omitempty" yaml:"max_page_size,omitempty"`

	// UsageBackend selects where browser launch counters are kept: sqlite or redis
	UsageBackend  string `json:"usage_backend,omitempty" yaml:"usage_backend,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`

	// RedisTimeout is a Go duration string, e.g. "2s"
	RedisTimeout string `json:"redis_timeout,omitempty" yaml:"redis_timeout,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		UnknownGroupLabel: "Unknown",
		DefaultPageSize:   50,
		MaxPageSize:       500,
		UsageBackend:      UsageBackendSQLite,
		RedisTimeout:      "2s",
	}
}

// Load loads configuration from baseDir/config.json, falling back to
// baseDir/config.yaml. Returns default config if neither exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.hostgate.
func Load(baseDir string) (*Config, error) {
	cfg, found, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if !found {
		cfg, _, err = loadFileRaw(filepath.Join(baseDir, "config.yaml"))
		if err != nil {
			return nil, err
		}
	}

	merged := Merge(DefaultConfig(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadFileRaw loads configuration from a specific file path, decoding YAML
// for .yaml/.yml and JSON otherwise.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, bool, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", filepath.Base(configPath), err)
	}

	return cfg, true, nil
}

// Validate checks enumerated and parsed fields.
func (c *Config) Validate() error {
	switch c.UsageBackend {
	case UsageBackendSQLite:
	case UsageBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("redis_addr is required when usage_backend is redis")
		}
	default:
		return fmt.Errorf("usage_backend must be one of: sqlite, redis (got %q)", c.UsageBackend)
	}
	if _, err := time.ParseDuration(c.RedisTimeout); err != nil {
		return fmt.Errorf("invalid redis_timeout: %w", err)
	}
	if c.HistoryRetentionDays < 0 {
		return errors.New("history_retention_days must be non-negative")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return errors.New("max_page_size must be >= default_page_size")
	}
	return nil
}

// RedisTimeoutDuration returns the parsed RedisTimeout, or 2s if unparsable.
func (c *Config) RedisTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RedisTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.UnknownGroupLabel = firstString(overlay.UnknownGroupLabel, base.UnknownGroupLabel)
	result.UsageBackend = firstString(overlay.UsageBackend, base.UsageBackend)
	result.RedisAddr = firstString(overlay.RedisAddr, base.RedisAddr)
	result.RedisPassword = firstString(overlay.RedisPassword, base.RedisPassword)
	result.RedisTimeout = firstString(overlay.RedisTimeout, base.RedisTimeout)

	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.HistoryRetentionDays = firstInt(overlay.HistoryRetentionDays, base.HistoryRetentionDays)
	result.DefaultPageSize = firstInt(overlay.DefaultPageSize, base.DefaultPageSize)
	result.MaxPageSize = firstInt(overlay.MaxPageSize, base.MaxPageSize)
	result.RedisDB = firstInt(overlay.RedisDB, base.RedisDB)

	// Booleans: overlay wins if true, else base
	result.PrettyLog = base.PrettyLog || overlay.PrettyLog

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
