// Package config provides configuration management for the council command-line tool.
// It loads settings from a YAML file, then environment variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/council-records/pkg/db"
	"github.com/otherjamesbrown/council-records/pkg/ingest/events"
	"github.com/otherjamesbrown/council-records/pkg/ingest/minutes"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultOutputFormat  = OutputFormatText
	DefaultLogLevel      = "info"
	DefaultConcurrency   = 4
	DefaultTimeout       = 30 * time.Second
	DefaultWatchDebounce = 2 * time.Second
	DefaultConfigDir     = ".council"
	DefaultConfigFile    = "config.yaml"
)

// DatabaseConfig holds PostgreSQL settings for `--store`.
type DatabaseConfig struct {
	// URL, when set, overrides the discrete fields.
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	SSLMode  string `json:"sslmode,omitempty" yaml:"sslmode,omitempty"`
}

// DB converts the settings to a pool configuration, keeping pool defaults
// for anything unset.
func (d DatabaseConfig) DB(timeout time.Duration) *db.Config {
	cfg := db.DefaultConfig()
	cfg.URL = d.URL
	if d.Host != "" {
		cfg.Host = d.Host
	}
	if d.Port != 0 {
		cfg.Port = d.Port
	}
	if d.Name != "" {
		cfg.Database = d.Name
	}
	if d.User != "" {
		cfg.User = d.User
	}
	cfg.Password = d.Password
	if d.SSLMode != "" {
		cfg.SSLMode = d.SSLMode
	}
	if timeout > 0 {
		cfg.ConnectTimeout = timeout
	}
	return cfg
}

// RedisConfig holds Redis settings for `--publish`.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// Publisher converts the settings to a publisher configuration.
func (r RedisConfig) Publisher() events.PublisherConfig {
	return events.PublisherConfig{Addr: r.Addr, Password: r.Password, DB: r.DB}
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `json:"output_format" yaml:"output_format"`

	// OutputDir, when set, receives parse output instead of stdout.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogJSON  bool   `json:"log_json,omitempty" yaml:"log_json,omitempty"`

	// Debug enables debug logging regardless of LogLevel.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`

	// MinutesMaxPages bounds how many minutes pages are read.
	MinutesMaxPages int `json:"minutes_max_pages" yaml:"minutes_max_pages"`

	// Concurrency is the number of meetings a batch processes at once.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// FallbackRoster is used when a minutes header names no members.
	FallbackRoster []string `json:"fallback_roster" yaml:"fallback_roster"`

	// Timeout bounds database and Redis connection attempts.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// WatchDebounce is how long a meeting folder must be quiet before
	// `council watch` re-processes it.
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce"`

	Database DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	Redis    RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty"`

	// MetricsAddr, when set, serves /metrics and /version during `council watch`.
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// MetricsFile, when set, receives a Prometheus textfile after each batch.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat:    DefaultOutputFormat,
		LogLevel:        DefaultLogLevel,
		MinutesMaxPages: minutes.DefaultMaxPages,
		Concurrency:     DefaultConcurrency,
		FallbackRoster:  append([]string(nil), minutes.DefaultRoster...),
		Timeout:         DefaultTimeout,
		WatchDebounce:   DefaultWatchDebounce,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $COUNCIL_CONFIG_DIR if set, otherwise ~/.council
func ConfigDir() (string, error) {
	if dir := os.Getenv("COUNCIL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration. Later sources override earlier:
// 1. Default values
// 2. Config file (~/.council/config.yaml or $COUNCIL_CONFIG_DIR/config.yaml)
// 3. Environment variables (COUNCIL_*)
func LoadConfig() (*CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from path. A missing file is not an error.
func LoadConfigFrom(path string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// configFile is the on-disk form, with durations as strings.
type configFile struct {
	OutputFormat    OutputFormat   `json:"output_format" yaml:"output_format"`
	OutputDir       string         `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	LogLevel        string         `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogJSON         bool           `json:"log_json,omitempty" yaml:"log_json,omitempty"`
	Debug           bool           `json:"debug,omitempty" yaml:"debug,omitempty"`
	MinutesMaxPages int            `json:"minutes_max_pages,omitempty" yaml:"minutes_max_pages,omitempty"`
	Concurrency     int            `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	FallbackRoster  []string       `json:"fallback_roster,omitempty" yaml:"fallback_roster,omitempty"`
	Timeout         string         `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	WatchDebounce   string         `json:"watch_debounce,omitempty" yaml:"watch_debounce,omitempty"`
	Database        DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	Redis           RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty"`
	MetricsAddr     string         `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	MetricsFile     string         `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc configFile
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.OutputFormat != "" {
		cfg.OutputFormat = fc.OutputFormat
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = expandPath(fc.OutputDir)
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.MinutesMaxPages != 0 {
		cfg.MinutesMaxPages = fc.MinutesMaxPages
	}
	if fc.Concurrency != 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if fc.FallbackRoster != nil {
		cfg.FallbackRoster = fc.FallbackRoster
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fc.WatchDebounce != "" {
		d, err := time.ParseDuration(fc.WatchDebounce)
		if err != nil {
			return fmt.Errorf("parsing watch_debounce: %w", err)
		}
		cfg.WatchDebounce = d
	}
	cfg.LogJSON = fc.LogJSON
	cfg.Debug = fc.Debug
	cfg.Database = fc.Database
	cfg.Redis = fc.Redis
	cfg.MetricsAddr = fc.MetricsAddr
	cfg.MetricsFile = expandPath(fc.MetricsFile)
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("COUNCIL_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("COUNCIL_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = expandPath(v)
	}
	if v := os.Getenv("COUNCIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("COUNCIL_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}
	if v := os.Getenv("COUNCIL_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
	if v := os.Getenv("COUNCIL_MINUTES_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinutesMaxPages = n
		}
	}
	if v := os.Getenv("COUNCIL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("COUNCIL_FALLBACK_ROSTER"); v != "" {
		cfg.FallbackRoster = splitList(v)
	}
	if v := os.Getenv("COUNCIL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("COUNCIL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("COUNCIL_METRICS_FILE"); v != "" {
		cfg.MetricsFile = expandPath(v)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("COUNCIL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("COUNCIL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("COUNCIL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("COUNCIL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("COUNCIL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("COUNCIL_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}

	if v := os.Getenv("COUNCIL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("COUNCIL_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("COUNCIL_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.MinutesMaxPages <= 0 {
		return fmt.Errorf("minutes_max_pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("watch_debounce must be positive")
	}
	if len(c.FallbackRoster) == 0 {
		return fmt.Errorf("fallback_roster must name at least one member")
	}
	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// Marshal renders the configuration in its on-disk YAML form.
func Marshal(cfg *CLIConfig) ([]byte, error) {
	fc := configFile{
		OutputFormat:    cfg.OutputFormat,
		OutputDir:       cfg.OutputDir,
		LogLevel:        cfg.LogLevel,
		LogJSON:         cfg.LogJSON,
		Debug:           cfg.Debug,
		MinutesMaxPages: cfg.MinutesMaxPages,
		Concurrency:     cfg.Concurrency,
		FallbackRoster:  cfg.FallbackRoster,
		Timeout:         cfg.Timeout.String(),
		WatchDebounce:   cfg.WatchDebounce.String(),
		Database:        cfg.Database,
		Redis:           cfg.Redis,
		MetricsAddr:     cfg.MetricsAddr,
		MetricsFile:     cfg.MetricsFile,
	}
	data, err := yaml.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// SaveConfig saves the configuration to the config file and returns its path.
func SaveConfig(cfg *CLIConfig) (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	// The file may hold database and Redis passwords.
	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return configPath, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
