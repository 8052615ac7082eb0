package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
)

// Registry backends.
const (
	BackendFixture = "fixture"
	BackendREST    = "rest"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".casesearch.yaml"

// Config represents the complete casesearch configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Ledger   LedgerConfig   `yaml:"ledger" json:"ledger"`
	Drain    DrainConfig    `yaml:"drain" json:"drain"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Registry RegistryConfig `yaml:"registry" json:"registry"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// IndexConfig configures the search index.
type IndexConfig struct {
	// Path is the bleve index directory. Empty keeps the index in memory.
	Path string `yaml:"path" json:"path"`
	// BatchSize is the number of ids listed per registry page during reindex.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// LedgerConfig configures the Pending-Reindex Ledger.
type LedgerConfig struct {
	// Path is the sqlite database file. ":memory:" keeps it in memory.
	Path string `yaml:"path" json:"path"`
}

// DrainConfig configures the background ledger drain.
type DrainConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`
	BatchSize   int           `yaml:"batch_size" json:"batch_size"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	// LockFile keeps processes sharing a ledger from draining at once.
	LockFile string `yaml:"lock_file" json:"lock_file"`
	// Immediate applies registry changes inline instead of marking them.
	Immediate bool `yaml:"immediate" json:"immediate"`
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	DefaultRows int `yaml:"default_rows" json:"default_rows"`
	MaxRows     int `yaml:"max_rows" json:"max_rows"`
	FacetSize   int `yaml:"facet_size" json:"facet_size"`
	// Timezone anchors date range days, e.g. "Europe/Amsterdam".
	Timezone string `yaml:"timezone" json:"timezone"`
	// CaseTypes is the static authorization list for CLI and MCP callers.
	// Empty grants every case type.
	CaseTypes []string `yaml:"case_types" json:"case_types"`
}

// RegistryConfig selects and configures the registry backend.
type RegistryConfig struct {
	Backend    string        `yaml:"backend" json:"backend"`
	FixtureDir string        `yaml:"fixture_dir" json:"fixture_dir"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Token      string        `yaml:"token" json:"-"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path:      filepath.Join(dataDir, "index.bleve"),
			BatchSize: 500,
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(dataDir, "ledger.db"),
		},
		Drain: DrainConfig{
			Interval:    5 * time.Second,
			BatchSize:   100,
			Concurrency: 8,
			LockFile:    filepath.Join(dataDir, "drain.lock"),
		},
		Search: SearchConfig{
			DefaultRows: 10,
			MaxRows:     200,
			FacetSize:   100,
			Timezone:    "Local",
		},
		Registry: RegistryConfig{
			Backend:    BackendFixture,
			FixtureDir: "fixtures",
			Timeout:    10 * time.Second,
			CacheSize:  256,
			MaxRetries: 3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultDataDir returns ~/.casesearch, or a temp directory without a home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".casesearch")
	}
	return filepath.Join(home, ".casesearch")
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/casesearch/config.yaml or ~/.config/casesearch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "casesearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "casesearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "casesearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for dir in order of increasing precedence:
//  1. Defaults
//  2. User config (~/.config/casesearch/config.yaml)
//  3. Project config (.casesearch.yaml in dir)
//  4. Environment variables (CASESEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the fields present in the file at path. Absent fields
// keep their current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cserrors.New(cserrors.ErrCodeConfigPermission, fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return cserrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithSuggestion("Check the YAML syntax and field types")
	}
	return nil
}

// applyEnvOverrides applies CASESEARCH_* environment variables.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"CASESEARCH_INDEX_PATH":           &c.Index.Path,
		"CASESEARCH_LEDGER_PATH":          &c.Ledger.Path,
		"CASESEARCH_DRAIN_LOCK_FILE":      &c.Drain.LockFile,
		"CASESEARCH_SEARCH_TIMEZONE":      &c.Search.Timezone,
		"CASESEARCH_REGISTRY_BACKEND":     &c.Registry.Backend,
		"CASESEARCH_REGISTRY_FIXTURE_DIR": &c.Registry.FixtureDir,
		"CASESEARCH_REGISTRY_BASE_URL":    &c.Registry.BaseURL,
		"CASESEARCH_REGISTRY_TOKEN":       &c.Registry.Token,
		"CASESEARCH_LOG_LEVEL":            &c.Logging.Level,
		"CASESEARCH_LOG_FILE":             &c.Logging.File,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CASESEARCH_DRAIN_BATCH_SIZE":    &c.Drain.BatchSize,
		"CASESEARCH_DRAIN_CONCURRENCY":   &c.Drain.Concurrency,
		"CASESEARCH_SEARCH_MAX_ROWS":     &c.Search.MaxRows,
		"CASESEARCH_REGISTRY_CACHE_SIZE": &c.Registry.CacheSize,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", name, v), err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("CASESEARCH_DRAIN_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("CASESEARCH_DRAIN_INTERVAL must be a duration, got %q", v), err)
		}
		c.Drain.Interval = d
	}
	if v, ok := os.LookupEnv("CASESEARCH_DRAIN_IMMEDIATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("CASESEARCH_DRAIN_IMMEDIATE must be a boolean, got %q", v), err)
		}
		c.Drain.Immediate = b
	}
	if v, ok := os.LookupEnv("CASESEARCH_SEARCH_CASE_TYPES"); ok {
		c.Search.CaseTypes = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return cserrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if c.Ledger.Path == "" {
		return invalid("ledger.path must be set")
	}
	if c.Index.BatchSize <= 0 {
		return invalid("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Drain.Interval <= 0 {
		return invalid("drain.interval must be positive, got %s", c.Drain.Interval)
	}
	if c.Drain.BatchSize <= 0 {
		return invalid("drain.batch_size must be positive, got %d", c.Drain.BatchSize)
	}
	if c.Drain.Concurrency <= 0 {
		return invalid("drain.concurrency must be positive, got %d", c.Drain.Concurrency)
	}

	if c.Search.DefaultRows <= 0 {
		return invalid("search.default_rows must be positive, got %d", c.Search.DefaultRows)
	}
	if c.Search.MaxRows < c.Search.DefaultRows {
		return invalid("search.max_rows (%d) must be at least search.default_rows (%d)", c.Search.MaxRows, c.Search.DefaultRows)
	}
	if c.Search.FacetSize <= 0 {
		return invalid("search.facet_size must be positive, got %d", c.Search.FacetSize)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch strings.ToLower(c.Registry.Backend) {
	case BackendFixture:
		if c.Registry.FixtureDir == "" {
			return invalid("registry.fixture_dir must be set for the fixture backend")
		}
	case BackendREST:
		if c.Registry.BaseURL == "" {
			return invalid("registry.base_url must be set for the rest backend")
		}
	default:
		return invalid("registry.backend must be 'fixture' or 'rest', got %s", c.Registry.Backend)
	}
	if c.Registry.CacheSize < 0 || c.Registry.MaxRetries < 0 {
		return invalid("registry.cache_size and registry.max_retries must be non-negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// Location resolves search.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Search.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Search.Timezone)
	if err != nil {
		return nil, cserrors.ConfigError(fmt.Sprintf("search.timezone %q is not a known zone", c.Search.Timezone), err)
	}
	return loc, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
