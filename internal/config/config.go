// Package config provides configuration types, defaults, and persistence for dockyard.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/zjrosen/dockyard/internal/layouts/query"
	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/tracing"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config holds all configuration options for dockyard.
type Config struct {
	Store   StoreConfig    `mapstructure:"store"`
	Search  SearchConfig   `mapstructure:"search"`
	List    ListConfig     `mapstructure:"list"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Events  EventsConfig   `mapstructure:"events"`
	Tracing tracing.Config `mapstructure:"tracing"`
	Log     LogConfig      `mapstructure:"log"`
}

// StoreConfig selects and locates the durable store.
type StoreConfig struct {
	// Backend is "file" (default), "sqlite" or "s3".
	Backend string `mapstructure:"backend"`

	// Path is the state file or database. Empty derives it from the
	// config directory; see StorePath.
	Path string `mapstructure:"path"`

	// FlushDebounce is how long writes are coalesced before a save.
	FlushDebounce time.Duration `mapstructure:"flush_debounce"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config locates the state object for the "s3" backend.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Key      string `mapstructure:"key"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // MinIO and other S3-compatible servers
}

// SearchConfig controls name matching and ordering.
type SearchConfig struct {
	CaseSensitive bool   `mapstructure:"case_sensitive"`
	Locale        string `mapstructure:"locale"` // BCP 47 tag used to collate names
}

// ListConfig is the saved list view: the query `dockyard list` starts from.
type ListConfig struct {
	Sort    string `mapstructure:"sort"`
	Kind    string `mapstructure:"kind"`
	Updated string `mapstructure:"updated"`
}

// CacheConfig controls the list view cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // 0 disables caching
}

// EventsConfig configures the external event bridge.
type EventsConfig struct {
	URL string `mapstructure:"url"` // NATS server; empty disables forwarding
}

// LogConfig configures the debug log.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Debug bool   `mapstructure:"debug"`
	Level string `mapstructure:"level"`
}

// DefaultFlushDebounce is the default save coalescing window.
const DefaultFlushDebounce = 250 * time.Millisecond

// DefaultCacheTTL is how long a computed list view is reused.
const DefaultCacheTTL = 5 * time.Minute

// DefaultLocale is used to collate names when none is configured.
const DefaultLocale = "en"

// DefaultConfigDir returns ~/.config/dockyard, or "" if the home directory
// is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "dockyard")
}

// DefaultTracesFilePath returns ~/.config/dockyard/traces/traces.jsonl or
// "" if the home directory is unavailable.
func DefaultTracesFilePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Backend:       BackendFile,
			FlushDebounce: DefaultFlushDebounce,
			S3: S3Config{
				Key: "dockyard/layouts.json",
			},
		},
		Search: SearchConfig{
			CaseSensitive: false,
			Locale:        DefaultLocale,
		},
		List: ListConfig{
			Sort:    string(query.DefaultSort),
			Kind:    string(query.KindAll),
			Updated: string(query.UpdatedAll),
		},
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// StorePath returns the configured store path, or the backend's default
// file under dir when none is set.
func (c StoreConfig) StorePath(dir string) string {
	if c.Path != "" {
		return c.Path
	}
	name := "layouts.json"
	if c.Backend == BackendSQLite {
		name = "layouts.db"
	}
	return filepath.Join(dir, name)
}

// LocaleTag parses the collation locale, falling back to English.
func (s SearchConfig) LocaleTag() language.Tag {
	if s.Locale == "" {
		return language.English
	}
	tag, err := language.Parse(s.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Query builds the list view query this config describes.
func (l ListConfig) Query() (query.Query, error) {
	q := query.Default()
	var err error
	if q.Sort, err = query.ParseSort(l.Sort); err != nil {
		return q, fmt.Errorf("list.sort: %w", err)
	}
	if q.Filter.Kind, err = query.ParseKindFilter(l.Kind); err != nil {
		return q, fmt.Errorf("list.kind: %w", err)
	}
	if q.Filter.Updated, err = query.ParseUpdatedBucket(l.Updated); err != nil {
		return q, fmt.Errorf("list.updated: %w", err)
	}
	return q, nil
}

// Validate checks the whole configuration. Empty values are valid and
// mean "use the default".
func (c Config) Validate() error {
	if err := ValidateStore(c.Store); err != nil {
		return err
	}
	if err := ValidateSearch(c.Search); err != nil {
		return err
	}
	if _, err := c.List.Query(); err != nil {
		return err
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", c.Cache.TTL)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateStore checks store configuration for errors.
func ValidateStore(store StoreConfig) error {
	switch store.Backend {
	case "", BackendFile, BackendSQLite:
	case BackendS3:
		if store.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required when backend is \"s3\"")
		}
		if store.S3.Key == "" {
			return errors.New("store.s3.key is required when backend is \"s3\"")
		}
	default:
		return fmt.Errorf("store.backend must be \"file\", \"sqlite\", or \"s3\", got %q", store.Backend)
	}
	if store.FlushDebounce < 0 {
		return fmt.Errorf("store.flush_debounce must not be negative, got %v", store.FlushDebounce)
	}
	return nil
}

// ValidateSearch checks that the locale is a well-formed language tag.
func ValidateSearch(search SearchConfig) error {
	if search.Locale == "" {
		return nil
	}
	if _, err := language.Parse(search.Locale); err != nil {
		return fmt.Errorf("search.locale %q is not a valid language tag: %w", search.Locale, err)
	}
	return nil
}

// ValidateTracing checks tracing configuration. Paths are only required
// once tracing is enabled.
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}
	if !tracing.KnownExporter(cfg.Exporter) {
		return fmt.Errorf("tracing.exporter must be one of %s, got %q",
			strings.Join(tracing.Exporters, ", "), cfg.Exporter)
	}
	if !cfg.Enabled {
		return nil
	}
	switch {
	case cfg.Exporter == tracing.ExporterFile && cfg.FilePath == "":
		return errors.New("tracing.file_path is required when exporter is \"file\"")
	case cfg.Exporter == tracing.ExporterOTLP && cfg.OTLPEndpoint == "":
		return errors.New("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Dockyard Configuration

# Where layouts are stored
store:
  backend: file            # file (default), sqlite, or s3
  # path: ~/.config/dockyard/layouts.json   # state file or database (default: next to this file)
  flush_debounce: 250ms    # coalesce bursts of changes into one save
  # s3:                    # only used when backend: s3
  #   bucket: my-team-layouts
  #   key: dockyard/layouts.json
  #   region: us-east-1
  #   endpoint: http://localhost:9000   # MinIO and other S3-compatible servers

# Name search and ordering
search:
  case_sensitive: false    # exact-case name search
  locale: en               # collation used when sorting by name

# Default list view (updated by 'dockyard list --save-view')
list:
  sort: opened-desc        # name-asc, name-desc, updated-asc, updated-desc, opened-asc, opened-desc
  kind: all                # all, local, online
  updated: all             # all, today, yesterday, last7Days, last30Days, thisMonth, lastMonth, thisYear

# How long a computed list view is reused (0 disables)
cache:
  ttl: 5m

# Forward layout changes to NATS as dockyard.layout.<created|updated|deleted|opened>
# events:
#   url: nats://localhost:4222

# Distributed tracing of storage round trips
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/dockyard/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Debug log
# log:
#   debug: false
#   path: ~/.config/dockyard/debug.log
#   level: debug                   # debug, info, warn or error
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
