package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SourceConfig describes the content backend the calendar is fed from.
type SourceConfig struct {
	// BaseURL is the site root, e.g. "https://example.org".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// EventsPath and CategoriesPath are appended to BaseURL.
	EventsPath     string `yaml:"events_path" json:"events_path"`
	CategoriesPath string `yaml:"categories_path" json:"categories_path"`
	// CacheDir holds the HTTP revalidation cache (ETag / Last-Modified).
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// TimeoutSeconds bounds a single fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// PrintConfig controls the printable document and the headless surface.
type PrintConfig struct {
	Title        string `yaml:"title" json:"title"`
	Heading      string `yaml:"heading" json:"heading"`
	CloseDelayMs int    `yaml:"close_delay_ms" json:"close_delay_ms"`
	// OutputDir receives PDFs produced by the headless print surface.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// Headless enables the chromedp print surface behind POST /api/print.
	Headless bool `yaml:"headless" json:"headless"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the operator API.
// Password may be plain text or a bcrypt hash ("$2a$...").
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to interpret dates and "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron expression for periodic refetching of both lists.
	// An empty value disables scheduled refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// SortMode selects the event comparator:
	//   - "legacy" (default): start+time against the other event's start+end time
	//   - "symmetric": each event's own start+time
	SortMode string `yaml:"sort_mode" json:"sort_mode"`

	Source SourceConfig `yaml:"source" json:"source"`
	Print  PrintConfig  `yaml:"print" json:"print"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Europe/London"
	defaultRefreshCron    = "*/15 * * * *"
	defaultEventsPath     = "/wp-json/wp/v2/events?per_page=100"
	defaultCategoriesPath = "/wp-json/wp/v2/event-categories?per_page=100"
	defaultTitle          = "Calendar All Events Print"
	defaultHeading        = "All Calendar Events"
	defaultCloseDelayMs   = 500
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{RefreshCron: defaultRefreshCron}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.SortMode {
	case "legacy", "symmetric":
	default:
		c.SortMode = "legacy"
	}

	if c.Source.EventsPath == "" {
		c.Source.EventsPath = defaultEventsPath
	}
	if c.Source.CategoriesPath == "" {
		c.Source.CategoriesPath = defaultCategoriesPath
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = "./cache/http"
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = 15
	}

	if c.Print.Title == "" {
		c.Print.Title = defaultTitle
	}
	if c.Print.Heading == "" {
		c.Print.Heading = defaultHeading
	}
	if c.Print.CloseDelayMs <= 0 {
		c.Print.CloseDelayMs = defaultCloseDelayMs
	}
	if c.Print.OutputDir == "" {
		c.Print.OutputDir = "./cache/print"
	}
}

// CloseDelay is the print surface's close delay as a duration.
func (c *Config) CloseDelay() time.Duration {
	return time.Duration(c.Print.CloseDelayMs) * time.Millisecond
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate reports settings the service cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return errors.New("config: source.base_url is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.New("config: unknown timezone " + strconv.Quote(c.Timezone))
	}
	return nil
}

// Load loads configuration from the given YAML path, then applies
// environment overrides (a ".env" file next to the working directory is
// read first if present).
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - use the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}

	// .env is optional.
	_ = godotenv.Load()
	ApplyEnv(cfg, os.Getenv)
	cfg.Normalize()

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// ApplyEnv overrides config values from CMSCAL_* variables. getenv is
// os.Getenv in production and a map lookup in tests.
func ApplyEnv(c *Config, getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("CMSCAL_LISTEN", &c.Listen)
	set("CMSCAL_TIMEZONE", &c.Timezone)
	set("CMSCAL_LOG_LEVEL", &c.LogLevel)
	set("CMSCAL_REFRESH", &c.RefreshCron)
	set("CMSCAL_SORT_MODE", &c.SortMode)
	set("CMSCAL_SOURCE_BASE_URL", &c.Source.BaseURL)
	set("CMSCAL_PRINT_OUTPUT_DIR", &c.Print.OutputDir)

	if v := strings.TrimSpace(getenv("CMSCAL_PRINT_HEADLESS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Print.Headless = b
		}
	}

	user := strings.TrimSpace(getenv("CMSCAL_BASIC_AUTH_USER"))
	pass := strings.TrimSpace(getenv("CMSCAL_BASIC_AUTH_PASSWORD"))
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cmscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
