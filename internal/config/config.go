package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the default config path.
const EnvConfigPath = "WEEKCAL_CONFIG"

// DefaultPath is used when neither --config nor WEEKCAL_CONFIG is set.
const DefaultPath = "./weekcal.yaml"

// SourceConfig describes one calendar source. Exactly one of Path or URL is used;
// Path wins when both are set.
type SourceConfig struct {
	// ID identifies the source for filtering and colors. Defaults to the
	// file name of Path, then Name, then URL.
	ID string `yaml:"id" json:"id"`
	// Name is the legend label. Derived from ID when empty.
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of `weekcal serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are shown in. Empty means local time.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarDir is scanned for *.ics files; each file is a source named
	// after the file. Scanned sources come after the explicit Sources.
	CalendarDir string `yaml:"calendar_dir" json:"calendar_dir"`

	// Sources lists explicit files or subscriptions.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// HorizonDays bounds recurrence expansion, counted from the earliest event.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// ShowAllDay keeps all-day events (drawn from midnight).
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// LecturePrefix marks lecture titles for the lecture toggle.
	LecturePrefix string `yaml:"lecture_prefix" json:"lecture_prefix"`

	// ShowLectures is the initial state of the lecture toggle.
	ShowLectures bool `yaml:"show_lectures" json:"show_lectures"`

	// Render settings.
	Title     string   `yaml:"title" json:"title"`
	DayLabels []string `yaml:"day_labels" json:"day_labels"`
	HourMin   int      `yaml:"hour_min" json:"hour_min"`
	HourMax   int      `yaml:"hour_max" json:"hour_max"`

	// RefreshCron is the cron schedule for reloading sources in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir stores fetched ICS bodies and their HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CacheTTL and CaptureTimeout accept Go durations plus d and w units ("1d").
	CacheTTL       string `yaml:"cache_ttl" json:"cache_ttl"`
	CaptureTimeout string `yaml:"capture_timeout" json:"capture_timeout"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultDayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "",
		LogLevel:       "info",
		CalendarDir:    "./calendars",
		Sources:        []SourceConfig{},
		HorizonDays:    7,
		ShowAllDay:     true,
		LecturePrefix:  "W",
		ShowLectures:   true,
		Title:          "Weekly schedule",
		DayLabels:      append([]string(nil), defaultDayLabels...),
		HourMin:        7,
		HourMax:        20,
		RefreshCron:    "*/15 * * * *",
		CacheDir:       "./cache/ics",
		CacheTTL:       "30s",
		CaptureTimeout: "30s",
		BasicAuth:      nil,
	}
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		c.Sources[i].normalize()
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.Title == "" {
		c.Title = def.Title
	}
	if len(c.DayLabels) != len(defaultDayLabels) {
		c.DayLabels = def.DayLabels
	}
	if c.HourMin < 0 || c.HourMin > 23 {
		c.HourMin = def.HourMin
	}
	if c.HourMax <= c.HourMin || c.HourMax > 24 {
		c.HourMax = max(def.HourMax, c.HourMin+1)
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if _, err := str2duration.ParseDuration(c.CacheTTL); err != nil {
		c.CacheTTL = def.CacheTTL
	}
	if _, err := str2duration.ParseDuration(c.CaptureTimeout); err != nil {
		c.CaptureTimeout = def.CaptureTimeout
	}
}

func (s *SourceConfig) normalize() {
	if s.ID != "" {
		return
	}
	switch {
	case s.Path != "":
		s.ID = filepath.Base(s.Path)
	case s.Name != "":
		s.ID = s.Name
	default:
		s.ID = s.URL
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c *Config) CacheTTLDuration() time.Duration {
	return parseDurationOr(c.CacheTTL, 30*time.Second)
}

// CaptureTimeoutDuration returns CaptureTimeout as a duration.
func (c *Config) CaptureTimeoutDuration() time.Duration {
	return parseDurationOr(c.CaptureTimeout, 30*time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	d, err := str2duration.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ResolvePath picks the config path: flag value, then WEEKCAL_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating parent directories) and returned.
//   - Otherwise the YAML is decoded over the defaults and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
