package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"

	"feedingest/internal/domain"
	"feedingest/pkg/logger"
)

const (
	configPathEnv      = "FEEDINGEST_CONFIG"
	feedsEnv           = "FEEDINGEST_FEEDS"
	maxMaterialsEnv    = "FEEDINGEST_MAX_MATERIALS"
	storageDriverEnv   = "FEEDINGEST_STORAGE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	logLevelEnv        = "LOG_LEVEL"
	defaultFeedURL     = "https://tass.ru/rss/v2.xml"
	defaultStorageKind = "log"
)

var bootstrap = logger.New("config")

// Config holds high-level settings required across the application.
type Config struct {
	Logging         LoggingConfig      `yaml:"logging"`
	Feeds           []string           `yaml:"feeds"`
	ExcludePatterns []string           `yaml:"excludePatterns"`
	Restrictions    RestrictionsConfig `yaml:"restrictions"`
	Fetch           FetchConfig        `yaml:"fetch"`
	Layouts         LayoutsConfig      `yaml:"layouts"`
	Storage         StorageConfig      `yaml:"storage"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RestrictionsConfig mirrors the limits the host platform passes to a source.
type RestrictionsConfig struct {
	MaximumMaterials int    `yaml:"maximumMaterials"`
	FromDate         string `yaml:"fromDate"`
	ToDate           string `yaml:"toDate"`

	from *time.Time
	to   *time.Time
}

// From returns the parsed lower date bound, if any.
func (r RestrictionsConfig) From() *time.Time {
	return r.from
}

// To returns the parsed upper date bound, if any.
func (r RestrictionsConfig) To() *time.Time {
	return r.to
}

// FetchConfig tunes HTTP access to feeds and pages.
type FetchConfig struct {
	Timeout           time.Duration     `yaml:"timeout"`
	Headers           map[string]string `yaml:"headers"`
	DelayMin          time.Duration     `yaml:"delayMin"`
	DelayMax          time.Duration     `yaml:"delayMax"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond"`
	// OnError is one of "abort", "feed" or "item".
	OnError string `yaml:"onError"`
}

// LayoutsConfig lists page layouts in priority order.
type LayoutsConfig struct {
	Order       []string             `yaml:"order"`
	Custom      []CustomLayoutConfig `yaml:"custom"`
	Readability bool                 `yaml:"readability"`
}

// CustomLayoutConfig declares a selector-based layout.
type CustomLayoutConfig struct {
	Name      string `yaml:"name"`
	Container string `yaml:"container"`
	Lead      string `yaml:"lead"`
	LeadScope string `yaml:"leadScope"`
}

// StorageConfig picks the sink documents are handed to.
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			bootstrap.Printf("cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				bootstrap.Printf("cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindRestrictions()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(feedsEnv); v != "" {
		var feeds []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				feeds = append(feeds, f)
			}
		}
		c.Feeds = feeds
	}

	if v := os.Getenv(maxMaterialsEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Restrictions.MaximumMaterials = n
		} else {
			bootstrap.Printf("invalid %s=%q: %v", maxMaterialsEnv, v, err)
		}
	}

	if v := os.Getenv(storageDriverEnv); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindRestrictions() {
	c.Restrictions.from = parseBound("fromDate", c.Restrictions.FromDate)
	c.Restrictions.to = parseBound("toDate", c.Restrictions.ToDate)
}

func parseBound(name, value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		bootstrap.Printf("cannot parse restriction %s=%q: %v (ignored)", name, value, err)
		return nil
	}
	naive := domain.Naive(t)
	return &naive
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}
	if override.ExcludePatterns != nil {
		base.ExcludePatterns = override.ExcludePatterns
	}

	if override.Restrictions.MaximumMaterials != 0 {
		base.Restrictions.MaximumMaterials = override.Restrictions.MaximumMaterials
	}
	if override.Restrictions.FromDate != "" {
		base.Restrictions.FromDate = override.Restrictions.FromDate
	}
	if override.Restrictions.ToDate != "" {
		base.Restrictions.ToDate = override.Restrictions.ToDate
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if len(override.Fetch.Headers) > 0 {
		base.Fetch.Headers = override.Fetch.Headers
	}
	if override.Fetch.DelayMin > 0 {
		base.Fetch.DelayMin = override.Fetch.DelayMin
	}
	if override.Fetch.DelayMax > 0 {
		base.Fetch.DelayMax = override.Fetch.DelayMax
	}
	if override.Fetch.RequestsPerSecond > 0 {
		base.Fetch.RequestsPerSecond = override.Fetch.RequestsPerSecond
	}
	if override.Fetch.OnError != "" {
		base.Fetch.OnError = override.Fetch.OnError
	}

	if len(override.Layouts.Order) > 0 {
		base.Layouts.Order = override.Layouts.Order
	}
	if len(override.Layouts.Custom) > 0 {
		base.Layouts.Custom = override.Layouts.Custom
	}
	if override.Layouts.Readability {
		base.Layouts.Readability = true
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}
	if override.Storage.Database != "" {
		base.Storage.Database = override.Storage.Database
	}
	if override.Storage.Table != "" {
		base.Storage.Table = override.Storage.Table
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:         LoggingConfig{Level: "info"},
		Feeds:           []string{defaultFeedURL},
		ExcludePatterns: []string{"tass.ru/nauka"},
		Restrictions:    RestrictionsConfig{MaximumMaterials: 50},
		Fetch: FetchConfig{
			Timeout:  20 * time.Second,
			DelayMin: time.Second,
			DelayMax: 3 * time.Second,
			OnError:  "abort",
		},
		Layouts: LayoutsConfig{Order: []string{"article", "science"}},
		Storage: StorageConfig{
			Driver:   defaultStorageKind,
			Database: "feedingest",
			Table:    "documents",
		},
	}
}
