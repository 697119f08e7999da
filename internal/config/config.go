// Package config holds the service configuration, its defaults and the
// business domain catalog.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"gap_service/internal/domain/repository"
)

const (
	ProviderGeoapify = "geoapify"
	ProviderOverpass = "overpass"
	ProviderPostGIS  = "postgis"
	ProviderElastic  = "elasticsearch"

	CatalogBuiltin  = "builtin"
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

var (
	ErrMissingAPIKey = errors.New("geoapify api key is required")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Retry       RetryConfig       `mapstructure:"retry"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	PlanService PlanServiceConfig `mapstructure:"plan_service"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ProviderConfig selects the POI source. Geocoding always goes to Geoapify.
type ProviderConfig struct {
	Kind     string         `mapstructure:"kind"`
	Geoapify GeoapifyConfig `mapstructure:"geoapify"`
	Overpass OverpassConfig `mapstructure:"overpass"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Elastic  ElasticConfig  `mapstructure:"elasticsearch"`
}

type GeoapifyConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	PlacesURL  string        `mapstructure:"places_url"`
	GeocodeURL string        `mapstructure:"geocode_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type OverpassConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Tags overrides the OSM tags queried for a category id. It is a list
	// because category ids contain the viper key delimiter.
	Tags []CategoryTags `mapstructure:"tags"`
}

type CategoryTags struct {
	Category string           `mapstructure:"category"`
	Match    []repository.Tag `mapstructure:"match"`
}

func (c OverpassConfig) TagOverrides() map[string][]repository.Tag {
	out := make(map[string][]repository.Tag, len(c.Tags))
	for _, t := range c.Tags {
		out[t.Category] = t.Match
	}
	return out
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type CatalogConfig struct {
	Source string `mapstructure:"source"` // "builtin" | "file" | "postgres"
	Path   string `mapstructure:"path"`
}

type AnalysisConfig struct {
	RadiusMeters             float64 `mapstructure:"radius_meters"`
	PageSize                 int     `mapstructure:"page_size"`
	Concurrency              int     `mapstructure:"concurrency"`
	TolerateCategoryFailures bool    `mapstructure:"tolerate_category_failures"`
	HighOpportunityThreshold float64 `mapstructure:"high_opportunity_threshold"`
}

type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// RateLimitConfig throttles provider page requests. Zero rps disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" | "console"
	Output     string `mapstructure:"output"` // "stdout" | "stderr" | file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// PlanServiceConfig points at the external business plan generator. An empty
// URL disables strategy generation.
type PlanServiceConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}

	switch c.Provider.Kind {
	case ProviderGeoapify, ProviderOverpass:
	case ProviderPostGIS:
		if c.Provider.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("provider.postgres.dsn is required for provider %q", c.Provider.Kind))
		}
	case ProviderElastic:
		if len(c.Provider.Elastic.Addresses) == 0 {
			errs = append(errs, fmt.Errorf("provider.elasticsearch.addresses is required for provider %q", c.Provider.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider kind %q", c.Provider.Kind))
	}
	if c.Provider.Geoapify.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}

	switch c.Catalog.Source {
	case CatalogBuiltin:
	case CatalogFile:
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for a file catalog"))
		}
	case CatalogPostgres:
		if c.Provider.Postgres.DSN == "" {
			errs = append(errs, errors.New("provider.postgres.dsn is required for a postgres catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog source %q", c.Catalog.Source))
	}

	a := c.Analysis
	if a.RadiusMeters <= 0 {
		errs = append(errs, fmt.Errorf("analysis.radius_meters must be positive, got %v", a.RadiusMeters))
	}
	if a.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("analysis.page_size must be positive, got %d", a.PageSize))
	}
	if a.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("analysis.concurrency must be positive, got %d", a.Concurrency))
	}
	if a.HighOpportunityThreshold <= 0 || a.HighOpportunityThreshold > 1 {
		errs = append(errs, fmt.Errorf("analysis.high_opportunity_threshold must be in (0, 1], got %v", a.HighOpportunityThreshold))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must not be negative, got %v", c.RateLimit.RequestsPerSecond))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
