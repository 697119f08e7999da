package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gap_service/internal/core"
	"gap_service/internal/domain/repository"
)

// envPrefix maps nested keys like "provider.geoapify.api_key" to
// GAP_PROVIDER_GEOAPIFY_API_KEY.
const envPrefix = "GAP"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// GEOAPIFY_API_KEY is the variable existing deployments already export.
	_ = v.BindEnv("provider.geoapify.api_key", "GAP_PROVIDER_GEOAPIFY_API_KEY", "GEOAPIFY_API_KEY")
	return v
}

// setDefaults registers every key so that env overrides resolve even without
// a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("provider.kind", ProviderGeoapify)
	v.SetDefault("provider.geoapify.api_key", "")
	v.SetDefault("provider.geoapify.places_url", repository.DefaultGeoapifyPlacesURL)
	v.SetDefault("provider.geoapify.geocode_url", repository.DefaultGeoapifyGeocodeURL)
	v.SetDefault("provider.geoapify.timeout", 10*time.Second)
	v.SetDefault("provider.overpass.endpoint", repository.DefaultOverpassEndpoint)
	v.SetDefault("provider.overpass.timeout", 60*time.Second)
	v.SetDefault("provider.postgres.dsn", "")
	v.SetDefault("provider.elasticsearch.addresses", []string{})
	v.SetDefault("provider.elasticsearch.username", "")
	v.SetDefault("provider.elasticsearch.password", "")
	v.SetDefault("provider.elasticsearch.index", repository.DefaultElasticIndex)

	v.SetDefault("catalog.source", CatalogBuiltin)
	v.SetDefault("catalog.path", "")

	v.SetDefault("analysis.radius_meters", float64(core.DefaultRadiusMeters))
	v.SetDefault("analysis.page_size", core.DefaultPageSize)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.tolerate_category_failures", false)
	v.SetDefault("analysis.high_opportunity_threshold", core.DefaultHighOpportunityThreshold)

	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("plan_service.url", "")
	v.SetDefault("plan_service.timeout", 60*time.Second)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the optional YAML file at configPath, merges GAP_* environment
// overrides over the defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
