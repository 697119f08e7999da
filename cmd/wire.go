package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gap_service/internal/config"
	"gap_service/internal/core"
	"gap_service/internal/domain/model"
	"gap_service/internal/domain/repository"
	"gap_service/internal/infrastructure/metrics"
	"gap_service/internal/infrastructure/planclient"
)

// app holds the wired analysis stack. Close releases the database pool.
type app struct {
	service *core.Service
	planner model.PlanGenerator
	metrics *metrics.Prometheus
	db      *sqlx.DB
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Provider.Kind == config.ProviderPostGIS || cfg.Catalog.Source == config.CatalogPostgres {
		if a.db, err = repository.OpenPostgres(ctx, cfg.Provider.Postgres.DSN); err != nil {
			return nil, err
		}
	}

	var loader config.CatalogLoader
	if a.db != nil {
		loader = repository.NewPostgresCatalogLoader(a.db)
	}
	catalog, err := config.ResolveCatalog(ctx, cfg.Catalog, loader)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	geocoder := repository.NewGeoapifyClient(repository.GeoapifyConfig{
		APIKey:     cfg.Provider.Geoapify.APIKey,
		PlacesURL:  cfg.Provider.Geoapify.PlacesURL,
		GeocodeURL: cfg.Provider.Geoapify.GeocodeURL,
		Timeout:    cfg.Provider.Geoapify.Timeout,
	})
	searcher, err := buildSearcher(cfg.Provider, geocoder, a.db)
	if err != nil {
		return nil, err
	}

	var recorder core.Recorder = core.NopRecorder{}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewPrometheus(true)
		recorder = a.metrics
	}

	fetcher := core.NewFetcher(searcher, core.FetcherOptions{
		PageSize: cfg.Analysis.PageSize,
		Retry: core.RetryPolicy{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		},
		Limiter:  newLimiter(cfg.RateLimit),
		Recorder: recorder,
		Logger:   log,
	})
	a.service = core.NewService(catalog, geocoder, fetcher, core.ServiceConfig{
		RadiusMeters:             cfg.Analysis.RadiusMeters,
		Concurrency:              cfg.Analysis.Concurrency,
		TolerateCategoryFailures: cfg.Analysis.TolerateCategoryFailures,
		HighOpportunityThreshold: cfg.Analysis.HighOpportunityThreshold,
	}, recorder, log)

	if cfg.PlanService.URL != "" {
		a.planner = planclient.NewHTTPPlanClient(cfg.PlanService.URL, cfg.PlanService.Timeout)
	}

	log.Info("analysis stack ready",
		zap.String("provider", searcher.Name()),
		zap.String("catalog", cfg.Catalog.Source),
		zap.Int("domains", catalog.Len()),
		zap.Bool("plan_service", a.planner != nil))
	return a, nil
}

func buildSearcher(cfg config.ProviderConfig, geoapify *repository.GeoapifyClient, db *sqlx.DB) (core.POISearcher, error) {
	switch cfg.Kind {
	case config.ProviderGeoapify:
		return geoapify, nil
	case config.ProviderOverpass:
		return repository.NewOverpassRepository(cfg.Overpass.Endpoint, cfg.Overpass.Timeout, cfg.Overpass.TagOverrides()), nil
	case config.ProviderPostGIS:
		if db == nil {
			return nil, errors.New("postgis provider needs a database connection")
		}
		return repository.NewPostGISRepository(db), nil
	case config.ProviderElastic:
		client, err := repository.NewElasticClient(repository.ElasticConfig{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
			Index:     cfg.Elastic.Index,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewElasticRepository(client, cfg.Elastic.Index), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

func newLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}
