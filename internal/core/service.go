package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gap_service/internal/domain/model"
)

const DefaultHighOpportunityThreshold = 0.75

type ServiceConfig struct {
	RadiusMeters float64
	// Concurrency bounds parallel category fetches; 1 reproduces sequential scans.
	Concurrency int
	// TolerateCategoryFailures drops categories whose fetch fails with a
	// transport error instead of failing the whole scan.
	TolerateCategoryFailures bool
	HighOpportunityThreshold float64
}

// Service resolves a location, scans every category of a domain, ranks them
// by gap score and drills into the sub-categories of the winner.
type Service struct {
	catalog  model.Catalog
	geocoder Geocoder
	fetcher  *Fetcher
	scorer   GapScorer
	cfg      ServiceConfig
	recorder Recorder
	log      *zap.Logger
}

func NewService(
	catalog model.Catalog,
	geocoder Geocoder,
	fetcher *Fetcher,
	cfg ServiceConfig,
	recorder Recorder,
	logger *zap.Logger,
) *Service {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = DefaultRadiusMeters
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.HighOpportunityThreshold <= 0 {
		cfg.HighOpportunityThreshold = DefaultHighOpportunityThreshold
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:  catalog,
		geocoder: geocoder,
		fetcher:  fetcher,
		cfg:      cfg,
		recorder: recorder,
		log:      logger.Named("analysis"),
	}
}

func (s *Service) Catalog() model.Catalog { return s.catalog }

// Analyze runs the full resolve, domain scan and niche drill-down pipeline.
func (s *Service) Analyze(ctx context.Context, req model.AnalysisRequest) (pkg *model.MarketPackage, err error) {
	start := time.Now()
	log := s.runLogger(req)
	defer func() { s.finish(log, req.Domain, start, err) }()

	domain, radius, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	center, err := s.resolve(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	report, err := s.scan(ctx, log, domain, req.Location, center, radius)
	if err != nil {
		return nil, err
	}
	if len(report.Ranking) == 0 {
		return nil, fmt.Errorf("domain %q: %w", domain.Key, model.ErrNoCategories)
	}

	top := report.Ranking[0]
	major, _ := report.Scan.Category(top.Category)
	niche, competitors, err := s.drillDown(ctx, log, major, center, radius)
	if err != nil {
		return nil, err
	}

	status := model.StatusModerate
	if top.GapScore >= s.cfg.HighOpportunityThreshold {
		status = model.StatusHighOpportunity
	}
	log.Info("analysis complete",
		zap.String("major_sector", top.Category), zap.String("niche", niche),
		zap.Float64("gap_score", top.GapScore), zap.Int("competitors", competitors))

	return &model.MarketPackage{
		Location:        req.Location,
		MajorSector:     top.Category,
		Niche:           niche,
		GapScore:        top.GapScore,
		CompetitorCount: competitors,
		AreaSqKm:        report.Scan.AreaSqKm,
		Status:          status,
	}, nil
}

// Scan resolves the location and scores every category of the domain
// without the niche drill-down.
func (s *Service) Scan(ctx context.Context, req model.AnalysisRequest) (report *model.ScanReport, err error) {
	start := time.Now()
	log := s.runLogger(req)
	defer func() { s.finish(log, req.Domain, start, err) }()

	domain, radius, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	center, err := s.resolve(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, log, domain, req.Location, center, radius)
}

func (s *Service) runLogger(req model.AnalysisRequest) *zap.Logger {
	return s.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("domain", req.Domain),
		zap.String("location", req.Location))
}

func (s *Service) finish(log *zap.Logger, domain string, start time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, model.ErrCancelled):
		outcome = OutcomeCancelled
	default:
		outcome = OutcomeFailed
	}
	elapsed := time.Since(start)
	s.recorder.ObserveAnalysis(domain, outcome, elapsed)
	if err != nil {
		log.Error("analysis failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	}
}

// prepare validates the request before any network call.
func (s *Service) prepare(req model.AnalysisRequest) (model.Domain, float64, error) {
	domain, ok := s.catalog.Domain(req.Domain)
	if !ok {
		return model.Domain{}, 0, fmt.Errorf("%q: %w", req.Domain, model.ErrInvalidDomain)
	}
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = s.cfg.RadiusMeters
	}
	return domain, radius, nil
}

func (s *Service) resolve(ctx context.Context, location string) (model.Coordinate, error) {
	center, err := s.geocoder.Geocode(ctx, location)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Coordinate{}, fmt.Errorf("%w: %w", model.ErrCancelled, ctxErr)
		}
		return model.Coordinate{}, fmt.Errorf("geocode %q: %w", location, err)
	}
	return center, nil
}

func (s *Service) scan(
	ctx context.Context,
	log *zap.Logger,
	domain model.Domain,
	location string,
	center model.Coordinate,
	radius float64,
) (*model.ScanReport, error) {
	analyzer := SpatialAnalyzer{RadiusMeters: radius}
	results := make([]*model.CategoryMetrics, len(domain.Categories))

	err := s.forEach(ctx, log, domain.Categories, func(ctx context.Context, i int, category string) error {
		res, err := s.fetcher.Fetch(ctx, category, center, radius)
		if err != nil {
			return err
		}
		m := analyzer.Analyze(category, res.Places.Points())
		m.PartialResults = res.Partial
		results[i] = &m
		return nil
	})
	if err != nil {
		return nil, err
	}

	categories := make([]model.CategoryMetrics, 0, len(results))
	for _, m := range results {
		if m != nil {
			categories = append(categories, *m)
		}
	}
	if len(domain.Categories) > 0 && len(categories) == 0 {
		return nil, fmt.Errorf("domain %q: %w", domain.Key, model.ErrNoCategories)
	}
	ApplyCategoryShares(categories)

	scores := s.scorer.Score(categories)
	return &model.ScanReport{
		Scan: &model.DomainScan{
			Domain:       domain.Key,
			Location:     location,
			Center:       center,
			RadiusMeters: radius,
			AreaSqKm:     round(CatchmentArea(radius), 2),
			Categories:   categories,
		},
		GapScores: scores,
		Ranking:   Rank(categories, scores),
	}, nil
}

// drillDown picks the sub-category of major with the fewest competitors.
// Without configured sub-categories the niche is the major sector itself.
func (s *Service) drillDown(
	ctx context.Context,
	log *zap.Logger,
	major model.CategoryMetrics,
	center model.Coordinate,
	radius float64,
) (string, int, error) {
	subs := s.catalog.Subcategories(major.Category)
	if len(subs) == 0 {
		return major.Category, major.Count, nil
	}

	counts := make([]int, len(subs))
	fetched := make([]bool, len(subs))
	err := s.forEach(ctx, log, subs, func(ctx context.Context, i int, sub string) error {
		n, err := s.fetcher.Count(ctx, sub, center, radius)
		if err != nil {
			return err
		}
		counts[i], fetched[i] = n, true
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	best := -1
	for i := range subs {
		if fetched[i] && (best < 0 || counts[i] < counts[best]) {
			best = i
		}
	}
	if best < 0 {
		return major.Category, major.Count, nil
	}
	return NicheLabel(subs[best]), counts[best], nil
}

// forEach runs fn for every id with bounded parallelism. Transport failures
// are tolerated when configured; cancellation never is.
func (s *Service) forEach(
	ctx context.Context,
	log *zap.Logger,
	ids []string,
	fn func(ctx context.Context, i int, id string) error,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			err := fn(gctx, i, id)
			if err == nil {
				return nil
			}
			if s.cfg.TolerateCategoryFailures && !errors.Is(err, model.ErrCancelled) {
				log.Warn("category skipped", zap.String("category", id), zap.Error(err))
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, ctxErr)
	}
	return nil
}

// NicheLabel turns "catering.cafe.coffee_shop" into "Coffee Shop".
func NicheLabel(category string) string {
	last := category
	if i := strings.LastIndex(category, "."); i >= 0 {
		last = category[i+1:]
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(last, "_", " "))
}
