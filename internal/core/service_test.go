package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gap_service/internal/domain/model"
)

const (
	restaurant = "catering.restaurant"
	cafe       = "catering.cafe"
	coffeeShop = "catering.cafe.coffee_shop"
	teaHouse   = "catering.cafe.tea_house"
)

func foodCatalog(withSubs bool) model.Catalog {
	domains := []model.Domain{{Key: "food", Code: "F&B", Label: "Food & Beverage", Categories: []string{restaurant, cafe}}}
	var subs map[string][]string
	if withSubs {
		subs = map[string][]string{cafe: {coffeeShop, teaHouse}}
	}
	return model.NewCatalog(domains, subs)
}

type serviceFixture struct {
	geocoder *fakeGeocoder
	searcher *fakeSearcher
}

func newServiceFixture() *serviceFixture {
	s := newFakeSearcher()
	s.records[restaurant] = line("rest", delhi, 40, 0.0002)
	s.records[cafe] = line("cafe", delhi, 5, 0.003)
	s.records[coffeeShop] = line("coffee", delhi, 3, 0.001)
	s.records[teaHouse] = line("tea", delhi, 1, 0.001)
	return &serviceFixture{
		geocoder: &fakeGeocoder{coords: map[string]model.Coordinate{"Connaught Place": delhi}},
		searcher: s,
	}
}

func (f *serviceFixture) service(catalog model.Catalog, cfg ServiceConfig) *Service {
	fetcher := NewFetcher(f.searcher, FetcherOptions{PageSize: 100})
	return NewService(catalog, f.geocoder, fetcher, cfg, nil, zap.NewNop())
}

func TestService_Analyze(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	pkg, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)

	assert.Equal(t, &model.MarketPackage{
		Location:        "Connaught Place",
		MajorSector:     cafe,
		Niche:           "Tea House",
		GapScore:        1.0,
		CompetitorCount: 1,
		AreaSqKm:        12.57,
		Status:          model.StatusHighOpportunity,
	}, pkg)
	assert.Equal(t, 1, fx.searcher.callsFor(coffeeShop))
	assert.Equal(t, 1, fx.searcher.callsFor(teaHouse))
}

func TestService_AnalyzeWithoutSubcategories(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(false), ServiceConfig{})

	pkg, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)
	assert.Equal(t, cafe, pkg.Niche)
	assert.Equal(t, 5, pkg.CompetitorCount)
	assert.Zero(t, fx.searcher.callsFor(coffeeShop))
}

func TestService_ModerateBelowThreshold(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(false), ServiceConfig{HighOpportunityThreshold: 1.5})

	pkg, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusModerate, pkg.Status)
}

func TestService_InvalidDomain(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	_, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "space_tourism", Location: "Connaught Place"})
	assert.ErrorIs(t, err, model.ErrInvalidDomain)
	assert.Zero(t, fx.geocoder.calls)
	assert.Zero(t, fx.searcher.totalCalls())
}

func TestService_LocationNotFound(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	_, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Atlantis"})
	assert.ErrorIs(t, err, model.ErrLocationNotFound)
	assert.Equal(t, 1, fx.geocoder.calls)
	assert.Zero(t, fx.searcher.totalCalls())
}

func TestService_StrictFailsOnTransportError(t *testing.T) {
	fx := newServiceFixture()
	fx.searcher.failErr[restaurant] = &model.TransportError{Provider: "fake", Op: "search", Err: errors.New("connection refused")}
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	_, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.Error(t, err)
	var te *model.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestService_TolerantSkipsFailedCategory(t *testing.T) {
	fx := newServiceFixture()
	fx.searcher.failErr[restaurant] = &model.TransportError{Provider: "fake", Op: "search", Err: errors.New("connection refused")}
	svc := fx.service(foodCatalog(true), ServiceConfig{TolerateCategoryFailures: true})

	report, err := svc.Scan(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)
	require.Len(t, report.Scan.Categories, 1)
	assert.Equal(t, cafe, report.Scan.Categories[0].Category)
	assert.Equal(t, 1.0, report.Scan.Categories[0].CategoryShare)
	assert.Equal(t, model.GapScoreSet{cafe: 0.3}, report.GapScores)
}

func TestService_TolerantAllFailed(t *testing.T) {
	fx := newServiceFixture()
	boom := &model.TransportError{Provider: "fake", Op: "search", Err: errors.New("connection refused")}
	fx.searcher.failErr[restaurant] = boom
	fx.searcher.failErr[cafe] = boom
	svc := fx.service(foodCatalog(true), ServiceConfig{TolerateCategoryFailures: true})

	_, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	assert.ErrorIs(t, err, model.ErrNoCategories)
}

func TestService_TolerantSubcategoryFailure(t *testing.T) {
	fx := newServiceFixture()
	fx.searcher.failErr[teaHouse] = &model.TransportError{Provider: "fake", Op: "search", Err: errors.New("reset")}
	svc := fx.service(foodCatalog(true), ServiceConfig{TolerateCategoryFailures: true})

	pkg, err := svc.Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop", pkg.Niche)
	assert.Equal(t, 3, pkg.CompetitorCount)
}

func TestService_Cancelled(t *testing.T) {
	fx := newServiceFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.searcher.hook = func(model.SearchQuery) { cancel() }
	svc := fx.service(foodCatalog(true), ServiceConfig{TolerateCategoryFailures: true})

	_, err := svc.Analyze(ctx, model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	assert.ErrorIs(t, err, model.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_TolerantDoesNotSwallowLimiterDeadline(t *testing.T) {
	fx := newServiceFixture()
	fetcher := NewFetcher(fx.searcher, FetcherOptions{PageSize: 100, Limiter: rate.NewLimiter(0.5, 1)})
	svc := NewService(foodCatalog(true), fx.geocoder, fetcher,
		ServiceConfig{TolerateCategoryFailures: true}, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	report, err := svc.Scan(ctx, model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, model.ErrCancelled)
}

func TestService_ScanReport(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	report, err := svc.Scan(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)

	scan := report.Scan
	assert.Equal(t, "food", scan.Domain)
	assert.Equal(t, delhi, scan.Center)
	assert.Equal(t, 2000.0, scan.RadiusMeters)
	assert.Equal(t, 12.57, scan.AreaSqKm)
	require.Len(t, scan.Categories, 2)
	assert.Equal(t, restaurant, scan.Categories[0].Category)
	assert.Equal(t, 40, scan.Categories[0].Count)
	assert.Equal(t, 5, scan.Categories[1].Count)
	assert.Len(t, scan.Categories[0].LocationSamples, 3)

	assert.Equal(t, []model.RankedCategory{
		{Category: cafe, GapScore: 1.0},
		{Category: restaurant, GapScore: 0.0},
	}, report.Ranking)
	assert.Zero(t, fx.searcher.callsFor(coffeeShop), "scan does not drill down")
}

func TestService_ConcurrencyMatchesSequential(t *testing.T) {
	seq, err := newServiceFixture().service(foodCatalog(true), ServiceConfig{Concurrency: 1}).
		Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)

	par, err := newServiceFixture().service(foodCatalog(true), ServiceConfig{Concurrency: 4}).
		Analyze(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place"})
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestService_CustomRadius(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.service(foodCatalog(true), ServiceConfig{})

	report, err := svc.Scan(context.Background(), model.AnalysisRequest{Domain: "food", Location: "Connaught Place", RadiusMeters: 500})
	require.NoError(t, err)
	assert.Equal(t, 500.0, report.Scan.RadiusMeters)
	assert.Equal(t, 0.79, report.Scan.AreaSqKm)
	m, ok := report.Scan.Category(restaurant)
	require.True(t, ok)
	assert.Less(t, m.Count, 40)
	assert.Greater(t, m.Count, 0)
}

func TestNicheLabel(t *testing.T) {
	assert.Equal(t, "Coffee Shop", NicheLabel(coffeeShop))
	assert.Equal(t, "Books", NicheLabel("commercial.books"))
	assert.Equal(t, "Gym", NicheLabel("gym"))
}
