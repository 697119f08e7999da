package core

import (
	"context"
	"time"

	"gap_service/internal/domain/model"
)

type Geocoder interface {
	// Geocode resolves free text to a single coordinate. It returns
	// model.ErrLocationNotFound when the provider has no candidate.
	Geocode(ctx context.Context, location string) (model.Coordinate, error)
}

// POISearcher is a paged POI provider. A non-success answer for one page is
// reported as *model.ProviderPageError, network failures as *model.TransportError.
type POISearcher interface {
	Name() string
	SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error)
}

const (
	OutcomeOK             = "ok"
	OutcomeProviderError  = "provider_error"
	OutcomeTransportError = "transport_error"
	OutcomeCancelled      = "cancelled"
	OutcomeFailed         = "failed"

	DiscardOutsideRadius = "outside_radius"
	DiscardDuplicate     = "duplicate"
	DiscardNoGeometry    = "no_geometry"
)

// Recorder receives operational measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObservePage(provider, category, outcome string)
	ObserveDiscarded(provider, reason string, n int)
	ObserveRetry(provider string)
	ObserveAnalysis(domain, outcome string, d time.Duration)
}

type NopRecorder struct{}

func (NopRecorder) ObservePage(string, string, string)            {}
func (NopRecorder) ObserveDiscarded(string, string, int)          {}
func (NopRecorder) ObserveRetry(string)                           {}
func (NopRecorder) ObserveAnalysis(string, string, time.Duration) {}
