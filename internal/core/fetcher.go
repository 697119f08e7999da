package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gap_service/internal/domain/model"
)

const (
	DefaultRadiusMeters = 2000
	DefaultPageSize     = 100
)

// RetryPolicy bounds retries of transport failures. MaxRetries 0 disables them.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type FetcherOptions struct {
	PageSize int
	Retry    RetryPolicy
	// Limiter throttles page requests across all categories; nil means unlimited.
	Limiter  *rate.Limiter
	Recorder Recorder
	Logger   *zap.Logger
}

// Fetcher drives pagination for one category at a time.
type Fetcher struct {
	searcher POISearcher
	pageSize int
	retry    RetryPolicy
	limiter  *rate.Limiter
	recorder Recorder
	log      *zap.Logger
}

func NewFetcher(searcher POISearcher, opts FetcherOptions) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Fetcher{
		searcher: searcher,
		pageSize: opts.PageSize,
		retry:    opts.Retry,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		log:      opts.Logger.Named("fetcher"),
	}
}

type FetchResult struct {
	Category string
	Places   *PlaceSet
	Pages    int
	// Partial is set when the provider answered a page with an error.
	Partial bool
}

// Fetch returns every unique POI of category within radiusM of center.
// Records farther than radiusM by great-circle distance are discarded even if
// the provider returned them. A provider error page ends pagination and keeps
// what was collected; transport failures and cancellation are returned.
func (f *Fetcher) Fetch(ctx context.Context, category string, center model.Coordinate, radiusM float64) (*FetchResult, error) {
	if radiusM <= 0 {
		radiusM = DefaultRadiusMeters
	}
	res := &FetchResult{Category: category, Places: NewPlaceSet()}
	provider := f.searcher.Name()
	log := f.log.With(zap.String("provider", provider), zap.String("category", category))

	for offset := 0; ; offset += f.pageSize {
		q := model.SearchQuery{
			Category:     category,
			Center:       center,
			RadiusMeters: radiusM,
			Offset:       offset,
			Limit:        f.pageSize,
		}

		records, err := f.fetchPage(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				f.recorder.ObservePage(provider, category, OutcomeCancelled)
				return nil, fmt.Errorf("%w: %w", model.ErrCancelled, ctxErr)
			}
			if errors.Is(err, model.ErrCancelled) {
				f.recorder.ObservePage(provider, category, OutcomeCancelled)
				return nil, fmt.Errorf("fetch %s at offset %d: %w", category, offset, err)
			}
			if model.IsProviderPageError(err) {
				f.recorder.ObservePage(provider, category, OutcomeProviderError)
				log.Warn("provider error page, keeping partial results",
					zap.Int("offset", offset), zap.Int("unique", res.Places.Len()), zap.Error(err))
				res.Partial = true
				return res, nil
			}
			f.recorder.ObservePage(provider, category, OutcomeTransportError)
			return nil, fmt.Errorf("fetch %s at offset %d: %w", category, offset, err)
		}
		f.recorder.ObservePage(provider, category, OutcomeOK)
		res.Pages++

		outside, dup, noGeo := 0, 0, 0
		for _, r := range records {
			if r.NoGeometry {
				noGeo++
				continue
			}
			if Haversine(center, r.Coordinate) > radiusM {
				outside++
				continue
			}
			if !res.Places.Add(r) {
				dup++
			}
		}
		if outside > 0 {
			f.recorder.ObserveDiscarded(provider, DiscardOutsideRadius, outside)
		}
		if dup > 0 {
			f.recorder.ObserveDiscarded(provider, DiscardDuplicate, dup)
		}
		if noGeo > 0 {
			f.recorder.ObserveDiscarded(provider, DiscardNoGeometry, noGeo)
		}
		log.Debug("page fetched",
			zap.Int("offset", offset), zap.Int("records", len(records)),
			zap.Int("outside_radius", outside), zap.Int("duplicates", dup),
			zap.Int("no_geometry", noGeo))

		// Exhaustion is judged on the raw page length, skipped records included.
		if len(records) < f.pageSize {
			return res, nil
		}
	}
}

// Count is Fetch reduced to the number of unique places.
func (f *Fetcher) Count(ctx context.Context, category string, center model.Coordinate, radiusM float64) (int, error) {
	res, err := f.Fetch(ctx, category, center, radiusM)
	if err != nil {
		return 0, err
	}
	return res.Places.Len(), nil
}

func (f *Fetcher) fetchPage(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	var records []model.RawPOI
	op := func() error {
		if f.limiter != nil {
			// Wait fails early when the deadline cannot fit the next token,
			// before ctx itself reports an error.
			if err := f.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: %w", model.ErrCancelled, err))
			}
		}
		var err error
		records, err = f.searcher.SearchPOIs(ctx, q)
		if err == nil {
			return nil
		}
		var te *model.TransportError
		if errors.As(err, &te) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	if f.retry.MaxRetries <= 0 {
		err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return records, err
	}

	eb := backoff.NewExponentialBackOff()
	if f.retry.InitialInterval > 0 {
		eb.InitialInterval = f.retry.InitialInterval
	}
	if f.retry.MaxInterval > 0 {
		eb.MaxInterval = f.retry.MaxInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.retry.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		f.recorder.ObserveRetry(f.searcher.Name())
		f.log.Warn("transport failure, retrying",
			zap.String("category", q.Category), zap.Int("offset", q.Offset),
			zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return records, nil
}
