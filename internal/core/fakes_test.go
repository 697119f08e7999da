package core

import (
	"context"
	"sync"

	"gap_service/internal/domain/model"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]model.Coordinate
	calls  int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, location string) (model.Coordinate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	c, ok := g.coords[location]
	if !ok {
		return model.Coordinate{}, model.ErrLocationNotFound
	}
	return c, nil
}

// fakeSearcher serves pages from in-memory records. failAt injects an error
// for a category at a given offset; failTimes limits how often it fires
// (0 means always).
type fakeSearcher struct {
	mu        sync.Mutex
	records   map[string][]model.RawPOI
	failAt    map[string]int
	failErr   map[string]error
	failTimes map[string]int
	calls     map[string]int
	total     int
	hook      func(q model.SearchQuery)
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		records:   map[string][]model.RawPOI{},
		failAt:    map[string]int{},
		failErr:   map[string]error{},
		failTimes: map[string]int{},
		calls:     map[string]int{},
	}
}

func (s *fakeSearcher) Name() string { return "fake" }

func (s *fakeSearcher) SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	if s.hook != nil {
		s.hook(q)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[q.Category]++
	s.total++
	if err := ctx.Err(); err != nil {
		return nil, &model.TransportError{Provider: "fake", Op: "search", Err: err}
	}

	if err, ok := s.failErr[q.Category]; ok && s.failAt[q.Category] == q.Offset {
		remaining, limited := s.failTimes[q.Category]
		if !limited || remaining > 0 {
			if limited {
				s.failTimes[q.Category] = remaining - 1
			}
			return nil, err
		}
	}

	all := s.records[q.Category]
	if q.Offset >= len(all) {
		return nil, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]model.RawPOI(nil), all[q.Offset:end]...), nil
}

func (s *fakeSearcher) callsFor(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[category]
}

func (s *fakeSearcher) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// line returns n POIs stepping north from origin by stepDeg degrees.
func line(prefix string, origin model.Coordinate, n int, stepDeg float64) []model.RawPOI {
	out := make([]model.RawPOI, n)
	for i := range out {
		out[i] = model.RawPOI{
			PlaceID: prefix + "-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Name:    prefix,
			Coordinate: model.Coordinate{
				Lat: origin.Lat + float64(i)*stepDeg,
				Lon: origin.Lon,
			},
		}
	}
	return out
}
