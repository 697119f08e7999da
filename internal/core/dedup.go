package core

import (
	"strconv"
	"strings"

	"gap_service/internal/domain/model"
)

const unknownPlaceName = "unknown"

// PlaceKeyFor derives the identity of a POI. A provider id is used verbatim;
// otherwise the normalized name and the coordinate rounded to 6 decimals.
func PlaceKeyFor(poi model.RawPOI) model.PlaceKey {
	if poi.PlaceID != "" {
		return model.PlaceKey(poi.PlaceID)
	}

	// Only a missing name becomes "unknown"; a blank one normalizes to "".
	name := unknownPlaceName
	if poi.Name != "" {
		name = strings.ToLower(strings.TrimSpace(poi.Name))
	}
	return model.PlaceKey(name + "_" + formatDegrees(poi.Coordinate.Lat) + "_" + formatDegrees(poi.Coordinate.Lon))
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(round(v, 6), 'f', -1, 64)
}

// PlaceSet collects unique places in first-seen order.
type PlaceSet struct {
	index  map[model.PlaceKey]struct{}
	points []model.Coordinate
}

func NewPlaceSet() *PlaceSet {
	return &PlaceSet{index: make(map[model.PlaceKey]struct{})}
}

// Add records poi and reports whether it was new. Later duplicates are dropped.
func (s *PlaceSet) Add(poi model.RawPOI) bool {
	key := PlaceKeyFor(poi)
	if _, seen := s.index[key]; seen {
		return false
	}
	s.index[key] = struct{}{}
	s.points = append(s.points, poi.Coordinate)
	return true
}

func (s *PlaceSet) Len() int { return len(s.points) }

// Points returns the retained coordinates in insertion order.
func (s *PlaceSet) Points() []model.Coordinate {
	return append([]model.Coordinate(nil), s.points...)
}
