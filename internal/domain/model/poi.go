package model

// RawPOI is a single record as returned by a POI provider, before any
// radius filtering or deduplication.
type RawPOI struct {
	PlaceID    string            `json:"place_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Coordinate Coordinate        `json:"coordinate"`
	Properties map[string]string `json:"properties,omitempty"`
	// NoGeometry marks a record the provider returned without a usable
	// location. It still counts toward the page length.
	NoGeometry bool `json:"-"`
}

// PlaceKey identifies one POI within a single fetch.
type PlaceKey string

type SearchQuery struct {
	Category     string
	Center       Coordinate
	RadiusMeters float64
	Offset       int
	Limit        int
}
