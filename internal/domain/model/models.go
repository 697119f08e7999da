package model

// Coordinate is a point on the earth's surface in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type CategoryMetrics struct {
	Category        string       `json:"category"`
	Count           int          `json:"count"`
	DensityPerSqKm  float64      `json:"density_per_sq_km"`
	AvgNearestDistM float64      `json:"avg_nearest_neighbor_distance_m"`
	SaturationIndex float64      `json:"saturation_index"`
	CategoryShare   float64      `json:"category_share"`
	LocationSamples []Coordinate `json:"location_samples"`
	// PartialResults is set when pagination stopped on a provider error page.
	PartialResults bool `json:"partial_results,omitempty"`
}

// DomainScan is the per-category breakdown of one domain around one center.
// Categories keeps catalog order.
type DomainScan struct {
	Domain       string            `json:"domain"`
	Location     string            `json:"location"`
	Center       Coordinate        `json:"center"`
	RadiusMeters float64           `json:"radius_meters"`
	AreaSqKm     float64           `json:"area_sq_km"`
	Categories   []CategoryMetrics `json:"categories"`
}

// Category returns the metrics recorded for id.
func (s *DomainScan) Category(id string) (CategoryMetrics, bool) {
	for _, c := range s.Categories {
		if c.Category == id {
			return c, true
		}
	}
	return CategoryMetrics{}, false
}

// GapScoreSet maps category id to its gap score in [0,1].
type GapScoreSet map[string]float64

type RankedCategory struct {
	Category string  `json:"category"`
	GapScore float64 `json:"gap_score"`
}

const (
	StatusHighOpportunity = "High Opportunity"
	StatusModerate        = "Moderate"
)

// MarketPackage is the final analysis result handed to the plan generator.
type MarketPackage struct {
	Location        string  `json:"location"`
	MajorSector     string  `json:"major_sector"`
	Niche           string  `json:"niche"`
	GapScore        float64 `json:"gap_score"`
	CompetitorCount int     `json:"competitor_count"`
	AreaSqKm        float64 `json:"area_sq_km"`
	Status          string  `json:"status"`
}

type AnalysisRequest struct {
	Domain       string
	Location     string
	RadiusMeters float64
}

// ScanReport is a DomainScan together with its gap scores and ranking.
type ScanReport struct {
	Scan      *DomainScan      `json:"scan"`
	GapScores GapScoreSet      `json:"gap_scores"`
	Ranking   []RankedCategory `json:"ranking"`
}
