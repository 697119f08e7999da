package core

import (
	"math"

	"gap_service/internal/domain/model"
)

const earthRadiusM = 6371000

// maxLocationSamples is the number of coordinates kept per category for display.
const maxLocationSamples = 3

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// CatchmentArea returns the area of a circle with the given radius in km².
func CatchmentArea(radiusM float64) float64 {
	r := radiusM / 1000
	return math.Pi * r * r
}

// AvgNearestNeighbor is the mean over all points of the distance to the
// closest other point, rounded to 2 decimals. Sets with fewer than two points
// have no neighbor and yield 0.
//
// Pairwise O(n²); provider result caps keep n in the low hundreds. Larger sets
// need a grid or k-d tree.
func AvgNearestNeighbor(points []model.Coordinate) float64 {
	if len(points) < 2 {
		return 0
	}

	var total float64
	for i, p := range points {
		minDist := math.Inf(1)
		for j, q := range points {
			if i == j {
				continue
			}
			if d := Haversine(p, q); d < minDist {
				minDist = d
			}
		}
		total += minDist
	}
	return round(total/float64(len(points)), 2)
}

type SpatialAnalyzer struct {
	RadiusMeters float64
}

// Analyze converts a deduplicated point set into density and dispersion
// metrics. CategoryShare is left at zero; it needs the whole domain.
func (a SpatialAnalyzer) Analyze(category string, points []model.Coordinate) model.CategoryMetrics {
	area := CatchmentArea(a.RadiusMeters)
	count := len(points)

	var density float64
	if area > 0 {
		density = round(float64(count)/area, 3)
	}
	nn := AvgNearestNeighbor(points)

	samples := points
	if len(samples) > maxLocationSamples {
		samples = samples[:maxLocationSamples]
	}

	return model.CategoryMetrics{
		Category:        category,
		Count:           count,
		DensityPerSqKm:  density,
		AvgNearestDistM: nn,
		SaturationIndex: round(density/(nn+1), 5),
		LocationSamples: append([]model.Coordinate{}, samples...),
	}
}

// ApplyCategoryShares fills CategoryShare for every entry from the domain
// total. The total is floored at 1 so an empty domain yields zero shares.
func ApplyCategoryShares(categories []model.CategoryMetrics) {
	total := 0
	for _, c := range categories {
		total += c.Count
	}
	if total == 0 {
		total = 1
	}
	for i := range categories {
		categories[i].CategoryShare = round(float64(categories[i].Count)/float64(total), 3)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
