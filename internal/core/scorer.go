package core

import (
	"math"
	"sort"

	"gap_service/internal/domain/model"
)

// Composite weights of the gap score.
const (
	weightDistance   = 0.30
	weightDensity    = 0.25
	weightCount      = 0.20
	weightSaturation = 0.15
	weightShare      = 0.10

	lowPercentile  = 1
	highPercentile = 99
)

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. values must be non-empty.
func Percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// normalizer maps a value into [0,1] relative to the 1st..99th percentile
// spread of one feature across the current category set.
type normalizer struct {
	skip   bool
	p1     float64
	spread float64
}

func newNormalizer(values []float64) normalizer {
	if len(values) < 2 {
		return normalizer{skip: true}
	}
	p1 := Percentile(values, lowPercentile)
	p99 := Percentile(values, highPercentile)
	return normalizer{p1: p1, spread: p99 - p1}
}

func (n normalizer) normalize(v float64) float64 {
	if n.skip {
		return 1
	}
	if n.spread == 0 {
		if v > n.p1 {
			return 1
		}
		return 0
	}
	return clamp01((v - n.p1) / n.spread)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

type GapScorer struct{}

// Score computes a gap score for every category. Normalization is relative to
// the given set only. Lower count, density, saturation and share and a larger
// nearest-neighbor spacing mean more opportunity.
func (GapScorer) Score(categories []model.CategoryMetrics) model.GapScoreSet {
	scores := make(model.GapScoreSet, len(categories))
	if len(categories) == 0 {
		return scores
	}

	counts := make([]float64, len(categories))
	densities := make([]float64, len(categories))
	distances := make([]float64, len(categories))
	saturations := make([]float64, len(categories))
	shares := make([]float64, len(categories))
	for i, c := range categories {
		counts[i] = float64(c.Count)
		densities[i] = c.DensityPerSqKm
		distances[i] = c.AvgNearestDistM
		saturations[i] = c.SaturationIndex
		shares[i] = c.CategoryShare
	}

	countN := newNormalizer(counts)
	densityN := newNormalizer(densities)
	distanceN := newNormalizer(distances)
	saturationN := newNormalizer(saturations)
	shareN := newNormalizer(shares)

	for _, c := range categories {
		countTerm := 1 - countN.normalize(float64(c.Count))
		densityTerm := 1 - densityN.normalize(c.DensityPerSqKm)
		distanceTerm := distanceN.normalize(c.AvgNearestDistM)
		saturationTerm := 1 - saturationN.normalize(c.SaturationIndex)
		shareTerm := 1 - shareN.normalize(c.CategoryShare)

		score := weightDistance*distanceTerm +
			weightDensity*densityTerm +
			weightCount*countTerm +
			weightSaturation*saturationTerm +
			weightShare*shareTerm
		scores[c.Category] = round(clamp01(score), 3)
	}
	return scores
}

// Rank orders categories by descending gap score. Ties keep the input order.
func Rank(categories []model.CategoryMetrics, scores model.GapScoreSet) []model.RankedCategory {
	ranked := make([]model.RankedCategory, 0, len(categories))
	for _, c := range categories {
		ranked = append(ranked, model.RankedCategory{Category: c.Category, GapScore: scores[c.Category]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].GapScore > ranked[j].GapScore
	})
	return ranked
}
