package matching

import (
	"sort"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

// Rank scores every filtered candidate and returns them in descending total
// score. Ties break by ascending price, then by provider id, so equal inputs
// always produce the same ordering. Every element carries the full component
// breakdown so the caller can explain why a provider ranked where it did.
// A nil weights pointer selects the defaults; an explicit set, zero included,
// is used as given.
func (e *Engine) Rank(req domain.JobRequirements, candidates []domain.Provider, override *domain.ScoreWeights) []domain.RankedProvider {
	weights := domain.DefaultWeights()
	if override != nil {
		weights = *override
	}

	if len(candidates) == 0 {
		return nil
	}

	minPrice, maxPrice := priceRange(candidates)
	minLat, maxLat := latencyRange(candidates)

	ranked := make([]domain.RankedProvider, 0, len(candidates))
	for _, p := range candidates {
		score := domain.ProviderScore{
			ProviderID:  p.ID,
			Price:       inverseNorm(p.PricePerHour, minPrice, maxPrice),
			Reliability: clamp01(p.UptimePercent / 100),
			Performance: headroomScore(p.Specs, req),
			Latency:     inverseNorm(float64(p.LatencyMS), minLat, maxLat),
			Weights:     weights,
		}
		score.Total = weights.Price*score.Price +
			weights.Reliability*score.Reliability +
			weights.Performance*score.Performance +
			weights.Latency*score.Latency

		ranked = append(ranked, domain.RankedProvider{Provider: p, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Provider.PricePerHour != b.Provider.PricePerHour {
			return a.Provider.PricePerHour < b.Provider.PricePerHour
		}
		return a.Provider.ID < b.Provider.ID
	})

	return ranked
}

// inverseNorm maps value onto [0,1] with the low end of the observed range
// scoring 1.0. A degenerate range (single candidate or uniform values)
// scores 1.0 for everyone.
func inverseNorm(value, min, max float64) float64 {
	if max <= min {
		return 1.0
	}
	return clamp01((max - value) / (max - min))
}

// headroomScore rewards capacity beyond the requested minimum: per-resource
// surplus ratio (have-need)/need capped at 1.0, averaged over vCPU and
// memory. An unset request counts as full headroom.
func headroomScore(specs domain.HardwareSpecs, req domain.JobRequirements) float64 {
	return (surplusRatio(specs.VCPUs, req.CPUUnits) + surplusRatio(specs.MemoryGB, req.MemoryGB)) / 2
}

func surplusRatio(have, need int) float64 {
	if need <= 0 {
		return 1.0
	}
	ratio := float64(have-need) / float64(need)
	if ratio > 1 {
		return 1.0
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func priceRange(candidates []domain.Provider) (min, max float64) {
	min, max = candidates[0].PricePerHour, candidates[0].PricePerHour
	for _, p := range candidates[1:] {
		if p.PricePerHour < min {
			min = p.PricePerHour
		}
		if p.PricePerHour > max {
			max = p.PricePerHour
		}
	}
	return min, max
}

func latencyRange(candidates []domain.Provider) (min, max float64) {
	min, max = float64(candidates[0].LatencyMS), float64(candidates[0].LatencyMS)
	for _, p := range candidates[1:] {
		if float64(p.LatencyMS) < min {
			min = float64(p.LatencyMS)
		}
		if float64(p.LatencyMS) > max {
			max = float64(p.LatencyMS)
		}
	}
	return min, max
}
