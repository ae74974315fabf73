package matching

import (
	"strings"

	"github.com/magicaleks/qudata-broker/internal/domain"
	"github.com/magicaleks/qudata-broker/internal/impls"
)

// Engine runs the filter/score/rank pipeline over one provider snapshot.
// It holds no state between calls; every ranking is recomputed from the
// snapshot it is given.
type Engine struct {
	logger impls.Logger
}

func NewEngine(logger impls.Logger) *Engine {
	return &Engine{logger: logger}
}

// Filter drops every provider that cannot satisfy a hard constraint of the
// requirements. An empty result is a normal return; the orchestrator turns it
// into a reported failure.
func (e *Engine) Filter(req domain.JobRequirements, candidates []domain.Provider) []domain.Provider {
	matched := make([]domain.Provider, 0, len(candidates))

	for _, p := range candidates {
		if !e.validRecord(p) {
			continue
		}
		if req.Region != nil && !strings.EqualFold(p.Region, *req.Region) {
			continue
		}
		if req.WantsGPU() && !offersGPU(p, req.GPU.Model) {
			continue
		}
		if req.MaxPricePerHour != nil && p.PricePerHour > *req.MaxPricePerHour {
			continue
		}
		if req.MinAvailability != nil && p.Availability < *req.MinAvailability {
			continue
		}
		if !hasCapacity(p, req) {
			continue
		}
		matched = append(matched, p)
	}

	return matched
}

// offersGPU matches the requested model against the provider's capability
// tags as a case-insensitive substring. Tags are free-form vendor strings, so
// exact or case-sensitive equality would silently reject compatible capacity
// ("nvidia" must match "NVIDIA A100").
func offersGPU(p domain.Provider, model string) bool {
	want := normalizeTag(model)
	if want == "" {
		return len(p.GPUTypes) > 0
	}
	for _, tag := range p.GPUTypes {
		if strings.Contains(normalizeTag(tag), want) {
			return true
		}
	}
	return false
}

// normalizeTag canonicalizes a capability tag at the filter boundary so every
// comparison happens in one case-folded form.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func hasCapacity(p domain.Provider, req domain.JobRequirements) bool {
	if p.Specs.VCPUs < req.CPUUnits {
		return false
	}
	if p.Specs.MemoryGB < req.MemoryGB {
		return false
	}
	if p.Specs.StorageGB < req.StorageGB {
		return false
	}
	if req.WantsGPU() && p.Specs.GPUUnits < req.GPU.Units {
		return false
	}
	return true
}

// validRecord rejects malformed provider snapshots. A bad record is logged
// and skipped rather than aborting the whole pass.
func (e *Engine) validRecord(p domain.Provider) bool {
	switch {
	case p.ID == "":
		e.logger.Warn("skipping provider with empty id (name=%q)", p.Name)
	case p.PricePerHour < 0:
		e.logger.Warn("skipping provider %s: negative price %.4f", p.ID, p.PricePerHour)
	case p.Availability < 0 || p.Availability > 1:
		e.logger.Warn("skipping provider %s: availability %.2f out of range", p.ID, p.Availability)
	case p.UptimePercent < 0 || p.UptimePercent > 100:
		e.logger.Warn("skipping provider %s: uptime %.2f out of range", p.ID, p.UptimePercent)
	case p.LatencyMS < 0:
		e.logger.Warn("skipping provider %s: negative latency %d", p.ID, p.LatencyMS)
	default:
		return true
	}
	return false
}
