package matching

import (
	"math"
	"reflect"
	"testing"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

func TestRankTotalIsWeightedSum(t *testing.T) {
	engine := NewEngine(nopLogger{})

	candidates := []domain.Provider{
		provider("a", func(p *domain.Provider) { p.PricePerHour = 1.0; p.LatencyMS = 20 }),
		provider("b", func(p *domain.Provider) { p.PricePerHour = 2.0; p.LatencyMS = 80; p.UptimePercent = 95 }),
		provider("c", func(p *domain.Provider) { p.PricePerHour = 3.5; p.LatencyMS = 200; p.UptimePercent = 80 }),
	}
	req := domain.JobRequirements{CPUUnits: 8, MemoryGB: 32}

	ranked := engine.Rank(req, candidates, nil)
	if len(ranked) != len(candidates) {
		t.Fatalf("Rank() returned %d entries, want %d", len(ranked), len(candidates))
	}

	for _, rp := range ranked {
		s := rp.Score
		w := s.Weights
		recomputed := w.Price*s.Price + w.Reliability*s.Reliability + w.Performance*s.Performance + w.Latency*s.Latency
		if math.Abs(recomputed-s.Total) > 1e-9 {
			t.Errorf("provider %s: total %v, recomputed %v", s.ProviderID, s.Total, recomputed)
		}
		for name, v := range map[string]float64{
			"price": s.Price, "reliability": s.Reliability,
			"performance": s.Performance, "latency": s.Latency,
		} {
			if v < 0 || v > 1 {
				t.Errorf("provider %s: %s score %v outside [0,1]", s.ProviderID, name, v)
			}
		}
		if s.Total > 0 && s.Price == 0 && s.Reliability == 0 && s.Performance == 0 && s.Latency == 0 {
			t.Errorf("provider %s: nonzero total with zeroed components", s.ProviderID)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	engine := NewEngine(nopLogger{})

	candidates := []domain.Provider{
		provider("worst", func(p *domain.Provider) {
			p.PricePerHour = 5.0
			p.UptimePercent = 70
			p.LatencyMS = 300
		}),
		provider("best", func(p *domain.Provider) {
			p.PricePerHour = 0.5
			p.UptimePercent = 99.9
			p.LatencyMS = 10
		}),
		provider("middle", func(p *domain.Provider) {
			p.PricePerHour = 2.0
			p.UptimePercent = 90
			p.LatencyMS = 100
		}),
	}

	ranked := engine.Rank(domain.JobRequirements{}, candidates, nil)
	got := []string{ranked[0].Provider.ID, ranked[1].Provider.ID, ranked[2].Provider.ID}
	want := []string{"best", "middle", "worst"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rank() order = %v, want %v", got, want)
	}
}

func TestRankTieBreak(t *testing.T) {
	engine := NewEngine(nopLogger{})

	// Identical hardware and uptime; the price tie-break, then the id
	// tie-break, must order them deterministically.
	tests := []struct {
		name       string
		candidates []domain.Provider
		wantOrder  []string
	}{
		{
			name: "equal totals break by ascending price",
			candidates: []domain.Provider{
				provider("exp", func(p *domain.Provider) { p.PricePerHour = 2.0 }),
				provider("cheap", func(p *domain.Provider) { p.PricePerHour = 2.0 }),
			},
			wantOrder: []string{"cheap", "exp"},
		},
		{
			name: "equal totals and prices break by provider id",
			candidates: []domain.Provider{
				provider("zeta", nil),
				provider("alpha", nil),
			},
			wantOrder: []string{"alpha", "zeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := engine.Rank(domain.JobRequirements{}, tt.candidates, nil)
			got := make([]string, len(ranked))
			for i, rp := range ranked {
				got[i] = rp.Provider.ID
			}
			if !reflect.DeepEqual(got, tt.wantOrder) {
				t.Errorf("Rank() order = %v, want %v", got, tt.wantOrder)
			}
		})
	}
}

func TestRankSoleCandidate(t *testing.T) {
	engine := NewEngine(nopLogger{})

	ranked := engine.Rank(domain.JobRequirements{}, []domain.Provider{provider("only", nil)}, nil)
	if len(ranked) != 1 {
		t.Fatalf("Rank() returned %d entries, want 1", len(ranked))
	}
	if ranked[0].Score.Price != 1.0 {
		t.Errorf("priceScore = %v, want 1.0", ranked[0].Score.Price)
	}
	if ranked[0].Score.Latency != 1.0 {
		t.Errorf("latencyScore = %v, want 1.0", ranked[0].Score.Latency)
	}
}

func TestRankIdempotent(t *testing.T) {
	engine := NewEngine(nopLogger{})

	candidates := []domain.Provider{
		provider("a", func(p *domain.Provider) { p.PricePerHour = 1.5; p.LatencyMS = 40 }),
		provider("b", func(p *domain.Provider) { p.PricePerHour = 2.5; p.LatencyMS = 90 }),
		provider("c", func(p *domain.Provider) { p.PricePerHour = 0.8; p.LatencyMS = 15 }),
	}
	req := domain.JobRequirements{CPUUnits: 4, MemoryGB: 16}

	first := engine.Rank(req, candidates, nil)
	second := engine.Rank(req, candidates, nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Rank() is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestRankCustomWeights(t *testing.T) {
	engine := NewEngine(nopLogger{})

	// With all weight on latency, the low-latency host must win despite
	// being the most expensive.
	candidates := []domain.Provider{
		provider("cheap-slow", func(p *domain.Provider) { p.PricePerHour = 0.5; p.LatencyMS = 500 }),
		provider("pricey-fast", func(p *domain.Provider) { p.PricePerHour = 5.0; p.LatencyMS = 5 }),
	}
	weights := domain.ScoreWeights{Latency: 1.0}

	ranked := engine.Rank(domain.JobRequirements{}, candidates, &weights)
	if ranked[0].Provider.ID != "pricey-fast" {
		t.Errorf("Rank() winner = %s, want pricey-fast", ranked[0].Provider.ID)
	}
	if ranked[0].Score.Weights != weights {
		t.Errorf("returned weights = %+v, want %+v", ranked[0].Score.Weights, weights)
	}
}

func TestRankExplicitZeroWeights(t *testing.T) {
	engine := NewEngine(nopLogger{})

	// An explicit zero weight set is a legitimate choice (rank by the
	// tie-breaks alone) and must not be swapped for the defaults.
	candidates := []domain.Provider{
		provider("cheap", func(p *domain.Provider) { p.PricePerHour = 0.5 }),
		provider("pricey", func(p *domain.Provider) { p.PricePerHour = 4.0 }),
	}
	zero := domain.ScoreWeights{}

	ranked := engine.Rank(domain.JobRequirements{}, candidates, &zero)
	for _, rp := range ranked {
		if rp.Score.Total != 0 {
			t.Errorf("provider %s: total = %v with zero weights, want 0", rp.Provider.ID, rp.Score.Total)
		}
		if rp.Score.Weights != zero {
			t.Errorf("provider %s: weights = %+v, want the explicit zero set", rp.Provider.ID, rp.Score.Weights)
		}
	}
	if ranked[0].Provider.ID != "cheap" {
		t.Errorf("Rank() winner = %s, want cheap via the price tie-break", ranked[0].Provider.ID)
	}
}

func TestHeadroomScore(t *testing.T) {
	tests := []struct {
		name string
		have domain.HardwareSpecs
		req  domain.JobRequirements
		want float64
	}{
		{
			name: "exactly meeting the minimum scores zero headroom",
			have: domain.HardwareSpecs{VCPUs: 8, MemoryGB: 32},
			req:  domain.JobRequirements{CPUUnits: 8, MemoryGB: 32},
			want: 0,
		},
		{
			name: "double capacity caps each ratio at 1.0",
			have: domain.HardwareSpecs{VCPUs: 32, MemoryGB: 128},
			req:  domain.JobRequirements{CPUUnits: 8, MemoryGB: 32},
			want: 1.0,
		},
		{
			name: "unset request counts as full headroom",
			have: domain.HardwareSpecs{VCPUs: 8, MemoryGB: 32},
			req:  domain.JobRequirements{},
			want: 1.0,
		},
		{
			name: "half surplus on both resources",
			have: domain.HardwareSpecs{VCPUs: 12, MemoryGB: 48},
			req:  domain.JobRequirements{CPUUnits: 8, MemoryGB: 32},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := headroomScore(tt.have, tt.req)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("headroomScore() = %v, want %v", got, tt.want)
			}
		})
	}
}
