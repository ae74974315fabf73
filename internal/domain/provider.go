package domain

// HardwareSpecs is the declared capacity of a provider host.
type HardwareSpecs struct {
	VCPUs     int `json:"vcpus"`
	MemoryGB  int `json:"memory_gb"`
	StorageGB int `json:"storage_gb"`
	GPUUnits  int `json:"gpu_units"`
}

// Provider is an immutable marketplace snapshot of one compute host.
// GPUTypes are free-form vendor capability tags ("NVIDIA A100", "rtx-4090").
type Provider struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Region        string        `json:"region"`
	GPUTypes      []string      `json:"gpu_types"`
	PricePerHour  float64       `json:"price_per_hour"`
	Availability  float64       `json:"availability"`
	UptimePercent float64       `json:"uptime_percent"`
	LatencyMS     int           `json:"latency_ms"`
	Specs         HardwareSpecs `json:"specs"`
}

// ScoreWeights weighs the four score components. The defaults favor price.
type ScoreWeights struct {
	Price       float64 `json:"price" yaml:"price"`
	Reliability float64 `json:"reliability" yaml:"reliability"`
	Performance float64 `json:"performance" yaml:"performance"`
	Latency     float64 `json:"latency" yaml:"latency"`
}

// DefaultWeights returns the stock weight set {0.4, 0.3, 0.2, 0.1}.
// Callers pass *ScoreWeights where the weights are optional: nil means
// "use defaults", so an explicit all-zero set stays distinguishable.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{Price: 0.4, Reliability: 0.3, Performance: 0.2, Latency: 0.1}
}

// ProviderScore explains where a provider ranked and why. All four components
// are always populated; Total is recomputable as the weighted sum of them.
type ProviderScore struct {
	ProviderID  string       `json:"provider_id"`
	Price       float64      `json:"price_score"`
	Reliability float64      `json:"reliability_score"`
	Performance float64      `json:"performance_score"`
	Latency     float64      `json:"latency_score"`
	Total       float64      `json:"total_score"`
	Weights     ScoreWeights `json:"weights"`
}

// RankedProvider pairs a candidate with its full score.
type RankedProvider struct {
	Provider Provider      `json:"provider"`
	Score    ProviderScore `json:"score"`
}
