package domain

// GPUSpec describes the accelerator a job asks for. Model is matched against
// provider capability tags as a case-insensitive substring, never by equality.
type GPUSpec struct {
	Model string `json:"model"`
	Units int    `json:"units"`
}

// JobRequirements is what the caller needs from a provider. Optional
// constraints are pointers; nil means "no constraint", a zero value never does.
type JobRequirements struct {
	CPUUnits        int      `json:"cpu_units"`
	MemoryGB        int      `json:"memory_gb"`
	StorageGB       int      `json:"storage_gb"`
	GPU             *GPUSpec `json:"gpu,omitempty"`
	Region          *string  `json:"region,omitempty"`
	MaxPricePerHour *float64 `json:"max_price_per_hour,omitempty"`
	MinAvailability *float64 `json:"min_availability,omitempty"`
}

// WantsGPU reports whether the job asks for an accelerator at all.
func (r JobRequirements) WantsGPU() bool {
	return r.GPU != nil && r.GPU.Units >= 1
}
