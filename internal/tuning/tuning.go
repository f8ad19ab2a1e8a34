package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelstream.ai/internal/stream/lod"
)

// Tuning is the streaming configuration. The clock cadence and phase
// budget are policy constants, not correctness requirements: a phase must
// stop once its budget is exceeded, however often the clock is sampled.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Seed             int64   `yaml:"seed"`
	LoadRadiusChunks int32   `yaml:"load_radius_chunks"`
	LODThresholds    []int32 `yaml:"lod_thresholds"`

	PhaseBudgetUs          int `yaml:"phase_budget_us"`
	ClockCheckEvery        int `yaml:"clock_check_every"`
	MaxOutstandingRequests int `yaml:"max_outstanding_requests"`

	VertexBudget   int `yaml:"vertex_budget"`
	SunUpdateMs    int `yaml:"sun_update_ms"`
	DayLengthTicks int `yaml:"day_length_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:        "1.0",
		Seed:                   1337,
		LoadRadiusChunks:       8,
		LODThresholds:          []int32{2, 4, 6},
		PhaseBudgetUs:          1000,
		ClockCheckEvery:        10,
		MaxOutstandingRequests: 1,
		VertexBudget:           1 << 22,
		SunUpdateMs:            1000,
		DayLengthTicks:         6000,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.LoadRadiusChunks <= 0 {
		return fmt.Errorf("load_radius_chunks must be positive")
	}
	if len(t.LODThresholds) != lod.NumLODs-1 {
		return fmt.Errorf("lod_thresholds needs %d entries, got %d", lod.NumLODs-1, len(t.LODThresholds))
	}
	for i := 1; i < len(t.LODThresholds); i++ {
		if t.LODThresholds[i] < t.LODThresholds[i-1] {
			return fmt.Errorf("lod_thresholds must be non-decreasing")
		}
	}
	if t.MaxOutstandingRequests <= 0 {
		return fmt.Errorf("max_outstanding_requests must be positive")
	}
	if t.ClockCheckEvery <= 0 {
		return fmt.Errorf("clock_check_every must be positive")
	}
	return nil
}

// Thresholds returns the distance-to-LOD step function's breakpoints.
func (t Tuning) Thresholds() [lod.NumLODs - 1]int32 {
	var out [lod.NumLODs - 1]int32
	copy(out[:], t.LODThresholds)
	return out
}
