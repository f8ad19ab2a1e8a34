package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	body := []byte(`
load_radius_chunks: 4
lod_thresholds: [1, 2, 3]
max_outstanding_requests: 2
`)
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tt, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tt.LoadRadiusChunks != 4 || tt.MaxOutstandingRequests != 2 {
		t.Fatalf("overrides lost: %+v", tt)
	}
	if tt.ClockCheckEvery != Defaults().ClockCheckEvery {
		t.Fatalf("unset fields should keep defaults")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	tt := Defaults()
	tt.LODThresholds = []int32{5, 2, 1}
	if err := tt.Validate(); err == nil {
		t.Fatalf("expected error for decreasing thresholds")
	}
	tt.LODThresholds = []int32{1}
	if err := tt.Validate(); err == nil {
		t.Fatalf("expected error for wrong threshold count")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
