package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	d := Default()
	require.NoError(t, d.Validate())

	assert.Equal(t, uint64(100), d.Goals.Timeout)
	assert.Equal(t, 5, d.Memory.FoodCapacity)
	assert.Equal(t, 3, d.Memory.WaterCapacity)
	assert.Equal(t, 3, d.Memory.ShelterCapacity)
	assert.Equal(t, uint64(5), d.Drives.UpdateInterval)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
goals:
  timeout: 250
memory:
  food_capacity: 8
tolerances:
  hunger:
    thresholds: [20, 100]
    priorities: [0, 30]
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(250), got.Goals.Timeout)
	assert.Equal(t, uint64(5), got.Goals.ReviewInterval, "untouched keys keep defaults")
	assert.Equal(t, 8, got.Memory.FoodCapacity)
	assert.Equal(t, 3, got.Memory.WaterCapacity)
	assert.Equal(t, []float64{20, 100}, got.Tolerances["hunger"].Thresholds)
	assert.Contains(t, got.Tolerances, "thirst")
}

func TestLoadRejectsBrokenTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
tolerances:
  thirst:
    thresholds: [60, 20]
    priorities: [1, 2]
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thirst")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestToleranceValidate(t *testing.T) {
	tests := []struct {
		name    string
		tol     Tolerance
		wantErr bool
	}{
		{"matched", Tolerance{Thresholds: []float64{30, 70, 100}, Priorities: []float64{0, 5, 20}}, false},
		{"empty", Tolerance{}, false},
		{"equal thresholds", Tolerance{Thresholds: []float64{50, 50}, Priorities: []float64{1, 2}}, false},
		{"length mismatch", Tolerance{Thresholds: []float64{30, 70}, Priorities: []float64{0}}, true},
		{"decreasing", Tolerance{Thresholds: []float64{70, 30}, Priorities: []float64{0, 5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tol.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	d := Default()
	d.Goals.Timeout = 0
	d.Memory.WaterCapacity = 0

	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "capacities")
}
