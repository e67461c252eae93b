package agents

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/wildsim/internal/tuning"
)

func TestUpdateDrivesWaitsForInterval(t *testing.T) {
	cfg := tuning.Default().Drives
	a := newTestAgent(t, 10, 10, 10)

	for tick := uint64(1); tick < cfg.UpdateInterval; tick++ {
		assert.False(t, UpdateDrives(a, tick, cfg), "tick %d", tick)
	}
	assert.Equal(t, 10.0, a.Drives.Hunger.Value)
	assert.Equal(t, uint64(0), a.Drives.LastUpdate)

	require.True(t, UpdateDrives(a, cfg.UpdateInterval, cfg))
	assert.InDelta(t, 10+cfg.HungerRate*cfg.HungerMultiplier, a.Drives.Hunger.Value, 1e-9)
	assert.InDelta(t, 10+cfg.ThirstRate*cfg.ThirstMultiplier, a.Drives.Thirst.Value, 1e-9)
	assert.InDelta(t, 10+cfg.RestRate*cfg.FatigueMultiplier, a.Drives.Rest.Value, 1e-9)
	assert.Equal(t, cfg.UpdateInterval, a.Drives.LastUpdate)

	// The window restarts from the last update.
	assert.False(t, UpdateDrives(a, cfg.UpdateInterval+1, cfg))
}

func TestUpdateDrivesIgnoresTickBeforeLastUpdate(t *testing.T) {
	cfg := tuning.Default().Drives
	a := newTestAgent(t, 10, 10, 10)
	a.Drives.LastUpdate = 50

	assert.False(t, UpdateDrives(a, 20, cfg))
	assert.Equal(t, 10.0, a.Drives.Hunger.Value)
}

func TestRestRecoversWhileResting(t *testing.T) {
	cfg := tuning.Default().Drives
	a := newTestAgent(t, 0, 0, 40)
	a.Behavior = BehaviorResting

	require.True(t, UpdateDrives(a, cfg.UpdateInterval, cfg))
	assert.InDelta(t, 40-cfg.RestRate*cfg.RecoverMultiplier, a.Drives.Rest.Value, 1e-9)
}

func TestDrivesStayClamped(t *testing.T) {
	cfg := tuning.Default().Drives
	cfg.HungerMultiplier = 50
	a := newTestAgent(t, 99, 0, 0)
	a.Behavior = BehaviorResting

	for i := uint64(1); i <= 10; i++ {
		UpdateDrives(a, i*cfg.UpdateInterval, cfg)
		for _, name := range evaluatedDrives {
			v, ok := a.Drives.Value(name)
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, DriveMin)
			assert.LessOrEqual(t, v, DriveMax)
		}
	}
	assert.Equal(t, DriveMax, a.Drives.Hunger.Value)
	assert.Equal(t, DriveMin, a.Drives.Rest.Value)
}

func TestNewDriveSetClampsStartingValues(t *testing.T) {
	d := NewDriveSet(tuning.Default().Drives, -5, 250, math.NaN())
	assert.Equal(t, DriveMin, d.Hunger.Value)
	assert.Equal(t, DriveMax, d.Thirst.Value)
	assert.Equal(t, DriveMin, d.Rest.Value)
}

func TestSatisfy(t *testing.T) {
	a := newTestAgent(t, 60, 30, 0)

	Satisfy(a, DriveHunger, 25)
	assert.Equal(t, 35.0, a.Drives.Hunger.Value)

	Satisfy(a, DriveThirst, 100)
	assert.Equal(t, DriveMin, a.Drives.Thirst.Value)

	Satisfy(a, DriveExploration, 10) // not a stored drive
	_, ok := a.Drives.Value(DriveExploration)
	assert.False(t, ok)
}
