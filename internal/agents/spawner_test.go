package agents

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

func TestSpawnPopulationDeterministic(t *testing.T) {
	cfg := tuning.Default()
	m := world.Generate(world.SmallTestConfig())

	a := NewSpawner(9, cfg).SpawnPopulation(m, 6, 0)
	b := NewSpawner(9, cfg).SpawnPopulation(m, 6, 0)
	require.Len(t, a, 6)
	require.Len(t, b, 6)

	for i := range a {
		assert.Equal(t, AgentID(i+1), a[i].ID)
		assert.Equal(t, a[i].Name, b[i].Name)
		assert.Equal(t, a[i].Position, b[i].Position)
		assert.Equal(t, a[i].Drives, b[i].Drives)

		assert.True(t, a[i].Alive)
		assert.Contains(t, Species, a[i].Species)
		assert.LessOrEqual(t, a[i].Drives.Hunger.Value, 40.0)
		assert.NotNil(t, a[i].Memory)
		assert.NotNil(t, a[i].Inventory)
		assert.Equal(t, GoalStateIdle, a[i].Goals.State())
		assert.NotEmpty(t, a[i].Tolerances)
	}
}

func TestSpawnPopulationNoLand(t *testing.T) {
	m := world.NewMap(2, 1)
	assert.Empty(t, NewSpawner(1, tuning.Default()).SpawnPopulation(m, 3, 0))
}

func TestSetNextID(t *testing.T) {
	s := NewSpawner(1, tuning.Default())
	s.SetNextID(40)
	a := s.SpawnAt(world.Position{X: 1, Y: 1}, 12)
	assert.Equal(t, AgentID(40), a.ID)
	assert.Equal(t, uint64(12), a.BornTick)
	assert.Equal(t, uint64(12), a.Drives.LastUpdate)
	assert.InDelta(t, 1.0, a.Position.X, 0.25)
}

func TestHydrateKeepsExistingState(t *testing.T) {
	cfg := tuning.Default()
	a := &Agent{ID: 3}
	Hydrate(a, cfg)
	a.Goals.Request(NewCraftGoal("craft_rope", 0))
	mem := a.Memory

	Hydrate(a, cfg)
	assert.Same(t, mem, a.Memory)
	assert.Len(t, a.Goals.Queue, 1)
	assert.Equal(t, cfg.Goals.Timeout, a.Goals.Timeout)
}

func TestHydrateAppliesCurrentTuning(t *testing.T) {
	saved := tuning.Default()
	a := &Agent{ID: 4}
	Hydrate(a, saved)
	for i := 0; i < saved.Memory.FoodCapacity; i++ {
		a.Memory.Record(&world.Resource{
			ID:       fmt.Sprintf("bush-%d", i),
			Tags:     []string{world.TagFood},
			Quantity: 1,
		}, uint64(i))
	}

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var restored Agent
	require.NoError(t, json.Unmarshal(raw, &restored))

	cfg := tuning.Default()
	cfg.Goals.Timeout = 500
	cfg.Goals.ReviewInterval = 9
	cfg.Memory.FoodCapacity = 2
	cfg.Memory.DefaultNutrition = 35
	Hydrate(&restored, cfg)

	assert.Equal(t, uint64(500), restored.Goals.Timeout)
	assert.Equal(t, uint64(9), restored.Goals.ReviewInterval)
	food := restored.Memory.Food
	assert.Equal(t, 2, food.Capacity)
	assert.Equal(t, 35.0, food.Default)
	require.Len(t, food.Entries, 2)
	assert.Equal(t, "bush-3", food.Entries[0].ID, "oldest entries are dropped first")
	assert.Equal(t, "bush-4", food.Entries[1].ID)
}
