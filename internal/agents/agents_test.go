package agents

import (
	"testing"

	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

// newTestAgent builds an agent with default tuning and the given drives.
func newTestAgent(t *testing.T, hunger, thirst, rest float64) *Agent {
	t.Helper()
	cfg := tuning.Default()
	return &Agent{
		ID:         7,
		Name:       "Test Hare",
		Species:    "hare",
		Drives:     NewDriveSet(cfg.Drives, hunger, thirst, rest),
		Tolerances: TolerancesFromTuning(cfg.Tolerances),
		Behavior:   BehaviorIdle,
		Memory:     NewResourceMemory(cfg.Memory),
		Goals:      NewGoalEngine(cfg.Goals),
		Inventory:  crafting.NewInventory(nil),
		Alive:      true,
	}
}

func testResource(id string, x, y float64, tags ...string) *world.Resource {
	return &world.Resource{
		ID:       id,
		Position: world.Position{X: x, Y: y},
		Tags:     tags,
		Quantity: world.Inexhaustible,
	}
}
