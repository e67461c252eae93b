// Package agents provides the animal data model and its decision engine:
// drives, priority evaluation, resource memory and goals.
package agents

import (
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// BehaviorState is the single dominant activity of an agent.
type BehaviorState string

const (
	BehaviorIdle         BehaviorState = "idle"
	BehaviorForaging     BehaviorState = "foraging"
	BehaviorSeekingWater BehaviorState = "seeking_water"
	BehaviorResting      BehaviorState = "resting"
	BehaviorExploring    BehaviorState = "exploring"
)

// Agent is one animal in the simulation. It is owned by the simulation
// and mutated once per tick, never concurrently.
type Agent struct {
	ID      AgentID `json:"id"`
	Name    string  `json:"name"`
	Species string  `json:"species"`

	Position world.Position `json:"position"`

	// Needs and how urgently each one is felt.
	Drives     DriveSet                `json:"drives"`
	Tolerances map[DriveName]Tolerance `json:"-"` // Restored from tuning on load

	// Decision output, rebuilt every evaluation.
	Behavior BehaviorState     `json:"behavior"`
	Actions  []ActionCandidate `json:"actions"`

	Memory    *ResourceMemory     `json:"memory"`
	Goals     *GoalEngine         `json:"goals"`
	Inventory *crafting.Inventory `json:"inventory"`

	// Consecutive ticks spent with hunger or thirst at the ceiling.
	CriticalTicks uint64 `json:"critical_ticks,omitempty"`

	BornTick uint64 `json:"born_tick"`
	Alive    bool   `json:"alive"`
}

// CurrentGoal returns the goal the agent is pursuing, or nil.
func (a *Agent) CurrentGoal() *Goal {
	if a.Goals == nil {
		return nil
	}
	return a.Goals.Current
}
