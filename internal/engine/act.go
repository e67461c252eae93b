// Per-agent tick: drives, perception, evaluation, goals, then one action.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/world"
)

// stepAgent runs one agent through a tick. Caller holds the write lock.
func (s *Simulation) stepAgent(a *agents.Agent, tick uint64) {
	cfg := s.Tuning

	agents.UpdateDrives(a, tick, cfg.Drives)
	s.observe(a, tick)
	if tick%cfg.Memory.ForgetInterval == 0 {
		if n := a.Memory.Forget(tick, cfg.Memory.MaxAge); n > 0 {
			slog.Debug("memories faded", "agent", a.Name, "count", n)
		}
	}

	agents.EvaluatePriorities(a, cfg.Exploration)

	gc := s.goalContext(a, tick)
	if a.Goals.Current == nil && len(a.Goals.Queue) == 0 {
		if g := s.nextGoal(a, tick); g != nil {
			a.Goals.Request(g)
		}
	}
	a.Goals.Advance(gc)
	s.act(a, gc)

	s.checkStarvation(a, tick)
}

// observe records every resource within perception range.
func (s *Simulation) observe(a *agents.Agent, tick uint64) {
	for _, r := range s.WorldMap.NearbyResources(a.Position, s.Tuning.Memory.PerceptionRadius) {
		a.Memory.Record(r, tick)
	}
}

func (s *Simulation) goalContext(a *agents.Agent, tick uint64) agents.GoalContext {
	return agents.GoalContext{
		Agent:     a.Name,
		Tick:      tick,
		Inventory: a.Inventory,
		Crafter:   s.Catalog,
		Reporter:  agents.GoalReporterFunc(func(err *agents.GoalError) { s.goalFailed(a, err) }),
		OnCraft: func(r crafting.Recipe, crafts int) {
			s.emit(Event{
				Tick:        tick,
				Description: fmt.Sprintf("%s the %s crafted %s", a.Name, a.Species, r.Output),
				Category:    "craft",
				Meta:        map[string]any{"agent_id": a.ID, "recipe": r.ID, "crafts": crafts},
			})
		},
	}
}

// goalFailed logs a dropped goal as an event and forwards it.
func (s *Simulation) goalFailed(a *agents.Agent, err *agents.GoalError) {
	s.Stats.GoalFailures++
	if id, ok := s.idleGoalID[a.ID]; ok && id == err.GoalID {
		delete(s.idleGoalID, a.ID)
		s.idleFailedHour[a.ID] = err.Tick / TicksPerSimHour
	}
	s.emit(Event{
		Tick:        err.Tick,
		Description: err.Error(),
		Category:    "goal",
		Meta: map[string]any{
			"agent_id":  a.ID,
			"goal_id":   err.GoalID.String(),
			"goal_type": string(err.GoalType),
			"kind":      string(err.Kind),
		},
	})
	if s.Reporter != nil {
		s.Reporter.GoalFailed(err)
	}
}

// nextGoal picks what an agent with an empty queue should do. A content
// agent with no parked work takes up an idle recipe whose product it
// lacks; everyone else follows their behavior state.
func (s *Simulation) nextGoal(a *agents.Agent, tick uint64) *agents.Goal {
	if a.Behavior == agents.BehaviorIdle {
		return s.idleGoal(a, tick)
	}
	return agents.GoalForBehavior(a, tick, s.Tuning.Exploration, s.walkable)
}

// idleGoal rotates through the idle recipes hourly. A recipe is skipped
// when the agent already holds its product or some raw input has no
// source within gather range, and nothing is tried again in the hour an
// idle craft failed.
func (s *Simulation) idleGoal(a *agents.Agent, tick uint64) *agents.Goal {
	if a.Goals.State() != agents.GoalStateIdle {
		return nil
	}
	recipes := s.Tuning.Goals.IdleRecipes
	if len(recipes) == 0 || s.Catalog == nil {
		return nil
	}
	hour := tick / TicksPerSimHour
	if failed, ok := s.idleFailedHour[a.ID]; ok && failed == hour {
		return nil
	}

	id := recipes[(uint64(a.ID)+hour)%uint64(len(recipes))]
	r, ok := s.Catalog.Resolve(id)
	if !ok || a.Inventory.Count(r.Output) > 0 || !s.sourceable(a, r, map[string]bool{}) {
		return nil
	}
	g := agents.NewCraftGoal(id, 0)
	s.idleGoalID[a.ID] = g.ID
	return g
}

// sourceable reports whether every input of r is held, craftable from
// sourceable inputs, or available from a resource within gather range.
func (s *Simulation) sourceable(a *agents.Agent, r crafting.Recipe, seen map[string]bool) bool {
	if seen[r.ID] {
		return false
	}
	seen[r.ID] = true
	for _, in := range r.InputTypes() {
		if a.Inventory.Count(in) >= r.Inputs[in] {
			continue
		}
		if sub, ok := s.Catalog.RecipeFor(in); ok {
			if !s.sourceable(a, sub, seen) {
				return false
			}
			continue
		}
		if s.WorldMap.NearestWithTag(a.Position, in, s.Tuning.Population.GatherRadius) == nil {
			return false
		}
	}
	return true
}

func (s *Simulation) walkable(pos world.Position) bool {
	hex := s.WorldMap.HexAt(pos)
	return hex != nil && hex.Terrain != world.TerrainOcean
}

// act carries out one step of the current goal.
func (s *Simulation) act(a *agents.Agent, gc agents.GoalContext) {
	g := a.Goals.Current
	if g == nil {
		return
	}

	switch g.Type {
	case agents.GoalFindFood, agents.GoalFindWater:
		if s.moveToward(a, g) {
			s.consume(a, gc, g)
		}
	case agents.GoalRest:
		if a.Behavior != agents.BehaviorResting {
			a.Goals.CompleteCurrentGoal()
			return
		}
		if g.TargetLocation != nil {
			s.moveToward(a, g)
		}
	case agents.GoalExplore:
		if g.TargetLocation == nil || s.moveToward(a, g) {
			a.Goals.CompleteCurrentGoal()
		}
	case agents.GoalGather:
		s.gather(a, gc, g)
	}
}

// moveToward steps the agent toward the goal's target and reports
// whether it is within reach.
func (s *Simulation) moveToward(a *agents.Agent, g *agents.Goal) bool {
	target := *g.TargetLocation
	reach := s.Tuning.Population.ReachDist
	if a.Position.DistanceTo(target) <= reach {
		return true
	}
	a.Position = a.Position.StepToward(target, s.Tuning.Population.Speed)
	return a.Position.DistanceTo(target) <= reach
}

// consume eats or drinks at the goal's target.
func (s *Simulation) consume(a *agents.Agent, gc agents.GoalContext, g *agents.Goal) {
	r := s.WorldMap.Resource(g.TargetID)
	if r == nil || s.WorldMap.Harvest(r.ID, 1) == 0 {
		a.Memory.ForgetID(g.TargetID)
		a.Goals.AbandonCurrentGoal(gc, agents.KindAbandoned,
			fmt.Errorf("%w: %s", agents.ErrTargetGone, g.TargetID))
		return
	}

	mem := s.Tuning.Memory
	if g.Type == agents.GoalFindFood {
		agents.Satisfy(a, agents.DriveHunger, r.Attribute(world.AttrNutrition, mem.DefaultNutrition))
	} else {
		agents.Satisfy(a, agents.DriveThirst, r.Attribute(world.AttrCapacity, mem.DefaultCapacity))
	}
	a.Memory.Record(r, gc.Tick)
	a.Goals.CompleteCurrentGoal()
}

// gather walks to the nearest source of the goal's resource type and
// harvests one unit per tick. The goal engine completes the goal once the
// inventory holds enough.
func (s *Simulation) gather(a *agents.Agent, gc agents.GoalContext, g *agents.Goal) {
	src := s.WorldMap.Resource(g.TargetID)
	if src == nil || src.Depleted() {
		src = s.WorldMap.NearestWithTag(a.Position, g.TargetResourceType, s.Tuning.Population.GatherRadius)
		if src == nil {
			a.Goals.AbandonCurrentGoal(gc, agents.KindAbandoned,
				fmt.Errorf("%w: no %s nearby", agents.ErrTargetGone, g.TargetResourceType))
			return
		}
		pos := src.Position
		g.TargetID = src.ID
		g.TargetLocation = &pos
	}

	if !s.moveToward(a, g) {
		return
	}
	if s.WorldMap.Harvest(src.ID, 1) > 0 {
		a.Inventory.Add(crafting.Item{Type: g.TargetResourceType, Count: 1})
	}
}

// checkStarvation kills an agent whose hunger or thirst has sat at the
// ceiling for too long.
func (s *Simulation) checkStarvation(a *agents.Agent, tick uint64) {
	d := a.Drives
	if d.Hunger.Value < agents.DriveMax && d.Thirst.Value < agents.DriveMax {
		a.CriticalTicks = 0
		return
	}
	a.CriticalTicks++

	limit := s.Tuning.Drives.StarvationTicks
	if limit == 0 || a.CriticalTicks < limit {
		return
	}

	a.Alive = false
	cause := "starvation"
	if d.Thirst.Value >= agents.DriveMax {
		cause = "thirst"
	}
	s.emit(Event{
		Tick:        tick,
		Description: fmt.Sprintf("%s the %s has died of %s", a.Name, a.Species, cause),
		Category:    "death",
		Meta:        map[string]any{"agent_id": a.ID, "cause": cause},
	})
	slog.Info("agent died", "agent", a.Name, "cause", cause, "time", SimTime(tick))
}
