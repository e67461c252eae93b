// Goals: one current goal, a FIFO queue of pending goals, and a deferred
// set of goals waiting on sub-goals. Composite goals whose resources are
// short are split into one sub-goal per missing resource type and parked
// until those sub-goals finish.
package agents

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

// GoalType enumerates what a goal asks the agent to do.
type GoalType string

const (
	GoalFindFood  GoalType = "find_food"
	GoalFindWater GoalType = "find_water"
	GoalRest      GoalType = "rest"
	GoalExplore   GoalType = "explore"
	GoalGather    GoalType = "gather" // Collect a resource type into the inventory
	GoalCraft     GoalType = "craft"  // Craft a recipe, gathering inputs first
)

// Goal is a unit of intent. Sub-goals point at their parent via ParentID.
type Goal struct {
	ID          uuid.UUID `json:"id"`
	Type        GoalType  `json:"type"`
	Priority    float64   `json:"priority"` // Advisory; the engine never reorders by it
	StartTime   uint64    `json:"start_time"`
	Description string    `json:"description"`

	TargetResourceType string          `json:"target_resource_type,omitempty"`
	TargetLocation     *world.Position `json:"target_location,omitempty"`
	TargetID           string          `json:"target_id,omitempty"`

	// Resources maps resource type → count the inventory must hold.
	Resources map[string]int `json:"resources,omitempty"`

	RecipeID string `json:"recipe_id,omitempty"`
	Count    int    `json:"count,omitempty"` // Crafts to perform

	ParentID uuid.UUID `json:"parent_id"`
	// Lineage lists what the goal's ancestors are producing.
	Lineage []string `json:"lineage,omitempty"`
}

// NewCraftGoal asks for one craft of recipeID.
func NewCraftGoal(recipeID string, priority float64) *Goal {
	return &Goal{
		ID:          uuid.New(),
		Type:        GoalCraft,
		Priority:    priority,
		RecipeID:    recipeID,
		Count:       1,
		Description: "craft " + recipeID,
	}
}

// NewGatherGoal asks for the inventory to hold count units of resourceType.
func NewGatherGoal(resourceType string, count int, priority float64) *Goal {
	return &Goal{
		ID:                 uuid.New(),
		Type:               GoalGather,
		Priority:           priority,
		TargetResourceType: resourceType,
		Resources:          map[string]int{resourceType: count},
		Description:        fmt.Sprintf("gather %d %s", count, resourceType),
	}
}

// DeferredGoal is a goal parked until its sub-goals finish.
type DeferredGoal struct {
	Goal    *Goal       `json:"goal"`
	Pending []uuid.UUID `json:"pending"` // Sub-goals not yet completed
	Since   uint64      `json:"since"`
}

// GoalState summarizes the engine.
type GoalState string

const (
	GoalStateIdle     GoalState = "idle"     // Nothing current, nothing deferred
	GoalStateActive   GoalState = "active"   // A current goal is being pursued
	GoalStateDeferred GoalState = "deferred" // Nothing current, work is parked
)

// Crafter resolves and performs recipes.
type Crafter interface {
	Resolve(recipeID string) (crafting.Recipe, bool)
	RecipeFor(itemType string) (crafting.Recipe, bool)
	Craft(r crafting.Recipe, store crafting.Store) (crafting.Item, error)
}

// GoalContext carries everything the engine needs for one call. The
// engine keeps no references to it between calls.
type GoalContext struct {
	Agent     string
	Tick      uint64
	Inventory crafting.Store
	Crafter   Crafter
	Reporter  GoalReporter // May be nil

	// OnCraft, if set, is called after a craft goal produced its output.
	OnCraft func(r crafting.Recipe, crafts int)
}

// maxResolveSteps bounds how many goals can be settled in one Advance.
const maxResolveSteps = 8

// GoalEngine holds an agent's goals.
type GoalEngine struct {
	Current  *Goal           `json:"current"`
	Queue    []*Goal         `json:"queue"`
	Deferred []*DeferredGoal `json:"deferred"`

	Timeout        uint64 `json:"timeout"`
	ReviewInterval uint64 `json:"review_interval"`
}

// NewGoalEngine creates an idle engine.
func NewGoalEngine(cfg tuning.Goals) *GoalEngine {
	return &GoalEngine{
		Timeout:        cfg.Timeout,
		ReviewInterval: cfg.ReviewInterval,
	}
}

// State reports whether the engine is idle, active or only holding
// deferred work.
func (e *GoalEngine) State() GoalState {
	switch {
	case e.Current != nil:
		return GoalStateActive
	case len(e.Deferred) > 0:
		return GoalStateDeferred
	default:
		return GoalStateIdle
	}
}

// Locate returns where a goal sits: "current", "queued", "deferred", or
// "" when the engine does not hold it.
func (e *GoalEngine) Locate(id uuid.UUID) string {
	if e.Current != nil && e.Current.ID == id {
		return "current"
	}
	for _, g := range e.Queue {
		if g.ID == id {
			return "queued"
		}
	}
	if e.deferredIndex(id) >= 0 {
		return "deferred"
	}
	return ""
}

// Request appends a goal to the back of the queue.
func (e *GoalEngine) Request(g *Goal) *Goal {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	e.Queue = append(e.Queue, g)
	return g
}

// EvaluateAndSetGoals promotes the head of the queue when nothing is
// current. Returns true when a goal was promoted.
func (e *GoalEngine) EvaluateAndSetGoals(tick uint64) bool {
	if e.Current != nil || len(e.Queue) == 0 {
		return false
	}
	g := e.Queue[0]
	e.Queue = slices.Delete(e.Queue, 0, 1)
	g.StartTime = tick
	e.Current = g
	return true
}

// CompleteCurrentGoal clears the current goal and returns it. A completed
// sub-goal is crossed off its parent's pending list.
func (e *GoalEngine) CompleteCurrentGoal() *Goal {
	g := e.Current
	if g == nil {
		return nil
	}
	e.Current = nil

	if i := e.deferredIndex(g.ParentID); i >= 0 {
		d := e.Deferred[i]
		d.Pending = slices.DeleteFunc(d.Pending, func(id uuid.UUID) bool { return id == g.ID })
	}
	return g
}

// AbandonCurrentGoal clears the current goal without touching the
// inventory and reports it. Deferred ancestors of an abandoned sub-goal
// are abandoned too, along with the rest of their plan.
func (e *GoalEngine) AbandonCurrentGoal(gc GoalContext, kind GoalErrorKind, cause error) {
	g := e.Current
	if g == nil {
		return
	}
	e.Current = nil
	e.report(gc, g, kind, cause)
	e.abandonAncestors(gc, g)
}

// CheckTimeout abandons the current goal once it has been current for
// more than Timeout ticks.
func (e *GoalEngine) CheckTimeout(gc GoalContext) bool {
	g := e.Current
	if g == nil || gc.Tick < g.StartTime || gc.Tick-g.StartTime <= e.Timeout {
		return false
	}
	e.AbandonCurrentGoal(gc, KindTimedOut,
		fmt.Errorf("%w after %d ticks", ErrGoalTimeout, gc.Tick-g.StartTime))
	return true
}

// DecomposeCurrent splits the current goal into sub-goals when its
// resources are short and parks it. Returns true when it was deferred.
func (e *GoalEngine) DecomposeCurrent(gc GoalContext) (bool, error) {
	if e.Current == nil {
		return false, nil
	}
	return e.decompose(gc, e.Current)
}

func (e *GoalEngine) decompose(gc GoalContext, g *Goal) (bool, error) {
	subs, err := e.plan(gc, g, counts(gc.Inventory))
	if err != nil || len(subs) == 0 {
		return false, err
	}

	ids := make([]uuid.UUID, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	e.Queue = append(subs, e.Queue...)
	e.Deferred = append(e.Deferred, &DeferredGoal{Goal: g, Pending: ids, Since: gc.Tick})
	if e.Current == g {
		e.Current = nil
	}
	return true, nil
}

// plan returns one sub-goal per resource type the inventory is short of,
// in sorted type order. Types with a recipe become craft sub-goals, the
// rest gather sub-goals.
func (e *GoalEngine) plan(gc GoalContext, g *Goal, have map[string]int) ([]*Goal, error) {
	missing := missingTypes(g.Resources, have)
	if len(missing) == 0 {
		return nil, nil
	}

	lineage := g.Lineage
	if g.Type == GoalCraft && g.TargetResourceType != "" {
		lineage = append(slices.Clone(lineage), g.TargetResourceType)
	}

	subs := make([]*Goal, 0, len(missing))
	for _, t := range missing {
		if slices.Contains(lineage, t) {
			return nil, fmt.Errorf("%w: %s needs %s", ErrGoalCycle, g.Description, t)
		}

		need := g.Resources[t]
		var sub *Goal
		if gc.Crafter != nil {
			if r, ok := gc.Crafter.RecipeFor(t); ok {
				per := max(r.OutputCount, 1)
				sub = NewCraftGoal(r.ID, g.Priority)
				sub.Count = (need - have[t] + per - 1) / per
				sub.Description = fmt.Sprintf("craft %s for %s", r.ID, g.Description)
			}
		}
		if sub == nil {
			sub = NewGatherGoal(t, need, g.Priority)
		}
		sub.ParentID = g.ID
		sub.Lineage = lineage
		subs = append(subs, sub)
	}
	return subs, nil
}

// ReviewDeferred re-examines deferred goals every ReviewInterval ticks.
// A goal whose sub-goals are all done goes back to the front of the queue
// once its resources are in hand; if they are still short it is planned
// again.
func (e *GoalEngine) ReviewDeferred(gc GoalContext) {
	if len(e.Deferred) == 0 {
		return
	}
	if e.ReviewInterval > 0 && gc.Tick%e.ReviewInterval != 0 {
		return
	}

	have := counts(gc.Inventory)
	var ready, failed []*DeferredGoal
	for _, d := range e.Deferred {
		if len(d.Pending) > 0 {
			continue
		}
		if len(missingTypes(d.Goal.Resources, have)) == 0 {
			ready = append(ready, d)
			continue
		}
		subs, err := e.plan(gc, d.Goal, have)
		if err != nil {
			failed = append(failed, d)
			continue
		}
		for _, s := range subs {
			d.Pending = append(d.Pending, s.ID)
		}
		e.Queue = append(subs, e.Queue...)
	}

	resumed := make([]*Goal, 0, len(ready))
	for _, d := range ready {
		e.removeDeferred(d.Goal.ID)
		resumed = append(resumed, d.Goal)
	}
	e.Queue = append(resumed, e.Queue...)

	for _, d := range failed {
		if e.deferredIndex(d.Goal.ID) < 0 {
			continue // Already dropped with an earlier failure's ancestors
		}
		e.removeDeferred(d.Goal.ID)
		e.report(gc, d.Goal, KindCycle, ErrGoalCycle)
		e.abandonAncestors(gc, d.Goal)
	}
}

// Advance runs one tick of the engine: timeout, deferred review, then
// promotes and settles goals until one needs the agent to act.
func (e *GoalEngine) Advance(gc GoalContext) {
	e.CheckTimeout(gc)
	e.ReviewDeferred(gc)

	for step := 0; step < maxResolveSteps; step++ {
		if e.Current == nil && !e.EvaluateAndSetGoals(gc.Tick) {
			return
		}
		if !e.settleCurrent(gc) {
			return
		}
	}
}

// settleCurrent resolves goals the engine can finish on its own. Returns
// true when the current goal left (completed, deferred or abandoned).
func (e *GoalEngine) settleCurrent(gc GoalContext) bool {
	g := e.Current
	switch g.Type {
	case GoalCraft:
		return e.settleCraft(gc, g)
	case GoalGather:
		if counts(gc.Inventory)[g.TargetResourceType] >= g.Resources[g.TargetResourceType] {
			e.CompleteCurrentGoal()
			return true
		}
	}
	return false
}

func (e *GoalEngine) settleCraft(gc GoalContext, g *Goal) bool {
	var recipe crafting.Recipe
	ok := false
	if gc.Crafter != nil {
		recipe, ok = gc.Crafter.Resolve(g.RecipeID)
	}
	if !ok {
		e.AbandonCurrentGoal(gc, KindUnresolvedRecipe, fmt.Errorf("%w: %q", ErrUnresolvedRecipe, g.RecipeID))
		return true
	}

	crafts := max(g.Count, 1)
	g.TargetResourceType = recipe.Output
	g.Resources = make(map[string]int, len(recipe.Inputs))
	for t, n := range recipe.Inputs {
		g.Resources[t] = n * crafts
	}

	deferred, err := e.decompose(gc, g)
	if err != nil {
		e.AbandonCurrentGoal(gc, KindCycle, err)
		return true
	}
	if deferred {
		return true
	}

	if gc.Inventory == nil {
		e.AbandonCurrentGoal(gc, KindCraftFailed, fmt.Errorf("craft %s: no inventory", recipe.ID))
		return true
	}
	for i := 0; i < crafts; i++ {
		item, err := gc.Crafter.Craft(recipe, gc.Inventory)
		if err != nil {
			e.AbandonCurrentGoal(gc, KindCraftFailed, err)
			return true
		}
		gc.Inventory.Add(item)
	}
	if gc.OnCraft != nil {
		gc.OnCraft(recipe, crafts)
	}
	e.CompleteCurrentGoal()
	return true
}

// abandonAncestors drops every deferred ancestor of g, reporting each,
// and removes the whole plan under the top-most one.
func (e *GoalEngine) abandonAncestors(gc GoalContext, g *Goal) {
	root := uuid.Nil
	for pid := g.ParentID; pid != uuid.Nil; {
		i := e.deferredIndex(pid)
		if i < 0 {
			break
		}
		parent := e.Deferred[i].Goal
		e.report(gc, parent, KindAbandoned, fmt.Errorf("%w: %s", ErrSubGoalFailed, g.Description))
		root = pid
		pid = parent.ParentID
	}
	if root != uuid.Nil {
		e.removeTree(root)
	}
}

// removeTree removes a deferred goal and every queued or deferred goal
// descending from it.
func (e *GoalEngine) removeTree(rootID uuid.UUID) {
	doomed := map[uuid.UUID]bool{rootID: true}
	for changed := true; changed; {
		changed = false
		for _, g := range e.Queue {
			if doomed[g.ParentID] && !doomed[g.ID] {
				doomed[g.ID] = true
				changed = true
			}
		}
		for _, d := range e.Deferred {
			if doomed[d.Goal.ParentID] && !doomed[d.Goal.ID] {
				doomed[d.Goal.ID] = true
				changed = true
			}
		}
	}
	e.Queue = slices.DeleteFunc(e.Queue, func(g *Goal) bool { return doomed[g.ID] })
	e.Deferred = slices.DeleteFunc(e.Deferred, func(d *DeferredGoal) bool { return doomed[d.Goal.ID] })
	if e.Current != nil && doomed[e.Current.ID] {
		e.Current = nil
	}
}

func (e *GoalEngine) removeDeferred(id uuid.UUID) {
	e.Deferred = slices.DeleteFunc(e.Deferred, func(d *DeferredGoal) bool { return d.Goal.ID == id })
}

func (e *GoalEngine) deferredIndex(id uuid.UUID) int {
	if id == uuid.Nil {
		return -1
	}
	return slices.IndexFunc(e.Deferred, func(d *DeferredGoal) bool { return d.Goal.ID == id })
}

func (e *GoalEngine) report(gc GoalContext, g *Goal, kind GoalErrorKind, cause error) {
	if gc.Reporter == nil {
		return
	}
	gc.Reporter.GoalFailed(&GoalError{
		Kind:     kind,
		Agent:    gc.Agent,
		GoalID:   g.ID,
		GoalType: g.Type,
		Tick:     gc.Tick,
		Err:      cause,
	})
}

func counts(store crafting.Store) map[string]int {
	if store == nil {
		return map[string]int{}
	}
	return store.Counts()
}

// missingTypes returns the sorted resource types with have < need.
func missingTypes(need, have map[string]int) []string {
	var out []string
	for t, n := range need {
		if have[t] < n {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// GoalForBehavior turns the agent's behavior state into a goal when it
// has nothing else to do. Foraging and seeking water head for the closest
// remembered source and explore when none is known; resting uses a
// remembered shelter if there is one. walkable may be nil.
func GoalForBehavior(a *Agent, tick uint64, cfg tuning.Exploration, walkable func(world.Position) bool) *Goal {
	priority := 0.0
	if len(a.Actions) > 0 {
		priority = a.Actions[0].Priority
	}

	switch a.Behavior {
	case BehaviorForaging:
		if entry, ok := a.Memory.Recall(KindFood, a.Position, true); ok {
			return targetGoal(GoalFindFood, KindFood, entry, priority, "forage at remembered food")
		}
		return exploreGoal(a, tick, cfg, priority, walkable)
	case BehaviorSeekingWater:
		if entry, ok := a.Memory.Recall(KindWater, a.Position, true); ok {
			return targetGoal(GoalFindWater, KindWater, entry, priority, "drink at remembered water")
		}
		return exploreGoal(a, tick, cfg, priority, walkable)
	case BehaviorResting:
		if entry, ok := a.Memory.Recall(KindShelter, a.Position, true); ok {
			return targetGoal(GoalRest, KindShelter, entry, priority, "rest at shelter")
		}
		return &Goal{ID: uuid.New(), Type: GoalRest, Priority: priority, Description: "rest in place"}
	case BehaviorExploring:
		return exploreGoal(a, tick, cfg, priority, walkable)
	}
	return nil
}

func targetGoal(t GoalType, kind ResourceKind, entry MemoryEntry, priority float64, desc string) *Goal {
	pos := entry.Position()
	return &Goal{
		ID:                 uuid.New(),
		Type:               t,
		Priority:           priority,
		TargetResourceType: string(kind),
		TargetLocation:     &pos,
		TargetID:           entry.ID,
		Description:        desc,
	}
}

// exploreGoal picks a point cfg.Distance away in a direction derived from
// the agent id and tick, turning a quarter at a time when it is not
// walkable.
func exploreGoal(a *Agent, tick uint64, cfg tuning.Exploration, priority float64, walkable func(world.Position) bool) *Goal {
	angle := float64((uint64(a.ID)*2654435761+tick)%360) * math.Pi / 180
	for turn := 0; turn < 4; turn++ {
		target := world.Position{
			X: a.Position.X + cfg.Distance*math.Cos(angle),
			Y: a.Position.Y + cfg.Distance*math.Sin(angle),
		}
		if walkable == nil || walkable(target) {
			return &Goal{
				ID:             uuid.New(),
				Type:           GoalExplore,
				Priority:       priority,
				TargetLocation: &target,
				Description:    "explore",
			}
		}
		angle += math.Pi / 2
	}
	return nil
}
