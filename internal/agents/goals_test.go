package agents

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

type goalHarness struct {
	engine  *GoalEngine
	inv     *crafting.Inventory
	crafter Crafter
	reports []*GoalError
}

func newGoalHarness(t *testing.T) *goalHarness {
	t.Helper()
	catalog, err := crafting.NewCatalogFromTuning(tuning.Default().Recipes)
	require.NoError(t, err)
	return &goalHarness{
		engine:  NewGoalEngine(tuning.Default().Goals),
		inv:     crafting.NewInventory(nil),
		crafter: catalog,
	}
}

func (h *goalHarness) ctx(tick uint64) GoalContext {
	return GoalContext{
		Agent:     "Test Hare",
		Tick:      tick,
		Inventory: h.inv,
		Crafter:   h.crafter,
		Reporter:  GoalReporterFunc(func(err *GoalError) { h.reports = append(h.reports, err) }),
	}
}

// assertSinglePlacement checks every goal the engine holds sits in
// exactly one place.
func (h *goalHarness) assertSinglePlacement(t *testing.T) {
	t.Helper()
	seen := map[uuid.UUID]int{}
	if h.engine.Current != nil {
		seen[h.engine.Current.ID]++
	}
	for _, g := range h.engine.Queue {
		seen[g.ID]++
	}
	for _, d := range h.engine.Deferred {
		seen[d.Goal.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "goal %s held %d times", id, n)
	}
}

func TestRequestIsFIFO(t *testing.T) {
	h := newGoalHarness(t)
	a := h.engine.Request(&Goal{Type: GoalExplore})
	b := h.engine.Request(&Goal{Type: GoalRest})
	assert.NotEqual(t, uuid.Nil, a.ID)

	require.True(t, h.engine.EvaluateAndSetGoals(12))
	assert.Same(t, a, h.engine.Current)
	assert.Equal(t, uint64(12), a.StartTime)

	assert.False(t, h.engine.EvaluateAndSetGoals(13), "current goal is not replaced")

	assert.Same(t, a, h.engine.CompleteCurrentGoal())
	require.True(t, h.engine.EvaluateAndSetGoals(14))
	assert.Same(t, b, h.engine.Current)
}

func TestEngineState(t *testing.T) {
	h := newGoalHarness(t)
	assert.Equal(t, GoalStateIdle, h.engine.State())
	assert.Nil(t, h.engine.CompleteCurrentGoal())

	h.engine.Request(NewCraftGoal("craft_spear", 1))
	h.engine.Advance(h.ctx(1))
	assert.Equal(t, GoalStateActive, h.engine.State())

	h.engine.Current = nil
	assert.Equal(t, GoalStateDeferred, h.engine.State())
}

func TestTimeout(t *testing.T) {
	h := newGoalHarness(t)
	g := h.engine.Request(&Goal{Type: GoalExplore})
	h.engine.EvaluateAndSetGoals(0)

	assert.False(t, h.engine.CheckTimeout(h.ctx(100)), "exactly the timeout is still allowed")
	require.True(t, h.engine.CheckTimeout(h.ctx(101)))

	assert.Nil(t, h.engine.Current)
	require.Len(t, h.reports, 1)
	report := h.reports[0]
	assert.Equal(t, KindTimedOut, report.Kind)
	assert.Equal(t, g.ID, report.GoalID)
	assert.ErrorIs(t, report, ErrGoalTimeout)
	assert.True(t, errors.Is(report, &GoalError{Kind: KindTimedOut}))
	assert.False(t, errors.Is(report, &GoalError{Kind: KindAbandoned}))
}

func TestDecomposeOneSubGoalPerMissingType(t *testing.T) {
	h := newGoalHarness(t)
	h.inv.Add(crafting.Item{Type: "wood", Count: 2})

	nest := h.engine.Request(&Goal{
		Type:        GoalType("build"),
		Description: "build nest",
		Resources:   map[string]int{"wood": 2, "fiber": 1, "stone": 1},
	})
	h.engine.EvaluateAndSetGoals(1)

	deferred, err := h.engine.DecomposeCurrent(h.ctx(1))
	require.NoError(t, err)
	require.True(t, deferred)

	assert.Nil(t, h.engine.Current)
	require.Len(t, h.engine.Deferred, 1)
	assert.Same(t, nest, h.engine.Deferred[0].Goal)
	assert.Len(t, h.engine.Deferred[0].Pending, 2)

	require.Len(t, h.engine.Queue, 2)
	assert.Equal(t, "fiber", h.engine.Queue[0].TargetResourceType)
	assert.Equal(t, "stone", h.engine.Queue[1].TargetResourceType)
	for _, sub := range h.engine.Queue {
		assert.Equal(t, GoalGather, sub.Type)
		assert.Equal(t, nest.ID, sub.ParentID)
	}
	h.assertSinglePlacement(t)
}

func TestDecomposeSatisfiedGoalStays(t *testing.T) {
	h := newGoalHarness(t)
	h.inv.Add(crafting.Item{Type: "wood", Count: 2})
	h.engine.Request(&Goal{Type: GoalType("build"), Resources: map[string]int{"wood": 2}})
	h.engine.EvaluateAndSetGoals(1)

	deferred, err := h.engine.DecomposeCurrent(h.ctx(1))
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.NotNil(t, h.engine.Current)
	assert.Empty(t, h.engine.Deferred)
}

func TestCraftGoalPlansAndResumes(t *testing.T) {
	h := newGoalHarness(t)
	spear := h.engine.Request(NewCraftGoal("craft_spear", 10))

	h.engine.Advance(h.ctx(1))

	// spear → cordage (craft), stone, wood; cordage → fiber.
	require.NotNil(t, h.engine.Current)
	assert.Equal(t, GoalGather, h.engine.Current.Type)
	assert.Equal(t, "fiber", h.engine.Current.TargetResourceType)
	assert.Equal(t, "deferred", h.engine.Locate(spear.ID))
	require.Len(t, h.engine.Deferred, 2)
	assert.Len(t, h.engine.Deferred[0].Pending, 3)
	require.Len(t, h.engine.Queue, 2)
	assert.Equal(t, "stone", h.engine.Queue[0].TargetResourceType)
	assert.Equal(t, "wood", h.engine.Queue[1].TargetResourceType)
	h.assertSinglePlacement(t)

	h.inv.Add(crafting.Item{Type: "fiber", Count: 3})
	h.engine.Advance(h.ctx(2))
	assert.Equal(t, "stone", h.engine.Current.TargetResourceType)

	h.inv.Add(crafting.Item{Type: "stone", Count: 1})
	h.inv.Add(crafting.Item{Type: "wood", Count: 1})
	h.engine.Advance(h.ctx(3))
	assert.Nil(t, h.engine.Current)
	assert.Equal(t, GoalStateDeferred, h.engine.State())

	// Off the review interval nothing resumes.
	h.engine.Advance(h.ctx(4))
	assert.Len(t, h.engine.Deferred, 2)

	// Cordage resumes and is crafted; the spear still waits on it until now.
	h.engine.Advance(h.ctx(5))
	assert.Equal(t, 1, h.inv.Count("cordage"))
	assert.Zero(t, h.inv.Count("fiber"))
	require.Len(t, h.engine.Deferred, 1)
	assert.Same(t, spear, h.engine.Deferred[0].Goal)
	assert.Empty(t, h.engine.Deferred[0].Pending)
	assert.Zero(t, h.inv.Count("spear"))

	h.engine.Advance(h.ctx(10))
	assert.Equal(t, map[string]int{"spear": 1}, h.inv.Counts())
	assert.Equal(t, GoalStateIdle, h.engine.State())
	assert.Empty(t, h.engine.Queue)
	assert.Empty(t, h.reports)
}

func TestCraftSubGoalCoversDeficit(t *testing.T) {
	h := newGoalHarness(t)
	h.engine.Request(NewCraftGoal("craft_rope", 1))

	h.engine.Advance(h.ctx(1))

	// rope needs 2 cordage, so the cordage sub-goal crafts twice.
	require.Len(t, h.engine.Deferred, 2)
	cordage := h.engine.Deferred[1].Goal
	assert.Equal(t, "craft_cordage", cordage.RecipeID)
	assert.Equal(t, 2, cordage.Count)
	assert.Equal(t, map[string]int{"fiber": 6}, cordage.Resources)
	assert.Equal(t, []string{"rope", "cordage"}, h.engine.Current.Lineage)
}

func TestCraftWithInputsInHand(t *testing.T) {
	h := newGoalHarness(t)
	h.inv.Add(crafting.Item{Type: "fiber", Count: 5})
	h.engine.Request(NewCraftGoal("craft_cordage", 1))

	h.engine.Advance(h.ctx(1))

	assert.Equal(t, map[string]int{"fiber": 2, "cordage": 1}, h.inv.Counts())
	assert.Equal(t, GoalStateIdle, h.engine.State())
}

func TestUnresolvedRecipeIsAbandoned(t *testing.T) {
	h := newGoalHarness(t)
	h.inv.Add(crafting.Item{Type: "wood", Count: 1})
	h.engine.Request(NewCraftGoal("craft_castle", 1))

	h.engine.Advance(h.ctx(1))

	assert.Nil(t, h.engine.Current)
	require.Len(t, h.reports, 1)
	assert.Equal(t, KindUnresolvedRecipe, h.reports[0].Kind)
	assert.ErrorIs(t, h.reports[0], ErrUnresolvedRecipe)
	assert.Equal(t, map[string]int{"wood": 1}, h.inv.Counts())
}

func TestCycleIsAbandoned(t *testing.T) {
	h := newGoalHarness(t)
	g := NewCraftGoal("craft_cordage", 1)
	g.Lineage = []string{"fiber"}
	h.engine.Request(g)

	h.engine.Advance(h.ctx(1))

	assert.Equal(t, GoalStateIdle, h.engine.State())
	require.Len(t, h.reports, 1)
	assert.Equal(t, KindCycle, h.reports[0].Kind)
	assert.ErrorIs(t, h.reports[0], ErrGoalCycle)
}

type failingCrafter struct {
	*crafting.Catalog
}

func (failingCrafter) Craft(crafting.Recipe, crafting.Store) (crafting.Item, error) {
	return crafting.Item{}, crafting.ErrMissingInputs
}

func TestCraftFailureIsReported(t *testing.T) {
	h := newGoalHarness(t)
	h.crafter = failingCrafter{h.crafter.(*crafting.Catalog)}
	h.inv.Add(crafting.Item{Type: "fiber", Count: 3})
	h.engine.Request(NewCraftGoal("craft_cordage", 1))

	h.engine.Advance(h.ctx(1))

	require.Len(t, h.reports, 1)
	assert.Equal(t, KindCraftFailed, h.reports[0].Kind)
	assert.ErrorIs(t, h.reports[0], crafting.ErrMissingInputs)
	assert.Equal(t, 3, h.inv.Count("fiber"))
}

func TestAbandonedSubGoalDropsItsPlan(t *testing.T) {
	h := newGoalHarness(t)
	spear := h.engine.Request(NewCraftGoal("craft_spear", 1))
	explore := h.engine.Request(&Goal{Type: GoalExplore})
	h.engine.Advance(h.ctx(1))
	require.Equal(t, "fiber", h.engine.Current.TargetResourceType)

	h.engine.AbandonCurrentGoal(h.ctx(2), KindAbandoned, ErrTargetGone)

	require.Len(t, h.reports, 3)
	assert.ErrorIs(t, h.reports[0], ErrTargetGone)
	assert.ErrorIs(t, h.reports[1], ErrSubGoalFailed)
	assert.Equal(t, spear.ID, h.reports[2].GoalID)

	assert.Nil(t, h.engine.Current)
	assert.Empty(t, h.engine.Deferred)
	require.Len(t, h.engine.Queue, 1, "unrelated goals survive")
	assert.Same(t, explore, h.engine.Queue[0])
	assert.Equal(t, "", h.engine.Locate(spear.ID))
}

func TestReviewReplansWhenInputsWentMissing(t *testing.T) {
	h := newGoalHarness(t)
	h.engine.Request(&Goal{Type: GoalType("build"), Resources: map[string]int{"fiber": 1, "stone": 1}})
	h.engine.EvaluateAndSetGoals(1)
	_, err := h.engine.DecomposeCurrent(h.ctx(1))
	require.NoError(t, err)

	// Both sub-goals finish without the items arriving.
	for range 2 {
		h.engine.EvaluateAndSetGoals(2)
		h.engine.CompleteCurrentGoal()
	}
	require.Empty(t, h.engine.Deferred[0].Pending)

	h.engine.ReviewDeferred(h.ctx(5))

	assert.Len(t, h.engine.Deferred[0].Pending, 2)
	assert.Len(t, h.engine.Queue, 2)
	h.assertSinglePlacement(t)
}

func TestGoalForBehavior(t *testing.T) {
	cfg := tuning.Default().Exploration

	t.Run("foraging with known food", func(t *testing.T) {
		a := newTestAgent(t, 90, 0, 0)
		a.Memory.Record(testResource("far", 9, 0, "food"), 0)
		a.Memory.Record(testResource("near", 2, 0, "food"), 0)
		a.Behavior = BehaviorForaging

		g := GoalForBehavior(a, 1, cfg, nil)
		require.NotNil(t, g)
		assert.Equal(t, GoalFindFood, g.Type)
		assert.Equal(t, "near", g.TargetID)
		assert.Equal(t, world.Position{X: 2}, *g.TargetLocation)
	})

	t.Run("seeking water without memory explores", func(t *testing.T) {
		a := newTestAgent(t, 0, 90, 0)
		a.Behavior = BehaviorSeekingWater

		g := GoalForBehavior(a, 1, cfg, nil)
		require.NotNil(t, g)
		assert.Equal(t, GoalExplore, g.Type)
		assert.InDelta(t, cfg.Distance, a.Position.DistanceTo(*g.TargetLocation), 1e-9)
	})

	t.Run("resting without shelter stays put", func(t *testing.T) {
		a := newTestAgent(t, 0, 0, 90)
		a.Behavior = BehaviorResting

		g := GoalForBehavior(a, 1, cfg, nil)
		require.NotNil(t, g)
		assert.Equal(t, GoalRest, g.Type)
		assert.Nil(t, g.TargetLocation)
	})

	t.Run("nowhere to explore", func(t *testing.T) {
		a := newTestAgent(t, 0, 0, 0)
		a.Behavior = BehaviorExploring

		assert.Nil(t, GoalForBehavior(a, 1, cfg, func(world.Position) bool { return false }))
	})

	t.Run("idle", func(t *testing.T) {
		a := newTestAgent(t, 0, 0, 0)
		assert.Nil(t, GoalForBehavior(a, 1, cfg, nil))
	})
}
