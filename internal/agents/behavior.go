// Priority evaluation: every tick the agent scores each drive against its
// tolerance table, adds an exploration urge when it knows too little about
// its surroundings, and adopts the behavior of the strongest candidate.
package agents

import (
	"sort"

	"github.com/talgya/wildsim/internal/tuning"
)

// Tolerance converts a drive value into a priority. Thresholds[i] is the
// upper bound of tier i; a value above every threshold lands in the last
// tier.
type Tolerance struct {
	Thresholds []float64 `json:"thresholds"`
	Priorities []float64 `json:"priorities"`
}

// Tier returns the tier index for value, or -1 for an empty table.
func (t Tolerance) Tier(value float64) int {
	if len(t.Thresholds) == 0 {
		return -1
	}
	for i, th := range t.Thresholds {
		if value <= th {
			return i
		}
	}
	return len(t.Thresholds) - 1
}

// Priority returns the priority of value's tier, 0 when there is none.
func (t Tolerance) Priority(value float64) float64 {
	i := t.Tier(value)
	if i < 0 || i >= len(t.Priorities) {
		return 0
	}
	return t.Priorities[i]
}

// TolerancesFromTuning converts configured tolerance tables.
func TolerancesFromTuning(cfg map[string]tuning.Tolerance) map[DriveName]Tolerance {
	out := make(map[DriveName]Tolerance, len(cfg))
	for name, t := range cfg {
		out[DriveName(name)] = Tolerance{
			Thresholds: append([]float64(nil), t.Thresholds...),
			Priorities: append([]float64(nil), t.Priorities...),
		}
	}
	return out
}

// ActionCandidate is one entry of the action queue.
type ActionCandidate struct {
	Drive    DriveName `json:"drive"`
	Priority float64   `json:"priority"`
	Value    float64   `json:"value"`
}

// evaluatedDrives fixes the order candidates are produced in, which is
// also the tie-break order.
var evaluatedDrives = []DriveName{DriveHunger, DriveThirst, DriveRest}

var behaviorForDrive = map[DriveName]BehaviorState{
	DriveHunger:      BehaviorForaging,
	DriveThirst:      BehaviorSeekingWater,
	DriveRest:        BehaviorResting,
	DriveExploration: BehaviorExploring,
}

// BehaviorFor maps a candidate's drive to a behavior state.
func BehaviorFor(drive DriveName) BehaviorState {
	if b, ok := behaviorForDrive[drive]; ok {
		return b
	}
	return BehaviorIdle
}

// KnowledgeScore rates how much of its surroundings an agent knows:
// the mean over food, water and shelter of known/target, each capped at 1.
func KnowledgeScore(m *ResourceMemory, cfg tuning.Exploration) float64 {
	targets := map[ResourceKind]int{
		KindFood:    cfg.FoodTarget,
		KindWater:   cfg.WaterTarget,
		KindShelter: cfg.ShelterTarget,
	}
	total := 0.0
	for _, kind := range MemoryKinds {
		target := targets[kind]
		if target <= 0 {
			total += 1
			continue
		}
		total += min(1, float64(m.Count(kind))/float64(target))
	}
	return total / float64(len(MemoryKinds))
}

// EvaluatePriorities rebuilds the agent's action queue from scratch and
// sets its behavior state from the top candidate. The result depends only
// on drives, tolerances and memory, so repeated calls agree.
func EvaluatePriorities(a *Agent, cfg tuning.Exploration) BehaviorState {
	var queue []ActionCandidate

	for _, name := range evaluatedDrives {
		tol, ok := a.Tolerances[name]
		if !ok {
			continue
		}
		value, _ := a.Drives.Value(name)
		if p := tol.Priority(value); p > 0 {
			queue = append(queue, ActionCandidate{Drive: name, Priority: p, Value: value})
		}
	}

	score := KnowledgeScore(a.Memory, cfg)
	if a.Drives.Rest.Value < cfg.RestCeiling && score < cfg.Threshold {
		queue = append(queue, ActionCandidate{
			Drive:    DriveExploration,
			Priority: cfg.BasePriority + (1-score)*cfg.PriorityScale,
			Value:    score,
		})
	}

	// Stable: equal priorities keep the order they were produced in.
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Priority > queue[j].Priority
	})

	a.Actions = queue
	if len(queue) == 0 {
		a.Behavior = BehaviorIdle
	} else {
		a.Behavior = BehaviorFor(queue[0].Drive)
	}
	return a.Behavior
}
