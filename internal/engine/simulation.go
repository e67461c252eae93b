// Simulation ties together the world and its agents and runs them each tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentDead     = errors.New("agent is dead")
)

// Simulation holds the complete world state and wires systems together.
// Every exported method is safe to call from other goroutines; callers
// that touch fields directly must go through Read.
type Simulation struct {
	mu sync.RWMutex

	WorldMap   *world.Map
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent
	Events     []Event // Most recent events, oldest first
	LastTick   uint64  // Most recent tick processed

	// Season tracking (0=Spring, 1=Summer, 2=Autumn, 3=Winter).
	CurrentSeason uint8

	Tuning  tuning.Tuning
	Catalog *crafting.Catalog

	// Agent spawner for newcomers when the population runs low.
	Spawner *agents.Spawner

	// Reporter receives every dropped goal in addition to the event log.
	Reporter agents.GoalReporter
	Tracer   trace.Tracer // nil uses the global provider

	nextEventID uint64

	// Idle crafting bookkeeping: the goal each agent last took up on its
	// own, and the sim hour in which such a goal last failed.
	idleGoalID     map[agents.AgentID]uuid.UUID
	idleFailedHour map[agents.AgentID]uint64

	// Event stream subscribers, guarded by subMu rather than mu so a slow
	// reader never holds up a tick.
	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	// Statistics refreshed hourly.
	Stats SimStats
}

// Event is a notable occurrence in the world.
type Event struct {
	ID          uint64         `json:"id"`
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "goal", "death", "arrival", "craft", ...
	Meta        map[string]any `json:"meta,omitempty"`
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	TotalPopulation int                          `json:"total_population"`
	Deaths          int                          `json:"deaths"`
	Arrivals        int                          `json:"arrivals"`
	GoalFailures    int                          `json:"goal_failures"`
	Behaviors       map[agents.BehaviorState]int `json:"behaviors"`
	AvgHunger       float64                      `json:"avg_hunger"`
	AvgThirst       float64                      `json:"avg_thirst"`
	AvgRest         float64                      `json:"avg_rest"`
	ItemsHeld       int                          `json:"items_held"`
}

// NewSimulation creates a Simulation from generated components. Agents
// loaded from storage are hydrated with the current tuning.
func NewSimulation(m *world.Map, ag []*agents.Agent, cfg tuning.Tuning, catalog *crafting.Catalog) *Simulation {
	index := make(map[agents.AgentID]*agents.Agent, len(ag))
	for _, a := range ag {
		agents.Hydrate(a, cfg)
		index[a.ID] = a
	}

	sim := &Simulation{
		WorldMap:    m,
		Agents:      ag,
		AgentIndex:  index,
		Tuning:      cfg,
		Catalog:     catalog,
		nextEventID: 1,

		idleGoalID:     make(map[agents.AgentID]uuid.UUID),
		idleFailedHour: make(map[agents.AgentID]uint64),
	}
	sim.updateStats()
	return sim
}

// Read runs fn while holding the read lock.
func (s *Simulation) Read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// SetNextEventID continues event numbering after a restore.
func (s *Simulation) SetNextEventID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.nextEventID {
		s.nextEventID = id
	}
}

// EmitEvent appends an event to the log.
func (s *Simulation) EmitEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(e)
}

func (s *Simulation) emit(e Event) {
	e.ID = s.nextEventID
	s.nextEventID++
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.publish(e)
}

// Subscribe returns a channel receiving every event emitted from now on.
// Events are dropped for a subscriber whose buffer is full.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe closes and removes a subscription.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Simulation) publish(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// TickMinute runs every tick (1 sim-minute): each living agent perceives,
// decides and acts, one after another.
func (s *Simulation) TickMinute(tick uint64) {
	_, span := s.tracer().Start(context.Background(), "simulation.tick",
		trace.WithAttributes(attribute.Int64("tick", int64(tick))))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	alive := 0
	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		s.stepAgent(a, tick)
		if a.Alive {
			alive++
		}
	}
	span.SetAttributes(attribute.Int("agents.alive", alive))
}

// TickHour runs every sim-hour: statistics refresh.
func (s *Simulation) TickHour(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()
	slog.Debug("hourly summary",
		"time", SimTime(tick),
		"alive", s.Stats.TotalPopulation,
		"behaviors", s.Stats.Behaviors,
	)
}

// TickDay runs every sim-day: regrowth, population floor, daily summary.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regrowResources(tick)
	s.processPopulation(tick)
	s.updateStats()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}

	slog.Info("daily report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick),
		"alive", s.Stats.TotalPopulation,
		"deaths", s.Stats.Deaths,
		"arrivals", s.Stats.Arrivals,
		"goal_failures", s.Stats.GoalFailures,
		"avg_hunger", fmt.Sprintf("%.1f", s.Stats.AvgHunger),
		"avg_thirst", fmt.Sprintf("%.1f", s.Stats.AvgThirst),
		"avg_rest", fmt.Sprintf("%.1f", s.Stats.AvgRest),
		"items_held", s.Stats.ItemsHeld,
		"events_goal", eventCounts["goal"],
		"events_craft", eventCounts["craft"],
		"events_death", eventCounts["death"],
	)
}

// RequestGoal queues an explicit craft goal for an agent and returns a
// copy of it.
func (s *Simulation) RequestGoal(id agents.AgentID, recipeID string) (agents.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.AgentIndex[id]
	if !ok {
		return agents.Goal{}, fmt.Errorf("agent %d: %w", id, ErrAgentNotFound)
	}
	if !a.Alive {
		return agents.Goal{}, fmt.Errorf("agent %d: %w", id, ErrAgentDead)
	}
	if _, ok := s.Catalog.Resolve(recipeID); !ok {
		return agents.Goal{}, fmt.Errorf("recipe %q: %w", recipeID, crafting.ErrUnknownRecipe)
	}

	g := a.Goals.Request(agents.NewCraftGoal(recipeID, 0))
	slog.Info("goal requested", "agent", a.Name, "recipe", recipeID, "goal_id", g.ID)
	return *g, nil
}

func (s *Simulation) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer("github.com/talgya/wildsim/internal/engine")
}

func (s *Simulation) updateStats() {
	stats := SimStats{Behaviors: make(map[agents.BehaviorState]int)}
	stats.Arrivals = s.Stats.Arrivals
	stats.GoalFailures = s.Stats.GoalFailures

	for _, a := range s.Agents {
		if !a.Alive {
			stats.Deaths++
			continue
		}
		stats.TotalPopulation++
		stats.Behaviors[a.Behavior]++
		stats.AvgHunger += a.Drives.Hunger.Value
		stats.AvgThirst += a.Drives.Thirst.Value
		stats.AvgRest += a.Drives.Rest.Value
		for _, n := range a.Inventory.Counts() {
			stats.ItemsHeld += n
		}
	}
	if n := float64(stats.TotalPopulation); n > 0 {
		stats.AvgHunger /= n
		stats.AvgThirst /= n
		stats.AvgRest /= n
	}
	s.Stats = stats
}
