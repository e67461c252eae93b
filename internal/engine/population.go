// Population dynamics: newcomers keep the world from emptying out.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/wildsim/internal/agents"
)

// processPopulation runs daily: when fewer agents are alive than the
// configured floor, newcomers wander in from the edge of the map.
func (s *Simulation) processPopulation(tick uint64) {
	if s.Spawner == nil {
		return
	}

	alive := 0
	for _, a := range s.Agents {
		if a.Alive {
			alive++
		}
	}

	needed := s.Tuning.Population.Floor - alive
	if needed <= 0 {
		return
	}

	for _, a := range s.Spawner.SpawnPopulation(s.WorldMap, needed, tick) {
		s.addAgent(a)
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s the %s wanders in", a.Name, a.Species),
			Category:    "arrival",
			Meta:        map[string]any{"agent_id": a.ID},
		})
		s.Stats.Arrivals++
	}
	slog.Info("newcomers arrived", "count", needed, "alive_before", alive, "time", SimTime(tick))
}

// addAgent registers a new agent in all indexes.
func (s *Simulation) addAgent(a *agents.Agent) {
	agents.Hydrate(a, s.Tuning)
	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID] = a
}
