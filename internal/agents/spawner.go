// Agent spawning: creates the initial population on land hexes with
// randomized drives, empty memory and an idle goal engine.
package agents

import (
	"math/rand"

	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

// Species that can be spawned. Purely descriptive; every species shares
// the same drives and tolerances.
var Species = []string{"hare", "deer", "boar", "fox", "badger", "elk"}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
	cfg    tuning.Tuning
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64, cfg tuning.Tuning) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
		cfg:    cfg,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnPopulation scatters count agents over random land hexes.
func (s *Spawner) SpawnPopulation(m *world.Map, count int, tick uint64) []*Agent {
	land := world.LandCoords(m)
	if len(land) == 0 {
		return nil
	}

	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		coord := land[s.rng.Intn(len(land))]
		agents = append(agents, s.SpawnAt(coord.Center(m.HexSize), tick))
	}
	return agents
}

// SpawnAt creates one agent at pos. Drives start low: animals begin the
// world fed, watered and rested.
func (s *Spawner) SpawnAt(pos world.Position, tick uint64) *Agent {
	id := s.nextID
	s.nextID++

	a := &Agent{
		ID:      id,
		Name:    s.generateName(),
		Species: Species[s.rng.Intn(len(Species))],
		Position: world.Position{
			X: pos.X + (s.rng.Float64()-0.5)*0.5,
			Y: pos.Y + (s.rng.Float64()-0.5)*0.5,
		},
		Drives: NewDriveSet(s.cfg.Drives,
			10+s.rng.Float64()*30,
			10+s.rng.Float64()*30,
			s.rng.Float64()*30,
		),
		Behavior: BehaviorIdle,
		BornTick: tick,
		Alive:    true,
	}
	a.Drives.LastUpdate = tick
	Hydrate(a, s.cfg)
	return a
}

// Hydrate fills in what is not persisted or may be missing on an agent
// loaded from storage: tolerance tables, memory buckets, goal engine and
// inventory. Limits always come from cfg, so a restored agent follows the
// current tuning rather than the one it was saved under.
func Hydrate(a *Agent, cfg tuning.Tuning) {
	a.Tolerances = TolerancesFromTuning(cfg.Tolerances)
	if a.Memory == nil {
		a.Memory = NewResourceMemory(cfg.Memory)
	} else {
		a.Memory.Configure(cfg.Memory)
	}
	if a.Goals == nil {
		a.Goals = NewGoalEngine(cfg.Goals)
	} else {
		a.Goals.Timeout = cfg.Goals.Timeout
		a.Goals.ReviewInterval = cfg.Goals.ReviewInterval
	}
	if a.Inventory == nil {
		a.Inventory = crafting.NewInventory(nil)
	}
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := clanNames[s.rng.Intn(len(clanNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Kael", "Leif", "Nils", "Oswin", "Quinn", "Rowan",
	"Astrid", "Brenna", "Calla", "Elara", "Freya", "Greta", "Iris",
	"Juno", "Kira", "Mira", "Nessa", "Runa", "Thea", "Willa", "Fern",
}

var clanNames = []string{
	"Thornwood", "Blackwood", "Ashford", "Greenvale", "Stormcrow",
	"Frostborn", "Ravenmoor", "Silverdale", "Deepwell", "Brightwater",
	"Marshwood", "Riverstone", "Dawnridge", "Farrow", "Briar", "Holloway",
}
