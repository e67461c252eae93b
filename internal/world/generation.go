// World generation using layered simplex noise.
// Generates elevation and rainfall, derives terrain, then scatters the
// resource points agents forage, drink, shelter and gather from.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/wildsim/internal/tuning"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius
	Seed        int64   // Random seed (0 = random)
	SeaLevel    float64 // Elevation threshold for ocean (0.0–1.0)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)
	HexSize     float64 // Cartesian spacing of hex centers
}

// GenConfigFromTuning maps the world section of the tuning file.
func GenConfigFromTuning(t tuning.World) GenConfig {
	return GenConfig{
		Radius:      t.Radius,
		Seed:        t.Seed,
		SeaLevel:    t.SeaLevel,
		MountainLvl: t.MountainLvl,
		HexSize:     t.HexSize,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:      5,
		Seed:        42,
		SeaLevel:    0.30,
		MountainLvl: 0.75,
		HexSize:     1,
	}
}

// resourceNamespace seeds the name-based resource ids so a given seed
// always yields the same ids.
var resourceNamespace = uuid.MustParse("6f1c1e4a-8a52-4d1b-9a56-2f0b7f4c9e11")

// Generate creates a complete world map with terrain and resources.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Radius, cfg.HexSize)

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Sample noise on the unit-size layout so terrain shape does
			// not depend on HexSize.
			c := coord.Center(1)
			elev := octaveNoise(elevNoise, c.X, c.Y, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, c.X, c.Y, 3, 0.06, 0.5)

			// Continental shaping: reduce elevation near edges to create ocean border.
			distFromCenter := math.Sqrt(c.X*c.X+c.Y*c.Y) / float64(cfg.Radius)
			edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			m.Set(&Hex{
				Coord:     coord,
				Terrain:   deriveTerrain(elev, rain, cfg),
				Elevation: elev,
				Rainfall:  rain,
			})
		}
	}

	markCoastalHexes(m)
	placeRivers(m, seed)
	scatterResources(m, seed)

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainOcean
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if rain > 0.7 && elev < 0.45 {
		return TerrainMarsh
	}
	if rain > 0.45 && elev > 0.4 {
		return TerrainForest
	}
	return TerrainPlains
}

// markCoastalHexes converts low land hexes adjacent to ocean into coast.
func markCoastalHexes(m *Map) {
	var toMark []HexCoord

	for coord, hex := range m.Hexes {
		if hex.Terrain == TerrainOcean {
			continue
		}
		for _, neighbor := range coord.Neighbors() {
			nh := m.Get(neighbor)
			if nh != nil && nh.Terrain == TerrainOcean {
				toMark = append(toMark, coord)
				break
			}
		}
	}

	for _, coord := range toMark {
		hex := m.Get(coord)
		if (hex.Terrain == TerrainPlains || hex.Terrain == TerrainForest) && hex.Elevation < 0.5 {
			hex.Terrain = TerrainCoast
		}
	}
}

// placeRivers traces paths from high elevation toward the sea.
func placeRivers(m *Map, seed int64) {
	rng := rand.New(rand.NewSource(seed + 100))

	var sources []HexCoord
	for _, coord := range sortedCoords(m) {
		hex := m.Get(coord)
		if hex.Elevation > 0.6 && hex.Terrain != TerrainOcean {
			sources = append(sources, coord)
		}
	}

	numRivers := min(max(len(sources)/8, 2), 6)

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > numRivers {
		sources = sources[:numRivers]
	}

	for _, start := range sources {
		traceRiver(m, start)
	}
}

// traceRiver follows the steepest descent from a source hex until reaching
// ocean or running out of downhill path.
func traceRiver(m *Map, start HexCoord) {
	current := start
	visited := make(map[HexCoord]bool)

	for step := 0; step < 50; step++ {
		visited[current] = true
		hex := m.Get(current)
		if hex == nil || hex.Terrain == TerrainOcean {
			break
		}

		if hex.Terrain != TerrainMountain && hex.Terrain != TerrainCoast {
			hex.Terrain = TerrainRiver
		}

		var next *HexCoord
		bestElev := hex.Elevation
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			nh := m.Get(nc)
			if nh != nil && nh.Elevation < bestElev {
				bestElev = nh.Elevation
				c := nc
				next = &c
			}
		}
		if next == nil {
			break
		}
		current = *next
	}
}

// resourceSpec is one kind of point a terrain can carry.
type resourceSpec struct {
	tags     []string
	chance   float64
	quantity int
	attrs    func(hex *Hex, rng *rand.Rand) map[string]float64
}

var terrainResources = map[Terrain][]resourceSpec{
	TerrainPlains: {
		{tags: []string{TagFood}, chance: 0.35, quantity: 12, attrs: nutrition(15, 10)},
		{tags: []string{TagFiber}, chance: 0.5, quantity: 20},
	},
	TerrainForest: {
		{tags: []string{TagFood}, chance: 0.4, quantity: 10, attrs: nutrition(20, 15)},
		{tags: []string{TagWood}, chance: 0.7, quantity: 25},
		{tags: []string{TagShelter}, chance: 0.15, quantity: Inexhaustible, attrs: security(30, 30)},
	},
	TerrainMountain: {
		{tags: []string{TagStone}, chance: 0.7, quantity: 30},
		{tags: []string{TagShelter}, chance: 0.3, quantity: Inexhaustible, attrs: security(60, 30)},
	},
	TerrainCoast: {
		{tags: []string{TagWater}, chance: 0.3, quantity: Inexhaustible, attrs: capacity(40, 30)},
		{tags: []string{TagFood}, chance: 0.2, quantity: 8, attrs: nutrition(25, 10)},
	},
	TerrainRiver: {
		{tags: []string{TagWater}, chance: 0.8, quantity: Inexhaustible, attrs: capacity(60, 40)},
		{tags: []string{TagFiber}, chance: 0.3, quantity: 15},
	},
	TerrainMarsh: {
		{tags: []string{TagWater}, chance: 0.6, quantity: Inexhaustible, attrs: capacity(30, 20)},
		{tags: []string{TagFiber}, chance: 0.6, quantity: 25},
	},
}

func nutrition(base, spread float64) func(*Hex, *rand.Rand) map[string]float64 {
	return func(hex *Hex, rng *rand.Rand) map[string]float64 {
		return map[string]float64{AttrNutrition: base + hex.Rainfall*spread*rng.Float64()}
	}
}

func capacity(base, spread float64) func(*Hex, *rand.Rand) map[string]float64 {
	return func(hex *Hex, rng *rand.Rand) map[string]float64 {
		return map[string]float64{AttrCapacity: base + spread*rng.Float64()}
	}
}

func security(base, spread float64) func(*Hex, *rand.Rand) map[string]float64 {
	return func(hex *Hex, rng *rand.Rand) map[string]float64 {
		return map[string]float64{AttrSecurity: base + hex.Elevation*spread}
	}
}

// scatterResources places resource points on land hexes. Each point sits
// at a jittered offset from its hex center.
func scatterResources(m *Map, seed int64) {
	rng := rand.New(rand.NewSource(seed + 200))

	for _, coord := range sortedCoords(m) {
		hex := m.Get(coord)
		center := coord.Center(m.HexSize)
		for _, spec := range terrainResources[hex.Terrain] {
			if rng.Float64() >= spec.chance {
				continue
			}
			jitter := m.HexSize * 0.35
			r := &Resource{
				ID: uuid.NewSHA1(resourceNamespace,
					[]byte(fmt.Sprintf("%d:%d:%d:%s", seed, coord.Q, coord.R, spec.tags[0]))).String(),
				Position: Position{
					X: center.X + (rng.Float64()*2-1)*jitter,
					Y: center.Y + (rng.Float64()*2-1)*jitter,
				},
				Tags:     spec.tags,
				Quantity: spec.quantity,
			}
			if spec.quantity != Inexhaustible {
				r.MaxQuantity = spec.quantity
			}
			if spec.attrs != nil {
				r.Attributes = spec.attrs(hex, rng)
			}
			m.AddResource(r)
		}
	}
}

// sortedCoords returns all coordinates in (q, r) order so generation does
// not depend on map iteration order.
func sortedCoords(m *Map) []HexCoord {
	coords := make([]HexCoord, 0, len(m.Hexes))
	for c := range m.Hexes {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Q != coords[j].Q {
			return coords[i].Q < coords[j].Q
		}
		return coords[i].R < coords[j].R
	})
	return coords
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// LandCoords returns every non-ocean coordinate in deterministic order.
func LandCoords(m *Map) []HexCoord {
	var out []HexCoord
	for _, c := range sortedCoords(m) {
		if m.Get(c).Terrain != TerrainOcean {
			out = append(out, c)
		}
	}
	return out
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, hex := range m.Hexes {
		counts[hex.Terrain]++
	}
	return counts
}

// TagCounts returns how many resource points carry each tag.
func TagCounts(m *Map) map[string]int {
	counts := make(map[string]int)
	for _, r := range m.Resources {
		for _, t := range r.Tags {
			counts[t]++
		}
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainMountain:
		return "Mountain"
	case TerrainCoast:
		return "Coast"
	case TerrainRiver:
		return "River"
	case TerrainMarsh:
		return "Marsh"
	case TerrainOcean:
		return "Ocean"
	default:
		return "Unknown"
	}
}
