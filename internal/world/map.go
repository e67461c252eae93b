package world

import (
	"fmt"
	"math"
)

// Map holds the hex terrain and the resource points scattered over it.
type Map struct {
	Hexes     map[HexCoord]*Hex `json:"-"` // All hexes keyed by coordinate
	Radius    int               `json:"radius"`
	HexSize   float64           `json:"hex_size"`
	Resources []*Resource       `json:"-"`

	byID map[string]*Resource
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int, hexSize float64) *Map {
	if hexSize <= 0 {
		hexSize = 1
	}
	return &Map{
		Hexes:   make(map[HexCoord]*Hex),
		Radius:  radius,
		HexSize: hexSize,
		byID:    make(map[string]*Resource),
	}
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Hex {
	return m.Hexes[coord]
}

// Set places a hex at the given coordinate.
func (m *Map) Set(hex *Hex) {
	m.Hexes[hex.Coord] = hex
}

// AddResource registers a resource point. A resource with an id already
// on the map replaces the old one.
func (m *Map) AddResource(r *Resource) {
	if old, ok := m.byID[r.ID]; ok {
		*old = *r
		return
	}
	m.byID[r.ID] = r
	m.Resources = append(m.Resources, r)
}

// Resource returns the resource with the given id, or nil.
func (m *Map) Resource(id string) *Resource {
	return m.byID[id]
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return max(abs(coord.Q), abs(coord.R), abs(coord.S())) <= m.Radius
}

// NearbyResources returns every non-depleted resource within radius of pos,
// in map order. This is a plain scan; maps are small.
func (m *Map) NearbyResources(pos Position, radius float64) []*Resource {
	var out []*Resource
	for _, r := range m.Resources {
		if r.Depleted() {
			continue
		}
		if r.Position.DistanceTo(pos) <= radius {
			out = append(out, r)
		}
	}
	return out
}

// NearestWithTag returns the closest non-depleted resource carrying tag
// within radius of pos, or nil.
func (m *Map) NearestWithTag(pos Position, tag string, radius float64) *Resource {
	var best *Resource
	bestDist := radius
	for _, r := range m.NearbyResources(pos, radius) {
		if !r.HasTag(tag) {
			continue
		}
		if d := r.Position.DistanceTo(pos); best == nil || d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

// Harvest takes up to n units from a resource and returns how many were
// taken. Inexhaustible resources always yield n.
func (m *Map) Harvest(id string, n int) int {
	r := m.byID[id]
	if r == nil || n <= 0 || r.Depleted() {
		return 0
	}
	if r.Quantity == Inexhaustible {
		return n
	}
	taken := min(n, r.Quantity)
	r.Quantity -= taken
	return taken
}

// Regrow restores finite resources by fraction of their MaxQuantity
// (at least one unit) and returns how many resources grew.
func (m *Map) Regrow(fraction float64) int {
	grown := 0
	for _, r := range m.Resources {
		if r.Quantity == Inexhaustible || r.MaxQuantity <= 0 || r.Quantity >= r.MaxQuantity {
			continue
		}
		step := max(1, int(math.Ceil(float64(r.MaxQuantity)*fraction)))
		r.Quantity = min(r.MaxQuantity, r.Quantity+step)
		grown++
	}
	return grown
}

// HexAt returns the hex containing a cartesian position (nearest center).
func (m *Map) HexAt(pos Position) *Hex {
	// Cartesian → fractional axial, then cube rounding.
	r := pos.Y / (m.HexSize * 0.8660254037844386)
	q := pos.X/m.HexSize - r*0.5
	return m.Get(roundAxial(q, r))
}

func roundAxial(fq, fr float64) HexCoord {
	fs := -fq - fr
	q, r, s := round(fq), round(fr), round(fs)
	dq, dr, ds := absf(float64(q)-fq), absf(float64(r)-fr), absf(float64(s)-fs)
	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	}
	return HexCoord{Q: q, R: r}
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// HexCount returns the total number of hexes in the map.
func (m *Map) HexCount() int {
	return len(m.Hexes)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d, resources=%d)", m.Radius, m.HexCount(), len(m.Resources))
}
