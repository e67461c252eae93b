// Package world provides the hex terrain and the resource points agents
// perceive. Terrain uses axial coordinates (q, r); resources and agents
// live in the continuous plane the hexes are laid on.
package world

import "math"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainPlains   Terrain = iota // Berries and grass fiber
	TerrainForest                  // Wood, forage, hollow trees
	TerrainMountain                // Stone and caves
	TerrainCoast                   // Fresh pools along the shore
	TerrainRiver                   // Running water
	TerrainMarsh                   // Water and reeds
	TerrainOcean                   // Impassable, salt water
)

// Hex represents a single tile on the world map.
type Hex struct {
	Coord     HexCoord `json:"coord"`
	Terrain   Terrain  `json:"terrain"`
	Elevation float64  `json:"elevation"` // 0.0 (sea level) to 1.0 (peak)
	Rainfall  float64  `json:"rainfall"`  // 0.0 (arid) to 1.0 (wet)
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Center returns the cartesian center of the hex for a given hex size.
// Axial → cartesian: x = q + r/2, y = r·√3/2.
func (h HexCoord) Center(size float64) Position {
	return Position{
		X: size * (float64(h.Q) + float64(h.R)*0.5),
		Y: size * float64(h.R) * math.Sqrt(3.0) / 2.0,
	}
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// Position is a point in the continuous plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between two positions.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// StepToward moves p at most step units toward target.
func (p Position) StepToward(target Position, step float64) Position {
	d := p.DistanceTo(target)
	if d <= step || d == 0 {
		return target
	}
	f := step / d
	return Position{X: p.X + (target.X-p.X)*f, Y: p.Y + (target.Y-p.Y)*f}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
