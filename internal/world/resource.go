package world

import "slices"

// Resource tags. A resource carries one or more of these.
const (
	TagFood    = "food"
	TagWater   = "water"
	TagShelter = "shelter"
	TagFiber   = "fiber"
	TagWood    = "wood"
	TagStone   = "stone"
)

// Attribute keys carried by resources.
const (
	AttrNutrition = "nutrition" // Hunger removed per meal
	AttrCapacity  = "capacity"  // Thirst removed per drink
	AttrSecurity  = "security"  // How safe a shelter is
)

// Inexhaustible marks a resource whose quantity never runs out.
const Inexhaustible = -1

// Resource is a perceivable point in the world.
type Resource struct {
	ID          string             `json:"id"`
	Position    Position           `json:"position"`
	Tags        []string           `json:"tags"`
	Attributes  map[string]float64 `json:"attributes,omitempty"`
	Quantity    int                `json:"quantity"`
	MaxQuantity int                `json:"max_quantity,omitempty"` // Regrowth ceiling; 0 never regrows
}

// HasTag reports whether the resource carries tag.
func (r *Resource) HasTag(tag string) bool {
	return r != nil && slices.Contains(r.Tags, tag)
}

// Attribute returns the named attribute or def when it is absent.
func (r *Resource) Attribute(key string, def float64) float64 {
	if r == nil {
		return def
	}
	if v, ok := r.Attributes[key]; ok {
		return v
	}
	return def
}

// Depleted returns true once a finite resource is used up.
func (r *Resource) Depleted() bool {
	return r.Quantity != Inexhaustible && r.Quantity <= 0
}
