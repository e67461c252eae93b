// Resource memory: bounded recall of where food, water and shelter were
// seen. Each kind has its own bucket; the oldest entry makes room for a
// new one, and entries not revisited for long enough are forgotten.
package agents

import (
	"slices"

	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

// ResourceKind names a memory bucket. Values match world resource tags.
type ResourceKind string

const (
	KindFood    ResourceKind = world.TagFood
	KindWater   ResourceKind = world.TagWater
	KindShelter ResourceKind = world.TagShelter
)

// MemoryKinds lists the buckets in a fixed order.
var MemoryKinds = []ResourceKind{KindFood, KindWater, KindShelter}

// MemoryEntry is one remembered resource. Value holds the kind's
// attribute: nutrition for food, capacity for water, security for shelter.
type MemoryEntry struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Value       float64 `json:"value"`
	LastVisited uint64  `json:"last_visited"`
}

// Position returns the entry's location.
func (e MemoryEntry) Position() world.Position {
	return world.Position{X: e.X, Y: e.Y}
}

// Bucket holds the remembered entries of one kind in insertion order.
type Bucket struct {
	Capacity  int           `json:"capacity"`
	Attribute string        `json:"attribute"`
	Default   float64       `json:"default"`
	Entries   []MemoryEntry `json:"entries"`
}

// ResourceMemory is an agent's recall of food, water and shelter.
type ResourceMemory struct {
	Food    Bucket `json:"food"`
	Water   Bucket `json:"water"`
	Shelter Bucket `json:"shelter"`
}

// NewResourceMemory creates empty buckets sized from tuning.
func NewResourceMemory(cfg tuning.Memory) *ResourceMemory {
	return &ResourceMemory{
		Food:    Bucket{Capacity: cfg.FoodCapacity, Attribute: world.AttrNutrition, Default: cfg.DefaultNutrition},
		Water:   Bucket{Capacity: cfg.WaterCapacity, Attribute: world.AttrCapacity, Default: cfg.DefaultCapacity},
		Shelter: Bucket{Capacity: cfg.ShelterCapacity, Attribute: world.AttrSecurity, Default: cfg.DefaultSecurity},
	}
}

// Configure resizes the buckets to cfg, dropping the oldest entries of any
// bucket now over capacity. Entries already recorded keep their value.
func (m *ResourceMemory) Configure(cfg tuning.Memory) {
	fresh := NewResourceMemory(cfg)
	m.Food.configure(fresh.Food)
	m.Water.configure(fresh.Water)
	m.Shelter.configure(fresh.Shelter)
}

func (b *Bucket) configure(from Bucket) {
	b.Capacity = from.Capacity
	b.Attribute = from.Attribute
	b.Default = from.Default
	if over := len(b.Entries) - b.Capacity; over > 0 {
		b.Entries = slices.Delete(b.Entries, 0, over)
	}
}

func (m *ResourceMemory) bucket(kind ResourceKind) *Bucket {
	if m == nil {
		return nil
	}
	switch kind {
	case KindFood:
		return &m.Food
	case KindWater:
		return &m.Water
	case KindShelter:
		return &m.Shelter
	}
	return nil
}

// Record remembers a resource under every bucket its tags name. A nil
// resource or one without tags is ignored. A resource already known only
// has its LastVisited refreshed.
func (m *ResourceMemory) Record(r *world.Resource, tick uint64) {
	if m == nil || r == nil || len(r.Tags) == 0 {
		return
	}
	for _, tag := range r.Tags {
		if b := m.bucket(ResourceKind(tag)); b != nil {
			b.record(r, tick)
		}
	}
}

func (b *Bucket) record(r *world.Resource, tick uint64) {
	if i := b.indexOf(r.ID); i >= 0 {
		b.Entries[i].LastVisited = tick
		return
	}

	b.Entries = append(b.Entries, MemoryEntry{
		ID:          r.ID,
		X:           r.Position.X,
		Y:           r.Position.Y,
		Value:       r.Attribute(b.Attribute, b.Default),
		LastVisited: tick,
	})
	if over := len(b.Entries) - b.Capacity; over > 0 {
		b.Entries = slices.Delete(b.Entries, 0, over)
	}
}

func (b *Bucket) indexOf(id string) int {
	for i := range b.Entries {
		if b.Entries[i].ID == id {
			return i
		}
	}
	return -1
}

// IsKnown reports whether the resource's id is in any bucket.
func (m *ResourceMemory) IsKnown(r *world.Resource) bool {
	if m == nil || r == nil {
		return false
	}
	for _, kind := range MemoryKinds {
		if m.bucket(kind).indexOf(r.ID) >= 0 {
			return true
		}
	}
	return false
}

// Recall returns the best remembered entry of a kind. With preferClosest
// the entry nearest to from wins, otherwise the most recently visited.
// Ties go to the earlier entry. An unknown kind or an empty bucket
// yields false.
func (m *ResourceMemory) Recall(kind ResourceKind, from world.Position, preferClosest bool) (MemoryEntry, bool) {
	b := m.bucket(kind)
	if b == nil || len(b.Entries) == 0 {
		return MemoryEntry{}, false
	}

	best := b.Entries[0]
	for _, e := range b.Entries[1:] {
		if preferClosest {
			if from.DistanceTo(e.Position()) < from.DistanceTo(best.Position()) {
				best = e
			}
		} else if e.LastVisited > best.LastVisited {
			best = e
		}
	}
	return best, true
}

// RecallByType returns a copy of one bucket's entries in insertion order.
// An empty or unknown kind yields an empty slice.
func (m *ResourceMemory) RecallByType(kind ResourceKind) []MemoryEntry {
	b := m.bucket(kind)
	if b == nil {
		return []MemoryEntry{}
	}
	return append([]MemoryEntry{}, b.Entries...)
}

// Forget drops every entry with tick - LastVisited >= maxAge and returns
// how many were dropped.
func (m *ResourceMemory) Forget(tick, maxAge uint64) int {
	if m == nil {
		return 0
	}
	removed := 0
	for _, kind := range MemoryKinds {
		b := m.bucket(kind)
		before := len(b.Entries)
		b.Entries = slices.DeleteFunc(b.Entries, func(e MemoryEntry) bool {
			return tick >= e.LastVisited && tick-e.LastVisited >= maxAge
		})
		removed += before - len(b.Entries)
	}
	return removed
}

// ForgetID removes one entry by id from every bucket, used when a
// remembered resource turns out to be gone.
func (m *ResourceMemory) ForgetID(id string) {
	if m == nil {
		return
	}
	for _, kind := range MemoryKinds {
		b := m.bucket(kind)
		b.Entries = slices.DeleteFunc(b.Entries, func(e MemoryEntry) bool { return e.ID == id })
	}
}

// Count returns how many entries a bucket holds.
func (m *ResourceMemory) Count(kind ResourceKind) int {
	b := m.bucket(kind)
	if b == nil {
		return 0
	}
	return len(b.Entries)
}

// Counts returns the size of every bucket.
func (m *ResourceMemory) Counts() map[ResourceKind]int {
	out := make(map[ResourceKind]int, len(MemoryKinds))
	for _, kind := range MemoryKinds {
		out[kind] = m.Count(kind)
	}
	return out
}
