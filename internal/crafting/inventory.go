package crafting

import "encoding/json"

// Inventory is a map-backed Store. The zero value is ready to use.
type Inventory struct {
	items map[string]int
}

// NewInventory returns an inventory holding the given counts.
func NewInventory(counts map[string]int) *Inventory {
	inv := &Inventory{}
	for t, n := range counts {
		inv.Add(Item{Type: t, Count: n})
	}
	return inv
}

// Add puts an item stack into the inventory. Non-positive counts are ignored.
func (inv *Inventory) Add(item Item) {
	if item.Type == "" || item.Count <= 0 {
		return
	}
	if inv.items == nil {
		inv.items = make(map[string]int)
	}
	inv.items[item.Type] += item.Count
}

// Remove takes count units of itemType. Returns false and leaves the
// inventory unchanged when there are not enough.
func (inv *Inventory) Remove(itemType string, count int) bool {
	if count <= 0 {
		return true
	}
	if inv.items[itemType] < count {
		return false
	}
	inv.items[itemType] -= count
	if inv.items[itemType] == 0 {
		delete(inv.items, itemType)
	}
	return true
}

// Count returns the quantity held of one type.
func (inv *Inventory) Count(itemType string) int {
	return inv.items[itemType]
}

// Counts returns a copy of all quantities.
func (inv *Inventory) Counts() map[string]int {
	out := make(map[string]int, len(inv.items))
	for t, n := range inv.items {
		out[t] = n
	}
	return out
}

// IsEmpty returns true if nothing is held.
func (inv *Inventory) IsEmpty() bool {
	return len(inv.items) == 0
}

func (inv *Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inv.Counts())
}

func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var counts map[string]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return err
	}
	inv.items = nil
	for t, n := range counts {
		inv.Add(Item{Type: t, Count: n})
	}
	return nil
}
