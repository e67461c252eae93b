// Package crafting provides the recipe catalog and the agent inventory.
// Recipes turn counted inputs into a single output type.
package crafting

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/wildsim/internal/tuning"
)

var (
	// ErrUnknownRecipe is returned when a recipe id is not in the catalog.
	ErrUnknownRecipe = errors.New("unknown recipe")

	// ErrMissingInputs is returned by Craft when the store lacks an input.
	ErrMissingInputs = errors.New("missing inputs")
)

// Item is a counted stack of one resource type.
type Item struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Recipe consumes Inputs and produces OutputCount units of Output.
type Recipe struct {
	ID          string         `json:"id"`
	Inputs      map[string]int `json:"inputs"`
	Output      string         `json:"output"`
	OutputCount int            `json:"output_count"`
}

// InputTypes returns the input types in sorted order.
func (r Recipe) InputTypes() []string {
	types := make([]string, 0, len(r.Inputs))
	for t := range r.Inputs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Store is anything crafting can take inputs from and put outputs into.
type Store interface {
	Add(item Item)
	Remove(itemType string, count int) bool
	Counts() map[string]int
}

// Catalog indexes recipes by id and by output type.
type Catalog struct {
	byID     map[string]Recipe
	byOutput map[string]Recipe
}

// NewCatalog builds a catalog, rejecting duplicate ids, duplicate outputs
// and recipes that need their own output somewhere down the input chain.
func NewCatalog(recipes []Recipe) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]Recipe, len(recipes)),
		byOutput: make(map[string]Recipe, len(recipes)),
	}
	for _, r := range recipes {
		if r.ID == "" || r.Output == "" {
			return nil, fmt.Errorf("recipe %q: id and output are required", r.ID)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("recipe %q: duplicate id", r.ID)
		}
		if prev, dup := c.byOutput[r.Output]; dup {
			return nil, fmt.Errorf("recipe %q: output %q already produced by %q", r.ID, r.Output, prev.ID)
		}
		if r.OutputCount <= 0 {
			r.OutputCount = 1
		}
		c.byID[r.ID] = r
		c.byOutput[r.Output] = r
	}

	for _, r := range c.byID {
		if c.consumes(r, r.Output, map[string]bool{}) {
			return nil, fmt.Errorf("recipe %q: consumes its own output %q", r.ID, r.Output)
		}
	}
	return c, nil
}

// consumes reports whether r needs target directly or through the recipes
// of its inputs.
func (c *Catalog) consumes(r Recipe, target string, seen map[string]bool) bool {
	if seen[r.ID] {
		return false
	}
	seen[r.ID] = true
	for in := range r.Inputs {
		if in == target {
			return true
		}
		if sub, ok := c.byOutput[in]; ok && c.consumes(sub, target, seen) {
			return true
		}
	}
	return false
}

// Resolve looks up a recipe by id.
func (c *Catalog) Resolve(id string) (Recipe, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// RecipeFor returns the recipe that produces itemType, if any.
func (c *Catalog) RecipeFor(itemType string) (Recipe, bool) {
	r, ok := c.byOutput[itemType]
	return r, ok
}

// Recipes returns all recipes sorted by id.
func (c *Catalog) Recipes() []Recipe {
	out := make([]Recipe, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Craft consumes the recipe inputs from store and returns the output.
// The caller decides where the output goes. Nothing is consumed when an
// input is short.
func (c *Catalog) Craft(r Recipe, store Store) (Item, error) {
	if _, ok := c.byID[r.ID]; !ok {
		return Item{}, fmt.Errorf("craft %s: %w", r.ID, ErrUnknownRecipe)
	}

	counts := store.Counts()
	for _, t := range r.InputTypes() {
		if counts[t] < r.Inputs[t] {
			return Item{}, fmt.Errorf("craft %s: need %d %s, have %d: %w",
				r.ID, r.Inputs[t], t, counts[t], ErrMissingInputs)
		}
	}
	for _, t := range r.InputTypes() {
		store.Remove(t, r.Inputs[t])
	}

	return Item{Type: r.Output, Count: r.OutputCount}, nil
}

// NewCatalogFromTuning converts configured recipes into a catalog.
func NewCatalogFromTuning(recipes []tuning.Recipe) (*Catalog, error) {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, Recipe{
			ID:          r.ID,
			Inputs:      r.Inputs,
			Output:      r.Output,
			OutputCount: r.OutputCount,
		})
	}
	return NewCatalog(out)
}
