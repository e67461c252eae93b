// Package tuning holds every balance constant of the simulation.
// Values come from Default() and may be overridden by a YAML file.
package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the full set of simulation parameters.
type Tuning struct {
	Drives      Drives               `yaml:"drives"`
	Tolerances  map[string]Tolerance `yaml:"tolerances"`
	Exploration Exploration          `yaml:"exploration"`
	Memory      Memory               `yaml:"memory"`
	Goals       Goals                `yaml:"goals"`
	World       World                `yaml:"world"`
	Population  Population           `yaml:"population"`
	Recipes     []Recipe             `yaml:"recipes"`
}

// Drives configures accumulation of hunger, thirst and rest.
type Drives struct {
	UpdateInterval uint64 `yaml:"update_interval"` // Minimum ticks between updates

	HungerRate float64 `yaml:"hunger_rate"`
	ThirstRate float64 `yaml:"thirst_rate"`
	RestRate   float64 `yaml:"rest_rate"`

	HungerMultiplier  float64 `yaml:"hunger_multiplier"`
	ThirstMultiplier  float64 `yaml:"thirst_multiplier"`
	FatigueMultiplier float64 `yaml:"fatigue_multiplier"` // Rest gain while awake
	RecoverMultiplier float64 `yaml:"recover_multiplier"` // Rest loss while resting

	// Ticks a drive may sit at its ceiling before the agent dies.
	StarvationTicks uint64 `yaml:"starvation_ticks"`
}

// Tolerance maps a drive value to a priority tier.
type Tolerance struct {
	Thresholds []float64 `yaml:"thresholds"`
	Priorities []float64 `yaml:"priorities"`
}

// Exploration configures the knowledge score and the exploration candidate.
type Exploration struct {
	FoodTarget    int     `yaml:"food_target"`
	WaterTarget   int     `yaml:"water_target"`
	ShelterTarget int     `yaml:"shelter_target"`
	Threshold     float64 `yaml:"threshold"`      // Score below this needs exploring
	RestCeiling   float64 `yaml:"rest_ceiling"`   // Too tired to explore above this
	BasePriority  float64 `yaml:"base_priority"`  // Priority at full knowledge
	PriorityScale float64 `yaml:"priority_scale"` // Added per unit of missing knowledge
	Distance      float64 `yaml:"distance"`       // How far an explore goal wanders
}

// Memory configures the three resource memory buckets.
type Memory struct {
	FoodCapacity     int     `yaml:"food_capacity"`
	WaterCapacity    int     `yaml:"water_capacity"`
	ShelterCapacity  int     `yaml:"shelter_capacity"`
	DefaultNutrition float64 `yaml:"default_nutrition"`
	DefaultCapacity  float64 `yaml:"default_capacity"`
	DefaultSecurity  float64 `yaml:"default_security"`
	MaxAge           uint64  `yaml:"max_age"`
	ForgetInterval   uint64  `yaml:"forget_interval"`
	PerceptionRadius float64 `yaml:"perception_radius"`
}

// Goals configures the goal engine.
type Goals struct {
	Timeout        uint64 `yaml:"timeout"`
	ReviewInterval uint64 `yaml:"review_interval"`

	// Recipes a content agent works on when it has nothing else to do.
	IdleRecipes []string `yaml:"idle_recipes"`
}

// World configures terrain and resource generation.
type World struct {
	Radius      int     `yaml:"radius"`
	Seed        int64   `yaml:"seed"`
	SeaLevel    float64 `yaml:"sea_level"`
	MountainLvl float64 `yaml:"mountain_level"`
	HexSize     float64 `yaml:"hex_size"` // Cartesian distance between hex centers

	// Share of a finite resource's ceiling restored each sim-day.
	RegrowFraction float64 `yaml:"regrow_fraction"`
}

// Population configures the initial set of agents and how they move.
type Population struct {
	Count     int     `yaml:"count"`
	Speed     float64 `yaml:"speed"`      // Distance covered per tick
	ReachDist float64 `yaml:"reach_dist"` // Distance at which a target counts as reached

	GatherRadius float64 `yaml:"gather_radius"` // How far an agent looks for raw materials
	Floor        int     `yaml:"floor"`         // Newcomers arrive when fewer are alive
}

// Recipe is a crafting recipe as it appears in YAML.
type Recipe struct {
	ID          string         `yaml:"id"`
	Inputs      map[string]int `yaml:"inputs"`
	Output      string         `yaml:"output"`
	OutputCount int            `yaml:"output_count"`
}

// Default returns the baseline tuning used when no file is supplied.
func Default() Tuning {
	return Tuning{
		Drives: Drives{
			UpdateInterval:    5,
			HungerRate:        1,
			ThirstRate:        1,
			RestRate:          1,
			HungerMultiplier:  1.0,
			ThirstMultiplier:  1.5,
			FatigueMultiplier: 0.5,
			RecoverMultiplier: 2.0,
			StarvationTicks:   300,
		},
		Tolerances: map[string]Tolerance{
			"hunger": {Thresholds: []float64{30, 70, 100}, Priorities: []float64{0, 5, 20}},
			"thirst": {Thresholds: []float64{25, 60, 100}, Priorities: []float64{0, 8, 25}},
			"rest":   {Thresholds: []float64{50, 80, 100}, Priorities: []float64{0, 4, 15}},
		},
		Exploration: Exploration{
			FoodTarget:    3,
			WaterTarget:   2,
			ShelterTarget: 2,
			Threshold:     0.7,
			RestCeiling:   50,
			BasePriority:  10,
			PriorityScale: 20,
			Distance:      8,
		},
		Memory: Memory{
			FoodCapacity:     5,
			WaterCapacity:    3,
			ShelterCapacity:  3,
			DefaultNutrition: 20,
			DefaultCapacity:  100,
			DefaultSecurity:  50,
			MaxAge:           100,
			ForgetInterval:   60,
			PerceptionRadius: 4,
		},
		Goals: Goals{
			Timeout:        100,
			ReviewInterval: 5,
			IdleRecipes:    []string{"craft_spear", "craft_bedding"},
		},
		World: World{
			Radius:         12,
			Seed:           42,
			SeaLevel:       0.25,
			MountainLvl:    0.72,
			HexSize:        1.0,
			RegrowFraction: 0.25,
		},
		Population: Population{
			Count:        12,
			Speed:        0.5,
			ReachDist:    0.75,
			GatherRadius: 10,
			Floor:        4,
		},
		Recipes: []Recipe{
			{ID: "craft_cordage", Inputs: map[string]int{"fiber": 3}, Output: "cordage", OutputCount: 1},
			{ID: "craft_rope", Inputs: map[string]int{"cordage": 2}, Output: "rope", OutputCount: 1},
			{ID: "craft_spear", Inputs: map[string]int{"wood": 1, "stone": 1, "cordage": 1}, Output: "spear", OutputCount: 1},
			{ID: "craft_bedding", Inputs: map[string]int{"fiber": 2, "wood": 1}, Output: "bedding", OutputCount: 1},
		},
	}
}

// Load reads a YAML file on top of Default(). Keys absent from the file
// keep their default values.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate checks the invariants the simulation relies on.
func (t Tuning) Validate() error {
	var errs []error

	for name, tol := range t.Tolerances {
		if err := tol.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tolerance %q: %w", name, err))
		}
	}
	if t.Drives.UpdateInterval == 0 {
		errs = append(errs, errors.New("drives.update_interval must be positive"))
	}
	if t.Memory.FoodCapacity <= 0 || t.Memory.WaterCapacity <= 0 || t.Memory.ShelterCapacity <= 0 {
		errs = append(errs, errors.New("memory capacities must be positive"))
	}
	if t.Memory.ForgetInterval == 0 {
		errs = append(errs, errors.New("memory.forget_interval must be positive"))
	}
	if t.Population.Speed <= 0 {
		errs = append(errs, errors.New("population.speed must be positive"))
	}
	if t.Goals.Timeout == 0 {
		errs = append(errs, errors.New("goals.timeout must be positive"))
	}
	if t.Goals.ReviewInterval == 0 {
		errs = append(errs, errors.New("goals.review_interval must be positive"))
	}
	if t.Exploration.FoodTarget <= 0 || t.Exploration.WaterTarget <= 0 || t.Exploration.ShelterTarget <= 0 {
		errs = append(errs, errors.New("exploration targets must be positive"))
	}
	for _, r := range t.Recipes {
		if r.ID == "" || r.Output == "" {
			errs = append(errs, fmt.Errorf("recipe %q: id and output are required", r.ID))
		}
	}

	return errors.Join(errs...)
}

// Validate checks that thresholds and priorities line up and thresholds
// never decrease.
func (t Tolerance) Validate() error {
	if len(t.Thresholds) != len(t.Priorities) {
		return fmt.Errorf("%d thresholds but %d priorities", len(t.Thresholds), len(t.Priorities))
	}
	for i := 1; i < len(t.Thresholds); i++ {
		if t.Thresholds[i] < t.Thresholds[i-1] {
			return fmt.Errorf("threshold %d (%.1f) below threshold %d (%.1f)",
				i, t.Thresholds[i], i-1, t.Thresholds[i-1])
		}
	}
	return nil
}
