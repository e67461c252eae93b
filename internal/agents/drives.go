// Drives: hunger, thirst and rest accumulate in steps and are clamped.
package agents

import (
	"math"

	"github.com/talgya/wildsim/internal/tuning"
)

// DriveName identifies a drive. Exploration is not a stored drive but
// appears as a candidate in the action queue.
type DriveName string

const (
	DriveHunger      DriveName = "hunger"
	DriveThirst      DriveName = "thirst"
	DriveRest        DriveName = "rest"
	DriveExploration DriveName = "exploration"
)

// Drive bounds.
const (
	DriveMin = 0.0
	DriveMax = 100.0
)

// Drive is a single need. Higher values are more urgent.
type Drive struct {
	Value float64 `json:"value"` // DriveMin–DriveMax
	Rate  float64 `json:"rate"`  // Base increment per update
}

// DriveSet holds all of an agent's drives and when they last moved.
type DriveSet struct {
	Hunger     Drive  `json:"hunger"`
	Thirst     Drive  `json:"thirst"`
	Rest       Drive  `json:"rest"`
	LastUpdate uint64 `json:"last_update"`
}

// Drive returns a pointer to the named drive, or nil for an unknown name.
func (d *DriveSet) Drive(name DriveName) *Drive {
	switch name {
	case DriveHunger:
		return &d.Hunger
	case DriveThirst:
		return &d.Thirst
	case DriveRest:
		return &d.Rest
	}
	return nil
}

// Value returns the named drive's value and whether the drive exists.
func (d *DriveSet) Value(name DriveName) (float64, bool) {
	dr := d.Drive(name)
	if dr == nil {
		return 0, false
	}
	return dr.Value, true
}

// NewDriveSet creates drives at the given starting values with the rates
// from tuning.
func NewDriveSet(cfg tuning.Drives, hunger, thirst, rest float64) DriveSet {
	d := DriveSet{
		Hunger: Drive{Value: hunger, Rate: cfg.HungerRate},
		Thirst: Drive{Value: thirst, Rate: cfg.ThirstRate},
		Rest:   Drive{Value: rest, Rate: cfg.RestRate},
	}
	clampDrives(&d)
	return d
}

// UpdateDrives advances the agent's drives. Nothing happens until
// cfg.UpdateInterval ticks have passed since the last update; then every
// drive moves one step. Rest falls while the agent is resting and rises
// otherwise. Returns true when the update fired.
func UpdateDrives(a *Agent, tick uint64, cfg tuning.Drives) bool {
	d := &a.Drives
	if tick < d.LastUpdate || tick-d.LastUpdate < cfg.UpdateInterval {
		return false
	}

	d.Hunger.Value += d.Hunger.Rate * cfg.HungerMultiplier
	d.Thirst.Value += d.Thirst.Rate * cfg.ThirstMultiplier
	if a.Behavior == BehaviorResting {
		d.Rest.Value -= d.Rest.Rate * cfg.RecoverMultiplier
	} else {
		d.Rest.Value += d.Rest.Rate * cfg.FatigueMultiplier
	}

	clampDrives(d)
	d.LastUpdate = tick
	return true
}

// Satisfy lowers a drive by amount (eating, drinking, sleeping).
func Satisfy(a *Agent, name DriveName, amount float64) {
	dr := a.Drives.Drive(name)
	if dr == nil {
		return
	}
	dr.Value = clampDrive(dr.Value - amount)
}

func clampDrives(d *DriveSet) {
	d.Hunger.Value = clampDrive(d.Hunger.Value)
	d.Thirst.Value = clampDrive(d.Thirst.Value)
	d.Rest.Value = clampDrive(d.Rest.Value)
}

func clampDrive(v float64) float64 {
	if v < DriveMin || math.IsNaN(v) {
		return DriveMin
	}
	if v > DriveMax {
		return DriveMax
	}
	return v
}
