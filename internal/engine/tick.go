// Package engine provides the tick-based simulation loop.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// TickSchedule defines when each layer runs relative to the tick counter.
const (
	TicksPerSimHour   = 60    // 60 ticks = 1 sim-hour
	TicksPerSimDay    = 1440  // 24 hours × 60
	TicksPerSimSeason = 90 * TicksPerSimDay
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval (default 1 second)

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64) // Every tick (sim-minute)
	OnHour func(tick uint64) // Every 60 ticks
	OnDay  func(tick uint64) // Every 1440 ticks
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero or below pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	slog.Info("simulation speed changed", "speed", speed)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", humanize.Comma(int64(e.Tick)), "speed", e.Speed())

	for e.Running() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", humanize.Comma(int64(e.Tick)))
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Step advances the simulation by one tick. Run calls it on a timer;
// tests call it directly.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(e.Tick)
	}
	if e.Tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	totalMinutes := tick
	minutes := totalMinutes % 60
	totalHours := totalMinutes / 60
	hours := totalHours % 24
	totalDays := totalHours / 24
	days := totalDays%90 + 1
	seasons := totalDays / 90
	season := seasons % 4
	years := seasons/4 + 1

	return fmt.Sprintf("%s Day %d, %d:%02d Year %d",
		SeasonName(uint8(season)), days, hours, minutes, years)
}
