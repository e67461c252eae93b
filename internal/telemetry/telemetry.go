// Package telemetry reports dropped goals to logs and OpenTelemetry metrics.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/talgya/wildsim/internal/agents"
)

// ScopeName is the instrumentation scope for the simulation's meter and tracer.
const ScopeName = "github.com/talgya/wildsim"

// LogReporter writes every goal failure to a slog logger. Timeouts and
// failed crafts are warnings; plain abandonment is debug noise.
type LogReporter struct {
	Logger *slog.Logger // nil uses slog.Default()
}

// GoalFailed implements agents.GoalReporter.
func (r LogReporter) GoalFailed(err *agents.GoalError) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelDebug
	switch err.Kind {
	case agents.KindTimedOut, agents.KindCraftFailed, agents.KindUnresolvedRecipe, agents.KindCycle:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "goal dropped",
		"agent", err.Agent,
		"goal", err.GoalType,
		"goal_id", err.GoalID,
		"kind", err.Kind,
		"tick", err.Tick,
		"error", err.Err,
	)
}

// MeterReporter counts goal failures on the wildsim.goal.failures counter.
type MeterReporter struct {
	failures metric.Int64Counter
}

// NewMeterReporter creates the failure counter on meter.
func NewMeterReporter(meter metric.Meter) (*MeterReporter, error) {
	failures, err := meter.Int64Counter(
		"wildsim.goal.failures",
		metric.WithDescription("Goals dropped without completing"),
		metric.WithUnit("{goal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create goal failure counter: %w", err)
	}
	return &MeterReporter{failures: failures}, nil
}

// GoalFailed implements agents.GoalReporter.
func (r *MeterReporter) GoalFailed(err *agents.GoalError) {
	r.failures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("agent", err.Agent),
		attribute.String("goal.type", string(err.GoalType)),
		attribute.String("kind", string(err.Kind)),
	))
}

// Fanout forwards each failure to every reporter in order. nil entries
// are skipped.
type Fanout []agents.GoalReporter

// GoalFailed implements agents.GoalReporter.
func (f Fanout) GoalFailed(err *agents.GoalError) {
	for _, r := range f {
		if r != nil {
			r.GoalFailed(err)
		}
	}
}
