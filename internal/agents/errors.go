package agents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors carried inside GoalError. Use errors.Is to test for them.
var (
	// ErrGoalTimeout means the goal stayed current longer than the timeout.
	ErrGoalTimeout = errors.New("goal timed out")

	// ErrUnresolvedRecipe means the crafter does not know the goal's recipe.
	ErrUnresolvedRecipe = errors.New("unresolved recipe")

	// ErrGoalCycle means a goal needs, through its sub-goals, something its
	// own ancestors are producing.
	ErrGoalCycle = errors.New("goal requires its own product")

	// ErrSubGoalFailed means a sub-goal was abandoned, so its parent can
	// no longer be satisfied as planned.
	ErrSubGoalFailed = errors.New("sub-goal failed")

	// ErrTargetGone means the goal's target resource is depleted or missing.
	ErrTargetGone = errors.New("target resource gone")
)

// GoalErrorKind categorizes why a goal left the engine without completing.
type GoalErrorKind string

const (
	KindAbandoned        GoalErrorKind = "abandoned"
	KindTimedOut         GoalErrorKind = "timed_out"
	KindUnresolvedRecipe GoalErrorKind = "unresolved_recipe"
	KindCraftFailed      GoalErrorKind = "craft_failed"
	KindCycle            GoalErrorKind = "cycle"
)

// GoalError describes a goal that was dropped. It is reported, never
// returned up the tick loop: the agent simply goes back to idle.
type GoalError struct {
	Kind     GoalErrorKind
	Agent    string
	GoalID   uuid.UUID
	GoalType GoalType
	Tick     uint64
	Err      error
}

func (e *GoalError) Error() string {
	msg := fmt.Sprintf("%s: goal %s (%s) at tick %d", e.Kind, e.GoalType, e.Agent, e.Tick)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GoalError) Unwrap() error {
	return e.Err
}

// Is matches another *GoalError by kind, so errors.Is(err,
// &GoalError{Kind: KindTimedOut}) works.
func (e *GoalError) Is(target error) bool {
	t, ok := target.(*GoalError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// GoalReporter receives every goal the engine drops.
type GoalReporter interface {
	GoalFailed(err *GoalError)
}

// GoalReporterFunc adapts a function to GoalReporter.
type GoalReporterFunc func(err *GoalError)

// GoalFailed calls f(err).
func (f GoalReporterFunc) GoalFailed(err *GoalError) {
	f(err)
}
