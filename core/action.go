package core

import "time"

// Action represents a polymorphic behavior step executed by a behavior
// machine. Concrete action types implement the unexported isAction marker
// enabling a closed set: every switch over actions handles all variants and
// adding a variant surfaces every site that needs updating.
//
// Continuation lists (OnArrive, OnFail, OnCatch, ...) are the only chaining
// mechanism: when an action reaches the corresponding outcome the listed
// actions are prepended to the executing machine's pending queue. There is no
// implicit retry.
type Action interface{ isAction() }

// MoveAction is a single orthogonal step. It fails when the target cell is
// blocked at execution time.
type MoveAction struct {
	DX, DY    int
	OnArrive  []Action
	OnFail    []Action
}

func (MoveAction) isAction() {}

// WaitAction idles for a fixed duration.
type WaitAction struct {
	Duration   time.Duration
	OnComplete []Action
}

func (WaitAction) isAction() {}

// SpeakAction utters text for a fixed duration. Delivery is local; use
// SayToAction to first close distance to a listener.
type SpeakAction struct {
	Text        string
	Duration    time.Duration
	OnDelivered []Action
}

func (SpeakAction) isAction() {}

// TravelToAction paths to a destination against live occupancy. When the
// destination cell itself is blocked the machine falls back to the reachable
// adjacent cell with the shortest path.
type TravelToAction struct {
	Dest     Position
	OnArrive []Action
	OnFail   []Action
}

func (TravelToAction) isAction() {}

// PursueAction chases a named entity, re-pathing on a fixed interval or when
// the current path is exhausted. It succeeds on adjacency and times out after
// Timeout (zero means the machine default).
type PursueAction struct {
	Target    string
	Timeout   time.Duration
	OnCatch   []Action
	OnTimeout []Action
	OnFail    []Action
}

func (PursueAction) isAction() {}

// FleeFromAction moves away from a named entity until SafeDistance is
// reached (zero means the machine default).
type FleeFromAction struct {
	Threat       string
	SafeDistance float64
	OnSafe       []Action
	OnFail       []Action
}

func (FleeFromAction) isAction() {}

// WaitUntilAction polls a condition on a fixed interval, short-circuiting if
// it already holds. Timeout of zero means wait indefinitely.
type WaitUntilAction struct {
	Cond       Condition
	Timeout    time.Duration
	OnComplete []Action
	OnTimeout  []Action
}

func (WaitUntilAction) isAction() {}

// SayToAction pursues a target and speaks to it once adjacent. The machine
// expands it into a pursue chained with a speak.
type SayToAction struct {
	Target      string
	Text        string
	OnDelivered []Action
	OnFail      []Action
}

func (SayToAction) isAction() {}

// ConverseWithAction pursues a target and, once adjacent, dispatches a
// conversation event to the host and holds a conversing state for a fixed
// duration.
type ConverseWithAction struct {
	Target     string
	Topic      string
	OnComplete []Action
	OnFail     []Action
}

func (ConverseWithAction) isAction() {}

// SequenceAction runs its steps in order. The machine flattens it into its
// internal queue; a failing step prepends its own failure continuations and
// the remaining steps still run. Abort-on-failure is the caller's decision,
// via Cancel.
type SequenceAction struct {
	Steps []Action
}

func (SequenceAction) isAction() {}

// ActionKind returns a stable lowercase tag for an action variant, used for
// logging and progress reports.
func ActionKind(a Action) string {
	switch a.(type) {
	case MoveAction:
		return "move"
	case WaitAction:
		return "wait"
	case SpeakAction:
		return "speak"
	case TravelToAction:
		return "travel_to"
	case PursueAction:
		return "pursue"
	case FleeFromAction:
		return "flee_from"
	case WaitUntilAction:
		return "wait_until"
	case SayToAction:
		return "say_to"
	case ConverseWithAction:
		return "converse_with"
	case SequenceAction:
		return "sequence"
	default:
		return "unknown"
	}
}
