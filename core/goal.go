package core

import "time"

// Difficulty estimates how much reasoning a goal requires. The tier bounds
// the escalation budget: harder goals are allowed more unproductive
// escalations before being abandoned.
type Difficulty int

const (
	// DifficultyTrivial is for goals a single cheap decision should solve.
	DifficultyTrivial Difficulty = iota
	// DifficultySimple is for goals expected to need a few decisions.
	DifficultySimple
	// DifficultyModerate is for goals needing sustained multi-step plans.
	DifficultyModerate
	// DifficultyComplex is the highest tier; it cannot be upgraded further.
	DifficultyComplex
)

// String returns the lowercase tier name.
func (d Difficulty) String() string {
	switch d {
	case DifficultyTrivial:
		return "trivial"
	case DifficultySimple:
		return "simple"
	case DifficultyModerate:
		return "moderate"
	case DifficultyComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// EscalationBudget returns how many unproductive escalations the tier
// tolerates before the exhaustion policy applies.
func (d Difficulty) EscalationBudget() int {
	switch d {
	case DifficultyTrivial:
		return 1
	case DifficultySimple:
		return 2
	case DifficultyModerate:
		return 3
	case DifficultyComplex:
		return 4
	default:
		return 1
	}
}

// GoalStatus is the lifecycle state of a goal. It only moves from active to
// one of the terminal states.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalAbandoned GoalStatus = "abandoned"
)

// GoalEvaluation is one periodic progress judgment produced by the reasoning
// backend.
type GoalEvaluation struct {
	Score          float64   `json:"score"` // 0..1
	Summary        string    `json:"summary"`
	ShouldEscalate bool      `json:"should_escalate"`
	GapAnalysis    string    `json:"gap_analysis,omitempty"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// ResourceLedger tracks what a goal has consumed. It is owned and mutated
// only by the goal's own escalation controller.
type ResourceLedger struct {
	Tokens      int
	CallsByTier map[string]int
	Cost        float64
	Latency     time.Duration
	Ticks       int
	Escalations int
}

// RecordCall adds one backend call under the given tier to the ledger.
func (l *ResourceLedger) RecordCall(tier string, tokens int, cost float64, latency time.Duration) {
	if l.CallsByTier == nil {
		l.CallsByTier = make(map[string]int)
	}
	l.CallsByTier[tier]++
	l.Tokens += tokens
	l.Cost += cost
	l.Latency += latency
}

// Calls returns the total call count across tiers.
func (l *ResourceLedger) Calls() int {
	total := 0
	for _, n := range l.CallsByTier {
		total += n
	}
	return total
}

// Snapshot returns the host-facing view of the ledger.
func (l *ResourceLedger) Snapshot() ResourceSnapshot {
	return ResourceSnapshot{
		Tokens:  l.Tokens,
		Calls:   l.Calls(),
		Cost:    l.Cost,
		Latency: l.Latency,
		Ticks:   l.Ticks,
	}
}

// ResourceSnapshot is the per-goal resource view exposed to hosts.
type ResourceSnapshot struct {
	Tokens  int           `json:"tokens"`
	Calls   int           `json:"calls"`
	Cost    float64       `json:"cost"`
	Latency time.Duration `json:"latency"`
	Ticks   int           `json:"ticks"`
}

// Goal is a long-lived objective pursued by one agent. Its status moves
// monotonically from active to completed, failed or abandoned and is mutated
// only by the agent's own escalation controller.
type Goal struct {
	ID              string
	Description     string
	SuccessCriteria string
	Status          GoalStatus
	Priority        int
	Difficulty      Difficulty
	LastEvaluation  *GoalEvaluation
	History         []GoalEvaluation
	Ledger          ResourceLedger
	PlanAgenda      []string
}

// NewGoal constructs an active goal with the given description and priority.
func NewGoal(id, description string, priority int, difficulty Difficulty) *Goal {
	return &Goal{
		ID:          id,
		Description: description,
		Status:      GoalActive,
		Priority:    priority,
		Difficulty:  difficulty,
	}
}

// Active reports whether the goal is still being pursued.
func (g *Goal) Active() bool { return g.Status == GoalActive }
