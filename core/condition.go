package core

import "time"

// Condition represents a mechanically checkable predicate over world state.
// Concrete condition types implement the unexported isCondition marker
// enabling a closed set. Conditions are pure values with no ownership
// concerns; the condition package evaluates and renders them.
type Condition interface{ isCondition() }

// EntityAdjacent holds when the two named entities occupy orthogonally
// adjacent cells.
type EntityAdjacent struct {
	A, B string
}

func (EntityAdjacent) isCondition() {}

// EntityWithinRange holds when the distance between the two entities is at
// most Range.
type EntityWithinRange struct {
	A, B  string
	Range float64
}

func (EntityWithinRange) isCondition() {}

// EntityAtPosition holds when the entity stands exactly on Pos.
type EntityAtPosition struct {
	Entity string
	Pos    Position
}

func (EntityAtPosition) isCondition() {}

// AllWithinRange holds when every listed entity is within Range of Anchor.
type AllWithinRange struct {
	Entities []string
	Anchor   string
	Range    float64
}

func (AllWithinRange) isCondition() {}

// TimerExpired holds once the deadline has passed.
type TimerExpired struct {
	Deadline time.Time
}

func (TimerExpired) isCondition() {}

// FlagSet holds when the named flag is present in the episode flag store.
type FlagSet struct {
	Key string
}

func (FlagSet) isCondition() {}

// And holds when every child condition holds. An empty conjunction holds.
type And struct {
	Conditions []Condition
}

func (And) isCondition() {}

// Or holds when at least one child condition holds. An empty disjunction
// does not hold.
type Or struct {
	Conditions []Condition
}

func (Or) isCondition() {}

// Not inverts its child condition.
type Not struct {
	Condition Condition
}

func (Not) isCondition() {}

// Always is the constant condition.
type Always struct {
	Value bool
}

func (Always) isCondition() {}
