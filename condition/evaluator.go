package condition

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gridmind/gridmind/core"
)

// Options configures an Evaluator.
type Options struct {
	// Now supplies the current time for TimerExpired conditions. Defaults to
	// time.Now; override in tests for determinism.
	Now func() time.Time
}

// Evaluator decides core.Condition predicates against a WorldQuery and a
// Flags store. It holds no mutable state of its own and is safe for
// concurrent use when its collaborators are.
type Evaluator struct {
	world core.WorldQuery
	flags *Flags
	now   func() time.Time
}

// NewEvaluator constructs an Evaluator with optional overrides.
func NewEvaluator(world core.WorldQuery, flags *Flags, optFns ...func(o *Options)) *Evaluator {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{world: world, flags: flags, now: opts.Now}
}

// Evaluate reports whether the condition currently holds. Unknown entities
// make the affected leaf false rather than erroring: a predicate about an
// absent entity simply does not hold.
func (e *Evaluator) Evaluate(c core.Condition) bool {
	switch v := c.(type) {
	case core.EntityAdjacent:
		return e.world.Adjacent(v.A, v.B)
	case core.EntityWithinRange:
		d, ok := e.world.Distance(v.A, v.B)
		return ok && d <= v.Range
	case core.EntityAtPosition:
		p, ok := e.world.EntityPosition(v.Entity)
		return ok && p == v.Pos
	case core.AllWithinRange:
		for _, name := range v.Entities {
			d, ok := e.world.Distance(name, v.Anchor)
			if !ok || d > v.Range {
				return false
			}
		}
		return true
	case core.TimerExpired:
		return !e.now().Before(v.Deadline)
	case core.FlagSet:
		return e.flags != nil && e.flags.Has(v.Key)
	case core.And:
		for _, child := range v.Conditions {
			if !e.Evaluate(child) {
				return false
			}
		}
		return true
	case core.Or:
		for _, child := range v.Conditions {
			if e.Evaluate(child) {
				return true
			}
		}
		return false
	case core.Not:
		return !e.Evaluate(v.Condition)
	case core.Always:
		return v.Value
	default:
		return false
	}
}

// Describe renders a condition as deterministic human-readable text. The
// rendering is total: every variant has a fixed form, and composite variants
// preserve child order.
func Describe(c core.Condition) string {
	switch v := c.(type) {
	case core.EntityAdjacent:
		return fmt.Sprintf("%s is adjacent to %s", v.A, v.B)
	case core.EntityWithinRange:
		return fmt.Sprintf("%s is within %.1f of %s", v.A, v.Range, v.B)
	case core.EntityAtPosition:
		return fmt.Sprintf("%s is at (%d, %d)", v.Entity, v.Pos.X, v.Pos.Y)
	case core.AllWithinRange:
		names := append([]string(nil), v.Entities...)
		sort.Strings(names)
		return fmt.Sprintf("all of [%s] are within %.1f of %s", strings.Join(names, ", "), v.Range, v.Anchor)
	case core.TimerExpired:
		return fmt.Sprintf("timer expired at %s", v.Deadline.UTC().Format(time.RFC3339))
	case core.FlagSet:
		return fmt.Sprintf("flag %q is set", v.Key)
	case core.And:
		return describeComposite("and", v.Conditions)
	case core.Or:
		return describeComposite("or", v.Conditions)
	case core.Not:
		return fmt.Sprintf("not (%s)", Describe(v.Condition))
	case core.Always:
		if v.Value {
			return "always true"
		}
		return "always false"
	default:
		return "unknown condition"
	}
}

func describeComposite(op string, children []core.Condition) string {
	if len(children) == 0 {
		if op == "and" {
			return "always true"
		}
		return "always false"
	}
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = Describe(child)
	}
	return "(" + strings.Join(parts, ") "+op+" (") + ")"
}
