package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/core"
)

// stubWorld is a minimal WorldQuery backed by fixed positions.
type stubWorld struct {
	positions map[string]core.Position
}

func (w *stubWorld) EntityPosition(name string) (core.Position, bool) {
	p, ok := w.positions[name]
	return p, ok
}

func (w *stubWorld) Distance(a, b string) (float64, bool) {
	pa, oka := w.positions[a]
	pb, okb := w.positions[b]
	if !oka || !okb {
		return 0, false
	}
	return pa.Distance(pb), true
}

func (w *stubWorld) Adjacent(a, b string) bool {
	pa, oka := w.positions[a]
	pb, okb := w.positions[b]
	return oka && okb && pa.Adjacent(pb)
}

func (w *stubWorld) Walkable(core.Position) bool { return true }

func (w *stubWorld) PathLength(from, to core.Position) (int, bool) {
	return abs(from.X-to.X) + abs(from.Y-to.Y), true
}

func (w *stubWorld) EntitiesWithin(center core.Position, radius float64, observer string) []string {
	var names []string
	for name, p := range w.positions {
		if name != observer && center.Distance(p) <= radius {
			names = append(names, name)
		}
	}
	return names
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func newTestEvaluator() (*Evaluator, *Flags) {
	world := &stubWorld{positions: map[string]core.Position{
		"alice": {X: 0, Y: 0},
		"bob":   {X: 1, Y: 0},
		"carol": {X: 5, Y: 5},
	}}
	flags := NewFlags()
	return NewEvaluator(world, flags), flags
}

func TestEvaluateLeaves(t *testing.T) {
	e, flags := newTestEvaluator()

	assert.True(t, e.Evaluate(core.EntityAdjacent{A: "alice", B: "bob"}))
	assert.False(t, e.Evaluate(core.EntityAdjacent{A: "alice", B: "carol"}))
	assert.False(t, e.Evaluate(core.EntityAdjacent{A: "alice", B: "ghost"}))

	assert.True(t, e.Evaluate(core.EntityWithinRange{A: "alice", B: "carol", Range: 10}))
	assert.False(t, e.Evaluate(core.EntityWithinRange{A: "alice", B: "carol", Range: 3}))

	assert.True(t, e.Evaluate(core.EntityAtPosition{Entity: "bob", Pos: core.Position{X: 1, Y: 0}}))
	assert.False(t, e.Evaluate(core.EntityAtPosition{Entity: "bob", Pos: core.Position{X: 2, Y: 0}}))

	assert.True(t, e.Evaluate(core.AllWithinRange{Entities: []string{"alice", "bob"}, Anchor: "alice", Range: 2}))
	assert.False(t, e.Evaluate(core.AllWithinRange{Entities: []string{"alice", "carol"}, Anchor: "alice", Range: 2}))

	assert.False(t, e.Evaluate(core.FlagSet{Key: "door_open"}))
	flags.Set("door_open")
	assert.True(t, e.Evaluate(core.FlagSet{Key: "door_open"}))
	flags.ClearAll()
	assert.False(t, e.Evaluate(core.FlagSet{Key: "door_open"}))
}

func TestEvaluateTimer(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	world := &stubWorld{positions: map[string]core.Position{}}
	e := NewEvaluator(world, NewFlags(), func(o *Options) {
		o.Now = func() time.Time { return now }
	})

	assert.True(t, e.Evaluate(core.TimerExpired{Deadline: now.Add(-time.Second)}))
	assert.True(t, e.Evaluate(core.TimerExpired{Deadline: now}))
	assert.False(t, e.Evaluate(core.TimerExpired{Deadline: now.Add(time.Second)}))
}

func TestEvaluatorLaws(t *testing.T) {
	e, _ := newTestEvaluator()

	// not(c) == !c for every leaf shape
	cases := []core.Condition{
		core.EntityAdjacent{A: "alice", B: "bob"},
		core.EntityAdjacent{A: "alice", B: "carol"},
		core.Always{Value: true},
		core.Always{Value: false},
	}
	for _, c := range cases {
		assert.Equal(t, !e.Evaluate(c), e.Evaluate(core.Not{Condition: c}), "not law for %T", c)
	}

	// empty conjunction holds, empty disjunction does not
	assert.True(t, e.Evaluate(core.And{}))
	assert.False(t, e.Evaluate(core.Or{}))

	assert.True(t, e.Evaluate(core.And{Conditions: []core.Condition{
		core.Always{Value: true},
		core.EntityAdjacent{A: "alice", B: "bob"},
	}}))
	assert.True(t, e.Evaluate(core.Or{Conditions: []core.Condition{
		core.Always{Value: false},
		core.EntityAdjacent{A: "alice", B: "bob"},
	}}))
}

func TestDescribeDeterministic(t *testing.T) {
	c := core.And{Conditions: []core.Condition{
		core.EntityAdjacent{A: "alice", B: "bob"},
		core.Not{Condition: core.FlagSet{Key: "alarm"}},
	}}

	first := Describe(c)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Describe(c))
	}

	// every variant renders something
	variants := []core.Condition{
		core.EntityAdjacent{A: "a", B: "b"},
		core.EntityWithinRange{A: "a", B: "b", Range: 2},
		core.EntityAtPosition{Entity: "a", Pos: core.Position{X: 1, Y: 2}},
		core.AllWithinRange{Entities: []string{"b", "a"}, Anchor: "c", Range: 4},
		core.TimerExpired{Deadline: time.Unix(0, 0)},
		core.FlagSet{Key: "k"},
		core.And{},
		core.Or{},
		core.Not{Condition: core.Always{Value: true}},
		core.Always{Value: false},
	}
	for _, v := range variants {
		assert.NotEmpty(t, Describe(v), "describe %T", v)
	}
}
