package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/core"
)

func TestPlaceAndQuery(t *testing.T) {
	g := NewGrid(10, 10)
	require.NoError(t, g.Place("alice", core.Position{X: 1, Y: 1}))
	require.NoError(t, g.Place("bob", core.Position{X: 2, Y: 1}))

	p, ok := g.EntityPosition("alice")
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 1, Y: 1}, p)

	assert.True(t, g.Adjacent("alice", "bob"))

	d, ok := g.Distance("alice", "bob")
	require.True(t, ok)
	assert.InDelta(t, 1.0, d, 1e-9)

	_, ok = g.EntityPosition("ghost")
	assert.False(t, ok)
}

func TestPlaceRejectsOccupiedAndOutOfBounds(t *testing.T) {
	g := NewGrid(4, 4)
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))
	assert.Error(t, g.Place("bob", core.Position{X: 0, Y: 0}))
	assert.Error(t, g.Place("bob", core.Position{X: 9, Y: 0}))
}

func TestMoveEntity(t *testing.T) {
	g := NewGrid(5, 5)
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))
	require.NoError(t, g.Place("bob", core.Position{X: 1, Y: 0}))

	// into bob's cell: rejected
	assert.Error(t, g.MoveEntity("alice", core.Position{X: 1, Y: 0}))

	require.NoError(t, g.MoveEntity("alice", core.Position{X: 0, Y: 1}))
	p, _ := g.EntityPosition("alice")
	assert.Equal(t, core.Position{X: 0, Y: 1}, p)

	// alice's old cell is free again
	require.NoError(t, g.MoveEntity("bob", core.Position{X: 0, Y: 0}))
}

func TestFindPathAroundObstacles(t *testing.T) {
	g := NewGrid(5, 5)
	// wall at x=2 with a gap at y=4
	for y := 0; y < 4; y++ {
		g.SetBlocked(core.Position{X: 2, Y: y})
	}
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))

	path := g.FindPath(core.Position{X: 0, Y: 0}, core.Position{X: 4, Y: 0}, "alice")
	require.NotNil(t, path)
	assert.Equal(t, core.Position{X: 4, Y: 0}, path[len(path)-1])
	// must detour through the gap
	assert.Contains(t, path, core.Position{X: 2, Y: 4})

	// consecutive steps stay orthogonally adjacent
	prev := core.Position{X: 0, Y: 0}
	for _, step := range path {
		assert.True(t, prev.Adjacent(step), "step %v not adjacent to %v", step, prev)
		prev = step
	}
}

func TestFindPathUnreachable(t *testing.T) {
	g := NewGrid(3, 3)
	g.SetBlocked(core.Position{X: 1, Y: 0})
	g.SetBlocked(core.Position{X: 1, Y: 1})
	g.SetBlocked(core.Position{X: 1, Y: 2})
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))

	assert.Nil(t, g.FindPath(core.Position{X: 0, Y: 0}, core.Position{X: 2, Y: 0}, "alice"))
	_, ok := g.PathLength(core.Position{X: 0, Y: 0}, core.Position{X: 2, Y: 0})
	assert.False(t, ok)
}

func TestFindPathBlockedByEntity(t *testing.T) {
	g := NewGrid(5, 1)
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))
	require.NoError(t, g.Place("bob", core.Position{X: 2, Y: 0}))

	// bob blocks the corridor for pathing...
	assert.Nil(t, g.FindPath(core.Position{X: 0, Y: 0}, core.Position{X: 4, Y: 0}, "alice"))
	// ...but PathLength ignores occupancy
	n, ok := g.PathLength(core.Position{X: 0, Y: 0}, core.Position{X: 4, Y: 0})
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestEntitiesWithin(t *testing.T) {
	g := NewGrid(10, 10)
	require.NoError(t, g.Place("alice", core.Position{X: 0, Y: 0}))
	require.NoError(t, g.Place("bob", core.Position{X: 1, Y: 1}))
	require.NoError(t, g.Place("carol", core.Position{X: 9, Y: 9}))

	near := g.EntitiesWithin(core.Position{X: 0, Y: 0}, 3, "alice")
	assert.ElementsMatch(t, []string{"bob"}, near)
}
