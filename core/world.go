package core

import "math"

// Position is a cell coordinate on the 4-connected world grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adjacent reports whether o is exactly one orthogonal step away.
func (p Position) Adjacent(o Position) bool {
	dx := abs(p.X - o.X)
	dy := abs(p.Y - o.Y)
	return dx+dy == 1
}

// Distance returns the Euclidean distance between the two positions.
func (p Position) Distance(o Position) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Neighbors returns the four orthogonal neighbor cells.
func (p Position) Neighbors() [4]Position {
	return [4]Position{
		{X: p.X + 1, Y: p.Y},
		{X: p.X - 1, Y: p.Y},
		{X: p.X, Y: p.Y + 1},
		{X: p.X, Y: p.Y - 1},
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// WorldQuery is the read-only view of the simulated world consulted by the
// condition evaluator and the behavior machines. Implementations must be safe
// for concurrent readers.
type WorldQuery interface {
	// EntityPosition returns the current position of a named entity.
	EntityPosition(name string) (Position, bool)
	// Distance returns the pairwise Euclidean distance between two entities.
	Distance(a, b string) (float64, bool)
	// Adjacent reports whether two entities occupy orthogonally adjacent cells.
	Adjacent(a, b string) bool
	// Walkable reports whether the cell can currently be entered.
	Walkable(p Position) bool
	// PathLength returns the number of steps on the shortest path between two
	// cells, or false when no path exists.
	PathLength(from, to Position) (int, bool)
	// EntitiesWithin lists entity names within radius of center, excluding the
	// named observer.
	EntitiesWithin(center Position, radius float64, observer string) []string
}

// Pathfinder computes shortest paths on a 4-connected grid with dynamic
// occupancy. FindPath returns the sequence of cells to step through, excluding
// the start and including the destination; nil means unreachable.
type Pathfinder interface {
	FindPath(from, to Position, mover string) []Position
}

// Mover applies a single-cell movement to the host world. The behavior
// machine is the only caller; each agent's machine only moves its own entity.
type Mover interface {
	MoveEntity(name string, to Position) error
}
