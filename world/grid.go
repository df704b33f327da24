// Package world provides a volatile in-memory grid implementing the
// core.WorldQuery, core.Pathfinder and core.Mover collaborator interfaces.
// It is safe for concurrent access and best suited for tests, examples or
// simple hosts; production simulations typically supply their own world.
package world

import (
	"fmt"
	"sync"

	"github.com/gridmind/gridmind/core"
)

// Grid is a bounded 4-connected grid with static obstacles and dynamic
// entity occupancy. Entities block movement: a cell holding an entity is not
// walkable for anyone else.
type Grid struct {
	mu       sync.RWMutex
	width    int
	height   int
	blocked  map[core.Position]struct{}
	entities map[string]core.Position
	occupied map[core.Position]string
}

// NewGrid constructs an empty grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	return &Grid{
		width:    width,
		height:   height,
		blocked:  make(map[core.Position]struct{}),
		entities: make(map[string]core.Position),
		occupied: make(map[core.Position]string),
	}
}

// SetBlocked marks a cell as a static obstacle.
func (g *Grid) SetBlocked(p core.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocked[p] = struct{}{}
}

// Place puts an entity on the grid, replacing any previous position.
func (g *Grid) Place(name string, p core.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inBounds(p) {
		return fmt.Errorf("position (%d, %d) out of bounds", p.X, p.Y)
	}
	if holder, ok := g.occupied[p]; ok && holder != name {
		return fmt.Errorf("position (%d, %d) occupied by %s", p.X, p.Y, holder)
	}
	if prev, ok := g.entities[name]; ok {
		delete(g.occupied, prev)
	}
	g.entities[name] = p
	g.occupied[p] = name
	return nil
}

// Remove deletes an entity from the grid.
func (g *Grid) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.entities[name]; ok {
		delete(g.occupied, p)
		delete(g.entities, name)
	}
}

// MoveEntity implements core.Mover; it applies a single-cell movement and
// rejects moves into blocked or occupied cells.
func (g *Grid) MoveEntity(name string, to core.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entities[name]; !ok {
		return fmt.Errorf("entity %s not placed", name)
	}
	if !g.walkableLocked(to, name) {
		return fmt.Errorf("cell (%d, %d) not walkable", to.X, to.Y)
	}
	prev := g.entities[name]
	delete(g.occupied, prev)
	g.entities[name] = to
	g.occupied[to] = name
	return nil
}

// EntityPosition implements core.WorldQuery.
func (g *Grid) EntityPosition(name string) (core.Position, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.entities[name]
	return p, ok
}

// Distance implements core.WorldQuery.
func (g *Grid) Distance(a, b string) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pa, oka := g.entities[a]
	pb, okb := g.entities[b]
	if !oka || !okb {
		return 0, false
	}
	return pa.Distance(pb), true
}

// Adjacent implements core.WorldQuery.
func (g *Grid) Adjacent(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pa, oka := g.entities[a]
	pb, okb := g.entities[b]
	return oka && okb && pa.Adjacent(pb)
}

// Walkable implements core.WorldQuery.
func (g *Grid) Walkable(p core.Position) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.walkableLocked(p, "")
}

// PathLength implements core.WorldQuery. Occupancy is ignored for length
// queries so that criteria about distant cells stay stable while entities
// wander through.
func (g *Grid) PathLength(from, to core.Position) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	path := g.bfsLocked(from, to, "", true)
	if path == nil {
		return 0, false
	}
	return len(path), true
}

// EntitiesWithin implements core.WorldQuery.
func (g *Grid) EntitiesWithin(center core.Position, radius float64, observer string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var names []string
	for name, p := range g.entities {
		if name == observer {
			continue
		}
		if center.Distance(p) <= radius {
			names = append(names, name)
		}
	}
	return names
}

// FindPath implements core.Pathfinder. The path excludes the start cell and
// includes the destination; nil means unreachable. Cells occupied by entities
// other than the mover are impassable.
func (g *Grid) FindPath(from, to core.Position, mover string) []core.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bfsLocked(from, to, mover, false)
}

func (g *Grid) inBounds(p core.Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

func (g *Grid) walkableLocked(p core.Position, mover string) bool {
	if !g.inBounds(p) {
		return false
	}
	if _, ok := g.blocked[p]; ok {
		return false
	}
	if holder, ok := g.occupied[p]; ok && holder != mover {
		return false
	}
	return true
}

// bfsLocked runs a breadth-first search from from to to. When ignoreEntities
// is set only static obstacles block; otherwise occupancy blocks except for
// the mover's own cell.
func (g *Grid) bfsLocked(from, to core.Position, mover string, ignoreEntities bool) []core.Position {
	if from == to {
		return []core.Position{}
	}
	passable := func(p core.Position) bool {
		if ignoreEntities {
			if !g.inBounds(p) {
				return false
			}
			_, blocked := g.blocked[p]
			return !blocked
		}
		return g.walkableLocked(p, mover)
	}
	if !passable(to) {
		return nil
	}

	prev := map[core.Position]core.Position{from: from}
	queue := []core.Position{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbors() {
			if _, seen := prev[n]; seen {
				continue
			}
			if !passable(n) {
				continue
			}
			prev[n] = cur
			if n == to {
				return rebuild(prev, from, to)
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func rebuild(prev map[core.Position]core.Position, from, to core.Position) []core.Position {
	var path []core.Position
	for cur := to; cur != from; cur = prev[cur] {
		path = append(path, cur)
	}
	// reverse into from→to order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
