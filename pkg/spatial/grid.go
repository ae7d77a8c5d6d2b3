// Package spatial provides the broad-phase index producing candidate pairs
package spatial

import (
	"math"
	"sort"
	"sync"

	"github.com/wisp-engine/wisp/pkg/types"
)

type gridCell struct {
	x, y int
}

// Grid is a uniform cell-hash broad phase. Bodies are binned into every cell
// their bounds touch; candidate pairs are bodies sharing at least one cell.
type Grid struct {
	cellSize float64
	cells    map[gridCell][]*types.Body
	count    int
	mu       sync.RWMutex
}

// NewGrid creates a grid with the given cell edge length. A non-positive
// cell size falls back to 64 world units.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 64
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[gridCell][]*types.Body),
	}
}

// Rebuild clears the grid and inserts every active body that has bounds.
func (g *Grid) Rebuild(bodies []*types.Body) {
	g.Clear()

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, body := range bodies {
		if body == nil || !body.Active {
			continue
		}
		bounds, ok := body.Bounds()
		if !ok {
			continue
		}
		g.insertLocked(body, bounds)
	}
}

// Clear empties the grid while keeping cell capacity for the next frame.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key := range g.cells {
		g.cells[key] = g.cells[key][:0]
	}
	g.count = 0
}

// Size returns the number of indexed bodies.
func (g *Grid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// CandidatePairs returns every unordered pair of bodies sharing a cell,
// deduplicated and sorted by id so slice partitioning downstream is
// reproducible for a given world state. The caller owns the returned slice;
// the referenced bodies stay owned by the world.
func (g *Grid) CandidatePairs() []types.Pair {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[[2]uint64]bool)
	var pairs []types.Pair

	for _, bodies := range g.cells {
		for i := 0; i < len(bodies); i++ {
			for j := i + 1; j < len(bodies); j++ {
				a, b := bodies[i], bodies[j]

				key := [2]uint64{a.ID, b.ID}
				if a.ID > b.ID {
					key[0], key[1] = key[1], key[0]
					a, b = b, a
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, types.Pair{A: a, B: b})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.ID != pairs[j].A.ID {
			return pairs[i].A.ID < pairs[j].A.ID
		}
		return pairs[i].B.ID < pairs[j].B.ID
	})
	return pairs
}

// insertLocked bins the body into every cell its bounds touch.
func (g *Grid) insertLocked(body *types.Body, bounds types.AABB) {
	minCell := g.cellAt(bounds.Min)
	maxCell := g.cellAt(bounds.Max)

	for x := minCell.x; x <= maxCell.x; x++ {
		for y := minCell.y; y <= maxCell.y; y++ {
			cell := gridCell{x: x, y: y}
			g.cells[cell] = append(g.cells[cell], body)
		}
	}
	g.count++
}

func (g *Grid) cellAt(pos types.Vector2) gridCell {
	return gridCell{
		x: int(math.Floor(pos.X / g.cellSize)),
		y: int(math.Floor(pos.Y / g.cellSize)),
	}
}
