// Package collision implements the frame-parallel collision pipeline:
// broad-phase candidate collection, sliced narrow-phase jobs on the
// scheduler's worker pool, and merge of discovered contacts back into the
// frame's authoritative list on the driving thread.
package collision

import (
	"math"
	"sync"

	"github.com/wisp-engine/wisp/pkg/types"
)

// BroadPhase produces candidate pairs for a frame. The pipeline owns the
// returned pair list; the referenced bodies stay owned by the world.
type BroadPhase interface {
	Rebuild(bodies []*types.Body)
	Clear()
	CandidatePairs() []types.Pair
}

// ContactTester runs the narrow phase for one candidate pair. It appends
// zero or more contacts to out and reports whether the pair collides. It
// must not retain out or the bodies past its own call.
type ContactTester interface {
	Test(a, b *types.Body, out *Collector) bool
}

// Collector gathers contacts produced by one narrow-phase call. Collectors
// are pooled; Reset before reuse.
type Collector struct {
	contacts []types.Contact
}

// Add appends a contact.
func (c *Collector) Add(contact types.Contact) {
	c.contacts = append(c.contacts, contact)
}

// Contacts returns the gathered contacts. The slice is only valid until the
// collector is reset.
func (c *Collector) Contacts() []types.Contact {
	return c.contacts
}

// Reset empties the collector, keeping capacity.
func (c *Collector) Reset() {
	c.contacts = c.contacts[:0]
}

var collectorPool = sync.Pool{
	New: func() interface{} {
		return &Collector{contacts: make([]types.Contact, 0, 4)}
	},
}

func getCollector() *Collector {
	return collectorPool.Get().(*Collector)
}

func putCollector(c *Collector) {
	c.Reset()
	collectorPool.Put(c)
}

// ShapeTester is the default ContactTester, dispatching on the shape kinds
// of the pair.
type ShapeTester struct{}

// NewShapeTester creates the default narrow-phase tester.
func NewShapeTester() *ShapeTester {
	return &ShapeTester{}
}

// Test implements ContactTester.
func (st *ShapeTester) Test(a, b *types.Body, out *Collector) bool {
	switch {
	case a.Shape == types.ShapeCircle && b.Shape == types.ShapeCircle:
		return testCircleCircle(a, b, out)
	case a.Shape == types.ShapeBox && b.Shape == types.ShapeBox:
		return testBoxBox(a, b, out)
	case a.Shape == types.ShapeCircle && b.Shape == types.ShapeBox:
		return testCircleBox(a, b, false, out)
	case a.Shape == types.ShapeBox && b.Shape == types.ShapeCircle:
		return testCircleBox(b, a, true, out)
	}
	return false
}

func testCircleCircle(a, b *types.Body, out *Collector) bool {
	delta := b.Position.Sub(a.Position)
	distSq := delta.LengthSquared()
	radiusSum := a.Radius + b.Radius

	if distSq > radiusSum*radiusSum {
		return false
	}

	dist := math.Sqrt(distSq)
	normal := types.Vector2{X: 1, Y: 0} // coincident centers: arbitrary axis
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	}

	out.Add(types.Contact{
		A:           a.ID,
		B:           b.ID,
		Normal:      normal,
		Penetration: radiusSum - dist,
		Point:       a.Position.Add(normal.Scale(a.Radius)),
	})
	return true
}

func testBoxBox(a, b *types.Body, out *Collector) bool {
	boundsA, _ := a.Bounds()
	boundsB, _ := b.Bounds()
	if !boundsA.Overlaps(boundsB) {
		return false
	}

	overlapX := math.Min(boundsA.Max.X, boundsB.Max.X) - math.Max(boundsA.Min.X, boundsB.Min.X)
	overlapY := math.Min(boundsA.Max.Y, boundsB.Max.Y) - math.Max(boundsA.Min.Y, boundsB.Min.Y)

	// Separate along the axis of least penetration.
	var normal types.Vector2
	var penetration float64
	if overlapX < overlapY {
		penetration = overlapX
		if a.Position.X < b.Position.X {
			normal = types.Vector2{X: 1, Y: 0}
		} else {
			normal = types.Vector2{X: -1, Y: 0}
		}
	} else {
		penetration = overlapY
		if a.Position.Y < b.Position.Y {
			normal = types.Vector2{X: 0, Y: 1}
		} else {
			normal = types.Vector2{X: 0, Y: -1}
		}
	}

	mid := types.Vector2{
		X: (math.Max(boundsA.Min.X, boundsB.Min.X) + math.Min(boundsA.Max.X, boundsB.Max.X)) * 0.5,
		Y: (math.Max(boundsA.Min.Y, boundsB.Min.Y) + math.Min(boundsA.Max.Y, boundsB.Max.Y)) * 0.5,
	}

	out.Add(types.Contact{
		A:           a.ID,
		B:           b.ID,
		Normal:      normal,
		Penetration: penetration,
		Point:       mid,
	})
	return true
}

// testCircleBox tests circle against box. flipped means the caller's pair
// order was (box, circle), so the reported contact is reversed to keep A/B
// matching the caller's order.
func testCircleBox(circle, box *types.Body, flipped bool, out *Collector) bool {
	bounds, _ := box.Bounds()

	closest := types.Vector2{
		X: clamp(circle.Position.X, bounds.Min.X, bounds.Max.X),
		Y: clamp(circle.Position.Y, bounds.Min.Y, bounds.Max.Y),
	}

	delta := closest.Sub(circle.Position)
	distSq := delta.LengthSquared()
	if distSq > circle.Radius*circle.Radius {
		return false
	}

	dist := math.Sqrt(distSq)
	var normal types.Vector2
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	} else {
		// Circle center inside the box: push out along the shortest axis.
		normal = box.Position.Sub(circle.Position).Normalized()
		if normal == (types.Vector2{}) {
			normal = types.Vector2{X: 1, Y: 0}
		}
	}

	contact := types.Contact{
		A:           circle.ID,
		B:           box.ID,
		Normal:      normal,
		Penetration: circle.Radius - dist,
		Point:       closest,
	}
	if flipped {
		contact.A, contact.B = contact.B, contact.A
		contact.Normal = contact.Normal.Scale(-1)
	}
	out.Add(contact)
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
