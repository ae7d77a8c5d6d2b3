package collision_test

import (
	"math"
	"testing"

	"github.com/wisp-engine/wisp/pkg/collision"
	"github.com/wisp-engine/wisp/pkg/types"
)

func circleBody(id uint64, x, y, r float64) *types.Body {
	return &types.Body{
		ID:       id,
		Position: types.Vector2{X: x, Y: y},
		Shape:    types.ShapeCircle,
		Radius:   r,
		Active:   true,
	}
}

func boxBody(id uint64, x, y, w, h float64) *types.Body {
	return &types.Body{
		ID:       id,
		Position: types.Vector2{X: x, Y: y},
		Shape:    types.ShapeBox,
		Width:    w,
		Height:   h,
		Active:   true,
	}
}

func TestShapeTester_CircleCircle(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	a := circleBody(1, 0, 0, 5)
	b := circleBody(2, 8, 0, 5)

	if !tester.Test(a, b, &out) {
		t.Fatal("overlapping circles reported as separated")
	}
	contacts := out.Contacts()
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(contacts))
	}

	c := contacts[0]
	if c.A != 1 || c.B != 2 {
		t.Errorf("contact ids = (%d,%d), want (1,2)", c.A, c.B)
	}
	if c.Normal.X != 1 || c.Normal.Y != 0 {
		t.Errorf("normal = %+v, want (1,0)", c.Normal)
	}
	if math.Abs(c.Penetration-2) > 1e-9 {
		t.Errorf("penetration = %g, want 2", c.Penetration)
	}
}

func TestShapeTester_CircleCircleSeparated(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	if tester.Test(circleBody(1, 0, 0, 5), circleBody(2, 20, 0, 5), &out) {
		t.Error("separated circles reported as colliding")
	}
	if len(out.Contacts()) != 0 {
		t.Errorf("contacts = %d, want 0", len(out.Contacts()))
	}
}

func TestShapeTester_CircleCircleCoincident(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	if !tester.Test(circleBody(1, 3, 3, 5), circleBody(2, 3, 3, 5), &out) {
		t.Fatal("coincident circles reported as separated")
	}
	c := out.Contacts()[0]
	if c.Normal.Length() == 0 {
		t.Error("coincident centers produced a zero normal")
	}
	if math.Abs(c.Penetration-10) > 1e-9 {
		t.Errorf("penetration = %g, want 10", c.Penetration)
	}
}

func TestShapeTester_BoxBox(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	a := boxBody(1, 0, 0, 10, 10)
	b := boxBody(2, 8, 1, 10, 10)

	if !tester.Test(a, b, &out) {
		t.Fatal("overlapping boxes reported as separated")
	}
	c := out.Contacts()[0]
	// x overlap (2) is smaller than y overlap (9): least-penetration axis is x.
	if c.Normal.X != 1 || c.Normal.Y != 0 {
		t.Errorf("normal = %+v, want (1,0)", c.Normal)
	}
	if math.Abs(c.Penetration-2) > 1e-9 {
		t.Errorf("penetration = %g, want 2", c.Penetration)
	}
}

func TestShapeTester_BoxBoxSeparated(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	if tester.Test(boxBody(1, 0, 0, 4, 4), boxBody(2, 50, 50, 4, 4), &out) {
		t.Error("separated boxes reported as colliding")
	}
}

func TestShapeTester_CircleBox(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	circle := circleBody(1, 8, 0, 4)
	box := boxBody(2, 0, 0, 10, 10)

	if !tester.Test(circle, box, &out) {
		t.Fatal("circle touching box reported as separated")
	}
	c := out.Contacts()[0]
	if c.A != 1 || c.B != 2 {
		t.Errorf("contact ids = (%d,%d), want (1,2)", c.A, c.B)
	}
	// Closest box point to the circle center is (5,0), 3 units away.
	if c.Normal.X != -1 || c.Normal.Y != 0 {
		t.Errorf("normal = %+v, want (-1,0)", c.Normal)
	}
	if math.Abs(c.Penetration-1) > 1e-9 {
		t.Errorf("penetration = %g, want 1", c.Penetration)
	}
}

func TestShapeTester_BoxCircleKeepsPairOrder(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	box := boxBody(1, 0, 0, 10, 10)
	circle := circleBody(2, 8, 0, 4)

	if !tester.Test(box, circle, &out) {
		t.Fatal("box touching circle reported as separated")
	}
	c := out.Contacts()[0]
	if c.A != 1 || c.B != 2 {
		t.Errorf("contact ids = (%d,%d), want (1,2)", c.A, c.B)
	}
	if c.Normal.X != 1 || c.Normal.Y != 0 {
		t.Errorf("normal = %+v, want (1,0)", c.Normal)
	}
}

func TestShapeTester_CircleCenterInsideBox(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	if !tester.Test(circleBody(1, 1, 0, 3), boxBody(2, 0, 0, 10, 10), &out) {
		t.Fatal("circle inside box reported as separated")
	}
	if out.Contacts()[0].Normal.Length() == 0 {
		t.Error("containment produced a zero normal")
	}
}

func TestShapeTester_ShapelessNeverCollides(t *testing.T) {
	tester := collision.NewShapeTester()
	var out collision.Collector

	ghost := &types.Body{ID: 1, Active: true}
	if tester.Test(ghost, circleBody(2, 0, 0, 5), &out) {
		t.Error("shapeless body reported as colliding")
	}
}

func TestCollector_ResetKeepsCapacity(t *testing.T) {
	var out collision.Collector
	out.Add(types.Contact{A: 1, B: 2})
	out.Add(types.Contact{A: 3, B: 4})

	out.Reset()
	if len(out.Contacts()) != 0 {
		t.Errorf("contacts after reset = %d, want 0", len(out.Contacts()))
	}
}
