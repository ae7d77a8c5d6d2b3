package types_test

import (
	"testing"

	"github.com/wisp-engine/wisp/pkg/types"
)

func TestAABB_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b types.AABB
		want bool
	}{
		{
			name: "overlapping",
			a:    types.AABB{Min: types.Vector2{X: 0, Y: 0}, Max: types.Vector2{X: 2, Y: 2}},
			b:    types.AABB{Min: types.Vector2{X: 1, Y: 1}, Max: types.Vector2{X: 3, Y: 3}},
			want: true,
		},
		{
			name: "touching edges",
			a:    types.AABB{Min: types.Vector2{X: 0, Y: 0}, Max: types.Vector2{X: 1, Y: 1}},
			b:    types.AABB{Min: types.Vector2{X: 1, Y: 0}, Max: types.Vector2{X: 2, Y: 1}},
			want: true,
		},
		{
			name: "disjoint horizontally",
			a:    types.AABB{Min: types.Vector2{X: 0, Y: 0}, Max: types.Vector2{X: 1, Y: 1}},
			b:    types.AABB{Min: types.Vector2{X: 5, Y: 0}, Max: types.Vector2{X: 6, Y: 1}},
			want: false,
		},
		{
			name: "disjoint vertically",
			a:    types.AABB{Min: types.Vector2{X: 0, Y: 0}, Max: types.Vector2{X: 1, Y: 1}},
			b:    types.AABB{Min: types.Vector2{X: 0, Y: 5}, Max: types.Vector2{X: 1, Y: 6}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBody_Bounds(t *testing.T) {
	circle := &types.Body{
		ID:       1,
		Position: types.Vector2{X: 10, Y: 10},
		Shape:    types.ShapeCircle,
		Radius:   2,
		Active:   true,
	}

	bounds, ok := circle.Bounds()
	if !ok {
		t.Fatal("circle should have bounds")
	}
	if bounds.Min.X != 8 || bounds.Max.X != 12 {
		t.Errorf("unexpected circle bounds: %+v", bounds)
	}

	box := &types.Body{
		ID:       2,
		Position: types.Vector2{X: 0, Y: 0},
		Shape:    types.ShapeBox,
		Width:    4,
		Height:   2,
		Active:   true,
	}

	bounds, ok = box.Bounds()
	if !ok {
		t.Fatal("box should have bounds")
	}
	if bounds.Min.X != -2 || bounds.Max.Y != 1 {
		t.Errorf("unexpected box bounds: %+v", bounds)
	}

	shapeless := &types.Body{ID: 3, Active: true}
	if _, ok := shapeless.Bounds(); ok {
		t.Error("shapeless body must not report bounds")
	}
}

func TestVector2_Normalized(t *testing.T) {
	v := types.Vector2{X: 3, Y: 4}
	n := v.Normalized()
	if got := n.Length(); got < 0.999 || got > 1.001 {
		t.Errorf("normalized length = %v, want 1", got)
	}

	zero := types.Vector2{}
	if n := zero.Normalized(); n != (types.Vector2{}) {
		t.Errorf("normalizing zero vector should stay zero, got %+v", n)
	}
}

func TestWispConfig_Validate(t *testing.T) {
	valid := func() *types.WispConfig {
		return &types.WispConfig{
			Version:    "1.0",
			Scheduling: types.SchedulingConfig{Workers: 4},
			World: types.WorldConfig{
				CellSize: 50,
				Bounds: types.AABB{
					Min: types.Vector2{X: -100, Y: -100},
					Max: types.Vector2{X: 100, Y: 100},
				},
			},
			Frame: types.FrameConfig{BudgetMillis: 16},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := valid()
	cfg.Version = "2.0"
	if err := cfg.Validate(); err == nil {
		t.Error("expected version error")
	}

	cfg = valid()
	cfg.Scheduling.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected workers error")
	}

	cfg = valid()
	cfg.World.CellSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected cell size error")
	}

	cfg = valid()
	cfg.World.Bounds.Max = cfg.World.Bounds.Min
	if err := cfg.Validate(); err == nil {
		t.Error("expected bounds error")
	}

	cfg = valid()
	cfg.Frame.BudgetMillis = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected frame budget error")
	}
}
