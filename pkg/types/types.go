// Package types provides core types and configurations for Wisp
package types

import (
	"fmt"
	"math"
)

// Vector2 is a 2D point or direction in world space.
type Vector2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns v + o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vector2) Scale(s float64) Vector2 {
	return Vector2{X: v.X * s, Y: v.Y * s}
}

// Length returns the euclidean length of v.
func (v Vector2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// LengthSquared returns the squared length of v.
func (v Vector2) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Normalized returns v scaled to unit length, or the zero vector if v is zero.
func (v Vector2) Normalized() Vector2 {
	l := v.Length()
	if l == 0 {
		return Vector2{}
	}
	return v.Scale(1 / l)
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vector2 `json:"min" yaml:"min"`
	Max Vector2 `json:"max" yaml:"max"`
}

// Overlaps reports whether the two boxes intersect, touching edges included.
func (a AABB) Overlaps(other AABB) bool {
	return a.Min.X <= other.Max.X && a.Max.X >= other.Min.X &&
		a.Min.Y <= other.Max.Y && a.Max.Y >= other.Min.Y
}

// Contains reports whether point lies inside the box.
func (a AABB) Contains(point Vector2) bool {
	return point.X >= a.Min.X && point.X <= a.Max.X &&
		point.Y >= a.Min.Y && point.Y <= a.Max.Y
}

// Center returns the midpoint of the box.
func (a AABB) Center() Vector2 {
	return Vector2{
		X: (a.Min.X + a.Max.X) * 0.5,
		Y: (a.Min.Y + a.Max.Y) * 0.5,
	}
}

// ShapeKind identifies the collision shape attached to a body.
type ShapeKind string

const (
	// ShapeNone marks a body with no collision shape. Such bodies have no
	// world bounds and are skipped by the broad phase.
	ShapeNone   ShapeKind = ""
	ShapeCircle ShapeKind = "circle"
	ShapeBox    ShapeKind = "box"
)

// Body is a world object that may participate in collision detection.
// Bodies are owned by the driving thread; workers only ever read them.
type Body struct {
	ID       uint64    `json:"id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Position Vector2   `json:"position" yaml:"position"`
	Velocity Vector2   `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Shape    ShapeKind `json:"shape" yaml:"shape"`

	// Radius applies to circle shapes.
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	// Width and Height apply to box shapes.
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`

	Active bool `json:"active" yaml:"active"`
}

// Bounds returns the body's world-space bounding box. The second return is
// false when the body has no shape and therefore no bounds.
func (b *Body) Bounds() (AABB, bool) {
	switch b.Shape {
	case ShapeCircle:
		return AABB{
			Min: Vector2{X: b.Position.X - b.Radius, Y: b.Position.Y - b.Radius},
			Max: Vector2{X: b.Position.X + b.Radius, Y: b.Position.Y + b.Radius},
		}, true
	case ShapeBox:
		halfW, halfH := b.Width*0.5, b.Height*0.5
		return AABB{
			Min: Vector2{X: b.Position.X - halfW, Y: b.Position.Y - halfH},
			Max: Vector2{X: b.Position.X + halfW, Y: b.Position.Y + halfH},
		}, true
	default:
		return AABB{}, false
	}
}

// Pair is an unordered candidate pair produced by the broad phase.
// Pairs are read-only to workers for the lifetime of a dispatch cycle.
type Pair struct {
	A *Body
	B *Body
}

// Contact is a single discovered contact between two bodies.
type Contact struct {
	A           uint64  `json:"a"`
	B           uint64  `json:"b"`
	Normal      Vector2 `json:"normal"`
	Penetration float64 `json:"penetration"`
	Point       Vector2 `json:"point"`
}

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SchedulingConfig controls the job scheduler.
type SchedulingConfig struct {
	// Workers is the fixed worker-thread pool size.
	Workers int `json:"workers" yaml:"workers"`
}

// WorldConfig describes the simulated world and its broad phase.
type WorldConfig struct {
	// CellSize is the broad-phase grid cell edge length in world units.
	CellSize float64 `json:"cellSize" yaml:"cellSize"`
	Bounds   AABB    `json:"bounds" yaml:"bounds"`
}

// FrameConfig controls the driving-thread frame loop.
type FrameConfig struct {
	// BudgetMillis is the target frame duration. Frames exceeding it count
	// as stalls.
	BudgetMillis int `json:"budgetMillis" yaml:"budgetMillis"`
	// MaxFrames stops the run after this many frames; 0 means run until
	// interrupted.
	MaxFrames int `json:"maxFrames,omitempty" yaml:"maxFrames,omitempty"`
}

// NotificationConfig controls desktop notifications.
type NotificationConfig struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// StallThreshold is the number of consecutive stalled frames before a
	// notification fires.
	StallThreshold int `json:"stallThreshold,omitempty" yaml:"stallThreshold,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level LogLevel `json:"level,omitempty" yaml:"level,omitempty"`
	File  string   `json:"file,omitempty" yaml:"file,omitempty"`
}

// WispConfig is the root configuration document.
type WispConfig struct {
	Version       string              `json:"version" yaml:"version"`
	Scheduling    SchedulingConfig    `json:"scheduling" yaml:"scheduling"`
	World         WorldConfig         `json:"world" yaml:"world"`
	Frame         FrameConfig         `json:"frame" yaml:"frame"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
	ScenePath     string              `json:"scene,omitempty" yaml:"scene,omitempty"`
}

// Validate checks structural invariants the engine relies on.
func (c *WispConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %q", c.Version)
	}
	if c.Scheduling.Workers < 1 {
		return fmt.Errorf("scheduling.workers must be at least 1, got %d", c.Scheduling.Workers)
	}
	if c.World.CellSize <= 0 {
		return fmt.Errorf("world.cellSize must be positive, got %v", c.World.CellSize)
	}
	if c.World.Bounds.Min.X >= c.World.Bounds.Max.X || c.World.Bounds.Min.Y >= c.World.Bounds.Max.Y {
		return fmt.Errorf("world.bounds min must be strictly below max")
	}
	if c.Frame.BudgetMillis <= 0 {
		return fmt.Errorf("frame.budgetMillis must be positive, got %d", c.Frame.BudgetMillis)
	}
	if c.Frame.MaxFrames < 0 {
		return fmt.Errorf("frame.maxFrames must not be negative, got %d", c.Frame.MaxFrames)
	}
	return nil
}
