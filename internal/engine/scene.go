package engine

import (
	"fmt"
	"os"

	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/types"
	"gopkg.in/yaml.v3"
)

// SceneLoader reads world documents from YAML files. Loaded scenes are
// charged to the scene allocation tag.
type SceneLoader struct {
	tracker *alloc.Tracker
	logger  logger.Logger
}

// NewSceneLoader creates a scene loader.
func NewSceneLoader(tracker *alloc.Tracker, log logger.Logger) *SceneLoader {
	if tracker == nil {
		tracker = alloc.NewTracker()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SceneLoader{tracker: tracker, logger: log.WithScope("scene")}
}

type sceneDocument struct {
	Name   string      `yaml:"name"`
	Bodies []sceneBody `yaml:"bodies"`
}

// sceneBody mirrors types.Body with an optional active flag, so bodies are
// active unless a scene says otherwise.
type sceneBody struct {
	ID       uint64          `yaml:"id"`
	Name     string          `yaml:"name"`
	Position types.Vector2   `yaml:"position"`
	Velocity types.Vector2   `yaml:"velocity"`
	Shape    types.ShapeKind `yaml:"shape"`
	Radius   float64         `yaml:"radius"`
	Width    float64         `yaml:"width"`
	Height   float64         `yaml:"height"`
	Active   *bool           `yaml:"active"`
}

// LoadScene reads, validates, and materializes a scene document. Bodies
// without an explicit id are assigned the next free one.
func (sl *SceneLoader) LoadScene(path string) ([]*types.Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	var doc sceneDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}

	seen := make(map[uint64]bool)
	var maxID uint64
	for _, sb := range doc.Bodies {
		if sb.ID != 0 {
			if seen[sb.ID] {
				return nil, fmt.Errorf("scene %q: duplicate body id %d", doc.Name, sb.ID)
			}
			seen[sb.ID] = true
			if sb.ID > maxID {
				maxID = sb.ID
			}
		}
	}

	bodies := make([]*types.Body, 0, len(doc.Bodies))
	for i, sb := range doc.Bodies {
		if err := validateSceneBody(sb); err != nil {
			return nil, fmt.Errorf("scene %q: body %d: %w", doc.Name, i, err)
		}

		id := sb.ID
		if id == 0 {
			maxID++
			id = maxID
		}

		active := true
		if sb.Active != nil {
			active = *sb.Active
		}

		bodies = append(bodies, &types.Body{
			ID:       id,
			Name:     sb.Name,
			Position: sb.Position,
			Velocity: sb.Velocity,
			Shape:    sb.Shape,
			Radius:   sb.Radius,
			Width:    sb.Width,
			Height:   sb.Height,
			Active:   active,
		})
	}

	sl.tracker.Acquire(alloc.TagScene)
	sl.logger.Info("Scene loaded",
		logger.WithField("name", doc.Name),
		logger.WithField("bodies", len(bodies)))

	return bodies, nil
}

func validateSceneBody(sb sceneBody) error {
	switch sb.Shape {
	case types.ShapeCircle:
		if sb.Radius <= 0 {
			return fmt.Errorf("circle requires a positive radius, got %v", sb.Radius)
		}
	case types.ShapeBox:
		if sb.Width <= 0 || sb.Height <= 0 {
			return fmt.Errorf("box requires positive width and height, got %vx%v", sb.Width, sb.Height)
		}
	case types.ShapeNone:
		// Shapeless bodies are allowed; they just never collide.
	default:
		return fmt.Errorf("unknown shape %q", sb.Shape)
	}
	return nil
}
