package engine

import (
	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/interfaces"
)

// Dependencies contains all injectable collaborators of the engine.
type Dependencies struct {
	StateManager   interfaces.RunStateManager
	Notifier       interfaces.FrameNotifier
	ProcessManager interfaces.ProcessManager
	ConfigManager  interfaces.ConfigManager
	SceneLoader    interfaces.SceneLoader

	// Tracker counts frame-shared allocations. A SceneLoader that tags
	// scene memory must acquire on this same tracker, since the engine
	// releases the scene tag here during Cleanup. When nil the engine
	// creates its own.
	Tracker *alloc.Tracker
}
