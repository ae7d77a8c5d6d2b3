package engine

import (
	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/config"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/notifier"
	"github.com/wisp-engine/wisp/pkg/process"
	"github.com/wisp-engine/wisp/pkg/state"
	"github.com/wisp-engine/wisp/pkg/types"
)

// DependencyFactory creates default implementations of the engine's
// dependencies, keeping concrete fallbacks out of constructors.
type DependencyFactory struct {
	projectRoot string
	logger      logger.Logger
	config      *types.WispConfig
	tracker     *alloc.Tracker
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(projectRoot string, log logger.Logger, cfg *types.WispConfig) *DependencyFactory {
	if log == nil {
		log = logger.Nop()
	}
	return &DependencyFactory{
		projectRoot: projectRoot,
		logger:      log,
		config:      cfg,
		tracker:     alloc.NewTracker(),
	}
}

// CreateDefaults creates all default dependencies for the engine.
func (f *DependencyFactory) CreateDefaults() Dependencies {
	deps := Dependencies{
		StateManager:   state.NewManager(f.projectRoot, f.logger),
		ProcessManager: process.NewManager(f.logger),
		ConfigManager:  config.NewManager(),
		SceneLoader:    NewSceneLoader(f.tracker, f.logger),
		Tracker:        f.tracker,
	}

	deps.Notifier = f.createNotifier()

	return deps
}

// CreateWithOverrides creates dependencies with specific overrides.
// Non-nil override values replace the defaults; useful for testing.
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) Dependencies {
	deps := f.CreateDefaults()

	if overrides.StateManager != nil {
		deps.StateManager = overrides.StateManager
	}
	if overrides.ProcessManager != nil {
		deps.ProcessManager = overrides.ProcessManager
	}
	if overrides.ConfigManager != nil {
		deps.ConfigManager = overrides.ConfigManager
	}
	if overrides.SceneLoader != nil {
		deps.SceneLoader = overrides.SceneLoader
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Tracker != nil {
		deps.Tracker = overrides.Tracker
	}

	return deps
}

// Tracker returns the allocation tracker the factory's scene loader
// acquires on.
func (f *DependencyFactory) Tracker() *alloc.Tracker {
	return f.tracker
}

func (f *DependencyFactory) createNotifier() *notifier.FrameNotifier {
	cfg := notifier.Config{}
	if n := f.config.Notifications; n != nil {
		cfg.Enabled = n.Enabled != nil && *n.Enabled
		cfg.StallThreshold = n.StallThreshold
	}
	return notifier.New(cfg, f.logger)
}
