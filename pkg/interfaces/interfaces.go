// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/wisp-engine/wisp/pkg/state"
	"github.com/wisp-engine/wisp/pkg/types"
)

// RunStateManager handles the persistent record of an engine session
type RunStateManager interface {
	SessionID() string
	InitializeRun() (*state.RunState, error)
	UpdateFrame(stats state.FrameStats) error
	RecordError(err error) error
	DiscoverRuns() (map[string]*state.RunState, error)
	IsActive(run *state.RunState) bool
	RemoveState(sessionID string) error
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Cleanup() error
}

// FrameNotifier surfaces run lifecycle events to the user
type FrameNotifier interface {
	NotifyRunStart(workers int)
	NotifyRunComplete(frames uint64, duration time.Duration)
	NotifyFrameStall(consecutive int, lastFrame time.Duration)
	NotifyQueueBacklog(pending int, completed int)
}

// ProcessManager handles process lifecycle
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// ConfigManager handles configuration loading and validation
type ConfigManager interface {
	LoadConfig(path string) (*types.WispConfig, error)
	SaveConfig(path string, cfg *types.WispConfig) error
	FindConfig(dir string) (string, error)
	GetDefaultConfig() *types.WispConfig
}

// SceneLoader reads world documents from disk
type SceneLoader interface {
	LoadScene(path string) ([]*types.Body, error)
}
