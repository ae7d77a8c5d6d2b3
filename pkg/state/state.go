// Package state provides persistent run state for Wisp sessions
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/process"
)

// RunStatus describes the lifecycle of a recorded run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
)

// heartbeatStaleAfter is how long a heartbeat may age before the run is
// considered dead even if its state file says running.
const heartbeatStaleAfter = 30 * time.Second

// RunState is the persistent record of one engine session.
type RunState struct {
	SessionID string    `json:"sessionId"`
	ProcessID int       `json:"processId"`
	Status    RunStatus `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Heartbeat time.Time `json:"heartbeat"`

	Frame     uint64 `json:"frame"`
	Bodies    int    `json:"bodies"`
	Contacts  int    `json:"contacts"`
	Stalls    int    `json:"stalls"`
	LastError string `json:"lastError,omitempty"`
}

// FrameStats is the per-frame progress written into the run state.
type FrameStats struct {
	Frame    uint64
	Bodies   int
	Contacts int
	Stalls   int
}

// Manager owns this process's run state file and can discover others.
type Manager struct {
	stateDir  string
	sessionID string
	logger    logger.Logger

	mu             sync.Mutex
	current        *RunState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewManager creates a state manager rooted at projectRoot. State files live
// under .wisp/state.
func NewManager(projectRoot string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	stateDir := filepath.Join(projectRoot, ".wisp", "state")

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &Manager{
		stateDir:  stateDir,
		sessionID: uuid.New().String(),
		logger:    log,
	}
}

// SessionID returns this manager's session identifier.
func (sm *Manager) SessionID() string {
	return sm.sessionID
}

// InitializeRun creates and persists the state record for this session.
func (sm *Manager) InitializeRun() (*RunState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	run := &RunState{
		SessionID: sm.sessionID,
		ProcessID: os.Getpid(),
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
		Heartbeat: time.Now(),
	}

	if err := sm.saveStateFile(run); err != nil {
		return nil, fmt.Errorf("failed to save initial run state: %w", err)
	}

	sm.current = run
	return run, nil
}

// UpdateFrame records per-frame progress and refreshes the heartbeat.
func (sm *Manager) UpdateFrame(stats FrameStats) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return fmt.Errorf("run state not initialized")
	}

	sm.current.Frame = stats.Frame
	sm.current.Bodies = stats.Bodies
	sm.current.Contacts = stats.Contacts
	sm.current.Stalls = stats.Stalls
	sm.current.Heartbeat = time.Now()

	return sm.saveStateFile(sm.current)
}

// RecordError stores the run's last error message.
func (sm *Manager) RecordError(err error) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return fmt.Errorf("run state not initialized")
	}
	sm.current.LastError = err.Error()
	return sm.saveStateFile(sm.current)
}

// StartHeartbeat starts the background heartbeat updater
func (sm *Manager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return
	}

	sm.heartbeatStop = make(chan struct{})
	sm.heartbeatTimer = time.NewTicker(10 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sm.heartbeatStop:
				return
			case <-sm.heartbeatTimer.C:
				sm.refreshHeartbeat()
			}
		}
	}()
}

// StopHeartbeat stops the background heartbeat updater
func (sm *Manager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}

	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup marks the run stopped and stops the heartbeat. The state file is
// kept so `wisp status` can report the last run.
func (sm *Manager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return nil
	}

	sm.current.Status = RunStatusStopped
	sm.current.ProcessID = 0
	return sm.saveStateFile(sm.current)
}

// RemoveState deletes a session's state file.
func (sm *Manager) RemoveState(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stateFile := sm.stateFilePath(sessionID)
	if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// DiscoverRuns loads every recorded run under the state directory.
func (sm *Manager) DiscoverRuns() (map[string]*RunState, error) {
	runs := make(map[string]*RunState)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return runs, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		sessionID := file.Name()[:len(file.Name())-5]
		run, err := sm.loadStateFile(sessionID)
		if err != nil {
			sm.logger.Warn("Failed to load run state file",
				logger.WithField("session", sessionID),
				logger.WithField("error", err))
			continue
		}

		runs[sessionID] = run
	}

	return runs, nil
}

// IsActive reports whether a discovered run is still alive: its file says
// running, its heartbeat is fresh, and its process exists.
func (sm *Manager) IsActive(run *RunState) bool {
	if run == nil || run.Status != RunStatusRunning {
		return false
	}
	if time.Since(run.Heartbeat) > heartbeatStaleAfter {
		return false
	}
	if run.ProcessID == os.Getpid() {
		return true
	}
	return process.IsProcessAlive(run.ProcessID)
}

func (sm *Manager) stateFilePath(sessionID string) string {
	return filepath.Join(sm.stateDir, sessionID+".json")
}

func (sm *Manager) loadStateFile(sessionID string) (*RunState, error) {
	data, err := os.ReadFile(sm.stateFilePath(sessionID))
	if err != nil {
		return nil, err
	}

	var run RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &run, nil
}

func (sm *Manager) saveStateFile(run *RunState) error {
	stateFile := sm.stateFilePath(run.SessionID)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	// Write atomically
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (sm *Manager) refreshHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return
	}
	sm.current.Heartbeat = time.Now()
	if err := sm.saveStateFile(sm.current); err != nil {
		sm.logger.Debug("Failed to update heartbeat",
			logger.WithField("session", sm.current.SessionID),
			logger.WithField("error", err))
	}
}
