//go:build integration
// +build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wisp-engine/wisp/internal/engine"
	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/config"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/state"
	"github.com/wisp-engine/wisp/pkg/types"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func integrationConfig(frames int) *types.WispConfig {
	disabled := false
	return &types.WispConfig{
		Version:    "1.0",
		Scheduling: types.SchedulingConfig{Workers: 4},
		World: types.WorldConfig{
			CellSize: 50,
			Bounds: types.AABB{
				Min: types.Vector2{X: -500, Y: -500},
				Max: types.Vector2{X: 500, Y: 500},
			},
		},
		Frame:         types.FrameConfig{BudgetMillis: 2, MaxFrames: frames},
		Notifications: &types.NotificationConfig{Enabled: &disabled},
	}
}

// TestEndToEndRun drives a full run: config from disk, scene from disk, the
// engine stepping frames with real dependencies, run state persisted.
func TestEndToEndRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tmpDir := t.TempDir()
	log := logger.CreateLoggerWithOutput("error", os.Stderr)

	// Persist and reload the config through the manager, as the CLI would.
	cfgPath := filepath.Join(tmpDir, "wisp.config.json")
	manager := config.NewManager()
	cfg := integrationConfig(20)
	cfg.ScenePath = "scene.yaml"
	if err := manager.SaveConfig(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := manager.LoadConfig(cfgPath)
	if err != nil {
		t.Fatal(err)
	}

	writeTestFile(t, filepath.Join(tmpDir, "scene.yaml"), `name: integration
bodies:
  - id: 1
    position: {x: 0, y: 0}
    velocity: {x: 50, y: 0}
    shape: circle
    radius: 10
  - id: 2
    position: {x: 15, y: 0}
    velocity: {x: -50, y: 0}
    shape: circle
    radius: 10
  - id: 3
    position: {x: 0, y: 30}
    shape: box
    width: 40
    height: 10
`)

	factory := engine.NewDependencyFactory(tmpDir, log, loaded)
	deps := factory.CreateDefaults()

	e := engine.New(loaded, tmpDir, log, deps, cfgPath)
	if err := e.StartWithContext(context.Background()); err != nil {
		t.Fatalf("StartWithContext: %v", err)
	}
	if err := e.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	stats := e.Stats()
	if stats.Frames != 20 {
		t.Errorf("frames = %d, want 20", stats.Frames)
	}
	if stats.Contacts == 0 {
		t.Error("overlapping scene bodies produced no contacts")
	}

	if err := e.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	// No frame-shared resources may survive the run.
	tracker := e.Tracker()
	for _, tag := range []alloc.Tag{alloc.TagPairList, alloc.TagHitBatch, alloc.TagScene} {
		if live := tracker.Live(tag); live != 0 {
			t.Errorf("live %s = %d after cleanup, want 0", tag, live)
		}
	}

	// The run must be discoverable and marked stopped.
	sm := state.NewManager(tmpDir, log)
	runs, err := sm.DiscoverRuns()
	if err != nil {
		t.Fatalf("DiscoverRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("discovered %d runs, want 1", len(runs))
	}
	for _, run := range runs {
		if run.Status != state.RunStatusStopped {
			t.Errorf("run status = %s, want stopped", run.Status)
		}
		if run.Frame == 0 {
			t.Error("run state never recorded frame progress")
		}
	}
}

// TestInterruptedRun stops the engine mid-flight and verifies nothing leaks.
func TestInterruptedRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tmpDir := t.TempDir()
	log := logger.CreateLoggerWithOutput("error", os.Stderr)

	cfg := integrationConfig(0) // run until stopped
	factory := engine.NewDependencyFactory(tmpDir, log, cfg)
	deps := factory.CreateDefaults()

	e := engine.New(cfg, tmpDir, log, deps, "")
	e.SetBodies([]*types.Body{
		{ID: 1, Position: types.Vector2{X: 0, Y: 0}, Velocity: types.Vector2{X: 20, Y: 0},
			Shape: types.ShapeCircle, Radius: 8, Active: true},
		{ID: 2, Position: types.Vector2{X: 10, Y: 0}, Velocity: types.Vector2{X: -20, Y: 0},
			Shape: types.ShapeCircle, Radius: 8, Active: true},
	})

	if err := e.StartWithContext(context.Background()); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.StopWithContext(shutdownCtx)

	if err := e.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if e.Stats().Frames == 0 {
		t.Error("engine stopped without completing any frames")
	}

	tracker := e.Tracker()
	if live := tracker.Live(alloc.TagPairList); live != 0 {
		t.Errorf("live pair lists = %d after interrupted run, want 0", live)
	}
	if live := tracker.Live(alloc.TagHitBatch); live != 0 {
		t.Errorf("live hit batches = %d after interrupted run, want 0", live)
	}
}
