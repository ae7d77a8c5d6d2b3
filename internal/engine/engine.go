// Package engine provides the core frame orchestration for Wisp. It owns
// the job scheduler and collision pipeline, drives the fixed-budget frame
// loop on a single goroutine, and wires run state, notifications, and
// process lifecycle around it.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/collision"
	"github.com/wisp-engine/wisp/pkg/jobqueue"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/spatial"
	"github.com/wisp-engine/wisp/pkg/state"
	"github.com/wisp-engine/wisp/pkg/types"
)

// statePersistEvery is how many frames pass between run state writes.
const statePersistEvery = 30

// RunStats is a snapshot of the engine's progress.
type RunStats struct {
	Frames            uint64
	Contacts          uint64
	Stalls            int
	ConsecutiveStalls int
	LastFrameDuration time.Duration
}

// Engine is the Wisp runtime: one driving goroutine stepping frames, a
// worker pool doing the collision math.
type Engine struct {
	config      *types.WispConfig
	projectRoot string
	configPath  string
	logger      logger.Logger

	deps        Dependencies
	tracker     *alloc.Tracker
	scheduler   *jobqueue.Scheduler
	pipeline    *collision.Pipeline
	bodies      []*types.Body
	sceneLoaded bool

	stats RunStats

	isRunning bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	group     *SafeGroup
	finish    sync.Once
	mu        sync.RWMutex
}

// New creates an engine. The scheduler pool is started immediately; the
// frame loop waits for StartWithContext.
func New(
	cfg *types.WispConfig,
	projectRoot string,
	log logger.Logger,
	deps Dependencies,
	configPath string,
) *Engine {
	if cfg == nil {
		panic("engine: config is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if deps.StateManager == nil {
		panic("engine: StateManager dependency is required")
	}

	if abs, err := filepath.Abs(projectRoot); err == nil {
		projectRoot = abs
	} else {
		log.Error(fmt.Sprintf("Failed to get absolute path for project root: %v", err))
	}

	// The scene loader acquires on the injected tracker; Cleanup releases
	// the scene tag on the same instance.
	tracker := deps.Tracker
	if tracker == nil {
		tracker = alloc.NewTracker()
	}
	scheduler := jobqueue.New(cfg.Scheduling.Workers, log)
	grid := spatial.NewGrid(cfg.World.CellSize)
	pipeline := collision.NewPipeline(scheduler, grid, collision.NewShapeTester(), tracker, log)

	return &Engine{
		config:      cfg,
		projectRoot: projectRoot,
		configPath:  configPath,
		logger:      log.WithScope("engine"),
		deps:        deps,
		tracker:     tracker,
		scheduler:   scheduler,
		pipeline:    pipeline,
	}
}

// SetBodies replaces the engine's world. Only valid before StartWithContext.
func (e *Engine) SetBodies(bodies []*types.Body) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isRunning {
		panic("engine: SetBodies while running")
	}
	e.bodies = bodies
}

// Bodies returns the engine's world.
func (e *Engine) Bodies() []*types.Body {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bodies
}

// Stats returns a snapshot of run progress.
func (e *Engine) Stats() RunStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Tracker exposes the engine's allocation accounting.
func (e *Engine) Tracker() *alloc.Tracker {
	return e.tracker
}

// ApplyConfig applies the tunables that may change between frames: the frame
// budget and the dispatch worker count. The scheduler pool is fixed for the
// run, so the worker count only changes how many slices each frame is cut
// into. It returns the names of the settings that changed.
func (e *Engine) ApplyConfig(cfg *types.WispConfig) []string {
	if cfg == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var applied []string
	if cfg.Frame.BudgetMillis > 0 && cfg.Frame.BudgetMillis != e.config.Frame.BudgetMillis {
		e.config.Frame.BudgetMillis = cfg.Frame.BudgetMillis
		applied = append(applied, "frame budget")
	}
	if cfg.Scheduling.Workers > 0 && cfg.Scheduling.Workers != e.config.Scheduling.Workers {
		e.config.Scheduling.Workers = cfg.Scheduling.Workers
		applied = append(applied, "workers")
	}
	return applied
}

// frameSettings reads the tunables that ApplyConfig may change mid-run.
func (e *Engine) frameSettings() (budget time.Duration, workers int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(e.config.Frame.BudgetMillis) * time.Millisecond,
		e.config.Scheduling.Workers
}

// StartWithContext initializes run state and starts the frame loop. It
// returns once the loop is running; use Wait to block until it ends.
func (e *Engine) StartWithContext(ctx context.Context) error {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine is already running")
	}
	e.isRunning = true
	e.startedAt = time.Now()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.logger.Info("Starting Wisp...")

	if _, err := e.deps.StateManager.InitializeRun(); err != nil {
		return fmt.Errorf("failed to initialize run state: %w", err)
	}
	e.deps.StateManager.StartHeartbeat(e.ctx)

	if e.config.ScenePath != "" && e.deps.SceneLoader != nil {
		scenePath := e.config.ScenePath
		if !filepath.IsAbs(scenePath) {
			scenePath = filepath.Join(e.projectRoot, scenePath)
		}
		bodies, err := e.deps.SceneLoader.LoadScene(scenePath)
		if err != nil {
			e.deps.StateManager.RecordError(err)
			return fmt.Errorf("failed to load scene: %w", err)
		}
		e.mu.Lock()
		e.bodies = bodies
		e.sceneLoaded = true
		e.mu.Unlock()
	}

	if e.deps.Notifier != nil {
		e.deps.Notifier.NotifyRunStart(e.scheduler.Workers())
	}

	if e.deps.ProcessManager != nil {
		e.deps.ProcessManager.RegisterShutdownHandler(func() {
			e.Stop()
			e.Cleanup()
		})
		e.deps.ProcessManager.Start(e.ctx)
	}

	group, gctx := NewSafeGroup(e.ctx, e.logger)
	e.mu.Lock()
	e.group = group
	e.mu.Unlock()
	group.Go(func() error {
		return e.frameLoop(gctx)
	})

	e.logger.Info("Wisp is now stepping frames",
		logger.WithField("workers", e.scheduler.Workers()),
		logger.WithField("bodies", len(e.bodies)))

	return nil
}

// Wait blocks until the frame loop ends, then settles the run.
func (e *Engine) Wait() error {
	e.mu.RLock()
	group := e.group
	e.mu.RUnlock()

	var err error
	if group != nil {
		err = group.Wait()
	}
	e.finishRun()
	return err
}

// StopWithContext stops the engine; the context bounds how long to wait for
// the frame loop to drain.
func (e *Engine) StopWithContext(ctx context.Context) {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	e.mu.Unlock()

	e.logger.Info("Stopping Wisp...")
	e.cancel()

	e.mu.RLock()
	group := e.group
	e.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		if group != nil {
			group.Wait()
		}
		e.finishRun()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Wisp stopped gracefully")
	case <-ctx.Done():
		e.logger.Warn("Wisp shutdown timed out", logger.WithField("error", ctx.Err()))
	}
}

// Stop stops the engine with a 30-second drain timeout.
func (e *Engine) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e.StopWithContext(ctx)
}

// Cleanup releases run state and scene accounting.
func (e *Engine) Cleanup() error {
	e.mu.Lock()
	if e.sceneLoaded {
		e.sceneLoaded = false
		e.tracker.Release(alloc.TagScene)
	}
	e.mu.Unlock()

	return e.deps.StateManager.Cleanup()
}

// frameLoop is the driving thread: it steps frames until the context is
// canceled or the configured frame limit is reached.
func (e *Engine) frameLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		budget, workers := e.frameSettings()
		start := time.Now()
		contacts, queued := e.stepFrame(budget.Seconds(), workers)
		elapsed := time.Since(start)

		e.recordFrame(contacts, queued, elapsed, budget)

		if max := e.config.Frame.MaxFrames; max > 0 && e.Stats().Frames >= uint64(max) {
			e.logger.Info("Frame limit reached",
				logger.WithField("frames", e.Stats().Frames))
			return nil
		}

		if remaining := budget - elapsed; remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// stepFrame runs one Setup/Dispatch/merge/Teardown cycle and integrates
// body motion. It returns the contacts found this frame and the queue
// depth observed at dispatch.
//
// The pipeline itself tolerates merges lagging past the frame boundary,
// but the engine drains every slice before integrating: body positions
// must not change under in-flight narrow-phase reads.
func (e *Engine) stepFrame(dt float64, workers int) (contacts, queued int) {
	e.pipeline.Setup(e.bodies)
	e.pipeline.Dispatch(workers)
	queued = e.scheduler.Pending()

	// The driving thread merges results while workers chew on slices.
	for e.pipeline.PendingJobs() > 0 {
		if e.scheduler.PollCallbacks() == 0 {
			runtime.Gosched()
		}
	}

	contacts = len(e.pipeline.Contacts())
	e.integrate(dt)
	e.pipeline.Teardown()
	return contacts, queued
}

// integrate advances body positions and bounces them off the world bounds.
func (e *Engine) integrate(dt float64) {
	bounds := e.config.World.Bounds
	for _, body := range e.bodies {
		if body == nil || !body.Active {
			continue
		}
		body.Position = body.Position.Add(body.Velocity.Scale(dt))

		if body.Position.X < bounds.Min.X {
			body.Position.X = bounds.Min.X
			body.Velocity.X = -body.Velocity.X
		} else if body.Position.X > bounds.Max.X {
			body.Position.X = bounds.Max.X
			body.Velocity.X = -body.Velocity.X
		}
		if body.Position.Y < bounds.Min.Y {
			body.Position.Y = bounds.Min.Y
			body.Velocity.Y = -body.Velocity.Y
		} else if body.Position.Y > bounds.Max.Y {
			body.Position.Y = bounds.Max.Y
			body.Velocity.Y = -body.Velocity.Y
		}
	}
}

func (e *Engine) recordFrame(contacts, queued int, elapsed, budget time.Duration) {
	e.mu.Lock()
	e.stats.Frames++
	e.stats.Contacts += uint64(contacts)
	e.stats.LastFrameDuration = elapsed
	if elapsed > budget {
		e.stats.Stalls++
		e.stats.ConsecutiveStalls++
	} else {
		e.stats.ConsecutiveStalls = 0
	}
	stats := e.stats
	e.mu.Unlock()

	backlog := e.scheduler.CompletedBacklog()
	e.logger.Debug("Frame queue depth",
		logger.WithField("queued", queued),
		logger.WithField("backlog", backlog))

	if e.deps.Notifier != nil {
		e.deps.Notifier.NotifyQueueBacklog(queued, backlog)
		if stats.ConsecutiveStalls > 0 {
			e.deps.Notifier.NotifyFrameStall(stats.ConsecutiveStalls, elapsed)
		}
	}

	if stats.Frames%statePersistEvery == 0 {
		e.persistStats(stats)
	}
}

func (e *Engine) persistStats(stats RunStats) {
	err := e.deps.StateManager.UpdateFrame(state.FrameStats{
		Frame:    stats.Frames,
		Bodies:   len(e.bodies),
		Contacts: int(stats.Contacts),
		Stalls:   stats.Stalls,
	})
	if err != nil {
		e.logger.Debug("Failed to persist run state", logger.WithField("error", err))
	}
}

// finishRun settles the run once: the scheduler drains through cleanup, the
// final stats are persisted, and the completion notification fires.
func (e *Engine) finishRun() {
	e.finish.Do(func() {
		e.scheduler.Shutdown()
		e.deps.StateManager.StopHeartbeat()

		stats := e.Stats()
		e.persistStats(stats)

		if e.deps.Notifier != nil {
			e.deps.Notifier.NotifyRunComplete(stats.Frames, time.Since(e.startedAt))
		}

		e.logger.Info("Run finished",
			logger.WithField("frames", stats.Frames),
			logger.WithField("contacts", stats.Contacts),
			logger.WithField("stalls", stats.Stalls))
		e.logger.Debug("Worker execution counts",
			logger.WithField("executions", e.scheduler.WorkerExecutions()))
	})
}
