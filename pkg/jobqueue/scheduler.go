package jobqueue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wisp-engine/wisp/pkg/logger"
)

// Scheduler owns a fixed pool of workers and three job lists: one global
// pending list guarded by mu, the job each worker currently executes, and a
// completed list guarded by its own lock. No lock is ever held while user
// code (work, callback, cleanup) runs.
type Scheduler struct {
	log     logger.Logger
	workers int

	mu       sync.Mutex // guards pending, jobs, shutdown
	cond     *sync.Cond
	pending  []*job
	jobs     map[JobID]*job
	shutdown bool

	completedMu sync.Mutex
	completed   []*job

	// pollMu serializes PollCallbacks with itself and with the final
	// Shutdown drain.
	pollMu sync.Mutex

	nextID   atomic.Uint64
	executed []atomic.Int64 // per-worker executed-job counters
	wg       sync.WaitGroup
}

// New creates a scheduler and starts its worker pool. If workers is not
// positive it defaults to 4.
func New(workers int, log logger.Logger) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Scheduler{
		log:      log.WithScope("scheduler"),
		workers:  workers,
		jobs:     make(map[JobID]*job),
		executed: make([]atomic.Int64, workers),
	}
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run(i)
	}

	s.log.Debug("scheduler started", logger.WithField("workers", workers))
	return s
}

// Workers returns the fixed pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Submit enqueues a job. It never blocks. The returned id is JobIDNone if
// the scheduler is already shut down, in which case nothing was queued and
// neither callback nor cleanup will ever run.
//
// work and cleanup are mandatory; passing nil for either, or pinning to an
// out-of-range worker, is a caller bug and panics.
func (s *Scheduler) Submit(work WorkFunc, callback CallbackFunc, cleanup CleanupFunc, payload any, opts ...SubmitOption) JobID {
	if work == nil {
		panic("jobqueue: Submit requires a work function")
	}
	if cleanup == nil {
		panic("jobqueue: Submit requires a cleanup function")
	}

	options := submitOptions{affinity: AnyWorker}
	for _, opt := range opts {
		opt(&options)
	}
	if options.affinity != AnyWorker && (options.affinity < 0 || options.affinity >= s.workers) {
		panic(fmt.Sprintf("jobqueue: worker affinity %d out of range [0,%d)", options.affinity, s.workers))
	}

	j := &job{
		id:       JobID(s.nextID.Add(1)),
		affinity: options.affinity,
		work:     work,
		callback: callback,
		cleanup:  cleanup,
		payload:  payload,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return JobIDNone
	}
	s.pending = append(s.pending, j)
	s.jobs[j.id] = j
	// Broadcast rather than Signal: with affinity in play the woken worker
	// is not necessarily an eligible one.
	s.cond.Broadcast()
	s.mu.Unlock()

	return j.id
}

// Status reports the lifecycle position of a job without blocking.
func (s *Scheduler) Status(id JobID) Status {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return StatusNotFound
	}
	return statusOf(j)
}

// Wait blocks until the job reaches the completed list or the timeout
// elapses. A zero timeout waits indefinitely. Wait is intended for rare
// synchronous join points, not the steady-state frame loop.
func (s *Scheduler) Wait(id JobID, timeout time.Duration) Status {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return StatusNotFound
	}

	if timeout == 0 {
		<-j.done
		return statusOf(j)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-j.done:
		return statusOf(j)
	case <-timer.C:
		return StatusTimeout
	}
}

// Cancel requests cancellation of a job. A still-pending job is moved
// straight to the completed list without executing; a job already claimed by
// a worker only gets its flag set, and its work function may or may not
// observe it. In both cases the callback is suppressed and cleanup still
// runs exactly once via PollCallbacks.
func (s *Scheduler) Cancel(id JobID) CancelResult {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return CancelNotFound
	}
	if j.state.Load() == stateDone && !j.flag.Canceled() {
		s.mu.Unlock()
		return CancelAlreadyCompleted
	}

	j.flag.set()

	// Splice out of the pending list if the job was never claimed.
	removed := false
	for i, p := range s.pending {
		if p == j {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		j.state.Store(stateCanceled)
	}
	s.mu.Unlock()

	if removed {
		s.completedMu.Lock()
		s.completed = append(s.completed, j)
		s.completedMu.Unlock()
		close(j.done)
		s.log.Debug("job canceled before execution", logger.WithField("job", j.id))
	}

	return CancelCanceled
}

// PollCallbacks drains whatever has completed so far and returns the number
// of jobs consumed. This is the only place callbacks and cleanups execute,
// so the calling thread becomes the owner of every job result. It never
// blocks on in-flight work.
func (s *Scheduler) PollCallbacks() int {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	s.completedMu.Lock()
	batch := s.completed
	s.completed = nil
	s.completedMu.Unlock()

	for _, j := range batch {
		s.consume(j, true)
	}
	return len(batch)
}

// Pending returns the number of unclaimed jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CompletedBacklog returns the number of finished jobs awaiting
// PollCallbacks.
func (s *Scheduler) CompletedBacklog() int {
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	return len(s.completed)
}

// WorkerExecutions returns per-worker executed-job counts.
func (s *Scheduler) WorkerExecutions() []int64 {
	counts := make([]int64, s.workers)
	for i := range counts {
		counts[i] = s.executed[i].Load()
	}
	return counts
}

// Shutdown stops the pool. Every queued job is canceled without executing,
// every in-flight job is allowed to finish, and all of them are routed
// through cleanup — never callback — before Shutdown returns. Safe to call
// more than once.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.shutdown = true
	orphaned := s.pending
	s.pending = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, j := range orphaned {
		j.flag.set()
		j.state.Store(stateCanceled)
	}
	if len(orphaned) > 0 {
		s.completedMu.Lock()
		s.completed = append(s.completed, orphaned...)
		s.completedMu.Unlock()
		for _, j := range orphaned {
			close(j.done)
		}
	}

	// Workers drain their current job and exit.
	s.wg.Wait()

	s.pollMu.Lock()
	s.completedMu.Lock()
	batch := s.completed
	s.completed = nil
	s.completedMu.Unlock()
	for _, j := range batch {
		s.consume(j, false)
	}
	s.pollMu.Unlock()

	s.log.Debug("scheduler stopped", logger.WithField("drained", len(batch)))
}

// consume runs the terminal phase of one job on the polling thread.
func (s *Scheduler) consume(j *job, allowCallback bool) {
	if allowCallback && j.callback != nil && j.state.Load() == stateDone && !j.flag.Canceled() {
		j.callback(j.result)
	}
	j.cleanup()

	s.mu.Lock()
	delete(s.jobs, j.id)
	s.mu.Unlock()
}

// run is one worker's claim/execute loop.
func (s *Scheduler) run(index int) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		var j *job
		for {
			j = s.claimLocked(index)
			if j != nil || s.shutdown {
				break
			}
			s.cond.Wait()
		}
		s.mu.Unlock()

		if j == nil {
			return
		}

		// Execute without holding any lock.
		result := j.work(j.payload, &j.flag)

		j.result = result
		j.state.Store(stateDone)
		s.executed[index].Add(1)

		s.completedMu.Lock()
		s.completed = append(s.completed, j)
		s.completedMu.Unlock()
		close(j.done)
	}
}

// claimLocked removes and returns the first pending job this worker may
// execute, or nil. Caller holds mu.
func (s *Scheduler) claimLocked(index int) *job {
	for i, j := range s.pending {
		if j.affinity == AnyWorker || j.affinity == index {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			j.state.Store(stateClaimed)
			return j
		}
	}
	return nil
}

func statusOf(j *job) Status {
	switch j.state.Load() {
	case stateCanceled:
		return StatusCanceled
	case stateDone:
		if j.flag.Canceled() {
			return StatusCanceled
		}
		return StatusCompleted
	default:
		return StatusNotCompleted
	}
}
