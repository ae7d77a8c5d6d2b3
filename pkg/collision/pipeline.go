package collision

import (
	"sync/atomic"

	"github.com/wisp-engine/wisp/pkg/alloc"
	"github.com/wisp-engine/wisp/pkg/jobqueue"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/types"
)

// Pipeline runs one frame of collision detection: Setup collects candidate
// pairs, Dispatch fans them out as contiguous slices over the worker pool,
// and the scheduler's PollCallbacks merges each slice's hits back into the
// frame contact list on the driving thread.
//
// The candidate pair list is shared read-only by every slice job and is
// released exactly once, by whichever slice cleanup finishes last.
type Pipeline struct {
	sched   *jobqueue.Scheduler
	broad   BroadPhase
	tester  ContactTester
	tracker *alloc.Tracker
	log     logger.Logger

	pairs    []types.Pair
	pending  atomic.Int32
	contacts []types.Contact
}

// NewPipeline wires a pipeline to its scheduler and broad phase. Both are
// mandatory. A nil tester falls back to the shape-dispatching default, a nil
// tracker to a fresh one, a nil logger to the no-op logger.
func NewPipeline(sched *jobqueue.Scheduler, broad BroadPhase, tester ContactTester, tracker *alloc.Tracker, log logger.Logger) *Pipeline {
	if sched == nil {
		panic("collision: NewPipeline requires a scheduler")
	}
	if broad == nil {
		panic("collision: NewPipeline requires a broad phase")
	}
	if tester == nil {
		tester = NewShapeTester()
	}
	if tracker == nil {
		tracker = alloc.NewTracker()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		sched:   sched,
		broad:   broad,
		tester:  tester,
		tracker: tracker,
		log:     log.WithScope("collision"),
	}
}

// Setup begins a frame: it rebuilds the broad phase from the world's bodies,
// takes ownership of the resulting pair list, and resets the contact list.
// Calling Setup while a previous dispatch is still in flight is a caller bug.
func (p *Pipeline) Setup(bodies []*types.Body) int {
	if p.pending.Load() != 0 {
		panic("collision: Setup while slice jobs are still in flight")
	}

	p.broad.Rebuild(bodies)
	p.pairs = p.broad.CandidatePairs()
	p.contacts = p.contacts[:0]

	if len(p.pairs) > 0 {
		p.tracker.Acquire(alloc.TagPairList)
	}
	return len(p.pairs)
}

// Dispatch splits the frame's candidate pairs into contiguous slices, one
// job per slice, and submits them all. workers is clamped to the scheduler's
// pool size and to the pair count, so no job ever receives an empty slice.
// It returns the number of jobs submitted; zero pairs submit zero jobs.
func (p *Pipeline) Dispatch(workers int) int {
	total := len(p.pairs)
	if total == 0 {
		return 0
	}

	if workers <= 0 || workers > p.sched.Workers() {
		workers = p.sched.Workers()
	}
	if workers > total {
		workers = total
	}

	sliceSize := (total + workers - 1) / workers
	jobs := 0
	p.pending.Store(int32((total + sliceSize - 1) / sliceSize))

	for start := 0; start < total; start += sliceSize {
		end := start + sliceSize
		if end > total {
			end = total
		}

		sp := &slicePayload{pipeline: p, pairs: p.pairs[start:end]}
		id := p.sched.Submit(runSlice, sp.merge, sp.finish, sp)
		if id == jobqueue.JobIDNone {
			// Scheduler already shut down: the job will never run and its
			// cleanup will never fire, so settle the slice here.
			sp.finish()
			continue
		}
		jobs++
	}

	p.log.Debug("frame dispatched",
		logger.WithField("pairs", total),
		logger.WithField("jobs", jobs))
	return jobs
}

// PendingJobs returns the number of slice jobs whose cleanup has not run yet.
func (p *Pipeline) PendingJobs() int {
	return int(p.pending.Load())
}

// Contacts returns the contacts merged so far this frame. The slice is only
// valid until the next Setup.
func (p *Pipeline) Contacts() []types.Contact {
	return p.contacts
}

// Tracker exposes the pipeline's allocation accounting.
func (p *Pipeline) Tracker() *alloc.Tracker {
	return p.tracker
}

// Teardown ends a frame. All per-frame state is reclaimed by the slice
// cleanups, so there is nothing left to do; the hook exists so the engine's
// frame loop has a symmetric counterpart to Setup.
func (p *Pipeline) Teardown() {}

// slicePayload is the unit of work handed to one slice job. The pipeline
// retains ownership of it until the job's cleanup runs; the batch field is
// written by the worker and handed over through the completed list.
type slicePayload struct {
	pipeline *Pipeline
	pairs    []types.Pair
	batch    *Collector
}

// runSlice is the work function for one slice. It runs on a pool worker and
// writes hits into a private batch, never into shared frame state.
func runSlice(payload any, cancel *jobqueue.CancelFlag) any {
	sp := payload.(*slicePayload)
	p := sp.pipeline

	batch := getCollector()
	p.tracker.Acquire(alloc.TagHitBatch)

	for _, pair := range sp.pairs {
		if cancel.Canceled() {
			break
		}
		testPair(pair, p.tester, batch)
	}

	sp.batch = batch
	return batch
}

// testPair runs the per-pair rejection ladder: missing bounds, then AABB
// overlap, then the narrow phase.
func testPair(pair types.Pair, tester ContactTester, out *Collector) {
	boundsA, okA := pair.A.Bounds()
	boundsB, okB := pair.B.Bounds()
	if !okA || !okB {
		return
	}
	if !boundsA.Overlaps(boundsB) {
		return
	}
	tester.Test(pair.A, pair.B, out)
}

// merge is the slice job's callback. It runs on the driving thread, takes
// ownership of the batch, transfers its contacts into the frame list, and
// returns the batch to the pool.
func (sp *slicePayload) merge(result any) {
	batch := result.(*Collector)
	p := sp.pipeline

	p.contacts = append(p.contacts, batch.Contacts()...)
	sp.batch = nil
	p.tracker.Release(alloc.TagHitBatch)
	putCollector(batch)
}

// finish is the slice job's cleanup. It runs exactly once per slice on the
// driving thread. If the callback never consumed the batch (cancellation or
// shutdown), the batch is reclaimed here; the last slice to finish releases
// the frame's shared pair list.
func (sp *slicePayload) finish() {
	p := sp.pipeline

	if sp.batch != nil {
		putCollector(sp.batch)
		sp.batch = nil
		p.tracker.Release(alloc.TagHitBatch)
	}

	if p.pending.Add(-1) == 0 {
		p.pairs = nil
		p.tracker.Release(alloc.TagPairList)
	}
}
