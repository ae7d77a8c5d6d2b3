// Package jobqueue provides a fixed-pool job scheduler with explicit job
// lifecycle, worker affinity, and driving-thread callback draining.
//
// Jobs execute on pool workers; their callbacks and cleanups only ever run
// on the thread that calls PollCallbacks. Results move between the two by
// ownership transfer: a work function returns a value and must not touch it
// again, and the polling side becomes its sole owner.
package jobqueue

import "sync/atomic"

// JobID identifies a submitted job.
type JobID uint64

// JobIDNone is the sentinel returned when a job could not be queued.
const JobIDNone JobID = 0

// AnyWorker lets the scheduler run a job on whichever worker claims it first.
const AnyWorker = -1

// Status reports the observable lifecycle position of a job.
type Status int

const (
	// StatusNotFound means the id was never issued or the job has already
	// been consumed by PollCallbacks.
	StatusNotFound Status = iota
	// StatusNotCompleted means the job is pending or executing.
	StatusNotCompleted
	// StatusCompleted means the job finished and was not canceled.
	StatusCompleted
	// StatusCanceled means the job was canceled; its callback will not run.
	StatusCanceled
	// StatusTimeout is returned by Wait when the timeout elapses first.
	StatusTimeout
)

// String returns the string representation of the Status value.
func (s Status) String() string {
	return [...]string{"NotFound", "NotCompleted", "Completed", "Canceled", "Timeout"}[s]
}

// CancelResult reports the outcome of a Cancel call.
type CancelResult int

const (
	CancelNotFound CancelResult = iota
	CancelCanceled
	CancelAlreadyCompleted
)

// String returns the string representation of the CancelResult value.
func (r CancelResult) String() string {
	return [...]string{"NotFound", "Canceled", "AlreadyCompleted"}[r]
}

// CancelFlag is the cancellation signal shared between a job's submitter and
// the worker executing it. Work functions may consult it to abandon early;
// finishing anyway is always acceptable, only the callback is suppressed.
type CancelFlag struct {
	v atomic.Bool
}

// Canceled reports whether cancellation was requested.
func (f *CancelFlag) Canceled() bool {
	return f.v.Load()
}

func (f *CancelFlag) set() {
	f.v.Store(true)
}

// WorkFunc executes on a pool worker. payload is the value handed to Submit;
// the caller retains ownership of it until cleanup runs. The returned result
// is transferred to the driving thread and handed to the callback.
type WorkFunc func(payload any, cancel *CancelFlag) any

// CallbackFunc runs on the polling thread once per successful, non-canceled
// completion, receiving ownership of the work function's result.
type CallbackFunc func(result any)

// CleanupFunc runs on the polling thread exactly once per queued job,
// regardless of completion or cancellation.
type CleanupFunc func()

// internal job lifecycle states
const (
	statePending int32 = iota
	stateClaimed
	stateDone
	stateCanceled
)

type job struct {
	id       JobID
	affinity int
	work     WorkFunc
	callback CallbackFunc
	cleanup  CleanupFunc
	payload  any

	flag   CancelFlag
	state  atomic.Int32
	result any
	// done is closed when the job reaches the completed list, whether it
	// executed or was canceled while pending.
	done chan struct{}
}

// SubmitOption customizes a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	affinity int
}

// WithWorker pins the job to one worker index. An out-of-range index is a
// caller bug and panics at Submit time.
func WithWorker(index int) SubmitOption {
	return func(o *submitOptions) {
		o.affinity = index
	}
}
