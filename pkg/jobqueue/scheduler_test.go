package jobqueue_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wisp-engine/wisp/pkg/jobqueue"
)

// drainUntil polls callbacks until cond is true or the deadline passes.
func drainUntil(t *testing.T, s *jobqueue.Scheduler, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.PollCallbacks()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestScheduler_SubmitAndComplete(t *testing.T) {
	s := jobqueue.New(2, nil)
	defer s.Shutdown()

	var callbackResult any
	var cleanups int32

	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			return payload.(int) * 2
		},
		func(result any) { callbackResult = result },
		func() { atomic.AddInt32(&cleanups, 1) },
		21,
	)

	if id == jobqueue.JobIDNone {
		t.Fatal("submit failed")
	}

	if st := s.Wait(id, time.Second); st != jobqueue.StatusCompleted {
		t.Fatalf("Wait = %v, want Completed", st)
	}

	drainUntil(t, s, func() bool { return atomic.LoadInt32(&cleanups) == 1 })

	if callbackResult != 42 {
		t.Errorf("callback result = %v, want 42", callbackResult)
	}
	// Consumed jobs are forgotten.
	if st := s.Status(id); st != jobqueue.StatusNotFound {
		t.Errorf("Status after consume = %v, want NotFound", st)
	}
}

func TestScheduler_PollCallbacksEmptyIsNoop(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	if n := s.PollCallbacks(); n != 0 {
		t.Errorf("PollCallbacks on empty list = %d, want 0", n)
	}
}

func TestScheduler_CallbackRunsOnPollingGoroutine(t *testing.T) {
	s := jobqueue.New(4, nil)
	defer s.Shutdown()

	const jobs = 32
	var mu sync.Mutex
	order := make([]int, 0, jobs)
	var cleanups int32

	for i := 0; i < jobs; i++ {
		i := i
		s.Submit(
			func(payload any, cancel *jobqueue.CancelFlag) any { return i },
			func(result any) {
				// Single-threaded consumption: no lock strictly needed,
				// but keep the test race-detector clean.
				mu.Lock()
				order = append(order, result.(int))
				mu.Unlock()
			},
			func() { atomic.AddInt32(&cleanups, 1) },
			nil,
		)
	}

	drainUntil(t, s, func() bool { return atomic.LoadInt32(&cleanups) == jobs })

	mu.Lock()
	defer mu.Unlock()
	if len(order) != jobs {
		t.Errorf("callbacks ran %d times, want %d", len(order), jobs)
	}
}

func TestScheduler_CleanupExactlyOnce(t *testing.T) {
	s := jobqueue.New(3, nil)

	const jobs = 50
	var cleanups int32
	for i := 0; i < jobs; i++ {
		s.Submit(
			func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
			nil,
			func() { atomic.AddInt32(&cleanups, 1) },
			nil,
		)
	}

	// Half drain through polling, rest through shutdown.
	time.Sleep(20 * time.Millisecond)
	s.PollCallbacks()
	s.Shutdown()

	if got := atomic.LoadInt32(&cleanups); got != jobs {
		t.Errorf("cleanups = %d, want %d", got, jobs)
	}
}

func TestScheduler_CancelPending(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	// Occupy the single worker so the next job stays pending.
	release := make(chan struct{})
	s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			<-release
			return nil
		},
		nil,
		func() {},
		nil,
	)

	var ran, cleaned int32
	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			atomic.AddInt32(&ran, 1)
			return nil
		},
		func(result any) { t.Error("callback must not run for canceled job") },
		func() { atomic.AddInt32(&cleaned, 1) },
		nil,
	)

	if res := s.Cancel(id); res != jobqueue.CancelCanceled {
		t.Fatalf("Cancel = %v, want Canceled", res)
	}
	if st := s.Status(id); st != jobqueue.StatusCanceled {
		t.Errorf("Status = %v, want Canceled", st)
	}

	close(release)
	drainUntil(t, s, func() bool { return atomic.LoadInt32(&cleaned) == 1 })

	if atomic.LoadInt32(&ran) != 0 {
		t.Error("canceled pending job must never execute")
	}
	if got := atomic.LoadInt32(&cleaned); got != 1 {
		t.Errorf("cleanups = %d, want 1", got)
	}
}

func TestScheduler_CancelCompleted(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	var cleaned int32
	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
		nil,
		func() { atomic.AddInt32(&cleaned, 1) },
		nil,
	)

	if st := s.Wait(id, time.Second); st != jobqueue.StatusCompleted {
		t.Fatalf("Wait = %v, want Completed", st)
	}

	if res := s.Cancel(id); res != jobqueue.CancelAlreadyCompleted {
		t.Errorf("Cancel = %v, want AlreadyCompleted", res)
	}

	drainUntil(t, s, func() bool { return atomic.LoadInt32(&cleaned) == 1 })
	if got := atomic.LoadInt32(&cleaned); got != 1 {
		t.Errorf("cleanups = %d, want 1 (cancel must not re-run cleanup)", got)
	}
}

func TestScheduler_CancelUnknown(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	if res := s.Cancel(jobqueue.JobID(9999)); res != jobqueue.CancelNotFound {
		t.Errorf("Cancel = %v, want NotFound", res)
	}
}

func TestScheduler_CancelFlagVisibleToWork(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	started := make(chan struct{})
	observed := make(chan bool, 1)

	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			close(started)
			deadline := time.Now().Add(time.Second)
			for !cancel.Canceled() && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			observed <- cancel.Canceled()
			return nil
		},
		func(result any) { t.Error("callback must be suppressed") },
		func() {},
		nil,
	)

	<-started
	if res := s.Cancel(id); res != jobqueue.CancelCanceled {
		t.Fatalf("Cancel = %v, want Canceled", res)
	}
	if !<-observed {
		t.Error("work function never observed the cancel flag")
	}
	s.Wait(id, time.Second)
	s.PollCallbacks()
}

func TestScheduler_WorkerAffinity(t *testing.T) {
	s := jobqueue.New(3, nil)
	defer s.Shutdown()

	const jobs = 12
	var done int32
	for i := 0; i < jobs; i++ {
		s.Submit(
			func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
			nil,
			func() { atomic.AddInt32(&done, 1) },
			nil,
			jobqueue.WithWorker(1),
		)
	}

	drainUntil(t, s, func() bool { return atomic.LoadInt32(&done) == jobs })

	counts := s.WorkerExecutions()
	if counts[0] != 0 || counts[2] != 0 {
		t.Errorf("pinned jobs leaked to other workers: %v", counts)
	}
	if counts[1] != jobs {
		t.Errorf("worker 1 executed %d jobs, want %d", counts[1], jobs)
	}
}

func TestScheduler_AffinityOutOfRangePanics(t *testing.T) {
	s := jobqueue.New(2, nil)
	defer s.Shutdown()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range affinity")
		}
	}()
	s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
		nil,
		func() {},
		nil,
		jobqueue.WithWorker(2),
	)
}

func TestScheduler_NilWorkPanics(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil work function")
		}
	}()
	s.Submit(nil, nil, func() {}, nil)
}

func TestScheduler_WaitTimeout(t *testing.T) {
	s := jobqueue.New(1, nil)
	defer s.Shutdown()

	release := make(chan struct{})
	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			<-release
			return nil
		},
		nil,
		func() {},
		nil,
	)

	if st := s.Wait(id, 20*time.Millisecond); st != jobqueue.StatusTimeout {
		t.Errorf("Wait = %v, want Timeout", st)
	}
	if st := s.Status(id); st != jobqueue.StatusNotCompleted {
		t.Errorf("Status = %v, want NotCompleted", st)
	}

	close(release)
	if st := s.Wait(id, time.Second); st != jobqueue.StatusCompleted {
		t.Errorf("Wait after release = %v, want Completed", st)
	}
	s.PollCallbacks()
}

func TestScheduler_ShutdownRunsCleanupNotCallback(t *testing.T) {
	s := jobqueue.New(1, nil)

	release := make(chan struct{})
	var cleanups int32

	// One job occupies the worker, several more stay queued.
	s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any {
			<-release
			return nil
		},
		func(result any) { t.Error("callback must not run during shutdown") },
		func() { atomic.AddInt32(&cleanups, 1) },
		nil,
	)
	for i := 0; i < 5; i++ {
		s.Submit(
			func(payload any, cancel *jobqueue.CancelFlag) any {
				t.Error("queued job must not execute during shutdown")
				return nil
			},
			func(result any) { t.Error("callback must not run during shutdown") },
			func() { atomic.AddInt32(&cleanups, 1) },
			nil,
		)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	s.Shutdown()

	if got := atomic.LoadInt32(&cleanups); got != 6 {
		t.Errorf("cleanups after shutdown = %d, want 6", got)
	}
}

func TestScheduler_SubmitAfterShutdown(t *testing.T) {
	s := jobqueue.New(1, nil)
	s.Shutdown()

	id := s.Submit(
		func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
		nil,
		func() { t.Error("cleanup must not run for unqueued job") },
		nil,
	)
	if id != jobqueue.JobIDNone {
		t.Errorf("Submit after shutdown = %v, want JobIDNone", id)
	}
}

func TestScheduler_ConcurrentSubmitters(t *testing.T) {
	s := jobqueue.New(4, nil)
	defer s.Shutdown()

	const submitters = 8
	const perSubmitter = 25
	var cleanups int32

	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSubmitter; j++ {
				s.Submit(
					func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
					nil,
					func() { atomic.AddInt32(&cleanups, 1) },
					nil,
				)
			}
		}()
	}
	wg.Wait()

	drainUntil(t, s, func() bool {
		return atomic.LoadInt32(&cleanups) == submitters*perSubmitter
	})
}

func BenchmarkScheduler_SubmitPoll(b *testing.B) {
	s := jobqueue.New(4, nil)
	defer s.Shutdown()

	var cleanups int64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Submit(
			func(payload any, cancel *jobqueue.CancelFlag) any { return nil },
			nil,
			func() { atomic.AddInt64(&cleanups, 1) },
			nil,
		)
		if i%64 == 0 {
			s.PollCallbacks()
		}
	}
	b.StopTimer()
	for atomic.LoadInt64(&cleanups) < int64(b.N) {
		s.PollCallbacks()
		time.Sleep(time.Millisecond)
	}
}
