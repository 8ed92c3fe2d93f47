// Package worker implements the engine's per-CPU task runtime (C6): a FIFO
// task queue drained by one pinned OS thread, with rolling timing and CPU
// frequency statistics kept alongside it.
package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	xerrors "github.com/wator-sim/parwator/internal/errors"
)

// Task is one unit of work a Worker executes. A panicking Task is
// swallowed (best-effort) and recorded via xerrors.TaskPanic; it never
// brings down the worker loop.
type Task func()

// Worker drains a FIFO queue of Tasks on a single goroutine, optionally
// pinned to one CPU. It is not safe to share a Worker's queue operations
// across goroutines beyond the documented methods, which are all
// internally synchronized.
type Worker struct {
	mu           sync.Mutex
	taskEnqueued *sync.Cond
	queueEmpty   *sync.Cond

	queue     []Task
	cpuPin    uint32
	timeToDie bool
	started   bool
	done      chan struct{}

	runDuration  time.Duration
	lastDuration time.Duration
	sumFreqKHzUs uint64
	lastFreqKHz  uint64

	// OnPanic, if set, is called (off the worker's lock) whenever a Task
	// panics, and also when Start's goroutine fails to pin itself to its
	// CPU. It defaults to a no-op; the panic is always swallowed.
	OnPanic func(*xerrors.StandardError)
}

// New creates an idle Worker. Call Start to begin draining its queue on a
// dedicated, pinned goroutine, or RunInline to drain it synchronously on
// the calling goroutine (used for worker 0 in the simulation driver).
func New() *Worker {
	w := &Worker{}
	w.taskEnqueued = sync.NewCond(&w.mu)
	w.queueEmpty = sync.NewCond(&w.mu)
	return w
}

// Start pins the worker's goroutine's OS thread to cpuPin and begins
// draining the task queue in the background.
func (w *Worker) Start(cpuPin uint32) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return xerrors.AllocationFailed("worker already started", nil)
	}
	w.started = true
	w.cpuPin = cpuPin
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop()
	return nil
}

func (w *Worker) loop() {
	defer close(w.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := pinToCPU(w.cpuPin); err != nil {
		// Pinning failures are reported, as an AllocationFailed error,
		// through the same OnPanic hook task panics use; the worker still
		// runs, just unpinned.
		if w.OnPanic != nil {
			w.OnPanic(xerrors.AllocationFailed("failed to pin worker to CPU",
				map[string]interface{}{"cpu": w.cpuPin, "cause": err.Error()}))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.queue) > 0 || !w.timeToDie {
		for len(w.queue) == 0 && !w.timeToDie {
			w.taskEnqueued.Wait()
		}
		if len(w.queue) > 0 {
			w.runOne()
			if len(w.queue) == 0 {
				w.queueEmpty.Broadcast()
			}
		}
	}
}

// runOne executes the head task. Caller must hold w.mu; it is released
// while the task runs and re-acquired before returning.
func (w *Worker) runOne() {
	task := w.queue[0]

	w.mu.Unlock()
	start := time.Now()
	w.runTaskSafely(task)
	elapsed := time.Since(start)
	freq, _ := readCurrentCPUFreqKHz(w.cpuPin)
	w.mu.Lock()

	w.queue = w.queue[1:]
	w.lastDuration = elapsed
	w.lastFreqKHz = freq
	w.accumulateStats()
}

func (w *Worker) runTaskSafely(task Task) {
	defer func() {
		if r := recover(); r != nil {
			if w.OnPanic != nil {
				w.OnPanic(xerrors.TaskPanic(r))
			}
		}
	}()
	task()
}

func (w *Worker) accumulateStats() {
	w.runDuration += w.lastDuration
	if w.lastFreqKHz != 0 {
		w.sumFreqKHzUs += w.lastFreqKHz * uint64(w.lastDuration.Microseconds())
	}
}

// Push enqueues a task and wakes the worker if it is waiting.
func (w *Worker) Push(task Task) {
	w.mu.Lock()
	w.queue = append(w.queue, task)
	w.mu.Unlock()
	w.taskEnqueued.Signal()
}

// WaitIdle blocks until the task queue is empty.
func (w *Worker) WaitIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) > 0 {
		w.queueEmpty.Wait()
	}
}

// RunInline drains the task queue synchronously on the calling goroutine,
// without spawning a background loop. Used for worker 0, which runs on the
// driver's own thread (the original's runOnThisThread).
func (w *Worker) RunInline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) > 0 {
		w.runOne()
	}
}

// Close signals the worker's background loop to exit once its queue drains,
// and waits for it to do so. Close on a Worker started with RunInline-only
// usage (never Start) is a no-op.
func (w *Worker) Close() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.timeToDie = true
	w.mu.Unlock()
	w.taskEnqueued.Signal()
	<-w.done
	return nil
}

// RunDuration returns the cumulative wall-clock time spent executing tasks.
func (w *Worker) RunDuration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runDuration
}

// LastDuration returns how long the most recently completed task took.
func (w *Worker) LastDuration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastDuration
}

// LastFrequencyKHz returns the CPU frequency sampled right after the most
// recently completed task, in kHz.
func (w *Worker) LastFrequencyKHz() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFreqKHz
}

// AverageFrequencyKHz returns the running time-weighted average CPU
// frequency across every task this worker has executed.
func (w *Worker) AverageFrequencyKHz() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runDuration == 0 {
		return 0
	}
	return w.sumFreqKHzUs / uint64(w.runDuration.Microseconds())
}

// ClearStats resets the running duration and frequency accumulators.
func (w *Worker) ClearStats() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runDuration = 0
	w.sumFreqKHzUs = 0
}

func pinToCPU(cpu uint32) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(int(cpu))
	return unix.SchedSetaffinity(0, &set)
}

// readCurrentCPUFreqKHz reads the kernel's current-frequency counter for
// cpu, preferring the cpufreq driver's scaling_cur_freq and falling back to
// the raw cpuinfo_cur_freq, both already expressed in kHz by the kernel.
func readCurrentCPUFreqKHz(cpu uint32) (uint64, error) {
	base := filepath.Join("/sys/devices/system/cpu", fmt.Sprintf("cpu%d", cpu), "cpufreq")
	for _, name := range []string{"scaling_cur_freq", "cpuinfo_cur_freq"} {
		raw, err := os.ReadFile(filepath.Join(base, name))
		if err != nil {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
		if err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("worker: no readable frequency counter for cpu%d", cpu)
}
