// Package simulation implements the driver (C8): it owns the grid and the
// per-CPU workers, and advances the whole world by one chronon at a time
// via two race-free half-iterations.
package simulation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	xerrors "github.com/wator-sim/parwator/internal/errors"
	"github.com/wator-sim/parwator/internal/execplan"
	"github.com/wator-sim/parwator/internal/grid"
	"github.com/wator-sim/parwator/internal/kernel"
	"github.com/wator-sim/parwator/internal/lfsr"
	"github.com/wator-sim/parwator/internal/rules"
	"github.com/wator-sim/parwator/internal/worker"
)

// cpuSlot is the per-CPU binding resolved once at construction: which
// partition index a worker owns and which CPU id it is pinned to. The
// worker's in-partition position j comes from cpuIndexWithinPartition;
// stripe 2*j is processed on even half-iterations, 2*j+1 on odd ones.
type cpuSlot struct {
	numaInd uint32
	cpu     uint32
}

// Driver owns the grid, the execution plan's workers, and the running
// timing/frequency statistics accumulated across chronons.
type Driver struct {
	rules *rules.Rules
	plan  *execplan.Plan
	grid  *grid.Grid

	workers []*worker.Worker
	slots   []cpuSlot
	rng     *lfsr.Source

	allRunTime  time.Duration
	waitingTime []time.Duration
	halfIterCnt uint64
}

// New builds a Driver: it allocates the grid, scatters the initial
// population, and prepares (but does not yet start) one Worker per CPU in
// plan.
func New(r *rules.Rules, plan *execplan.Plan, strategy grid.AllocStrategy, seed uint64) (*Driver, error) {
	g, err := grid.New(r, plan, strategy)
	if err != nil {
		return nil, err
	}

	cpuCnt := plan.CPUCount()
	slots := make([]cpuSlot, 0, cpuCnt)
	for numaIdx, node := range plan.NumaList() {
		for _, cpu := range plan.CPUsForNuma(node) {
			slots = append(slots, cpuSlot{numaInd: uint32(numaIdx), cpu: cpu})
		}
	}
	if uint32(len(slots)) != cpuCnt {
		return nil, xerrors.AllocationFailed("execution plan's per-NUMA CPU lists do not sum to its CPU count", nil)
	}

	workers := make([]*worker.Worker, cpuCnt)
	for i := range workers {
		workers[i] = worker.New()
	}

	rng := lfsr.New(seed)

	d := &Driver{
		rules:       r,
		plan:        plan,
		grid:        g,
		workers:     workers,
		slots:       slots,
		rng:         rng,
		waitingTime: make([]time.Duration, cpuCnt),
	}

	g.Randomize(r.InitialFish, r.InitialShark, rng.Next())

	return d, nil
}

// Start pins and launches every worker but the first (which runs inline on
// the caller's goroutine during each half-iteration, per worker 0's role in
// the original design).
func (d *Driver) Start() error {
	grp, _ := errgroup.WithContext(context.Background())
	for i := 1; i < len(d.workers); i++ {
		i := i
		grp.Go(func() error {
			return d.workers[i].Start(d.slots[i].cpu)
		})
	}
	return grp.Wait()
}

// Close stops every background worker and waits for them to exit.
func (d *Driver) Close() error {
	grp, _ := errgroup.WithContext(context.Background())
	for i := 1; i < len(d.workers); i++ {
		i := i
		grp.Go(func() error {
			return d.workers[i].Close()
		})
	}
	return grp.Wait()
}

// Grid exposes the underlying world storage, mainly so a frame writer can
// read it after each chronon.
func (d *Driver) Grid() *grid.Grid { return d.grid }

// DoIteration advances the world by one full chronon: an even
// half-iteration followed by an odd one.
func (d *Driver) DoIteration() {
	start := time.Now()
	d.doHalfIteration(false)
	d.doHalfIteration(true)
	d.allRunTime += time.Since(start)
}

func (d *Driver) doHalfIteration(odd bool) {
	parity := uint32(0)
	if odd {
		parity = 1
	}

	for cpuInd := 1; cpuInd < len(d.slots); cpuInd++ {
		slot := d.slots[cpuInd]
		j := d.cpuIndexWithinPartition(slot.numaInd, cpuInd)
		stripeInd := 2*j + parity
		k := kernel.New(d.rules, d.rng.Next())
		numaInd := slot.numaInd
		d.workers[cpuInd].Push(func() { k.UpdateStripe(d.grid, numaInd, stripeInd) })
	}

	k0 := kernel.New(d.rules, d.rng.Next())
	d.workers[0].Push(func() { k0.UpdateStripe(d.grid, 0, parity) })
	d.workers[0].RunInline()

	for i := 1; i < len(d.workers); i++ {
		d.workers[i].WaitIdle()
	}

	d.calcHalfIterStats()
}

// cpuIndexWithinPartition returns j such that d.slots[cpuInd] is the j-th
// CPU (0-based) assigned to numaInd, in the order the plan lists them.
func (d *Driver) cpuIndexWithinPartition(numaInd uint32, cpuInd int) uint32 {
	var j uint32
	for i := 0; i < cpuInd; i++ {
		if d.slots[i].numaInd == numaInd {
			j++
		}
	}
	return j
}

func (d *Driver) calcHalfIterStats() {
	d.halfIterCnt++

	maxTime := d.workers[0].LastDuration()
	for i := 1; i < len(d.workers); i++ {
		if last := d.workers[i].LastDuration(); last > maxTime {
			maxTime = last
		}
	}
	for i := range d.workers {
		d.waitingTime[i] += maxTime - d.workers[i].LastDuration()
	}
}

// AllRunTime returns the cumulative wall-clock time spent in DoIteration.
func (d *Driver) AllRunTime() time.Duration { return d.allRunTime }

// WaitingTimePerWorker returns, for each worker, the cumulative time it
// spent idle waiting for the slowest worker in a half-iteration.
func (d *Driver) WaitingTimePerWorker() []time.Duration {
	out := make([]time.Duration, len(d.waitingTime))
	copy(out, d.waitingTime)
	return out
}

// WeightedWaitingTime returns the mean, across workers, of their
// cumulative waiting time — how long an "average" worker waited for
// another to finish.
func (d *Driver) WeightedWaitingTime() time.Duration {
	if len(d.waitingTime) == 0 {
		return 0
	}
	var sum time.Duration
	for _, wt := range d.waitingTime {
		sum += wt
	}
	return sum / time.Duration(len(d.waitingTime))
}

// AverageFrequencyPerWorker returns each worker's running time-weighted
// average CPU frequency, in kHz.
func (d *Driver) AverageFrequencyPerWorker() []uint64 {
	out := make([]uint64, len(d.workers))
	for i, w := range d.workers {
		out[i] = w.AverageFrequencyKHz()
	}
	return out
}

// AverageFrequencyKHz returns the mean, across workers, of their average
// CPU frequency, in kHz.
func (d *Driver) AverageFrequencyKHz() uint64 {
	if len(d.workers) == 0 {
		return 0
	}
	var sum uint64
	for _, w := range d.workers {
		sum += w.AverageFrequencyKHz()
	}
	return sum / uint64(len(d.workers))
}
