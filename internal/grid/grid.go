package grid

import (
	"runtime"

	"golang.org/x/sys/unix"

	xerrors "github.com/wator-sim/parwator/internal/errors"
	"github.com/wator-sim/parwator/internal/execplan"
	"github.com/wator-sim/parwator/internal/rules"
)

// Grid is the full toroidal world: one Partition per NUMA node the plan
// uses (or a single partition for a non-NUMA plan).
type Grid struct {
	width, height uint32
	partitions    []*Partition
}

// New builds a Grid sized by r, divided into 2*k stripes per NUMA
// partition (k = workers on that partition, per plan), all cells Water.
func New(r *rules.Rules, plan *execplan.Plan, strategy AllocStrategy) (*Grid, error) {
	cpuCnt := plan.CPUCount()
	if cpuCnt == 0 {
		return nil, xerrors.AllocationFailed("execution plan has zero workers", nil)
	}
	if uint64(r.Height) < 4*uint64(cpuCnt) {
		return nil, xerrors.AllocationFailed("grid height is too small for the requested worker count",
			map[string]interface{}{"height": r.Height, "workers": cpuCnt})
	}

	heightPerCPU := r.Height / (2 * cpuCnt)
	heightRem := r.Height - 2*cpuCnt*heightPerCPU

	numaList := plan.NumaList()
	partitions := make([]*Partition, len(numaList))

	for idx, node := range numaList {
		cpusThisNode := uint32(len(plan.CPUsForNuma(node)))
		if cpusThisNode == 0 {
			continue
		}

		rem := 2 * cpusThisNode
		if heightRem < rem {
			rem = heightRem
		}
		partitionRows := 2*heightPerCPU*cpusThisNode + rem
		heightRem -= rem

		part, err := buildPartitionPinned(partitionRows, r.Width, cpusThisNode, uint32(idx), plan, strategy)
		if err != nil {
			return nil, err
		}
		partitions[idx] = part
	}

	return &Grid{width: r.Width, height: r.Height, partitions: partitions}, nil
}

// buildPartitionPinned allocates a partition's stripes on a goroutine
// pinned to one of the partition's own CPUs, so first-touch page
// placement favors the right NUMA node. The pinning is best-effort: a
// failure to set affinity does not abort construction.
func buildPartitionPinned(rows, width, cpuCount, numaInd uint32, plan *execplan.Plan, strategy AllocStrategy) (*Partition, error) {
	result := make(chan *Partition, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if cpu, ok := strategy.pinTarget(numaInd, plan); ok {
			var set unix.CPUSet
			set.Zero()
			set.Set(int(cpu))
			_ = unix.SchedSetaffinity(0, &set) // best-effort
		}

		result <- newPartition(rows, width, cpuCount)
	}()

	return <-result, nil
}

// Width returns the grid's column count.
func (g *Grid) Width() uint32 { return g.width }

// Height returns the grid's row count.
func (g *Grid) Height() uint32 { return g.height }

// PartitionCount returns the number of NUMA partitions in this grid.
func (g *Grid) PartitionCount() uint32 { return uint32(len(g.partitions)) }

// Partition returns the i-th partition.
func (g *Grid) Partition(i uint32) *Partition { return g.partitions[i] }
