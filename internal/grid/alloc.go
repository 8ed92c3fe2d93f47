package grid

import "github.com/wator-sim/parwator/internal/execplan"

// StrategyKind selects how stripe allocation is placed relative to the
// execution plan's NUMA topology. Go has no first-class NUMA allocation
// API, so placement is best-effort: the goroutine building a partition's
// stripes is pinned to one of that partition's CPUs for the duration of
// the allocation, so the kernel's first-touch page placement lands the
// backing memory on the right node.
type StrategyKind uint8

const (
	// StrategyDefault places each NUMA partition's stripes by pinning to
	// the first CPU the plan assigned to that partition's NUMA node.
	StrategyDefault StrategyKind = iota
	// StrategyPerNumaNode pins every partition's allocation to one fixed
	// NUMA node, ignoring the plan's per-partition node assignment. Used
	// to force single-node placement in tests or small deployments.
	StrategyPerNumaNode
	// StrategyMock never pins; allocation happens on whatever goroutine
	// and CPU is calling. Used by tests that build grids without a real
	// execution plan.
	StrategyMock
)

// AllocStrategy is the tagged replacement for the original's polymorphic
// memory-resource factory.
type AllocStrategy struct {
	Kind     StrategyKind
	NumaNode uint32 // meaningful only when Kind == StrategyPerNumaNode
}

// Default returns the strategy ordinary runs should use.
func Default() AllocStrategy { return AllocStrategy{Kind: StrategyDefault} }

// PerNumaNode pins every partition's allocation to the given NUMA node.
func PerNumaNode(node uint32) AllocStrategy {
	return AllocStrategy{Kind: StrategyPerNumaNode, NumaNode: node}
}

// Mock returns the no-pinning strategy for tests.
func Mock() AllocStrategy { return AllocStrategy{Kind: StrategyMock} }

// pinTarget resolves, for the numaInd-th partition being built, which real
// CPU id (if any) the allocating goroutine should be pinned to.
func (a AllocStrategy) pinTarget(numaInd uint32, plan *execplan.Plan) (cpu uint32, ok bool) {
	switch a.Kind {
	case StrategyMock:
		return 0, false
	case StrategyPerNumaNode:
		cpus := plan.CPUsForNuma(a.NumaNode)
		if len(cpus) == 0 {
			return 0, false
		}
		return cpus[0], true
	default:
		numaList := plan.NumaList()
		if int(numaInd) >= len(numaList) {
			return 0, false
		}
		cpus := plan.CPUsForNuma(numaList[numaInd])
		if len(cpus) == 0 {
			return 0, false
		}
		return cpus[0], true
	}
}
