// Package execplan maps a requested worker count onto concrete CPU ids
// (C5): which NUMA nodes to use and which CPUs on each, honoring a
// hyperthread-avoidance flag the same way the original's four solve
// paths did.
package execplan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	xerrors "github.com/wator-sim/parwator/internal/errors"
)

const (
	sysCPUPath  = "/sys/devices/system/cpu"
	sysNodePath = "/sys/devices/system/node"
)

var cpuDirRE = regexp.MustCompile(`^cpu(\d+)$`)
var nodeDirRE = regexp.MustCompile(`^node(\d+)$`)

// Plan is the resolved CPU assignment for a run. Build one with New (real
// topology discovery) or NewMock (fixed topology, for tests).
type Plan struct {
	numaList   []uint32
	cpuPerNuma map[uint32][]uint32
	cpuCount   uint32
	isNuma     bool
}

// New discovers the machine's topology under /sys and resolves a plan for
// numThreads workers. allowHyperthreads controls whether two CPUs sharing a
// physical core may both be selected.
func New(numThreads uint32, allowHyperthreads bool) (*Plan, error) {
	numaNodes, err := discoverNumaNodes()
	if err != nil {
		return nil, err
	}

	switch {
	case len(numaNodes) == 0 && allowHyperthreads:
		return solveNoNumaHT(numThreads)
	case len(numaNodes) == 0 && !allowHyperthreads:
		return solveNoNumaNoHT(numThreads)
	case allowHyperthreads:
		return solveNumaHT(numThreads, numaNodes)
	default:
		return solveNumaNoHT(numThreads, numaNodes)
	}
}

// NewMock builds a Plan from a fixed topology, bypassing /sys entirely.
// isNuma mirrors the original constructor's rule: true iff there is more
// than one NUMA node, or exactly one node whose id is non-zero.
func NewMock(numaList []uint32, cpuPerNuma map[uint32][]uint32) *Plan {
	sorted := append([]uint32(nil), numaList...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var count uint32
	for _, n := range sorted {
		count += uint32(len(cpuPerNuma[n]))
	}

	isNuma := len(sorted) > 1 || (len(sorted) == 1 && sorted[0] != 0)

	return &Plan{
		numaList:   sorted,
		cpuPerNuma: cpuPerNuma,
		cpuCount:   count,
		isNuma:     isNuma,
	}
}

// IsNuma reports whether this plan spans more than the default NUMA node.
func (p *Plan) IsNuma() bool { return p.isNuma }

// NumaList returns the NUMA node ids that were assigned at least one CPU,
// in ascending order. For a non-NUMA plan this is []uint32{0}.
func (p *Plan) NumaList() []uint32 { return p.numaList }

// CPUsForNuma returns the sorted CPU ids assigned to the given NUMA node.
// For a non-NUMA plan, pass 0.
func (p *Plan) CPUsForNuma(numaNode uint32) []uint32 { return p.cpuPerNuma[numaNode] }

// CPUCount returns the total number of workers this plan resolves to.
func (p *Plan) CPUCount() uint32 { return p.cpuCount }

// WriteStats renders the same two-mode report as the original planner's
// printStats: one line per NUMA node when NUMA is active, a single flat CPU
// line otherwise.
func (p *Plan) WriteStats(w io.Writer) {
	if p.isNuma {
		fmt.Fprintln(w, "execplan: NUMA is enabled")
		for _, numa := range p.numaList {
			fmt.Fprintf(w, "execplan: NUMA%d ", numa)
			for _, cpu := range p.cpuPerNuma[numa] {
				fmt.Fprintf(w, " CPU%d", cpu)
			}
			fmt.Fprintln(w)
		}
		return
	}

	fmt.Fprintln(w, "execplan: NUMA is NOT supported")
	fmt.Fprint(w, "execplan:")
	for _, cpu := range p.cpuPerNuma[0] {
		fmt.Fprintf(w, " CPU%d", cpu)
	}
	fmt.Fprintln(w)
}

func (p *Plan) String() string {
	var sb strings.Builder
	p.WriteStats(&sb)
	return sb.String()
}

// discoverCPUList returns every CPU id exposed under
// /sys/devices/system/cpu, sorted ascending.
func discoverCPUList() ([]uint32, error) {
	entries, err := os.ReadDir(sysCPUPath)
	if err != nil {
		return nil, xerrors.AllocationFailed("failed to list "+sysCPUPath,
			map[string]interface{}{"cause": err.Error()})
	}

	var cpus []uint32
	for _, e := range entries {
		m := cpuDirRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		cpus = append(cpus, uint32(id))
	}

	sort.Slice(cpus, func(i, j int) bool { return cpus[i] < cpus[j] })
	return cpus, nil
}

// discoverCoreIDs reads /sys/.../cpu<N>/topology/core_id for every CPU in
// cpuList, used to detect hyperthread siblings (CPUs sharing a core id).
func discoverCoreIDs(cpuList []uint32) (map[uint32]uint32, error) {
	cores := make(map[uint32]uint32, len(cpuList))
	for _, cpu := range cpuList {
		path := filepath.Join(sysCPUPath, fmt.Sprintf("cpu%d", cpu), "topology", "core_id")
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.AllocationFailed("failed to read "+path,
				map[string]interface{}{"cause": err.Error()})
		}
		coreID, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
		if err != nil {
			return nil, xerrors.AllocationFailed("malformed core_id at "+path,
				map[string]interface{}{"cause": err.Error()})
		}
		cores[cpu] = uint32(coreID)
	}
	return cores, nil
}

// discoverNumaNodes returns the ids of every NUMA node known to the
// kernel, each mapped to its own sorted CPU list; the map itself is
// unordered, and callers order its keys with sortedKeys. An empty result
// means the machine is not NUMA (or the kernel exposes a single node 0
// with no distinguishing topology).
func discoverNumaNodes() (map[uint32][]uint32, error) {
	entries, err := os.ReadDir(sysNodePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.AllocationFailed("failed to list "+sysNodePath,
			map[string]interface{}{"cause": err.Error()})
	}

	nodes := make(map[uint32][]uint32)
	for _, e := range entries {
		m := nodeDirRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		cpuList, err := parseCPUList(filepath.Join(sysNodePath, e.Name(), "cpulist"))
		if err != nil {
			return nil, err
		}
		nodes[uint32(id)] = cpuList
	}

	if len(nodes) <= 1 {
		for id := range nodes {
			if id == 0 {
				return nil, nil
			}
		}
	}

	return nodes, nil
}

// parseCPUList parses a kernel cpulist file such as "0-3,8,10-11".
func parseCPUList(path string) ([]uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.AllocationFailed("failed to read "+path,
			map[string]interface{}{"cause": err.Error()})
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}

	var cpus []uint32
	for _, part := range strings.Split(text, ",") {
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.ParseUint(lo, 10, 32)
			end, err2 := strconv.ParseUint(hi, 10, 32)
			if err1 != nil || err2 != nil {
				return nil, xerrors.AllocationFailed("malformed cpulist range in "+path, nil)
			}
			for c := start; c <= end; c++ {
				cpus = append(cpus, uint32(c))
			}
		} else {
			v, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return nil, xerrors.AllocationFailed("malformed cpulist entry in "+path, nil)
			}
			cpus = append(cpus, uint32(v))
		}
	}

	sort.Slice(cpus, func(i, j int) bool { return cpus[i] < cpus[j] })
	return cpus, nil
}

func solveNoNumaHT(numThreads uint32) (*Plan, error) {
	cpuList, err := discoverCPUList()
	if err != nil {
		return nil, err
	}
	if uint32(len(cpuList)) < numThreads {
		return nil, xerrors.NotEnoughCPUs(uint(numThreads), uint(len(cpuList)))
	}

	return &Plan{
		numaList:   []uint32{0},
		cpuPerNuma: map[uint32][]uint32{0: append([]uint32(nil), cpuList[:numThreads]...)},
		cpuCount:   numThreads,
		isNuma:     false,
	}, nil
}

func solveNoNumaNoHT(numThreads uint32) (*Plan, error) {
	cpuList, err := discoverCPUList()
	if err != nil {
		return nil, err
	}
	coreOf, err := discoverCoreIDs(cpuList)
	if err != nil {
		return nil, err
	}

	usedCore := make(map[uint32]bool)
	picked := make([]uint32, 0, numThreads)
	for _, cpu := range cpuList {
		core := coreOf[cpu]
		if usedCore[core] {
			continue
		}
		usedCore[core] = true
		picked = append(picked, cpu)
		if uint32(len(picked)) == numThreads {
			break
		}
	}

	if uint32(len(picked)) != numThreads {
		return nil, xerrors.NotEnoughCPUs(uint(numThreads), uint(len(picked)))
	}

	return &Plan{
		numaList:   []uint32{0},
		cpuPerNuma: map[uint32][]uint32{0: picked},
		cpuCount:   numThreads,
		isNuma:     false,
	}, nil
}

func solveNumaHT(numThreads uint32, nodes map[uint32][]uint32) (*Plan, error) {
	ordered := sortedKeys(nodes)

	cpuPerNuma := make(map[uint32][]uint32)
	var allocated uint32
	for _, node := range ordered {
		for _, cpu := range nodes[node] {
			cpuPerNuma[node] = append(cpuPerNuma[node], cpu)
			allocated++
			if allocated == numThreads {
				break
			}
		}
		if allocated == numThreads {
			break
		}
	}

	if allocated != numThreads {
		return nil, xerrors.NotEnoughCPUs(uint(numThreads), uint(allocated))
	}

	var numaList []uint32
	for _, node := range ordered {
		if len(cpuPerNuma[node]) > 0 {
			numaList = append(numaList, node)
		}
	}

	return &Plan{
		numaList:   numaList,
		cpuPerNuma: cpuPerNuma,
		cpuCount:   numThreads,
		isNuma:     true,
	}, nil
}

func solveNumaNoHT(numThreads uint32, nodes map[uint32][]uint32) (*Plan, error) {
	ordered := sortedKeys(nodes)

	var allCPUs []uint32
	for _, node := range ordered {
		allCPUs = append(allCPUs, nodes[node]...)
	}
	coreOf, err := discoverCoreIDs(allCPUs)
	if err != nil {
		return nil, err
	}

	usedCore := make(map[uint32]bool)
	cpuPerNuma := make(map[uint32][]uint32)
	var allocated uint32
	for _, node := range ordered {
		for _, cpu := range nodes[node] {
			core := coreOf[cpu]
			if usedCore[core] {
				continue
			}
			usedCore[core] = true
			cpuPerNuma[node] = append(cpuPerNuma[node], cpu)
			allocated++
			if allocated == numThreads {
				break
			}
		}
		if allocated == numThreads {
			break
		}
	}

	if allocated != numThreads {
		return nil, xerrors.NotEnoughCPUs(uint(numThreads), uint(allocated))
	}

	var numaList []uint32
	for _, node := range ordered {
		if len(cpuPerNuma[node]) > 0 {
			numaList = append(numaList, node)
		}
	}

	return &Plan{
		numaList:   numaList,
		cpuPerNuma: cpuPerNuma,
		cpuCount:   numThreads,
		isNuma:     true,
	}, nil
}

func sortedKeys(m map[uint32][]uint32) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
