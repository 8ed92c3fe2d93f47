package execplan

import (
	"strings"
	"testing"
)

func TestMockSingleNodeZeroIsNotNuma(t *testing.T) {
	p := NewMock([]uint32{0}, map[uint32][]uint32{0: {0, 1, 2, 3}})
	if p.IsNuma() {
		t.Fatal("a single node 0 must not be treated as NUMA")
	}
	if p.CPUCount() != 4 {
		t.Fatalf("CPUCount() = %d, want 4", p.CPUCount())
	}
}

func TestMockSingleNonZeroNodeIsNuma(t *testing.T) {
	p := NewMock([]uint32{1}, map[uint32][]uint32{1: {4, 5}})
	if !p.IsNuma() {
		t.Fatal("a single non-zero node must be treated as NUMA")
	}
}

func TestMockMultiNodeIsNuma(t *testing.T) {
	p := NewMock([]uint32{0, 1}, map[uint32][]uint32{0: {0, 1}, 1: {2, 3}})
	if !p.IsNuma() {
		t.Fatal("multiple nodes must be treated as NUMA")
	}
	if got := p.CPUsForNuma(1); len(got) != 2 || got[0] != 2 {
		t.Fatalf("CPUsForNuma(1) = %v, want [2 3]", got)
	}
}

func TestWriteStatsNuma(t *testing.T) {
	p := NewMock([]uint32{0, 1}, map[uint32][]uint32{0: {0, 1}, 1: {2, 3}})
	var sb strings.Builder
	p.WriteStats(&sb)
	out := sb.String()
	if !strings.Contains(out, "NUMA is enabled") {
		t.Fatalf("stats missing NUMA banner: %q", out)
	}
	if !strings.Contains(out, "CPU2") {
		t.Fatalf("stats missing CPU2: %q", out)
	}
}

func TestWriteStatsNonNuma(t *testing.T) {
	p := NewMock([]uint32{0}, map[uint32][]uint32{0: {0, 1}})
	var sb strings.Builder
	p.WriteStats(&sb)
	if !strings.Contains(sb.String(), "NOT supported") {
		t.Fatalf("stats missing non-NUMA banner: %q", sb.String())
	}
}

func TestNumaListSortedAscending(t *testing.T) {
	p := NewMock([]uint32{2, 0, 1}, map[uint32][]uint32{0: {0}, 1: {1}, 2: {2}})
	got := p.NumaList()
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("NumaList() not sorted ascending: %v", got)
		}
	}
}
