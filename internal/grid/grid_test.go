package grid

import (
	"testing"

	"github.com/wator-sim/parwator/internal/cellcodec"
	"github.com/wator-sim/parwator/internal/execplan"
	"github.com/wator-sim/parwator/internal/rules"
)

func mockPlan() *execplan.Plan {
	return execplan.NewMock([]uint32{0}, map[uint32][]uint32{0: {0, 1}})
}

func TestNewGridDimensions(t *testing.T) {
	r, err := rules.New(20, 16, 0, 0, 3, 4, 3)
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	g, err := New(r, mockPlan(), Mock())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Width() != 20 || g.Height() != 16 {
		t.Fatalf("dims = %dx%d, want 20x16", g.Width(), g.Height())
	}
	if g.PartitionCount() != 1 {
		t.Fatalf("PartitionCount() = %d, want 1", g.PartitionCount())
	}
	if got := g.Partition(0).StripeCount(); got != 4 {
		t.Fatalf("StripeCount() = %d, want 4 (2*cpuCount)", got)
	}
}

func TestNewGridRejectsTooSmallHeight(t *testing.T) {
	r, err := rules.New(20, 2, 0, 0, 1, 1, 1)
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	if _, err := New(r, mockPlan(), Mock()); err == nil {
		t.Fatal("expected allocation error for height < 4*cpuCount")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	r, _ := rules.New(20, 16, 0, 0, 1, 1, 1)
	g, _ := New(r, mockPlan(), Mock())

	c := MakeCoordinate(0, 0, 0, 0)
	g.Set(c, cellcodec.NewFish(5))
	if got := g.Get(c).Age(); got != 5 {
		t.Fatalf("Get(Set(x)) age = %d, want 5", got)
	}
}

func TestDirRightStaysInRow(t *testing.T) {
	r, _ := rules.New(20, 16, 0, 0, 1, 1, 1)
	_, _ = New(r, mockPlan(), Mock())

	c := MakeCoordinate(0, 0, 0, 5)
	next := DirRight(c)
	if next.Y != c.Y || next.X != c.X+1 {
		t.Fatalf("DirRight = %+v, want same row, x+1", next)
	}
}

func TestDirWrapsAcrossGridBoundary(t *testing.T) {
	r, _ := rules.New(20, 16, 0, 0, 1, 1, 1)
	g, _ := New(r, mockPlan(), Mock())

	rightEdge := MakeCoordinate(0, 0, 0, 19)
	wrapped := g.Dir(rightEdge, Right)
	if wrapped.X != 0 {
		t.Fatalf("Dir(Right) at right edge = %+v, want X=0", wrapped)
	}

	leftEdge := MakeCoordinate(0, 0, 0, 0)
	wrappedLeft := g.Dir(leftEdge, Left)
	if wrappedLeft.X != 19 {
		t.Fatalf("Dir(Left) at left edge = %+v, want X=19", wrappedLeft)
	}
}

func TestDirUpWrapsAcrossStripes(t *testing.T) {
	r, _ := rules.New(20, 16, 0, 0, 1, 1, 1)
	g, _ := New(r, mockPlan(), Mock())

	top := MakeCoordinate(0, 0, 0, 3)
	above := g.Dir(top, Up)
	lastStripe := g.Partition(0).StripeCount() - 1
	if above.StripeInd != lastStripe {
		t.Fatalf("Dir(Up) from first row of first stripe = %+v, want stripe %d", above, lastStripe)
	}
}

func TestRandomizePlacesExactCounts(t *testing.T) {
	r, _ := rules.New(20, 16, 10, 5, 1, 1, 1)
	g, _ := New(r, mockPlan(), Mock())
	g.Randomize(r.InitialFish, r.InitialShark, 42)

	var fish, shark, water int
	for _, part := range g.partitions {
		for i := uint32(0); i < part.StripeCount(); i++ {
			stripe := part.Stripe(i)
			for y := uint32(0); y < stripe.Height(); y++ {
				for x := uint32(0); x < stripe.Width(); x++ {
					switch stripe.Get(y, x).Entity() {
					case cellcodec.Fish:
						fish++
					case cellcodec.Shark:
						shark++
					default:
						water++
					}
				}
			}
		}
	}

	if fish != 10 || shark != 5 {
		t.Fatalf("fish=%d shark=%d, want 10/5", fish, shark)
	}
	if uint64(fish+shark+water) != r.Area() {
		t.Fatalf("total cells = %d, want %d", fish+shark+water, r.Area())
	}
}

func TestRandomizeDeterministicGivenSeed(t *testing.T) {
	r, _ := rules.New(20, 16, 10, 5, 1, 1, 1)

	g1, _ := New(r, mockPlan(), Mock())
	g1.Randomize(r.InitialFish, r.InitialShark, 7)

	g2, _ := New(r, mockPlan(), Mock())
	g2.Randomize(r.InitialFish, r.InitialShark, 7)

	for pi, part := range g1.partitions {
		for si := uint32(0); si < part.StripeCount(); si++ {
			s1 := part.Stripe(si)
			s2 := g2.partitions[pi].Stripe(si)
			for y := uint32(0); y < s1.Height(); y++ {
				for x := uint32(0); x < s1.Width(); x++ {
					if s1.Get(y, x) != s2.Get(y, x) {
						t.Fatalf("same seed produced different cell at partition %d stripe %d (%d,%d)", pi, si, y, x)
					}
				}
			}
		}
	}
}
