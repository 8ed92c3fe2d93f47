package kernel

import (
	"testing"

	"github.com/wator-sim/parwator/internal/cellcodec"
	"github.com/wator-sim/parwator/internal/execplan"
	"github.com/wator-sim/parwator/internal/grid"
	"github.com/wator-sim/parwator/internal/rules"
)

func newTestGrid(t *testing.T, width, height uint32) *grid.Grid {
	t.Helper()
	plan := execplan.NewMock([]uint32{0}, map[uint32][]uint32{0: {0}})
	r, err := rules.New(width, height, 0, 0, 8, 10, 5)
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	g, err := grid.New(r, plan, grid.Mock())
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func countEntities(g *grid.Grid) (fish, shark, water int) {
	for p := uint32(0); p < g.PartitionCount(); p++ {
		part := g.Partition(p)
		for s := uint32(0); s < part.StripeCount(); s++ {
			stripe := part.Stripe(s)
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
	return
}

func TestFishAgesWhenStuck(t *testing.T) {
	g := newTestGrid(t, 5, 4)
	// Fill the whole grid with fish so there is no water to move into.
	for p := uint32(0); p < g.PartitionCount(); p++ {
		part := g.Partition(p)
		for s := uint32(0); s < part.StripeCount(); s++ {
			stripe := part.Stripe(s)
			for y := uint32(0); y < stripe.Height(); y++ {
				for x := uint32(0); x < stripe.Width(); x++ {
					stripe.Set(y, x, cellcodec.NewFish(0))
				}
			}
		}
	}

	k := New(mustRules(t, 5, 4), 42)
	k.UpdateStripe(g, 0, 0)

	part := g.Partition(0)
	stripe := part.Stripe(0)
	if got := stripe.Get(0, 0).Age(); got != 1 {
		t.Fatalf("fish age after one tick = %d, want 1", got)
	}
	fish, _, water := countEntities(g)
	if water != 0 || fish != int(5*4) {
		t.Fatalf("entity counts changed: fish=%d water=%d, want fish=20 water=0", fish, water)
	}
}

func mustRules(t *testing.T, width, height uint32) *rules.Rules {
	t.Helper()
	r, err := rules.New(width, height, 0, 0, 8, 10, 5)
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	return r
}

func TestSharkStarves(t *testing.T) {
	g := newTestGrid(t, 5, 4)
	part := g.Partition(0)
	stripe := part.Stripe(0)
	// Surround the shark with sharks so it can neither eat nor move,
	// guaranteeing the starve branch fires deterministically.
	for y := uint32(0); y < stripe.Height(); y++ {
		for x := uint32(0); x < stripe.Width(); x++ {
			stripe.Set(y, x, cellcodec.NewShark(0, 5))
		}
	}

	k := New(mustRules(t, 5, 4), 1)
	k.UpdateStripe(g, 0, 0)

	if got := stripe.Get(0, 0).Entity(); got != cellcodec.Water {
		t.Fatalf("starved shark entity = %v, want Water", got)
	}
}

func TestFishMovesIntoWaterConservesCount(t *testing.T) {
	g := newTestGrid(t, 5, 4)
	part := g.Partition(0)
	stripe := part.Stripe(0)
	stripe.Set(0, 0, cellcodec.NewFish(0))
	// Everything else is already Water from grid construction.

	beforeFish, _, _ := countEntities(g)

	k := New(mustRules(t, 5, 4), 99)
	k.UpdateStripe(g, 0, 0)
	k.UpdateStripe(g, 0, 1)

	afterFish, _, _ := countEntities(g)
	if afterFish != beforeFish {
		t.Fatalf("fish count changed from %d to %d after a move with no breeding", beforeFish, afterFish)
	}
}

// TestCrossStripeArrivalMaskClearedAfterBeingEaten reproduces the corner
// case from wator_simulation_worker.cpp:307-337: a fish arrives in a
// stripe's last row via a cross-stripe Up move (setting that stripe's
// bottom mask), and is then eaten the same chronon by a shark moving Down
// from the second-to-last row. The shark's own write into the last row
// must clear the now-stale bottom mask bit, or the next chronon's scan of
// that row would wrongly treat the shark as already processed and skip it.
func TestCrossStripeArrivalMaskClearedAfterBeingEaten(t *testing.T) {
	plan := execplan.NewMock([]uint32{0}, map[uint32][]uint32{0: {0, 1}})
	r := mustRules(t, 2, 8)
	g, err := grid.New(r, plan, grid.Mock())
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}

	part := g.Partition(0)
	stripe0 := part.Stripe(0)
	stripe1 := part.Stripe(1)

	// Shark at stripe0's second-to-last row, with only its Down neighbor
	// (the cell a fish is about to arrive in) as a fish candidate.
	stripe0.Set(0, 0, cellcodec.NewShark(0, 0))

	// Fish in stripe1's first row, boxed in on every side except Up so it
	// is forced to cross the stripe boundary into stripe0's last row.
	stripe1.Set(0, 0, cellcodec.NewFish(0))
	stripe1.Set(0, 1, cellcodec.NewShark(0, 0))
	stripe1.Set(1, 0, cellcodec.NewShark(0, 0))

	k := New(r, 3)
	k.UpdateStripe(g, 0, 1) // fish crosses into stripe0's last row, sets bottomMask
	k.UpdateStripe(g, 0, 0) // shark eats it, must clear the now-stale bottomMask

	if stripe0.BottomMask(0) {
		t.Fatalf("stripe0.BottomMask(0) still set after the shark consumed the arriving fish")
	}
	if stripe0.UpdateMask(0) {
		t.Fatalf("stripe0.UpdateMask(0) left set after the scan reached and skipped it")
	}
	if got := stripe0.Get(1, 0).Entity(); got != cellcodec.Shark {
		t.Fatalf("stripe0(1,0) = %v, want Shark", got)
	}
	if got := stripe0.Get(1, 0).LastAte(); got != 0 {
		t.Fatalf("shark lastAte after eating = %d, want 0", got)
	}
	if got := stripe0.Get(0, 0).Entity(); got != cellcodec.Water {
		t.Fatalf("stripe0(0,0) = %v, want Water after the shark moved away", got)
	}
}

func TestFishBreedsAndIncreasesPopulation(t *testing.T) {
	g := newTestGrid(t, 5, 4)
	part := g.Partition(0)
	stripe := part.Stripe(0)
	// Age at or past the breed threshold (8) triggers breeding instead of aging.
	stripe.Set(0, 0, cellcodec.NewFish(8))

	beforeFish, _, _ := countEntities(g)

	k := New(mustRules(t, 5, 4), 7)
	k.UpdateStripe(g, 0, 0)
	k.UpdateStripe(g, 0, 1)

	afterFish, _, _ := countEntities(g)
	if afterFish != beforeFish+1 {
		t.Fatalf("fish count after breeding = %d, want %d", afterFish, beforeFish+1)
	}
}
