// Package kernel implements the stripe update kernel (C7): the per-chronon
// tick/breed/starve/move logic applied to every non-water cell of a single
// stripe, with the bitmask bookkeeping that keeps a forward, single-pass
// scan race-free.
package kernel

import (
	"github.com/wator-sim/parwator/internal/cellcodec"
	"github.com/wator-sim/parwator/internal/grid"
	"github.com/wator-sim/parwator/internal/lfsr"
	"github.com/wator-sim/parwator/internal/rules"
)

// Kernel applies one half-iteration's worth of ticks to the stripes it is
// given. The driver builds a fresh Kernel (and therefore a freshly seeded
// PRNG stream) for every stripe task of every half-iteration, so
// concurrent stripes never share random state.
type Kernel struct {
	rules *rules.Rules
	rng   *lfsr.Source
}

// New creates a Kernel bound to r, with its own PRNG seeded from seed.
func New(r *rules.Rules, seed uint64) *Kernel {
	return &Kernel{rules: r, rng: lfsr.New(seed)}
}

// UpdateStripe scans one stripe top-to-bottom, left-to-right, advancing
// every fish and shark it finds exactly once. Destinations that the
// forward scan will reach later in this same pass — a same-row right move,
// or a same-stripe down move — are recorded in the stripe's update mask so
// the scan skips them once reached, instead of moving them a second time.
// Destinations that cross a stripe boundary (up from the first row, down
// from the last row) are recorded in the neighboring stripe's bottom/top
// mask instead, to be consumed when that stripe is next scanned — safe
// because adjacent stripes are never active in the same half-iteration.
func (k *Kernel) UpdateStripe(g *grid.Grid, numaInd, stripeInd uint32) {
	part := g.Partition(numaInd)
	stripe := part.Stripe(stripeInd)
	height, width := stripe.Height(), stripe.Width()

	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			coord := grid.MakeCoordinate(numaInd, stripeInd, y, x)
			cell := g.Get(coord)

			if cell.Entity() == cellcodec.Water {
				continue
			}

			if stripe.UpdateMask(x) {
				stripe.SetUpdateMask(x, false)
				continue
			}
			if y == 0 && stripe.TopMask(x) {
				stripe.SetTopMask(x, false)
				continue
			}
			if y+1 == height && stripe.BottomMask(x) {
				stripe.SetBottomMask(x, false)
				continue
			}

			k.tick(g, stripe, numaInd, stripeInd, y, x, height, width, coord, cell)
		}
	}
}

func (k *Kernel) tick(g *grid.Grid, stripe *grid.Stripe, numaInd, stripeInd, y, x, height, width uint32, coord grid.Coordinate, cell cellcodec.Cell) {
	dirs := [4]grid.Coordinate{
		g.Dir(coord, grid.Up),
		g.Dir(coord, grid.Right),
		g.Dir(coord, grid.Down),
		g.Dir(coord, grid.Left),
	}

	rnd := k.rng.Uint32()
	breeding := false
	destDir := -1

	switch cell.Entity() {
	case cellcodec.Fish:
		if cell.Age() >= k.rules.FishBreed {
			breeding = true
		} else {
			cell = cell.WithAge(cell.Age() + 1)
		}
		destDir = findWaterNeighbor(g, dirs, rnd)

	case cellcodec.Shark:
		if cell.Age() >= k.rules.SharkBreed {
			breeding = true
		} else {
			cell = cell.WithAge(cell.Age() + 1)
		}

		dir, ate := findSharkDestination(g, dirs, rnd)
		destDir = dir
		if ate {
			cell = cell.WithLastAte(0)
		} else {
			if cell.LastAte() >= k.rules.SharkStarve {
				g.Set(coord, cellcodec.Empty)
				return
			}
			cell = cell.WithLastAte(cell.LastAte() + 1)
		}
	}

	if destDir < 0 {
		g.Set(coord, cell)
		return
	}

	dest := dirs[destDir]
	if breeding {
		g.Set(coord, cell.WithAge(0))
		g.Set(dest, cell.WithAge(0))
	} else {
		g.Set(coord, cellcodec.Empty)
		g.Set(dest, cell)
	}

	k.markDestination(g, stripe, numaInd, stripeInd, y, x, height, width, grid.Direction(destDir))
}

// markDestination records, in whichever stripe owns the forward-scan slot
// that will next reach dest, that dest has already been written this pass.
//
// A same-row Right move out of row 0 or row height-1, and a same-stripe
// Up/Down move landing on row 0 or row height-1, write directly into a
// cell that a neighboring stripe's pending cross-boundary write may have
// already flagged via topMask/bottomMask. That flag is now stale — this
// move's own write supersedes it — so it is cleared here. Left uncleared,
// it would survive to the next chronon's scan of row 0/height-1 and cause
// that row's legitimate occupant to be skipped.
func (k *Kernel) markDestination(g *grid.Grid, stripe *grid.Stripe, numaInd, stripeInd, y, x, height, width uint32, dir grid.Direction) {
	switch dir {
	case grid.Right:
		if x+1 < width {
			stripe.SetUpdateMask(x+1, true)
			if y == 0 {
				stripe.SetTopMask(x+1, false)
			} else if y+1 == height {
				stripe.SetBottomMask(x+1, false)
			}
		}
	case grid.Down:
		if y+1 < height {
			stripe.SetUpdateMask(x, true)
			if y+2 == height {
				stripe.SetBottomMask(x, false)
			}
			return
		}
		nextNuma, nextStripeInd := g.NextStripe(numaInd, stripeInd)
		g.Partition(nextNuma).Stripe(nextStripeInd).SetTopMask(x, true)
	case grid.Up:
		if y == 0 {
			prevNuma, prevStripeInd := g.PrevStripe(numaInd, stripeInd)
			g.Partition(prevNuma).Stripe(prevStripeInd).SetBottomMask(x, true)
		} else if y == 1 {
			stripe.SetTopMask(x, false)
		}
	case grid.Left:
		if x == 0 {
			stripe.SetUpdateMask(width-1, true)
		}
	}
}

func findWaterNeighbor(g *grid.Grid, dirs [4]grid.Coordinate, rnd uint32) int {
	var candidates [4]int
	n := 0
	for i, d := range dirs {
		if g.Get(d).Entity() == cellcodec.Water {
			candidates[n] = i
			n++
		}
	}
	if n == 0 {
		return -1
	}
	return candidates[rnd%uint32(n)]
}

func findSharkDestination(g *grid.Grid, dirs [4]grid.Coordinate, rnd uint32) (dir int, ate bool) {
	var fishCandidates, waterCandidates [4]int
	fishN, waterN := 0, 0
	for i, d := range dirs {
		switch g.Get(d).Entity() {
		case cellcodec.Fish:
			fishCandidates[fishN] = i
			fishN++
		case cellcodec.Water:
			waterCandidates[waterN] = i
			waterN++
		}
	}
	if fishN > 0 {
		return fishCandidates[rnd%uint32(fishN)], true
	}
	if waterN > 0 {
		return waterCandidates[rnd%uint32(waterN)], false
	}
	return -1, false
}
