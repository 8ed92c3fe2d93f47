package grid

import (
	"github.com/wator-sim/parwator/internal/cellcodec"
	"github.com/wator-sim/parwator/internal/lfsr"
)

type cellRef struct {
	numaInd, stripeInd uint32
	pos                uint32
}

// Randomize scatters fishCnt fish and sharkCnt sharks (both freshly born,
// age 0) onto distinct cells chosen uniformly at random from the whole
// grid, using a Fisher-Yates shuffle driven by the engine's LFSR so the
// initial population is reproducible given the same seed.
func (g *Grid) Randomize(fishCnt, sharkCnt uint32, seed uint64) {
	var all []cellRef
	for numaInd, part := range g.partitions {
		for stripeInd := uint32(0); stripeInd < part.StripeCount(); stripeInd++ {
			stripe := part.Stripe(stripeInd)
			size := stripe.Height() * stripe.Width()
			for pos := uint32(0); pos < size; pos++ {
				all = append(all, cellRef{numaInd: uint32(numaInd), stripeInd: stripeInd, pos: pos})
			}
		}
	}

	src := lfsr.New(seed)
	for i := len(all) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		all[i], all[j] = all[j], all[i]
	}

	total := fishCnt + sharkCnt
	if uint32(len(all)) < total {
		total = uint32(len(all))
	}

	for i := uint32(0); i < total; i++ {
		ref := all[i]
		stripe := g.partitions[ref.numaInd].Stripe(ref.stripeInd)
		y := ref.pos / stripe.Width()
		x := ref.pos % stripe.Width()

		cell := cellcodec.NewFish(0)
		if i >= fishCnt {
			cell = cellcodec.NewShark(0, 0)
		}
		stripe.Set(y, x, cell)
	}
}
