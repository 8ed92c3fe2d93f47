package grid

import "github.com/wator-sim/parwator/internal/cellcodec"

// Direction is one of the four von Neumann neighbors a fish or shark may
// move into. Wa-Tor has no diagonal movement.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Coordinate addresses a single cell: which partition, which stripe within
// it, and the row/column within that stripe.
type Coordinate struct {
	NumaInd   uint32
	StripeInd uint32
	Y, X      uint32
}

// MakeCoordinate builds a Coordinate for an explicit location.
func MakeCoordinate(numaInd, stripeInd, y, x uint32) Coordinate {
	return Coordinate{NumaInd: numaInd, StripeInd: stripeInd, Y: y, X: x}
}

// Get returns the cell at c.
func (g *Grid) Get(c Coordinate) cellcodec.Cell {
	return g.partitions[c.NumaInd].stripes[c.StripeInd].Get(c.Y, c.X)
}

// Set overwrites the cell at c.
func (g *Grid) Set(c Coordinate, cell cellcodec.Cell) {
	g.partitions[c.NumaInd].stripes[c.StripeInd].Set(c.Y, c.X, cell)
}

// stripeAt returns the Stripe c refers to.
func (g *Grid) stripeAt(c Coordinate) *Stripe {
	return g.partitions[c.NumaInd].stripes[c.StripeInd]
}

// Dir returns the coordinate of the neighbor of c in the given direction,
// wrapping toroidally across stripe and partition boundaries.
func (g *Grid) Dir(c Coordinate, dir Direction) Coordinate {
	stripe := g.stripeAt(c)

	switch dir {
	case Right:
		x := c.X + 1
		if x >= stripe.Width() {
			x = 0
		}
		return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y, X: x}
	case Left:
		if c.X == 0 {
			return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y, X: stripe.Width() - 1}
		}
		return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y, X: c.X - 1}
	case Up:
		if c.Y > 0 {
			return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y - 1, X: c.X}
		}
		numaInd, stripeInd := g.PrevStripe(c.NumaInd, c.StripeInd)
		prev := g.partitions[numaInd].stripes[stripeInd]
		return Coordinate{NumaInd: numaInd, StripeInd: stripeInd, Y: prev.Height() - 1, X: c.X}
	default: // Down
		if c.Y+1 < stripe.Height() {
			return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y + 1, X: c.X}
		}
		numaInd, stripeInd := g.NextStripe(c.NumaInd, c.StripeInd)
		return Coordinate{NumaInd: numaInd, StripeInd: stripeInd, Y: 0, X: c.X}
	}
}

// DirRight is the fast path for scanning a row left to right: the caller
// guarantees c.X+1 stays within the current stripe's width, so no
// wraparound or stripe-boundary check is needed.
func DirRight(c Coordinate) Coordinate {
	return Coordinate{NumaInd: c.NumaInd, StripeInd: c.StripeInd, Y: c.Y, X: c.X + 1}
}

// PrevStripe returns the (numaInd, stripeInd) pair immediately before the
// given one in scan order, wrapping toroidally across partitions.
func (g *Grid) PrevStripe(numaInd, stripeInd uint32) (uint32, uint32) {
	if stripeInd > 0 {
		return numaInd, stripeInd - 1
	}
	if numaInd > 0 {
		numaInd--
	} else {
		numaInd = uint32(len(g.partitions)) - 1
	}
	return numaInd, g.partitions[numaInd].StripeCount() - 1
}

// NextStripe returns the (numaInd, stripeInd) pair immediately after the
// given one in scan order, wrapping toroidally across partitions.
func (g *Grid) NextStripe(numaInd, stripeInd uint32) (uint32, uint32) {
	if stripeInd+1 < g.partitions[numaInd].StripeCount() {
		return numaInd, stripeInd + 1
	}
	numaInd++
	if numaInd >= uint32(len(g.partitions)) {
		numaInd = 0
	}
	return numaInd, 0
}
