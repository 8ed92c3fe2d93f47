// Package grid implements the engine's partitioned world storage (C2): a
// grid divided into 2*k stripes per NUMA partition (k workers on that
// node), each stripe carrying the boundary bitmasks the stripe update
// kernel needs to avoid double-processing a destination cell.
package grid

import "github.com/wator-sim/parwator/internal/cellcodec"

// Stripe is a contiguous band of rows, row-major, with three per-column
// bitmasks: updateMask (has the cell the current scan will next visit in
// this column, later in the current row or in the next row, already been
// written to as a destination), topMask and bottomMask (has a neighboring
// stripe already written into this stripe's first/last row).
type Stripe struct {
	cells  []cellcodec.Cell
	height uint32
	width  uint32

	updateMask []bool
	topMask    []bool
	bottomMask []bool
}

// NewStripe allocates a stripe of height rows by width columns, all Water.
func NewStripe(height, width uint32) *Stripe {
	return &Stripe{
		cells:      make([]cellcodec.Cell, uint64(height)*uint64(width)),
		height:     height,
		width:      width,
		updateMask: make([]bool, width),
		topMask:    make([]bool, width),
		bottomMask: make([]bool, width),
	}
}

// Height returns the number of rows in the stripe.
func (s *Stripe) Height() uint32 { return s.height }

// Width returns the number of columns in the stripe (and in the grid).
func (s *Stripe) Width() uint32 { return s.width }

// Get returns the cell at (y, x) within the stripe.
func (s *Stripe) Get(y, x uint32) cellcodec.Cell {
	return s.cells[uint64(y)*uint64(s.width)+uint64(x)]
}

// Set overwrites the cell at (y, x) within the stripe.
func (s *Stripe) Set(y, x uint32, c cellcodec.Cell) {
	s.cells[uint64(y)*uint64(s.width)+uint64(x)] = c
}

// UpdateMask reports whether the cell the current scan will next visit in
// column x (later in the current row, or in the next row) has already
// received a write as a destination.
func (s *Stripe) UpdateMask(x uint32) bool { return s.updateMask[x] }

// SetUpdateMask sets or clears column x's update bit.
func (s *Stripe) SetUpdateMask(x uint32, v bool) { s.updateMask[x] = v }

// TopMask reports whether column x of this stripe's first row was already
// written to by the stripe directly above it (toroidally).
func (s *Stripe) TopMask(x uint32) bool { return s.topMask[x] }

// SetTopMask sets column x's top-boundary bit.
func (s *Stripe) SetTopMask(x uint32, v bool) { s.topMask[x] = v }

// BottomMask reports whether column x of this stripe's last row was already
// written to by the stripe directly below it (toroidally).
func (s *Stripe) BottomMask(x uint32) bool { return s.bottomMask[x] }

// SetBottomMask sets column x's bottom-boundary bit.
func (s *Stripe) SetBottomMask(x uint32, v bool) { s.bottomMask[x] = v }
