// Package cellcodec implements the cell encoding (C1): packing an entity,
// its age and (for sharks) its last-ate counter into a single byte, and
// packing a row-major stream of entities at 2 bits per cell.
package cellcodec

// Entity is the closed set of things a cell can hold.
type Entity uint8

const (
	Water Entity = iota
	Fish
	Shark

	// reserved is the 2-bit code `11`. The packer never emits it; a reader
	// decoding it has found corruption (spec.md §9, open question 3).
	reserved Entity = 3
)

func (e Entity) String() string {
	switch e {
	case Water:
		return "Water"
	case Fish:
		return "Fish"
	case Shark:
		return "Shark"
	default:
		return "Reserved"
	}
}
