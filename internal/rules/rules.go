// Package rules holds the validated simulation parameters (C3): grid
// dimensions, initial population and the breed/starve thresholds that the
// stripe update kernel reads on every tick.
package rules

import (
	"math"

	"github.com/wator-sim/parwator/internal/cellcodec"
	xerrors "github.com/wator-sim/parwator/internal/errors"
)

// Rules is immutable once constructed by New; every field has already been
// validated so the kernel and grid packages never re-check them.
type Rules struct {
	Width, Height uint32
	InitialFish   uint32
	InitialShark  uint32
	FishBreed     uint8
	SharkBreed    uint8
	SharkStarve   uint8
}

// New validates and constructs a Rules value, or returns an
// xerrors.InvalidRules error naming the first violated invariant.
func New(width, height, initialFish, initialShark uint32, fishBreed, sharkBreed, sharkStarve uint8) (*Rules, error) {
	if width == 0 || height == 0 {
		return nil, xerrors.InvalidRules("width and height must be non-zero",
			map[string]interface{}{"width": width, "height": height})
	}

	area := uint64(width) * uint64(height)
	if area > math.MaxUint32 {
		return nil, xerrors.InvalidRules("width*height overflows a 32-bit cell count",
			map[string]interface{}{"width": width, "height": height})
	}

	if uint64(initialFish)+uint64(initialShark) > area {
		return nil, xerrors.InvalidRules("initial fish + shark population exceeds grid capacity",
			map[string]interface{}{"width": width, "height": height, "fish": initialFish, "shark": initialShark})
	}

	if fishBreed > cellcodec.MaxAge || sharkBreed > cellcodec.MaxAge {
		return nil, xerrors.InvalidRules("breed age must not exceed the 4-bit age field's range",
			map[string]interface{}{"fishBreed": fishBreed, "sharkBreed": sharkBreed, "max": cellcodec.MaxAge})
	}

	if sharkStarve > cellcodec.MaxLastAte {
		return nil, xerrors.InvalidRules("starve threshold must not exceed the 4-bit lastAte field's range",
			map[string]interface{}{"sharkStarve": sharkStarve, "max": cellcodec.MaxLastAte})
	}

	return &Rules{
		Width:        width,
		Height:       height,
		InitialFish:  initialFish,
		InitialShark: initialShark,
		FishBreed:    fishBreed,
		SharkBreed:   sharkBreed,
		SharkStarve:  sharkStarve,
	}, nil
}

// Area returns the total number of cells in the grid.
func (r *Rules) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}
