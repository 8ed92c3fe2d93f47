// Package frame implements the frame writer (C9): it serializes a grid
// snapshot to the on-disk map format and streams successive snapshots to a
// sink.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/wator-sim/parwator/internal/cellcodec"
	xerrors "github.com/wator-sim/parwator/internal/errors"
	"github.com/wator-sim/parwator/internal/grid"
)

// FormatVersion is the semver of the map-file wire format, checked by
// SatisfiesMinVersion. It is not written into the file: the header carries
// only width, height and bytesPerFrame. It is bumped whenever the layout
// produced by header or the packing in PackFrame/UnpackFrame changes
// incompatibly.
var FormatVersion = semver.MustParse("1.0.0")

//go:generate go run go.uber.org/mock/mockgen -destination=framemock/sink_mock.go -package=framemock github.com/wator-sim/parwator/internal/frame Sink

// Sink is the write/flush collaborator a Writer streams frames to.
// *bufio.Writer satisfies it; *os.File has no Flush method and needs an
// adapter. Tests substitute a mock to exercise I/O failure propagation
// without touching a filesystem.
type Sink interface {
	Write(p []byte) (int, error)
	Flush() error
}

// Writer streams packed grid snapshots to a Sink, writing the fixed header
// once before the first frame.
type Writer struct {
	sink          Sink
	width, height uint32
	bytesPerFrame int
	wroteHeader   bool
}

// New returns a Writer bound to sink for a grid of the given dimensions.
// The header is written lazily, on the first call to WriteFrame.
func New(sink Sink, width, height uint32) *Writer {
	n := int(width) * int(height)
	return &Writer{
		sink:          sink,
		width:         width,
		height:        height,
		bytesPerFrame: cellcodec.PackedLen(n),
	}
}

// header returns the 16-byte fixed header: width, height, bytesPerFrame,
// all little-endian.
func (w *Writer) header() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], w.width)
	binary.LittleEndian.PutUint32(buf[4:8], w.height)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(w.bytesPerFrame))
	return buf
}

// WriteFrame packs g's cells row-major (global top-to-bottom, left-to-right
// across partitions and stripes) and streams them to the sink, writing the
// header first if this is the first frame. g's dimensions must match the
// Writer's.
func (w *Writer) WriteFrame(g *grid.Grid) error {
	if g.Width() != w.width || g.Height() != w.height {
		return xerrors.IOFailure("write frame", fmt.Errorf(
			"grid is %dx%d, writer expects %dx%d", g.Width(), g.Height(), w.width, w.height))
	}

	if !w.wroteHeader {
		if _, err := w.sink.Write(w.header()); err != nil {
			return xerrors.IOFailure("write frame header", err)
		}
		w.wroteHeader = true
	}

	entities := flatten(g)
	packed := cellcodec.PackFrame(entities)
	if _, err := w.sink.Write(packed); err != nil {
		return xerrors.IOFailure("write frame body", err)
	}
	return nil
}

// Flush forwards to the underlying sink's Flush, wrapping any error as an
// IOFailure.
func (w *Writer) Flush() error {
	if err := w.sink.Flush(); err != nil {
		return xerrors.IOFailure("flush frame sink", err)
	}
	return nil
}

// flatten walks every partition and stripe in scan order and returns the
// grid's cells as a flat, row-major entity slice ready for PackFrame.
func flatten(g *grid.Grid) []cellcodec.Entity {
	out := make([]cellcodec.Entity, 0, int(g.Width())*int(g.Height()))
	for p := uint32(0); p < g.PartitionCount(); p++ {
		part := g.Partition(p)
		for s := uint32(0); s < part.StripeCount(); s++ {
			stripe := part.Stripe(s)
			for y := uint32(0); y < stripe.Height(); y++ {
				for x := uint32(0); x < stripe.Width(); x++ {
					out = append(out, stripe.Get(y, x).Entity())
				}
			}
		}
	}
	return out
}
