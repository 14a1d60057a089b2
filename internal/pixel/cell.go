package pixel

import (
	"encoding/binary"
	"errors"
)

// CellByteSize is the wire and in-memory size of one PackedCell.
const CellByteSize = 8

// ErrInvalidPackedCell is returned when an index or color falls outside its
// valid range while constructing or decoding a PackedCell.
var ErrInvalidPackedCell = errors.New("pixel: invalid packed cell")

// PackedCell is a 64-bit update carrying (index, color): index occupies the
// high 60 bits, color the low 4. It is immutable and flows one-way, client to
// Chunk Manager to subscribers.
type PackedCell uint64

// NewPackedCell packs index and color, rejecting out-of-range values.
func NewPackedCell(index int, color Color) (PackedCell, error) {
	if index < 0 || index >= ChunkSize {
		return 0, ErrInvalidPackedCell
	}
	if color > MaxColor {
		return 0, ErrInvalidPackedCell
	}
	return PackedCell(uint64(index)<<4 | uint64(color)), nil
}

// Index returns the pixel index this cell addresses.
func (p PackedCell) Index() int {
	return int(p >> 4)
}

// Color returns the color this cell carries.
func (p PackedCell) Color() Color {
	return Color(p & MaxColor)
}

// Bytes encodes p as 8 little-endian bytes.
func (p PackedCell) Bytes() [CellByteSize]byte {
	var b [CellByteSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(p))
	return b
}

// AppendBytes appends p's little-endian wire form to dst and returns the
// extended slice.
func (p PackedCell) AppendBytes(dst []byte) []byte {
	var b [CellByteSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(p))
	return append(dst, b[:]...)
}

// DecodePackedCell decodes 8 little-endian bytes into a PackedCell, rejecting
// an out-of-range index or color exactly as NewPackedCell would.
func DecodePackedCell(b []byte) (PackedCell, error) {
	if len(b) != CellByteSize {
		return 0, ErrInvalidPackedCell
	}
	raw := binary.LittleEndian.Uint64(b)
	p := PackedCell(raw)
	if p.Index() >= ChunkSize || p.Color() > MaxColor {
		return 0, ErrInvalidPackedCell
	}
	return p, nil
}
