// Package wire implements the bidirectional binary framing the Client
// Session speaks: inbound PackedCell batches and outbound tagged frames.
package wire

import "github.com/quantarax/backend/internal/pixel"

// Tag identifies the kind of a server-to-client frame.
type Tag byte

const (
	// TagEntireChunk carries a full CHUNK_BYTE_SIZE chunk snapshot.
	TagEntireChunk Tag = 0x01
	// TagChunkUpdate carries a sequence of coalesced PackedCells.
	TagChunkUpdate Tag = 0x02
	// TagChunkNotFound is an empty-payload admission failure.
	TagChunkNotFound Tag = 0x03
	// TagTooManyChunksLoaded is an empty-payload admission refusal.
	TagTooManyChunksLoaded Tag = 0x04
)

// EntireChunkFrame builds the {0x01, chunk_bytes...} handshake frame.
func EntireChunkFrame(c *pixel.Chunk) []byte {
	out := make([]byte, 0, 1+pixel.ChunkByteSize)
	out = append(out, byte(TagEntireChunk))
	return append(out, c.Bytes()...)
}

// ChunkUpdateFrame builds the {0x02, cells...} broadcast frame.
func ChunkUpdateFrame(cells []pixel.PackedCell) []byte {
	out := make([]byte, 0, 1+len(cells)*pixel.CellByteSize)
	out = append(out, byte(TagChunkUpdate))
	for _, c := range cells {
		out = c.AppendBytes(out)
	}
	return out
}

// ChunkNotFoundFrame builds the empty-payload {0x03} frame.
func ChunkNotFoundFrame() []byte {
	return []byte{byte(TagChunkNotFound)}
}

// TooManyChunksLoadedFrame builds the empty-payload {0x04} frame.
func TooManyChunksLoadedFrame() []byte {
	return []byte{byte(TagTooManyChunksLoaded)}
}

// ParseClientFrame interprets an inbound binary frame as a concatenation of
// 8-byte little-endian PackedCells. Frames whose length is not a multiple of
// 8 are discarded wholesale (returns nil, false); an empty frame is a
// permitted no-op (returns an empty, non-nil slice, true). Individual
// malformed or out-of-range cells within an otherwise well-sized frame are
// dropped rather than failing the whole frame.
func ParseClientFrame(frame []byte) ([]pixel.PackedCell, bool) {
	if len(frame)%pixel.CellByteSize != 0 {
		return nil, false
	}
	if len(frame) == 0 {
		return []pixel.PackedCell{}, true
	}
	cells := make([]pixel.PackedCell, 0, len(frame)/pixel.CellByteSize)
	for off := 0; off < len(frame); off += pixel.CellByteSize {
		cell, err := pixel.DecodePackedCell(frame[off : off+pixel.CellByteSize])
		if err != nil {
			continue
		}
		cells = append(cells, cell)
	}
	return cells, true
}
