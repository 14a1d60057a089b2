package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/quantarax/backend/internal/pixel"
)

// CompressionTag is the version/compression byte that prefixes every
// persisted chunk.
type CompressionTag byte

const (
	// TagRaw stores the chunk as exactly CHUNK_BYTE_SIZE raw bytes.
	TagRaw CompressionTag = 0
	// TagZstd stores the chunk zstd-compressed.
	TagZstd CompressionTag = 1
	// TagLZ4 stores the chunk lz4-compressed.
	TagLZ4 CompressionTag = 2
)

// EncodeChunk serializes c under the given compression tag: one header byte
// followed by the (possibly compressed) payload.
func EncodeChunk(c *pixel.Chunk, tag CompressionTag) ([]byte, error) {
	raw := c.Bytes()
	switch tag {
	case TagRaw:
		out := make([]byte, 0, 1+len(raw))
		out = append(out, byte(TagRaw))
		return append(out, raw...), nil
	case TagZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		defer enc.Close()
		compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)))
		out := make([]byte, 0, 1+len(compressed))
		out = append(out, byte(TagZstd))
		return append(out, compressed...), nil
	case TagLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		out := make([]byte, 0, 1+buf.Len())
		out = append(out, byte(TagLZ4))
		return append(out, buf.Bytes()...), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrCompression, tag)
	}
}

// DecodeChunk parses a persisted payload back into a Chunk. It accepts both
// the tagged format and the legacy bare-CHUNK_BYTE_SIZE format (a file with
// no header, interpreted as raw).
func DecodeChunk(data []byte) (pixel.Chunk, error) {
	if len(data) == pixel.ChunkByteSize {
		return pixel.ChunkFromBytes(data)
	}
	if len(data) == 0 {
		return pixel.Chunk{}, fmt.Errorf("%w: empty payload", ErrLoad)
	}

	tag := CompressionTag(data[0])
	payload := data[1:]

	switch tag {
	case TagRaw:
		chunk, err := pixel.ChunkFromBytes(payload)
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		return chunk, nil
	case TagZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(payload, make([]byte, 0, pixel.ChunkByteSize))
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		chunk, err := pixel.ChunkFromBytes(raw)
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		return chunk, nil
	case TagLZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		raw, err := io.ReadAll(r)
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		chunk, err := pixel.ChunkFromBytes(raw)
		if err != nil {
			return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		return chunk, nil
	default:
		return pixel.Chunk{}, fmt.Errorf("%w: unknown tag %d", ErrCompression, tag)
	}
}
