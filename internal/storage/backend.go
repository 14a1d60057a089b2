// Package storage implements the Chunk Storage Backend: a pluggable
// loader/saver over ChunkCoordinates with a bit-exact on-disk/object format.
package storage

import (
	"context"
	"errors"

	"github.com/quantarax/backend/internal/pixel"
)

// Errors surfaced by a Backend. A missing object with createIfMissing=false
// is ErrNotFound; anything else is wrapped in ErrLoad, ErrSave, or
// ErrCompression so callers can distinguish storage flakiness (logged, not
// fatal) from a genuinely absent chunk.
var (
	ErrNotFound     = errors.New("storage: chunk not found")
	ErrLoad         = errors.New("storage: load failed")
	ErrSave         = errors.New("storage: save failed")
	ErrCompression  = errors.New("storage: compression error")
)

// Backend is the async key/value contract over chunk coordinates that every
// storage implementation (filesystem, embedded, S3-compatible) satisfies.
// Implementations must be safe for concurrent use by multiple callers.
type Backend interface {
	// Save writes chunk under coord, overwriting any existing content.
	// Save is idempotent: saving the same bytes twice has the same effect as
	// saving them once.
	Save(ctx context.Context, coord pixel.ChunkCoordinates, chunk *pixel.Chunk) error

	// Load reads the chunk stored under coord. If no object exists and
	// createIfMissing is true, Load returns a freshly defaulted chunk instead
	// of ErrNotFound.
	Load(ctx context.Context, coord pixel.ChunkCoordinates, createIfMissing bool) (pixel.Chunk, error)
}
