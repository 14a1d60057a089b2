package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantarax/backend/internal/pixel"
)

// FSBackend persists chunks as files under a root directory, one file per
// coordinate at {root}/{x}_{y}.chunk.
type FSBackend struct {
	root string
	tag  CompressionTag
}

// NewFSBackend returns a filesystem-backed Backend rooted at dir, writing new
// chunks with the given compression tag. dir is created if it does not exist.
func NewFSBackend(dir string, tag CompressionTag) (*FSBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}
	return &FSBackend{root: dir, tag: tag}, nil
}

func (b *FSBackend) path(coord pixel.ChunkCoordinates) string {
	return filepath.Join(b.root, coord.Name())
}

// Save implements Backend.
func (b *FSBackend) Save(ctx context.Context, coord pixel.ChunkCoordinates, chunk *pixel.Chunk) error {
	encoded, err := EncodeChunk(chunk, b.tag)
	if err != nil {
		return err
	}

	path := b.path(coord)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// Load implements Backend.
func (b *FSBackend) Load(ctx context.Context, coord pixel.ChunkCoordinates, createIfMissing bool) (pixel.Chunk, error) {
	data, err := os.ReadFile(b.path(coord))
	if err != nil {
		if os.IsNotExist(err) {
			if createIfMissing {
				return pixel.NewChunk(), nil
			}
			return pixel.Chunk{}, ErrNotFound
		}
		return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	chunk, err := DecodeChunk(data)
	if err != nil {
		return pixel.Chunk{}, err
	}
	return chunk, nil
}
