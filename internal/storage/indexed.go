package storage

import (
	"context"

	"github.com/quantarax/backend/internal/pixel"
)

// IndexedBackend wraps a Backend, recording a saved-metadata row in an Index
// alongside every successful Save. It never blocks or fails a Save on an
// index-write error; the index is an operational side-channel, not part of
// the storage contract.
type IndexedBackend struct {
	Backend
	index   *Index
	onError func(error)
}

// NewIndexedBackend wraps backend with idx. onError, if non-nil, is called
// with any error recording to idx; pass nil to ignore such errors.
func NewIndexedBackend(backend Backend, idx *Index, onError func(error)) *IndexedBackend {
	return &IndexedBackend{Backend: backend, index: idx, onError: onError}
}

// Save implements Backend, persisting through the wrapped backend and then
// updating the side-index with the chunk's size and content hash.
func (b *IndexedBackend) Save(ctx context.Context, coord pixel.ChunkCoordinates, chunk *pixel.Chunk) error {
	if err := b.Backend.Save(ctx, coord, chunk); err != nil {
		return err
	}
	raw := chunk.Bytes()
	if err := b.index.RecordSave(coord, len(raw), ContentHash(raw)); err != nil && b.onError != nil {
		b.onError(err)
	}
	return nil
}

// Close closes the side-index and, if the wrapped backend supports it,
// closes that too.
func (b *IndexedBackend) Close() error {
	if closer, ok := b.Backend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			b.index.Close()
			return err
		}
	}
	return b.index.Close()
}
