package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/quantarax/backend/internal/pixel"
)

var bucketChunks = []byte("chunks")

// BoltBackend is an embedded single-file storage backend, adapted from the
// teacher's content-addressed cache into a coordinate-keyed chunk store: one
// bucket, keyed by ChunkCoordinates.Name(), valued by the encoded chunk.
type BoltBackend struct {
	db  *bolt.DB
	tag CompressionTag
}

// NewBoltBackend opens (creating if necessary) a bolt database at path.
func NewBoltBackend(path string, tag CompressionTag) (*BoltBackend, error) {
	db, err := bolt.Open(filepath.Clean(path), 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketChunks)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}
	return &BoltBackend{db: db, tag: tag}, nil
}

// Close releases the underlying bolt database file.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Save implements Backend.
func (b *BoltBackend) Save(ctx context.Context, coord pixel.ChunkCoordinates, chunk *pixel.Chunk) error {
	encoded, err := EncodeChunk(chunk, b.tag)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketChunks)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Put([]byte(coord.Name()), encoded)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// Load implements Backend.
func (b *BoltBackend) Load(ctx context.Context, coord pixel.ChunkCoordinates, createIfMissing bool) (pixel.Chunk, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketChunks)
		if bk == nil {
			return nil
		}
		v := bk.Get([]byte(coord.Name()))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if data == nil {
		if createIfMissing {
			return pixel.NewChunk(), nil
		}
		return pixel.Chunk{}, ErrNotFound
	}
	return DecodeChunk(data)
}

// GC removes bucket entries whose coordinate has not been written in maxAge,
// judged by the save times in lastWrite (keyed by ChunkCoordinates.Name());
// entries with no lastWrite record are kept. Adapted from the teacher's
// BoltCAS.GC, repointed at stale canvas chunks instead of deduplicated file
// chunks.
func (b *BoltBackend) GC(maxAge time.Duration, lastWrite map[string]time.Time) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketChunks)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		c := bk.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ts, ok := lastWrite[string(k)]
			if ok && ts.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
