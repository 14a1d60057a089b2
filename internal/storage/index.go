package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quantarax/backend/internal/pixel"
)

// Index is a small SQLite side-index of per-chunk save metadata, adapted from
// the teacher's PersistentStore: same schema-init-then-prepared-query shape,
// repointed from transfer sessions at chunk coordinates. It is not read by
// the hot load/save path; it exists for operational introspection (last
// save time, byte size, content hash) beyond the storage contract's minimal
// surface.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenIndex opens (creating if necessary) the SQLite index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) initSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS chunk_index (
			coord_x INTEGER NOT NULL,
			coord_y INTEGER NOT NULL,
			byte_size INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL,
			PRIMARY KEY (coord_x, coord_y)
		);
	`
	if _, err := idx.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: init index schema: %w", err)
	}
	return nil
}

// RecordSave upserts the index row for coord after a successful save.
func (idx *Index) RecordSave(coord pixel.ChunkCoordinates, byteSize int, contentHash string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	const query = `
		INSERT INTO chunk_index (coord_x, coord_y, byte_size, content_hash, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(coord_x, coord_y) DO UPDATE SET
			byte_size = excluded.byte_size,
			content_hash = excluded.content_hash,
			saved_at = excluded.saved_at
	`
	_, err := idx.db.Exec(query, coord.X, coord.Y, byteSize, contentHash, time.Now())
	if err != nil {
		return fmt.Errorf("storage: record save: %w", err)
	}
	return nil
}

// Row is one chunk_index entry.
type Row struct {
	Coord       pixel.ChunkCoordinates
	ByteSize    int
	ContentHash string
	SavedAt     time.Time
}

// Lookup returns the index row for coord, or sql.ErrNoRows if absent.
func (idx *Index) Lookup(coord pixel.ChunkCoordinates) (Row, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var row Row
	row.Coord = coord
	const query = `SELECT byte_size, content_hash, saved_at FROM chunk_index WHERE coord_x = ? AND coord_y = ?`
	err := idx.db.QueryRow(query, coord.X, coord.Y).Scan(&row.ByteSize, &row.ContentHash, &row.SavedAt)
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// LastWriteTimes returns every indexed coordinate's save time keyed by its
// canonical object name, for feeding BoltBackend.GC's lastWrite map.
func (idx *Index) LastWriteTimes() (map[string]time.Time, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows, err := idx.db.Query(`SELECT coord_x, coord_y, saved_at FROM chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("storage: list index: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var x, y int64
		var savedAt time.Time
		if err := rows.Scan(&x, &y, &savedAt); err != nil {
			return nil, fmt.Errorf("storage: scan index row: %w", err)
		}
		out[pixel.ChunkCoordinates{X: x, Y: y}.Name()] = savedAt
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}
