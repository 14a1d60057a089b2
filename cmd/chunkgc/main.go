// Command chunkgc removes stale chunks from a Bolt chunk store: anything
// whose last recorded save is older than -max-age and absent from the
// newer writes tracked in the SQLite side-index.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/quantarax/backend/internal/storage"
)

func main() {
	dbPath := flag.String("db", "chunks.bolt", "path to the Bolt chunk store")
	indexPath := flag.String("index", "chunks.index.db", "path to the SQLite side-index")
	maxAge := flag.Duration("max-age", 24*time.Hour, "remove chunks not written within this window")
	flag.Parse()

	backend, err := storage.NewBoltBackend(*dbPath, storage.TagZstd)
	if err != nil {
		panic(err)
	}
	defer backend.Close()

	idx, err := storage.OpenIndex(*indexPath)
	if err != nil {
		panic(err)
	}
	defer idx.Close()

	lastWrite, err := idx.LastWriteTimes()
	if err != nil {
		panic(err)
	}

	removed, err := backend.GC(*maxAge, lastWrite)
	if err != nil {
		panic(err)
	}
	fmt.Printf("chunkgc removed %d chunks older than %s\n", removed, maxAge.String())
}
