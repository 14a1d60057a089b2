package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quantarax/backend/internal/pixel"
)

func TestBoltBackend_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBoltBackend(filepath.Join(dir, "chunks.bolt"), TagLZ4)
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	defer backend.Close()

	coord := pixel.ChunkCoordinates{X: 4, Y: 4}
	c := pixel.NewChunk()
	_ = c.Set(0, 1)

	ctx := context.Background()
	if err := backend.Save(ctx, coord, &c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := backend.Load(ctx, coord, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != c {
		t.Error("loaded chunk differs from saved chunk")
	}
}

func TestBoltBackend_LoadMissing(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBoltBackend(filepath.Join(dir, "chunks.bolt"), TagRaw)
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	defer backend.Close()

	_, err = backend.Load(context.Background(), pixel.ChunkCoordinates{X: 9, Y: 9}, false)
	if err != ErrNotFound {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
}
