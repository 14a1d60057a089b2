package chunkmgr

import (
	"context"
	"testing"
	"time"

	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/storage"
)

func testCoord() pixel.ChunkCoordinates {
	return pixel.ChunkCoordinates{X: 1, Y: 1}
}

func newTestManager(t *testing.T, cfg Config) (*Manager, chan pixel.ChunkCoordinates, storage.Backend) {
	t.Helper()
	backend, err := storage.NewFSBackend(t.TempDir(), storage.TagRaw)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	death := make(chan pixel.ChunkCoordinates, 1)
	m := New(testCoord(), backend, death, cfg, nil, nil)
	return m, death, backend
}

func must(cell pixel.PackedCell, err error) pixel.PackedCell {
	if err != nil {
		panic(err)
	}
	return cell
}

func TestCoalesceLastWriterWins(t *testing.T) {
	pending := []pixel.PackedCell{
		must(pixel.NewPackedCell(5, 3)),
		must(pixel.NewPackedCell(5, 9)),
		must(pixel.NewPackedCell(5, 2)),
	}
	out := coalesceLastWriterWins(pending)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Index() != 5 || out[0].Color() != 2 {
		t.Errorf("out[0] = {%d,%d}, want {5,2}", out[0].Index(), out[0].Color())
	}
}

func TestCoalesceLastWriterWins_PreservesFirstSeenPosition(t *testing.T) {
	pending := []pixel.PackedCell{
		must(pixel.NewPackedCell(1, 1)),
		must(pixel.NewPackedCell(2, 2)),
		must(pixel.NewPackedCell(1, 5)),
	}
	out := coalesceLastWriterWins(pending)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Index() != 1 || out[0].Color() != 5 {
		t.Errorf("out[0] = {%d,%d}, want {1,5}", out[0].Index(), out[0].Color())
	}
	if out[1].Index() != 2 || out[1].Color() != 2 {
		t.Errorf("out[1] = {%d,%d}, want {2,2}", out[1].Index(), out[1].Color())
	}
}

func TestManager_UpdateThenSnapshot(t *testing.T) {
	cfg := Config{CoalesceInterval: 20 * time.Millisecond, IdleTTL: time.Hour, ChannelCapacity: 16}
	m, _, _ := newTestManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	h := m.Handle()
	if err := h.SendUpdates(ctx, []pixel.PackedCell{must(pixel.NewPackedCell(13, 7))}); err != nil {
		t.Fatalf("SendUpdates: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	snapCtx, snapCancel := context.WithTimeout(ctx, time.Second)
	defer snapCancel()
	chunk, err := h.Snapshot(snapCtx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	color, err := chunk.At(13)
	if err != nil {
		t.Fatalf("At(13): %v", err)
	}
	if color != 7 {
		t.Errorf("chunk[13] = %d, want 7", color)
	}
}

func TestManager_BroadcastsToSubscriber(t *testing.T) {
	cfg := Config{CoalesceInterval: 20 * time.Millisecond, IdleTTL: time.Hour, ChannelCapacity: 16}
	m, _, _ := newTestManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	h := m.Handle()
	subCtx, subCancel := context.WithTimeout(ctx, time.Second)
	defer subCancel()
	ch, unsubscribe, err := h.Subscribe(subCtx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if err := h.SendUpdates(ctx, []pixel.PackedCell{must(pixel.NewPackedCell(0, 1))}); err != nil {
		t.Fatalf("SendUpdates: %v", err)
	}

	select {
	case batch := <-ch:
		if len(batch) != 1 || batch[0].Index() != 0 || batch[0].Color() != 1 {
			t.Errorf("batch = %+v, want one cell {0,1}", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestManager_IdleTeardownNotifiesDeathChannel(t *testing.T) {
	cfg := Config{CoalesceInterval: 5 * time.Millisecond, IdleTTL: 20 * time.Millisecond, ChannelCapacity: 16}
	m, death, _ := newTestManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case coord := <-death:
		if coord != testCoord() {
			t.Errorf("death coord = %v, want %v", coord, testCoord())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not tear down on idleness")
	}
}

func TestManager_PersistsAcrossRestart(t *testing.T) {
	cfg := Config{CoalesceInterval: 10 * time.Millisecond, IdleTTL: time.Hour, ChannelCapacity: 16}
	dir := t.TempDir()
	backend, err := storage.NewFSBackend(dir, storage.TagRaw)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	death := make(chan pixel.ChunkCoordinates, 1)

	ctx, cancel := context.WithCancel(context.Background())
	m1 := New(testCoord(), backend, death, cfg, nil, nil)
	go m1.Run(ctx)
	h1 := m1.Handle()
	if err := h1.SendUpdates(ctx, []pixel.PackedCell{must(pixel.NewPackedCell(99, 4))}); err != nil {
		t.Fatalf("SendUpdates: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	m2 := New(testCoord(), backend, death, cfg, nil, nil)
	go m2.Run(ctx2)
	snapCtx, snapCancel := context.WithTimeout(ctx2, time.Second)
	defer snapCancel()
	chunk, err := m2.Handle().Snapshot(snapCtx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	color, err := chunk.At(99)
	if err != nil {
		t.Fatalf("At(99): %v", err)
	}
	if color != 4 {
		t.Errorf("chunk[99] = %d, want 4 (save did not survive restart)", color)
	}
}
