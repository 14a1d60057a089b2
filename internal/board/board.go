// Package board implements the Board Manager: the single point of admission
// control for per-chunk Managers, and the router between HTTP/WebSocket
// handlers and whichever Manager (if any) currently owns a coordinate.
package board

import (
	"context"
	"errors"
	"sync"

	"github.com/quantarax/backend/internal/chunkmgr"
	"github.com/quantarax/backend/internal/observability"
	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/storage"
)

// ErrTooManyChunksLoaded is returned by GetHandler when MaxLiveChunks is
// already reached and coord isn't already live.
var ErrTooManyChunksLoaded = errors.New("board: too many chunks loaded")

// ErrInvalidCoordinates is returned by GetHandler for a coordinate outside
// the configured grid.
var ErrInvalidCoordinates = errors.New("board: coordinates outside configured grid")

// RequestMode selects where GetChunk reads from.
type RequestMode int

const (
	// RequestLive reads from a chunk's in-memory Manager, if one is running.
	RequestLive RequestMode = iota
	// RequestStorage reads straight from the storage backend, bypassing any
	// live Manager's state.
	RequestStorage
)

// Config tunes the Board Manager.
type Config struct {
	MaxLiveChunks     int
	ChunksInDirection int64
	ManagerConfig     chunkmgr.Config
}

// DefaultConfig returns the spec's default tunables.
func DefaultConfig() Config {
	return Config{
		MaxLiveChunks:     100,
		ChunksInDirection: pixel.DefaultChunksInDirection,
		ManagerConfig:     chunkmgr.DefaultConfig(),
	}
}

type liveEntry struct {
	handle chunkmgr.HandlerData
	cancel context.CancelFunc
}

type getHandlerCmd struct {
	coord pixel.ChunkCoordinates
	reply chan getHandlerResult
}

type getHandlerResult struct {
	handle chunkmgr.HandlerData
	err    error
}

type getLiveCmd struct {
	coord pixel.ChunkCoordinates
	reply chan getLiveResult
}

type getLiveResult struct {
	handle chunkmgr.HandlerData
	ok     bool
}

type liveCountCmd struct {
	reply chan int
}

// Board is the Board Manager (§4.2): a single goroutine owns the live-chunk
// map; everything else talks to it through a command channel.
type Board struct {
	cfg     Config
	backend storage.Backend
	logger  *observability.Logger
	metrics *observability.Metrics
	presence *GridBitmap

	commands chan any
	death    chan pixel.ChunkCoordinates
}

// New constructs a Board over backend. Call Run in its own goroutine before
// using any other method.
func New(backend storage.Backend, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Board {
	if cfg.MaxLiveChunks <= 0 {
		cfg.MaxLiveChunks = 100
	}
	if cfg.ChunksInDirection <= 0 {
		cfg.ChunksInDirection = pixel.DefaultChunksInDirection
	}
	return &Board{
		cfg:      cfg,
		backend:  backend,
		logger:   logger,
		metrics:  metrics,
		presence: NewGridBitmap(cfg.ChunksInDirection),
		commands: make(chan any, 256),
		death:    make(chan pixel.ChunkCoordinates, 256),
	}
}

// Run is the Board Manager's main loop. It blocks until ctx is cancelled.
func (b *Board) Run(ctx context.Context) {
	chunks := make(map[pixel.ChunkCoordinates]liveEntry)
	defer func() {
		for _, e := range chunks {
			e.cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case coord := <-b.death:
			if e, ok := chunks[coord]; ok {
				e.cancel()
				delete(chunks, coord)
				b.presence.Clear(coord)
				if b.metrics != nil {
					b.metrics.RecordChunkTeardown()
				}
			}

		case raw := <-b.commands:
			switch cmd := raw.(type) {
			case getHandlerCmd:
				cmd.reply <- b.admit(ctx, chunks, cmd.coord)
			case getLiveCmd:
				e, ok := chunks[cmd.coord]
				cmd.reply <- getLiveResult{handle: e.handle, ok: ok}
			case liveCountCmd:
				cmd.reply <- len(chunks)
			}
		}
	}
}

func (b *Board) admit(ctx context.Context, chunks map[pixel.ChunkCoordinates]liveEntry, coord pixel.ChunkCoordinates) getHandlerResult {
	if e, ok := chunks[coord]; ok {
		return getHandlerResult{handle: e.handle}
	}
	if len(chunks) >= b.cfg.MaxLiveChunks {
		if b.metrics != nil {
			b.metrics.RecordAdmission(false)
		}
		if b.logger != nil {
			b.logger.AdmissionRefused(coord.String(), len(chunks), b.cfg.MaxLiveChunks)
		}
		return getHandlerResult{err: ErrTooManyChunksLoaded}
	}

	managerCtx, cancel := context.WithCancel(ctx)
	m := chunkmgr.New(coord, b.backend, b.death, b.cfg.ManagerConfig, b.logger, b.metrics)
	go m.Run(managerCtx)

	handle := m.Handle()
	chunks[coord] = liveEntry{handle: handle, cancel: cancel}
	b.presence.Set(coord)
	if b.metrics != nil {
		b.metrics.RecordAdmission(true)
	}
	return getHandlerResult{handle: handle}
}

// ValidCoordinate reports whether coord falls within the configured grid
// half-extent. Callers that can reject a request before doing any other
// work (e.g. refusing a WebSocket upgrade with 404) should check this
// first instead of relying on GetHandler's ErrInvalidCoordinates.
func (b *Board) ValidCoordinate(coord pixel.ChunkCoordinates) bool {
	return coord.X >= -b.cfg.ChunksInDirection && coord.X <= b.cfg.ChunksInDirection &&
		coord.Y >= -b.cfg.ChunksInDirection && coord.Y <= b.cfg.ChunksInDirection
}

// GetHandler returns the HandlerData for coord, admitting a new Manager if
// one isn't already running. It returns ErrTooManyChunksLoaded if the board
// is full and coord has no existing Manager, or ErrInvalidCoordinates if
// coord falls outside the configured grid.
func (b *Board) GetHandler(ctx context.Context, coord pixel.ChunkCoordinates) (chunkmgr.HandlerData, error) {
	if !b.ValidCoordinate(coord) {
		return chunkmgr.HandlerData{}, ErrInvalidCoordinates
	}

	reply := make(chan getHandlerResult, 1)
	select {
	case b.commands <- getHandlerCmd{coord: coord, reply: reply}:
	case <-ctx.Done():
		return chunkmgr.HandlerData{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.handle, r.err
	case <-ctx.Done():
		return chunkmgr.HandlerData{}, ctx.Err()
	}
}

// GetChunk returns the chunk at coord. RequestStorage reads straight from
// the storage backend, bypassing any live Manager's in-memory state.
// RequestLive asks the running Manager if one exists, and otherwise falls
// through to a storage read — the same rule §4.5's screenshot fetch uses.
// Both modes return ok=false only on a genuine load error.
func (b *Board) GetChunk(ctx context.Context, coord pixel.ChunkCoordinates, mode RequestMode) (pixel.Chunk, bool, error) {
	if mode == RequestStorage {
		chunk, err := b.backend.Load(ctx, coord, true)
		if err != nil {
			return pixel.Chunk{}, false, err
		}
		return chunk, true, nil
	}

	reply := make(chan getLiveResult, 1)
	select {
	case b.commands <- getLiveCmd{coord: coord, reply: reply}:
	case <-ctx.Done():
		return pixel.Chunk{}, false, ctx.Err()
	}
	var res getLiveResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		return pixel.Chunk{}, false, ctx.Err()
	}
	if !res.ok {
		return b.GetChunk(ctx, coord, RequestStorage)
	}
	chunk, err := res.handle.Snapshot(ctx)
	if err != nil {
		return pixel.Chunk{}, false, err
	}
	return chunk, true, nil
}

// screenshotFetchWorkers bounds how many coordinates GetScreenshotChunks
// fetches concurrently. A large rectangle shouldn't spawn one goroutine per
// chunk against a board that's also serving live WebSocket traffic.
const screenshotFetchWorkers = 32

// GetScreenshotChunks fetches every chunk in the inclusive rectangle from
// topLeft to bottomRight over a bounded worker pool, using RequestLive
// semantics for each. A per-coordinate load error yields a nil entry for
// that coordinate rather than failing the whole fetch; the Screenshot
// Renderer treats a nil entry as a blank chunk.
func (b *Board) GetScreenshotChunks(ctx context.Context, topLeft, bottomRight pixel.ChunkCoordinates) map[pixel.ChunkCoordinates]*pixel.Chunk {
	minX, maxX := topLeft.X, bottomRight.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := bottomRight.Y, topLeft.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var coords []pixel.ChunkCoordinates
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			coords = append(coords, pixel.ChunkCoordinates{X: x, Y: y})
		}
	}

	out := make(map[pixel.ChunkCoordinates]*pixel.Chunk, len(coords))
	var mu sync.Mutex

	work := make(chan pixel.ChunkCoordinates)
	var wg sync.WaitGroup
	workers := screenshotFetchWorkers
	if workers > len(coords) {
		workers = len(coords)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				chunk, ok, err := b.GetChunk(ctx, c, RequestLive)
				mu.Lock()
				if ok && err == nil {
					out[c] = &chunk
				} else {
					out[c] = nil
				}
				mu.Unlock()
			}
		}()
	}
	for _, c := range coords {
		work <- c
	}
	close(work)
	wg.Wait()

	return out
}

// LiveChunkCount returns the number of chunks with a running Manager.
func (b *Board) LiveChunkCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case b.commands <- liveCountCmd{reply: reply}:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

// IsLive reports whether coord has a running Manager without requesting a
// full snapshot. It reads the presence bitmap directly, so it never blocks
// on the command queue.
func (b *Board) IsLive(coord pixel.ChunkCoordinates) bool {
	return b.presence.Has(coord)
}
