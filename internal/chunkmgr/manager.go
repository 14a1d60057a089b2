// Package chunkmgr implements the Chunk Manager: a per-chunk actor that owns
// pixel state, coalesces bursts of updates, broadcasts deltas, persists on a
// schedule, and self-terminates when idle.
package chunkmgr

import (
	"context"
	"time"

	"github.com/quantarax/backend/internal/observability"
	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/storage"
)

// Default tunables, overridable via Config. Mirrors the bounds in §5:
// channels at least 1000 deep, a 500ms coalescing window, a 5 minute idle
// timeout.
const (
	DefaultCoalesceInterval = 500 * time.Millisecond
	DefaultIdleTTL          = 5 * time.Minute
	DefaultChannelCapacity  = 1000
)

// Config tunes one Manager's timing and channel depths.
type Config struct {
	CoalesceInterval time.Duration
	IdleTTL          time.Duration
	ChannelCapacity  int
}

// DefaultConfig returns the spec's default tunables.
func DefaultConfig() Config {
	return Config{
		CoalesceInterval: DefaultCoalesceInterval,
		IdleTTL:          DefaultIdleTTL,
		ChannelCapacity:  DefaultChannelCapacity,
	}
}

type updateBatch struct {
	cells []pixel.PackedCell
}

type snapshotRequest struct {
	reply chan pixel.Chunk
}

type pingRequest struct {
	reply chan struct{}
}

type subscribeReply struct {
	ch          chan []pixel.PackedCell
	unsubscribe func()
}

type subscribeRequest struct {
	reply chan subscribeReply
}

// Manager is the single-writer custodian of one chunk's state. All mutation
// of the chunk and the subscriber set happens inside Run's goroutine; nothing
// about a Manager is safe to touch directly from the outside except through
// the channels exposed by Handle.
type Manager struct {
	coord   pixel.ChunkCoordinates
	cfg     Config
	backend storage.Backend
	logger  *observability.Logger
	metrics *observability.Metrics

	updates      chan updateBatch
	snapshotReq  chan snapshotRequest
	pingReq      chan pingRequest
	subscribeReq chan subscribeRequest
	unsubReq     chan int

	// death carries this manager's coordinate to the Board Manager exactly
	// once, when the manager self-terminates from idleness.
	death chan<- pixel.ChunkCoordinates
}

// New constructs a Manager for coord. death is the Board Manager's
// chunk-death reception channel; Run sends coord to it exactly once, on
// teardown.
func New(coord pixel.ChunkCoordinates, backend storage.Backend, death chan<- pixel.ChunkCoordinates, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if cfg.CoalesceInterval <= 0 {
		cfg.CoalesceInterval = DefaultCoalesceInterval
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		coord:        coord,
		cfg:          cfg,
		backend:      backend,
		logger:       logger,
		metrics:      metrics,
		updates:      make(chan updateBatch, cfg.ChannelCapacity),
		snapshotReq:  make(chan snapshotRequest),
		pingReq:      make(chan pingRequest),
		subscribeReq: make(chan subscribeRequest),
		unsubReq:     make(chan int, cfg.ChannelCapacity),
		death:        death,
	}
}

// Handle returns the opaque, client-facing handle for this manager. The
// Board Manager hands this to Client Sessions and otherwise never touches
// the Manager directly — see HandlerData.
func (m *Manager) Handle() HandlerData {
	return HandlerData{
		Coord:        m.coord,
		updates:      m.updates,
		subscribeReq: m.subscribeReq,
		snapshotReq:  m.snapshotReq,
		pingReq:      m.pingReq,
	}
}

func (m *Manager) unsubscribeFunc(id int) func() {
	return func() {
		select {
		case m.unsubReq <- id:
		case <-time.After(time.Second):
			// the manager has already torn down; nothing left to clean up.
		}
	}
}

// Run is the Manager's main loop (§4.1). It blocks until the manager
// self-terminates from idleness or ctx is cancelled, and must be run in its
// own goroutine.
func (m *Manager) Run(ctx context.Context) {
	chunk, err := m.backend.Load(ctx, m.coord, true)
	if err != nil {
		if m.logger != nil {
			m.logger.Error(err, "chunk load failed, starting from a blank chunk")
		}
		chunk = pixel.NewChunk()
	} else if m.logger != nil {
		m.logger.Debug("chunk loaded")
	}

	subs := make(map[int]chan []pixel.PackedCell)
	nextSubID := 0
	lastChange := time.Now()

	timer := time.NewTimer(m.cfg.CoalesceInterval)
	defer timer.Stop()

	var pending []pixel.PackedCell
	cancelled := false

outer:
	for {
		timer.Reset(m.cfg.CoalesceInterval)

	drain:
		for {
			select {
			case <-ctx.Done():
				cancelled = true
				break outer
			case batch := <-m.updates:
				pending = append(pending, batch.cells...)
			case req := <-m.snapshotReq:
				req.reply <- chunk.Snapshot()
			case req := <-m.pingReq:
				close(req.reply)
			case req := <-m.subscribeReq:
				nextSubID++
				id := nextSubID
				ch := make(chan []pixel.PackedCell, m.cfg.ChannelCapacity)
				subs[id] = ch
				req.reply <- subscribeReply{ch: ch, unsubscribe: m.unsubscribeFunc(id)}
			case id := <-m.unsubReq:
				if ch, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
			case <-timer.C:
				break drain
			}
		}

		if len(pending) == 0 {
			if len(subs) == 0 && time.Since(lastChange) >= m.cfg.IdleTTL {
				break outer
			}
			continue outer
		}

		coalesced := coalesceLastWriterWins(pending)
		pending = pending[:0]

		for _, cell := range coalesced {
			_ = chunk.Set(cell.Index(), cell.Color())
		}

		broadcast(subs, coalesced)

		if err := m.backend.Save(ctx, m.coord, &chunk); err != nil {
			if m.logger != nil {
				m.logger.Error(err, "periodic chunk save failed")
			}
		}
		if m.metrics != nil {
			m.metrics.RecordCoalescedBatch(len(coalesced))
		}

		lastChange = time.Now()
	}

	for _, ch := range subs {
		close(ch)
	}

	if !cancelled {
		if err := m.backend.Save(context.Background(), m.coord, &chunk); err != nil {
			if m.logger != nil {
				m.logger.Error(err, "final chunk save failed")
			}
		}
		select {
		case m.death <- m.coord:
		default:
			// Board Manager is gone or its death channel is saturated; the
			// spec allows this as acceptable collateral.
		}
	}
}

// broadcast delivers coalesced to every subscriber with lossy-drop-oldest
// semantics: a full subscriber channel loses its oldest pending batch to make
// room for the newest one rather than blocking the manager.
func broadcast(subs map[int]chan []pixel.PackedCell, coalesced []pixel.PackedCell) {
	for _, ch := range subs {
		select {
		case ch <- coalesced:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- coalesced:
			default:
			}
		}
	}
}

// coalesceLastWriterWins traverses pending in arrival order, keeping only the
// most recent cell per pixel index; each survivor takes the slot where its
// index first appeared (§4.1 step 3).
func coalesceLastWriterWins(pending []pixel.PackedCell) []pixel.PackedCell {
	pos := make(map[int]int, len(pending))
	out := make([]pixel.PackedCell, 0, len(pending))
	for _, cell := range pending {
		if i, ok := pos[cell.Index()]; ok {
			out[i] = cell
			continue
		}
		pos[cell.Index()] = len(out)
		out = append(out, cell)
	}
	return out
}
