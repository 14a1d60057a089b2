package session

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/chunkmgr"
	"github.com/quantarax/backend/internal/observability"
	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/wire"
)

// Handle runs one Client Session to completion (§4.4): it performs the
// connect sequence against b for coord, then bridges ws until either
// direction exits, at which point the other is cancelled. Handle blocks
// until the session ends and always closes ws before returning.
func Handle(ctx context.Context, ws *websocket.Conn, b *board.Board, coord pixel.ChunkCoordinates, remoteAddr, connID string, registry *Registry, logger *observability.Logger, metrics *observability.Metrics) {
	defer ws.Close()

	conn := NewConnection(connID, remoteAddr, coord.String())
	if registry != nil {
		registry.Add(conn)
		defer registry.Remove(connID)
	}

	handle, err := b.GetHandler(ctx, coord)
	if err != nil {
		frame := wire.ChunkNotFoundFrame()
		if errors.Is(err, board.ErrTooManyChunksLoaded) {
			frame = wire.TooManyChunksLoadedFrame()
		}
		_ = ws.WriteMessage(websocket.BinaryMessage, frame)
		_ = conn.TransitionTo(StateClosed)
		if metrics != nil {
			metrics.RecordConnection(false)
		}
		return
	}

	snapshot, err := handle.Snapshot(ctx)
	if err != nil {
		_ = ws.WriteMessage(websocket.BinaryMessage, wire.ChunkNotFoundFrame())
		_ = conn.TransitionTo(StateClosed)
		return
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, wire.EntireChunkFrame(&snapshot)); err != nil {
		_ = conn.TransitionTo(StateClosed)
		return
	}

	if err := conn.TransitionTo(StateActive); err != nil && logger != nil {
		logger.Error(err, "connection state transition failed")
	}
	if metrics != nil {
		metrics.RecordConnection(true)
		defer metrics.RecordConnectionClosed()
	}
	if logger != nil {
		logger.ConnectionUpgraded(remoteAddr, connID, coord.String())
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket as soon as either side of the bridge exits is what
	// unblocks the other side's blocking ReadMessage call.
	go func() {
		<-sessionCtx.Done()
		_ = ws.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readLoop(sessionCtx, ws, handle, metrics)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		writeLoop(sessionCtx, ws, handle)
	}()
	wg.Wait()

	_ = conn.TransitionTo(StateClosing)
	_ = conn.TransitionTo(StateClosed)
	if logger != nil {
		logger.ConnectionClosed(connID, "session ended")
	}
}

// readLoop parses each inbound binary frame into PackedCells and forwards
// the batch to the Chunk Manager. Malformed frames and out-of-range cells
// are dropped, not fatal; only a transport error or cancellation of ctx
// ends the loop. A full update channel blocks the loop until it drains.
func readLoop(ctx context.Context, ws *websocket.Conn, handle chunkmgr.HandlerData, metrics *observability.Metrics) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		cells, ok := wire.ParseClientFrame(data)
		if !ok {
			if metrics != nil {
				metrics.RecordCellRejected("unaligned_frame")
			}
			continue
		}
		if len(cells) == 0 {
			continue
		}
		if err := handle.SendUpdates(ctx, cells); err != nil {
			return
		}
		if metrics != nil {
			for range cells {
				metrics.RecordCellIngested()
			}
		}
	}
}

// writeLoop subscribes to the Chunk Manager's broadcast and forwards every
// coalesced batch as a ChunkUpdate frame. It exits (sending a close frame)
// when the broadcast channel closes, which happens when the Chunk Manager
// itself tears down.
func writeLoop(ctx context.Context, ws *websocket.Conn, handle chunkmgr.HandlerData) {
	ch, unsubscribe, err := handle.Subscribe(ctx)
	if err != nil {
		return
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.BinaryMessage, wire.ChunkUpdateFrame(batch)); err != nil {
				return
			}
		}
	}
}
