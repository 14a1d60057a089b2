package chunkmgr

import (
	"context"
	"errors"

	"github.com/quantarax/backend/internal/pixel"
)

// ErrManagerClosed is returned when a request reaches a Manager that has
// already torn itself down.
var ErrManagerClosed = errors.New("chunkmgr: manager closed")

// HandlerData is the opaque handle a Client Session uses to talk to one
// Chunk Manager. It carries an update sink, a subscription mechanism, a
// one-shot snapshot requester and a ping requester; nothing else about the Manager is reachable
// from outside its own goroutine.
type HandlerData struct {
	Coord pixel.ChunkCoordinates

	updates      chan<- updateBatch
	subscribeReq chan<- subscribeRequest
	snapshotReq  chan<- snapshotRequest
	pingReq      chan<- pingRequest
}

// SendUpdates forwards one batch of cells into the manager's coalescing
// buffer. It blocks only on backpressure from the manager's update channel,
// never on the manager's internal state.
func (h HandlerData) SendUpdates(ctx context.Context, cells []pixel.PackedCell) error {
	if len(cells) == 0 {
		return nil
	}
	select {
	case h.updates <- updateBatch{cells: cells}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a new broadcast subscriber. The returned channel
// receives each coalesced update batch; the returned func must be called
// when the caller is done to free the manager's subscriber slot.
func (h HandlerData) Subscribe(ctx context.Context) (<-chan []pixel.PackedCell, func(), error) {
	reply := make(chan subscribeReply, 1)
	select {
	case h.subscribeReq <- subscribeRequest{reply: reply}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.ch, r.unsubscribe, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Snapshot requests a copy of the chunk's current state.
func (h HandlerData) Snapshot(ctx context.Context) (pixel.Chunk, error) {
	reply := make(chan pixel.Chunk, 1)
	select {
	case h.snapshotReq <- snapshotRequest{reply: reply}:
	case <-ctx.Done():
		return pixel.Chunk{}, ctx.Err()
	}
	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return pixel.Chunk{}, ctx.Err()
	}
}

// Ping is a liveness probe against the manager's command loop.
func (h HandlerData) Ping(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case h.pingReq <- pingRequest{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
