package board

import (
	"sync"

	"github.com/quantarax/backend/internal/pixel"
)

// GridBitmap tracks which chunk coordinates currently have a live Chunk
// Manager, one bit per coordinate. It exists so presence queries
// (Board.IsLive) don't have to go through the Board Manager's command queue.
type GridBitmap struct {
	n      int64
	side   int64
	bitmap []byte
	count  int64
	mu     sync.RWMutex
}

// NewGridBitmap allocates a bitmap covering every coordinate in
// [-chunksInDirection, chunksInDirection] on both axes.
func NewGridBitmap(chunksInDirection int64) *GridBitmap {
	side := 2*chunksInDirection + 1
	total := side * side
	return &GridBitmap{
		n:      chunksInDirection,
		side:   side,
		bitmap: make([]byte, (total+7)/8),
	}
}

func (g *GridBitmap) index(coord pixel.ChunkCoordinates) (int64, bool) {
	if coord.X < -g.n || coord.X > g.n || coord.Y < -g.n || coord.Y > g.n {
		return 0, false
	}
	return (coord.X+g.n)*g.side + (coord.Y + g.n), true
}

// Set marks coord as live. Out-of-range coordinates are ignored.
func (g *GridBitmap) Set(coord pixel.ChunkCoordinates) {
	i, ok := g.index(coord)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	byteIdx, bitIdx := i/8, uint(i%8)
	if g.bitmap[byteIdx]&(1<<bitIdx) == 0 {
		g.bitmap[byteIdx] |= 1 << bitIdx
		g.count++
	}
}

// Clear marks coord as no longer live.
func (g *GridBitmap) Clear(coord pixel.ChunkCoordinates) {
	i, ok := g.index(coord)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	byteIdx, bitIdx := i/8, uint(i%8)
	if g.bitmap[byteIdx]&(1<<bitIdx) != 0 {
		g.bitmap[byteIdx] &^= 1 << bitIdx
		g.count--
	}
}

// Has reports whether coord currently has a live manager.
func (g *GridBitmap) Has(coord pixel.ChunkCoordinates) bool {
	i, ok := g.index(coord)
	if !ok {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	byteIdx, bitIdx := i/8, uint(i%8)
	return g.bitmap[byteIdx]&(1<<bitIdx) != 0
}

// Count returns the number of live coordinates.
func (g *GridBitmap) Count() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}
