// Package httpapi is the thin HTTP surface over the Board Manager and
// Screenshot Renderer: WebSocket upgrade, a single-chunk fetch, rendered
// screenshots, and a connection count. None of it is core board logic —
// it only routes and validates before handing off.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/observability"
	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/ratelimit"
	"github.com/quantarax/backend/internal/screenshot"
	"github.com/quantarax/backend/internal/session"
	"github.com/quantarax/backend/internal/validation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the Board Manager and Screenshot Renderer into an
// http.Handler.
type Server struct {
	board      *board.Board
	registry   *session.Registry
	logger     *observability.Logger
	metrics    *observability.Metrics
	connLimit  *ratelimit.TokenBucket
	maxQuality int
}

// New builds the HTTP surface over b. connLimit gates new WebSocket
// upgrades; pass nil to admit every connection unconditionally.
func New(b *board.Board, connLimit *ratelimit.TokenBucket, logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		board:      b,
		registry:   session.NewRegistry(),
		logger:     logger,
		metrics:    metrics,
		connLimit:  connLimit,
		maxQuality: screenshot.MaxQuality,
	}
}

// Handler builds the routed mux: /ws/{x}/{y}, /chunk/{x}/{y}, /screenshot,
// /connections.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{x}/{y}", s.handleWebSocket)
	mux.HandleFunc("GET /chunk/{x}/{y}", s.handleChunk)
	mux.HandleFunc("GET /screenshot", s.handleScreenshot)
	mux.HandleFunc("GET /connections", s.handleConnections)
	return mux
}

func parseCoord(r *http.Request) (pixel.ChunkCoordinates, error) {
	x, err := strconv.ParseInt(r.PathValue("x"), 10, 64)
	if err != nil {
		return pixel.ChunkCoordinates{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseInt(r.PathValue("y"), 10, 64)
	if err != nil {
		return pixel.ChunkCoordinates{}, fmt.Errorf("invalid y: %w", err)
	}
	return pixel.ChunkCoordinates{X: x, Y: y}, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.board.ValidCoordinate(coord) {
		http.NotFound(w, r)
		return
	}

	if s.connLimit != nil {
		waitCtx, cancel := context.WithTimeout(r.Context(), 50*time.Millisecond)
		err := s.connLimit.Wait(waitCtx, 1)
		cancel()
		if err != nil {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(err, "websocket upgrade failed")
		}
		return
	}

	connID := uuid.NewString()
	session.Handle(r.Context(), ws, s.board, coord, r.RemoteAddr, connID, s.registry, s.logger, s.metrics)
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chunk, ok, err := s.board.GetChunk(r.Context(), coord, board.RequestLive)
	if err != nil {
		http.Error(w, "failed to load chunk", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "chunk not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(chunk.Bytes())
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r, "q", 4)
	if err := validation.ValidateRangeInt(q, 1, s.maxQuality); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	x := parseQuery(r, "x", 0)
	y := parseQuery(r, "y", 0)
	topLeft := pixel.ChunkCoordinates{X: int64(x), Y: int64(y)}
	bottomRight := pixel.ChunkCoordinates{
		X: int64(parseQuery(r, "x2", x)),
		Y: int64(parseQuery(r, "y2", y)),
	}

	if topLeft.X > bottomRight.X || topLeft.Y < bottomRight.Y {
		http.Error(w, "invalid rectangle: require x <= x2 and y >= y2", http.StatusBadRequest)
		return
	}
	if !s.board.ValidCoordinate(topLeft) || !s.board.ValidCoordinate(bottomRight) {
		http.NotFound(w, r)
		return
	}

	png, err := screenshot.Render(r.Context(), s.board, topLeft, bottomRight, q)
	if err != nil {
		http.Error(w, "failed to render screenshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%d", s.registry.Count())
}

func parseQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
