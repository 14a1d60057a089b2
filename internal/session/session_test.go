package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/chunkmgr"
	"github.com/quantarax/backend/internal/pixel"
	"github.com/quantarax/backend/internal/storage"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, b *board.Board, coord pixel.ChunkCoordinates) *httptest.Server {
	t.Helper()
	registry := NewRegistry()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Handle(context.Background(), ws, b, coord, r.RemoteAddr, "test-conn", registry, nil, nil)
	})
	return httptest.NewServer(handler)
}

func newTestBoard(t *testing.T, maxLive int) *board.Board {
	t.Helper()
	backend, err := storage.NewFSBackend(t.TempDir(), storage.TagRaw)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	cfg := board.DefaultConfig()
	cfg.MaxLiveChunks = maxLive
	cfg.ManagerConfig = chunkmgr.Config{
		CoalesceInterval: 10 * time.Millisecond,
		IdleTTL:          time.Hour,
		ChannelCapacity:  16,
	}
	b := board.New(backend, cfg, nil, nil)
	go b.Run(context.Background())
	return b
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func TestHandle_SendsEntireChunkOnConnect(t *testing.T) {
	b := newTestBoard(t, 10)
	srv := newTestServer(t, b, pixel.ChunkCoordinates{X: 0, Y: 0})
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("msgType = %v, want BinaryMessage", msgType)
	}
	if len(data) != 1+pixel.ChunkByteSize {
		t.Fatalf("len(data) = %d, want %d", len(data), 1+pixel.ChunkByteSize)
	}
	if data[0] != 0x01 {
		t.Errorf("tag = 0x%02x, want 0x01", data[0])
	}
}

func TestHandle_RefusesBeyondCapacity(t *testing.T) {
	b := newTestBoard(t, 1)
	ctx := context.Background()
	if _, err := b.GetHandler(ctx, pixel.ChunkCoordinates{X: 9, Y: 9}); err != nil {
		t.Fatalf("seed GetHandler: %v", err)
	}

	srv := newTestServer(t, b, pixel.ChunkCoordinates{X: -9, Y: -9})
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if len(data) != 1 || data[0] != 0x04 {
		t.Errorf("frame = %v, want [0x04]", data)
	}
}

func TestHandle_RoundTripsClientEdit(t *testing.T) {
	b := newTestBoard(t, 10)
	coord := pixel.ChunkCoordinates{X: 2, Y: 2}
	srv := newTestServer(t, b, coord)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("initial ReadMessage: %v", err)
	}

	cell, err := pixel.NewPackedCell(13, 7)
	if err != nil {
		t.Fatalf("NewPackedCell: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, cell.AppendBytes(nil)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage(update): %v", err)
	}
	if len(data) != 9 || data[0] != 0x02 {
		t.Fatalf("frame = %v, want tag 0x02 + 8 bytes", data)
	}
}
