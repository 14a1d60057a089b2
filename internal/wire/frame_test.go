package wire

import (
	"bytes"
	"testing"

	"github.com/quantarax/backend/internal/pixel"
)

func TestEntireChunkFrame_Shape(t *testing.T) {
	c := pixel.NewChunk()
	f := EntireChunkFrame(&c)
	if len(f) != 1+pixel.ChunkByteSize {
		t.Fatalf("len = %d, want %d", len(f), 1+pixel.ChunkByteSize)
	}
	if f[0] != byte(TagEntireChunk) {
		t.Errorf("tag = %x, want %x", f[0], TagEntireChunk)
	}
}

func TestChunkUpdateFrame_WorkedExample(t *testing.T) {
	pc, err := pixel.NewPackedCell(13, pixel.Color(7))
	if err != nil {
		t.Fatalf("NewPackedCell: %v", err)
	}
	f := ChunkUpdateFrame([]pixel.PackedCell{pc})
	want := []byte{byte(TagChunkUpdate), 0xD7, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(f, want) {
		t.Errorf("frame = %x, want %x", f, want)
	}
}

func TestParseClientFrame_EmptyIsNoop(t *testing.T) {
	cells, ok := ParseClientFrame(nil)
	if !ok {
		t.Fatal("empty frame should be accepted")
	}
	if len(cells) != 0 {
		t.Errorf("expected no cells, got %d", len(cells))
	}
}

func TestParseClientFrame_RejectsUnalignedLength(t *testing.T) {
	_, ok := ParseClientFrame(make([]byte, 9))
	if ok {
		t.Error("frame of length 9 should be discarded")
	}
}

func TestParseClientFrame_DropsOutOfRangeCells(t *testing.T) {
	good, err := pixel.NewPackedCell(5, pixel.Color(2))
	if err != nil {
		t.Fatalf("NewPackedCell: %v", err)
	}
	goodBytes := good.Bytes()

	// Build a raw cell with index == ChunkSize, which is out of range even
	// though it fits in the bit width.
	var badBytes [8]byte
	v := uint64(pixel.ChunkSize) << 4
	badBytes[0] = byte(v)
	badBytes[1] = byte(v >> 8)
	badBytes[2] = byte(v >> 16)

	frame := append(append([]byte{}, goodBytes[:]...), badBytes[:]...)
	cells, ok := ParseClientFrame(frame)
	if !ok {
		t.Fatal("well-aligned frame should be accepted")
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 surviving cell, got %d", len(cells))
	}
	if cells[0].Index() != 5 || cells[0].Color() != 2 {
		t.Errorf("surviving cell = (%d,%d), want (5,2)", cells[0].Index(), cells[0].Color())
	}
}

func TestParseClientFrame_MultipleCells(t *testing.T) {
	a, _ := pixel.NewPackedCell(1, pixel.Color(1))
	b, _ := pixel.NewPackedCell(2, pixel.Color(2))
	var frame []byte
	frame = a.AppendBytes(frame)
	frame = b.AppendBytes(frame)

	cells, ok := ParseClientFrame(frame)
	if !ok || len(cells) != 2 {
		t.Fatalf("ParseClientFrame = %v, %v", cells, ok)
	}
}
