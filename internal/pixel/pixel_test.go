package pixel

import "testing"

func TestNewColor_RejectsOutOfRange(t *testing.T) {
	if _, err := NewColor(16); err == nil {
		t.Error("expected error for color 16")
	}
	if _, err := NewColor(15); err != nil {
		t.Errorf("color 15 should be valid, got %v", err)
	}
}

func TestChunkColor_RoundTrip(t *testing.T) {
	for left := Color(0); left <= MaxColor; left++ {
		for right := Color(0); right <= MaxColor; right++ {
			b := NewChunkColor(left, right)
			if b.Left() != left {
				t.Errorf("left(%d,%d) = %d, want %d", left, right, b.Left(), left)
			}
			if b.Right() != right {
				t.Errorf("right(%d,%d) = %d, want %d", left, right, b.Right(), right)
			}
			if (uint8(b.Left())<<4)|uint8(b.Right()) != uint8(b) {
				t.Errorf("(left<<4)|right != byte for (%d,%d)", left, right)
			}
		}
	}
}

func TestChunk_DefaultsToZero(t *testing.T) {
	c := NewChunk()
	for i := 0; i < ChunkSize; i++ {
		v, err := c.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if v != 0 {
			t.Fatalf("pixel %d = %d, want 0", i, v)
		}
	}
}

func TestChunk_SetAndAt(t *testing.T) {
	c := NewChunk()
	if err := c.Set(13, Color(7)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := c.At(13)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if v != 7 {
		t.Errorf("At(13) = %d, want 7", v)
	}
	// neighboring pixel must be untouched
	if v2, _ := c.At(12); v2 != 0 {
		t.Errorf("At(12) = %d, want 0 (unaffected by Set(13,...))", v2)
	}
}

func TestChunk_SetRejectsOutOfRange(t *testing.T) {
	c := NewChunk()
	if err := c.Set(-1, 0); err == nil {
		t.Error("expected error for negative index")
	}
	if err := c.Set(ChunkSize, 0); err == nil {
		t.Error("expected error for index == ChunkSize")
	}
}

func TestChunk_SnapshotIsIndependent(t *testing.T) {
	c := NewChunk()
	_ = c.Set(0, 5)
	snap := c.Snapshot()
	_ = c.Set(0, 9)

	v, _ := snap.At(0)
	if v != 5 {
		t.Errorf("snapshot pixel changed after later write: got %d, want 5", v)
	}
	v2, _ := c.At(0)
	if v2 != 9 {
		t.Errorf("live chunk did not observe its own write: got %d, want 9", v2)
	}
}

func TestChunk_BytesRoundTrip(t *testing.T) {
	c := NewChunk()
	_ = c.Set(0, 3)
	_ = c.Set(1, 4)
	b := c.Bytes()
	if len(b) != ChunkByteSize {
		t.Fatalf("Bytes() length = %d, want %d", len(b), ChunkByteSize)
	}
	c2, err := ChunkFromBytes(b)
	if err != nil {
		t.Fatalf("ChunkFromBytes: %v", err)
	}
	if c2 != c {
		t.Error("round-tripped chunk does not equal original")
	}
}

func TestChunkFromBytes_RejectsWrongLength(t *testing.T) {
	if _, err := ChunkFromBytes(make([]byte, ChunkByteSize-1)); err == nil {
		t.Error("expected error for short payload")
	}
	if _, err := ChunkFromBytes(make([]byte, ChunkByteSize+1)); err == nil {
		t.Error("expected error for long payload")
	}
}

func TestIndex_MatchesRowMajorLayout(t *testing.T) {
	if Index(0, 0) != 0 {
		t.Errorf("Index(0,0) = %d, want 0", Index(0, 0))
	}
	if Index(99, 0) != 99 {
		t.Errorf("Index(99,0) = %d, want 99", Index(99, 0))
	}
	if Index(0, 1) != ChunkLength {
		t.Errorf("Index(0,1) = %d, want %d", Index(0, 1), ChunkLength)
	}
}

func TestNewChunkCoordinates_Bounds(t *testing.T) {
	if _, err := NewChunkCoordinates(10, 10, DefaultChunksInDirection); err != nil {
		t.Errorf("(10,10) should be valid at the boundary: %v", err)
	}
	if _, err := NewChunkCoordinates(11, 0, DefaultChunksInDirection); err != ErrInvalidCoordinates {
		t.Errorf("(11,0) should be invalid, got %v", err)
	}
	if _, err := NewChunkCoordinates(0, -11, DefaultChunksInDirection); err != ErrInvalidCoordinates {
		t.Errorf("(0,-11) should be invalid, got %v", err)
	}
}

func TestChunkCoordinates_Name(t *testing.T) {
	c := ChunkCoordinates{X: -3, Y: 5}
	if c.Name() != "-3_5.chunk" {
		t.Errorf("Name() = %q, want %q", c.Name(), "-3_5.chunk")
	}
}

func TestNewPackedCell_RejectsOutOfRange(t *testing.T) {
	if _, err := NewPackedCell(-1, 0); err == nil {
		t.Error("expected error for negative index")
	}
	if _, err := NewPackedCell(ChunkSize, 0); err == nil {
		t.Error("expected error for index == ChunkSize")
	}
	if _, err := NewPackedCell(0, 16); err == nil {
		t.Error("expected error for color 16")
	}
}

func TestPackedCell_WireEncodingWorkedExample(t *testing.T) {
	// index=13, color=7 -> (13<<4)|7 = 215 = 0xD7, little-endian.
	pc, err := NewPackedCell(13, Color(7))
	if err != nil {
		t.Fatalf("NewPackedCell: %v", err)
	}
	want := [8]byte{0xD7, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	got := pc.Bytes()
	if got != want {
		t.Errorf("Bytes() = %x, want %x", got, want)
	}
}

func TestPackedCell_RoundTrip(t *testing.T) {
	pc, err := NewPackedCell(9999, Color(15))
	if err != nil {
		t.Fatalf("NewPackedCell: %v", err)
	}
	b := pc.Bytes()
	decoded, err := DecodePackedCell(b[:])
	if err != nil {
		t.Fatalf("DecodePackedCell: %v", err)
	}
	if decoded.Index() != 9999 || decoded.Color() != 15 {
		t.Errorf("decoded = (%d,%d), want (9999,15)", decoded.Index(), decoded.Color())
	}
}

func TestDecodePackedCell_RejectsMalformed(t *testing.T) {
	if _, err := DecodePackedCell([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short buffer")
	}
	// index == ChunkSize is out of range even though it fits the bit width.
	overflow, _ := NewPackedCell(0, 0)
	_ = overflow
	var raw [8]byte
	// Construct a raw value with index = ChunkSize (10000), color = 0.
	v := uint64(ChunkSize) << 4
	raw[0] = byte(v)
	raw[1] = byte(v >> 8)
	raw[2] = byte(v >> 16)
	if _, err := DecodePackedCell(raw[:]); err == nil {
		t.Error("expected error for index == ChunkSize")
	}
}
