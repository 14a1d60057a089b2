package storage

import "testing"

func TestContentHash_Deterministic(t *testing.T) {
	data := []byte("canvas chunk bytes")
	h1 := ContentHash(data)
	h2 := ContentHash(data)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s != %s", h1, h2)
	}
}

func TestContentHash_DiffersOnDifferentInput(t *testing.T) {
	h1 := ContentHash([]byte("a"))
	h2 := ContentHash([]byte("b"))
	if h1 == h2 {
		t.Error("distinct inputs produced the same hash")
	}
}
