package bumparena

import (
	"testing"
	"unsafe"

	"dieharder/internal/pagemap"
)

func TestMallocAlignsToDoubleWord(t *testing.T) {
	a := New(pagemap.New())
	for _, sz := range []int{1, 3, 7, 8, 9, 100} {
		buf := a.Malloc(sz)
		if buf == nil {
			t.Fatalf("Malloc(%d) returned nil", sz)
		}
		addr := uintptr(unsafe.Pointer(&buf[0]))
		if addr%AlignUnit != 0 {
			t.Errorf("Malloc(%d) address %#x not %d-byte aligned", sz, addr, AlignUnit)
		}
		if len(buf) < sz {
			t.Errorf("Malloc(%d) returned %d bytes, want >= %d", sz, len(buf), sz)
		}
	}
}

func TestMallocBumpsWithinChunk(t *testing.T) {
	a := New(pagemap.New())
	first := a.Malloc(64)
	second := a.Malloc(64)

	firstEnd := uintptr(unsafe.Pointer(&first[0])) + uintptr(len(first))
	secondStart := uintptr(unsafe.Pointer(&second[0]))
	if firstEnd != secondStart {
		t.Errorf("second allocation did not immediately follow the first: %#x != %#x", firstEnd, secondStart)
	}
}

func TestMallocOversizedChunkThenSmall(t *testing.T) {
	a := New(pagemap.New())
	// First allocation larger than a chunk forces an oversized chunk (two
	// ChunkSize units); a subsequent small allocation must still succeed,
	// served from that chunk's remainder.
	big := a.Malloc(ChunkSize + 1)
	if big == nil {
		t.Fatal("Malloc(ChunkSize+1) returned nil")
	}
	small := a.Malloc(16)
	if small == nil {
		t.Fatal("Malloc(16) after oversized chunk returned nil")
	}
}

func TestFreeIsNoOp(t *testing.T) {
	a := New(pagemap.New())
	buf := a.Malloc(32)
	if a.Free(buf) {
		t.Error("Free() reported success; bump arenas must never reclaim")
	}
}
