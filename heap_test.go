package dieharder

import (
	"testing"
	"unsafe"
)

func newTestHeap(opts ...Option) (*Heap, *RecordingHandler) {
	rec := NewRecordingHandler()
	all := append([]Option{WithDiagnosticHandler(rec)}, opts...)
	return New(all...), rec
}

func asBytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

func TestAllocateReturnsDistinctAlignedPointers(t *testing.T) {
	h, _ := newTestHeap()

	seen := make(map[uintptr]bool)
	for i := 0; i < 10; i++ {
		// A single-probe collision returns nil without changing the heap;
		// retry, as Allocate's doc says a caller must.
		var p unsafe.Pointer
		for try := 0; try < 32 && p == nil; try++ {
			p = h.Allocate(16)
		}
		if p == nil {
			t.Fatal("Allocate(16) returned nil")
		}
		addr := uintptr(p)
		if addr%8 != 0 {
			t.Errorf("pointer %#x is not 8-byte aligned", addr)
		}
		if seen[addr] {
			t.Fatalf("pointer %#x returned twice", addr)
		}
		seen[addr] = true
	}
}

func TestFreeingALiveObjectReportsNoOverflow(t *testing.T) {
	h, rec := newTestHeap()

	p := h.Allocate(24)
	if p == nil {
		t.Fatal("Allocate(24) returned nil")
	}
	buf := asBytes(p, 24)
	for i := range buf {
		buf[i] = 0xAA
	}
	if !h.Free(p) {
		t.Fatal("Free of a live object failed")
	}
	if len(rec.Events) != 0 {
		t.Fatalf("writing exactly the requested 24 bytes triggered a report: %v", rec.Events)
	}
}

// TestOverflowIntoFreedNeighborIsDetected drives a 24-byte mini-heap (the
// 32-byte size class) down to its two-object capacity so both allocations
// are guaranteed adjacent, then corrupts one freed neighbor's canary
// before freeing the other — exactly the check free() performs against
// its immediate predecessor/successor slot. b's single-probe placement
// collides with a half the time, so it is retried until it lands in the
// remaining slot.
func TestOverflowIntoFreedNeighborIsDetected(t *testing.T) {
	h, rec := newTestHeap(WithMiniHeapCapacity(2))

	a := h.Allocate(24)
	var b unsafe.Pointer
	for try := 0; try < 64 && b == nil; try++ {
		b = h.Allocate(24)
	}
	if a == nil || b == nil {
		t.Fatal("failed to fill a two-object mini-heap")
	}

	if !h.Free(a) {
		t.Fatal("Free of a failed")
	}
	if len(rec.Events) != 0 {
		t.Fatalf("freeing a clean object reported: %v", rec.Events)
	}

	// a's slot is now poisoned with its canary; overflow one byte past
	// where its own 24 bytes ended, into its tail padding.
	asBytes(a, 32)[24] ^= 0xFF

	h.Free(b)

	found := false
	for _, e := range rec.Events {
		if e == ErrHeapOverflow {
			found = true
		}
	}
	if !found {
		t.Errorf("corrupting a freed neighbor's canary did not report an overflow: %v", rec.Events)
	}
}

func TestDoubleFreeReportsAndHeapStaysUsable(t *testing.T) {
	h, rec := newTestHeap()

	p := h.Allocate(100)
	if p == nil {
		t.Fatal("Allocate(100) returned nil")
	}
	if !h.Free(p) {
		t.Fatal("first Free failed")
	}
	if h.Free(p) {
		t.Error("second Free of the same pointer succeeded")
	}
	if len(rec.Events) != 1 || rec.Events[0] != ErrDoubleFree {
		t.Errorf("Events = %v, want exactly one ErrDoubleFree", rec.Events)
	}

	if p2 := h.Allocate(100); p2 == nil {
		t.Error("heap refused to serve a further allocation after a double free")
	}
}

func TestLargeObjectRoundTrip(t *testing.T) {
	h, _ := newTestHeap()

	p := h.Allocate(20000)
	if p == nil {
		t.Fatal("Allocate(20000) returned nil")
	}
	if got := h.SizeOf(p); got < 20000 {
		t.Errorf("SizeOf(large) = %d, want >= 20000", got)
	}
	if !h.Free(p) {
		t.Fatal("Free of a large object failed")
	}
	if h.Free(p) {
		t.Error("second Free of the same large object succeeded")
	}
}

func TestCallocZeroesMemory(t *testing.T) {
	h, _ := newTestHeap()

	p := h.Calloc(10, 16)
	if p == nil {
		t.Fatal("Calloc(10, 16) returned nil")
	}
	buf := asBytes(p, 160)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
		buf[i] = 0xFF
	}
	h.Free(p)

	p2 := h.Calloc(10, 16)
	if p2 == nil {
		t.Fatal("second Calloc(10, 16) returned nil")
	}
	buf2 := asBytes(p2, 160)
	for i, b := range buf2 {
		if b != 0 {
			t.Fatalf("reused byte %d = %#x, want 0", i, b)
		}
	}
}

func TestMallocZeroIsPromotedToOne(t *testing.T) {
	h, _ := newTestHeap()
	p := h.Allocate(0)
	if p == nil {
		t.Fatal("Allocate(0) returned nil, want a valid freeable pointer")
	}
	if !h.Free(p) {
		t.Error("Free of a zero-size allocation failed")
	}
}

func TestReallocNullEqualsMalloc(t *testing.T) {
	h, _ := newTestHeap()
	p := h.Realloc(nil, 32)
	if p == nil {
		t.Fatal("Realloc(nil, 32) returned nil")
	}
	h.Free(p)
}

func TestReallocZeroFreesAndReturnsNil(t *testing.T) {
	h, _ := newTestHeap()
	p := h.Allocate(32)
	if p == nil {
		t.Fatal("Allocate(32) returned nil")
	}
	if got := h.Realloc(p, 0); got != nil {
		t.Errorf("Realloc(p, 0) = %v, want nil", got)
	}
	if h.Free(p) {
		t.Error("Realloc(p, 0) did not actually free p")
	}
}

func TestReallocPreservesContentUpToMin(t *testing.T) {
	h, _ := newTestHeap()
	p := h.Allocate(40)
	if p == nil {
		t.Fatal("Allocate(40) returned nil")
	}
	src := asBytes(p, 40)
	for i := range src {
		src[i] = byte(i)
	}

	grown := h.Realloc(p, 80)
	if grown == nil {
		t.Fatal("Realloc to a larger size returned nil")
	}
	dst := asBytes(grown, 40)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d after growing realloc", i, dst[i], i)
		}
	}
}

func TestFreeOfNeverAllocatedPointerReportsInvalidFree(t *testing.T) {
	h, rec := newTestHeap()

	var stray byte
	if h.Free(unsafe.Pointer(&stray)) {
		t.Error("Free succeeded for a pointer this heap never allocated")
	}
	if len(rec.Events) != 1 || rec.Events[0] != ErrInvalidFree {
		t.Errorf("Events = %v, want exactly one ErrInvalidFree", rec.Events)
	}
}

func TestFreeOfMisalignedInRangePointerIsSilent(t *testing.T) {
	h, rec := newTestHeap()

	p := h.Allocate(24)
	if p == nil {
		t.Fatal("Allocate(24) returned nil")
	}
	misaligned := unsafe.Pointer(uintptr(p) + 1)
	if h.Free(misaligned) {
		t.Error("Free accepted a misaligned interior pointer")
	}
	if len(rec.Events) != 0 {
		t.Errorf("misaligned-but-in-range free reported an event: %v, want none", rec.Events)
	}
}

func TestFreeNilIsNoOp(t *testing.T) {
	h, _ := newTestHeap()
	if h.Free(nil) {
		t.Error("Free(nil) reported success")
	}
}

func TestMemalignRejectsNonPowerOfTwo(t *testing.T) {
	h, _ := newTestHeap()
	if p := h.Memalign(3, 16); p != nil {
		t.Error("Memalign with a non-power-of-two alignment returned non-nil")
	}
}

func TestMemalignAlignsAddress(t *testing.T) {
	h, _ := newTestHeap()
	p := h.Memalign(64, 100)
	if p == nil {
		t.Fatal("Memalign(64, 100) returned nil")
	}
	if uintptr(p)%64 != 0 {
		t.Errorf("Memalign result %#x is not 64-byte aligned", uintptr(p))
	}
}

func TestPosixMemalignReportsInvalidArgument(t *testing.T) {
	h, _ := newTestHeap()
	var p unsafe.Pointer
	if got := h.PosixMemalign(&p, 3, 16); got == 0 {
		t.Error("PosixMemalign with a non-power-of-two alignment returned success")
	}
}

func TestExactlyMaxSizeUsesSmallPath(t *testing.T) {
	h, _ := newTestHeap(WithMaxSize(16384))
	p := h.Allocate(16384)
	if p == nil {
		t.Fatal("Allocate(MaxSize) returned nil")
	}
	stats := h.Stats()
	largest := stats.Classes[len(stats.Classes)-1]
	if largest.InUse != 1 {
		t.Error("exactly-MaxSize request was not served by the largest mini-heap")
	}
}

func TestMaxSizePlusOneUsesLargePath(t *testing.T) {
	h, _ := newTestHeap(WithMaxSize(16384))
	p := h.Allocate(16385)
	if p == nil {
		t.Fatal("Allocate(MaxSize+1) returned nil")
	}
	stats := h.Stats()
	for _, c := range stats.Classes {
		if c.InUse != 0 {
			t.Error("MaxSize+1 request was served by a mini-heap instead of the large path")
		}
	}
}

func TestOverProvisionedMiniHeapNeverCorrupts(t *testing.T) {
	h, _ := newTestHeap(WithMiniHeapCapacity(128), WithHeapMultiplier(1, 2))

	var live []unsafe.Pointer
	nulls := 0
	for i := 0; i < 64; i++ {
		p := h.Allocate(8)
		if p == nil {
			nulls++
			continue
		}
		live = append(live, p)
	}
	if len(live)+nulls != 64 {
		t.Fatal("allocation accounting lost a request")
	}
	for _, p := range live {
		if !h.Free(p) {
			t.Error("Free of a live object from the occupancy-limit test failed")
		}
	}
}
