// Package miniheap implements the random mini-heap of spec.md §4.F: for
// one fixed object size, a randomized-placement, bitmap-tracked region of
// fixed capacity. This is the component the rest of the allocator's
// security story rests on — an attacker who can allocate and free cannot
// predict which slot a given object lands in.
package miniheap

import (
	"unsafe"

	"dieharder/internal/bumparena"
	"dieharder/internal/canary"
	"dieharder/internal/mwcrand"
	"dieharder/internal/occbitmap"
)

// Diagnostics receives the mini-heap's three integrity-error
// notifications. Signatures are argument-less, matching spec.md §6's
// diagnostic entry-point contract exactly.
type Diagnostics interface {
	ReportDoubleFree()
	ReportInvalidFree()
	ReportOverflow()
}

// MiniHeap manages NObjects objects of ObjectSize bytes each, randomly
// placed within a single NObjects*ObjectSize region obtained lazily from a
// shared bump arena. Every method here assumes the caller already holds
// the allocator's single global lock — nothing in this package
// synchronizes on its own.
type MiniHeap struct {
	objectSize  int
	capacity    int // N, a power of two
	numerator   int
	denominator int
	canaryMode  bool

	arena *bumparena.Arena
	diag  Diagnostics

	region     []byte // nil until activate() succeeds
	bitmap     occbitmap.Bitmap
	rng        *mwcrand.MWC
	freedValue uintptr
}

// New constructs a MiniHeap for objects of objectSize bytes, with room for
// capacity of them, at heap multiplier numerator/denominator. The region
// itself is not mapped until the first successful Allocate (spec.md §3:
// "Mini-heap memory is obtained lazily on first successful allocation").
func New(objectSize, capacity, numerator, denominator int, arena *bumparena.Arena, diag Diagnostics, canaryMode bool) *MiniHeap {
	h := &MiniHeap{
		objectSize:  objectSize,
		capacity:    capacity,
		numerator:   numerator,
		denominator: denominator,
		canaryMode:  canaryMode,
		arena:       arena,
		diag:        diag,
		rng:         mwcrand.New(),
	}
	h.freedValue = canary.NewWord(h.rng.Next)
	return h
}

// ObjectSize returns the fixed object size this mini-heap manages.
func (h *MiniHeap) ObjectSize() int { return h.objectSize }

// Capacity returns N, this mini-heap's fixed object count.
func (h *MiniHeap) Capacity() int { return h.capacity }

// InUse returns the number of objects currently allocated.
func (h *MiniHeap) InUse() int {
	if !h.activated() {
		return 0
	}
	return int(h.bitmap.Count())
}

// OccupancyLimit is the over-provisioning invariant's threshold (spec.md
// §3): once live objects approach this count, randomized single-probe
// placement starts to collide with rising probability.
func (h *MiniHeap) OccupancyLimit() int {
	return (h.numerator * h.capacity) / h.denominator
}

func (h *MiniHeap) activated() bool {
	return h.region != nil
}

// activate lazily maps this mini-heap's backing region and bitmap. Called
// once, on the first Allocate.
func (h *MiniHeap) activate() bool {
	if h.activated() {
		return true
	}
	data := h.arena.Malloc(h.capacity * h.objectSize)
	if data == nil {
		return false
	}
	h.bitmap.Reserve(uint(h.capacity))
	if h.canaryMode {
		canary.Fill(data, h.freedValue)
	}
	h.region = data
	return true
}

// Allocate draws one uniformly random slot and attempts a single
// test-and-set against it. On collision it returns nil immediately — it
// never retries (spec.md §4.F: "this single-probe policy is intentional").
func (h *MiniHeap) Allocate() unsafe.Pointer {
	if !h.activated() {
		if !h.activate() {
			return nil
		}
	}

	mask := uint32(h.capacity - 1)
	index := int(h.rng.Next() & mask)
	if !h.bitmap.TrySet(uint(index)) {
		return nil
	}

	obj := h.objectAt(index)
	if h.canaryMode {
		if canary.CheckNot(obj, h.freedValue) {
			h.diag.ReportOverflow()
		}
	}
	return unsafe.Pointer(&obj[0])
}

// Free relinquishes ptr if it belongs to this mini-heap. Returns false if
// ptr is out of this heap's range (not our object), invalid (misaligned
// within the region — a silent no-op per spec.md §9), or the object it
// addresses is not currently allocated (a double free, reported via
// Diagnostics but not otherwise acted on).
func (h *MiniHeap) Free(ptr unsafe.Pointer) bool {
	if !h.inBounds(ptr) {
		return false
	}

	offset := h.computeOffset(ptr)
	if offset%uintptr(h.objectSize) != 0 {
		return false
	}
	index := int(offset / uintptr(h.objectSize))

	if !h.bitmap.Reset(uint(index)) {
		h.diag.ReportDoubleFree()
		return false
	}

	if h.canaryMode {
		h.checkNeighbors(index)
		canary.Fill(h.objectAt(index), h.freedValue)
	}
	return true
}

// InRange reports whether ptr falls within this mini-heap's backing
// region, independent of whether it addresses a valid object start. Used
// by callers to distinguish "not ours at all" from "ours, but
// misaligned" when deciding whether a failed Free deserves an
// invalid-free report.
func (h *MiniHeap) InRange(ptr unsafe.Pointer) bool {
	return h.inBounds(ptr)
}

// SizeOf returns the bytes remaining from ptr to the end of its containing
// object, or 0 if ptr is not managed by this mini-heap.
func (h *MiniHeap) SizeOf(ptr unsafe.Pointer) int {
	if !h.inBounds(ptr) {
		return 0
	}
	offset := h.computeOffset(ptr)
	return h.objectSize - int(offset%uintptr(h.objectSize))
}

// checkNeighbors verifies that any currently-free neighbor of the
// just-freed slot at index still carries its canary — a deviation there
// means the object just freed had already overflowed into it.
func (h *MiniHeap) checkNeighbors(index int) {
	if index > 0 && !h.bitmap.IsSet(uint(index-1)) {
		if canary.CheckNot(h.objectAt(index-1), h.freedValue) {
			h.diag.ReportOverflow()
		}
	}
	if index < h.capacity-1 && !h.bitmap.IsSet(uint(index+1)) {
		if canary.CheckNot(h.objectAt(index+1), h.freedValue) {
			h.diag.ReportOverflow()
		}
	}
}

func (h *MiniHeap) objectAt(index int) []byte {
	off := index * h.objectSize
	return h.region[off : off+h.objectSize]
}

func (h *MiniHeap) inBounds(ptr unsafe.Pointer) bool {
	if !h.activated() {
		return false
	}
	base := uintptr(unsafe.Pointer(&h.region[0]))
	p := uintptr(ptr)
	return p >= base && p < base+uintptr(len(h.region))
}

func (h *MiniHeap) computeOffset(ptr unsafe.Pointer) uintptr {
	base := uintptr(unsafe.Pointer(&h.region[0]))
	return uintptr(ptr) - base
}
