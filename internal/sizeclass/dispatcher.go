// Package sizeclass implements the segregated size-class dispatcher of
// spec.md §4.G: a fixed array of mini-heaps, one per power-of-two size
// class from AlignUnit up to MaxSize, routing each request to the
// mini-heap whose object size is the tightest fit.
package sizeclass

import (
	"math/bits"
	"unsafe"

	"dieharder/internal/bumparena"
	"dieharder/internal/miniheap"
)

// AlignUnit is the smallest size class, matching the original's choice of
// sizeof(double) on a 64-bit platform.
const AlignUnit = 8

// classCount returns K, the number of size classes between AlignUnit and
// maxSize inclusive, both assumed to be powers of two.
func classCount(maxSize int) int {
	return log2(maxSize) - log2(AlignUnit) + 1
}

// classSize returns the object size managed by the mini-heap at index.
func classSize(index int) int {
	return (1 << index) * AlignUnit
}

// indexOf returns the size-class index that should serve a request of sz
// bytes: the smallest power-of-two class at or above sz.
func indexOf(sz int) int {
	if sz < AlignUnit {
		sz = AlignUnit
	}
	rounded := nextPow2(sz)
	return log2(rounded) - log2(AlignUnit)
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}

func nextPow2(n int) int {
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

// Dispatcher holds one mini-heap per size class, from AlignUnit to MaxSize.
type Dispatcher struct {
	maxSize int
	heaps   []*miniheap.MiniHeap
}

// New constructs a Dispatcher with one mini-heap of capacity
// objectsPerClass for every size class up to maxSize, all sharing arena for
// backing storage and diag for integrity reporting.
func New(maxSize, objectsPerClass, numerator, denominator int, arena *bumparena.Arena, diag miniheap.Diagnostics, canaryMode bool) *Dispatcher {
	k := classCount(maxSize)
	d := &Dispatcher{maxSize: maxSize, heaps: make([]*miniheap.MiniHeap, k)}
	for i := 0; i < k; i++ {
		d.heaps[i] = miniheap.New(classSize(i), objectsPerClass, numerator, denominator, arena, diag, canaryMode)
	}
	return d
}

// MaxSize is the largest request this dispatcher will serve; callers
// exceeding it must fall back to the large-object path.
func (d *Dispatcher) MaxSize() int { return d.maxSize }

// Malloc routes an sz-byte request to its size class's mini-heap. Returns
// nil if sz exceeds MaxSize, or if that mini-heap's allocation probe
// failed.
func (d *Dispatcher) Malloc(sz int) unsafe.Pointer {
	if sz > d.maxSize {
		return nil
	}
	index := indexOf(sz)
	return d.heaps[index].Allocate()
}

// Free tries ptr against every mini-heap, smallest size class first (the
// common case), and reports success on the first match.
func (d *Dispatcher) Free(ptr unsafe.Pointer) bool {
	for _, h := range d.heaps {
		if h.Free(ptr) {
			return true
		}
	}
	return false
}

// Owns reports whether ptr falls within any size class's backing region,
// regardless of whether it addresses a valid object start. Lets a caller
// tell "not managed by this dispatcher at all" apart from "managed, but
// misaligned" after a failed Free.
func (d *Dispatcher) Owns(ptr unsafe.Pointer) bool {
	for _, h := range d.heaps {
		if h.InRange(ptr) {
			return true
		}
	}
	return false
}

// SizeOf returns the usable size remaining from ptr, or 0 if no size class
// manages it.
func (d *Dispatcher) SizeOf(ptr unsafe.Pointer) int {
	for _, h := range d.heaps {
		if sz := h.SizeOf(ptr); sz != 0 {
			return sz
		}
	}
	return 0
}

// ClassStats reports one size class's occupancy.
type ClassStats struct {
	ObjectSize      int
	Capacity        int
	InUse           int
	OccupancyLimit  int
}

// Stats returns one ClassStats entry per size class, smallest class first.
func (d *Dispatcher) Stats() []ClassStats {
	out := make([]ClassStats, len(d.heaps))
	for i, h := range d.heaps {
		out[i] = ClassStats{
			ObjectSize:     h.ObjectSize(),
			Capacity:       h.Capacity(),
			InUse:          h.InUse(),
			OccupancyLimit: h.OccupancyLimit(),
		}
	}
	return out
}
