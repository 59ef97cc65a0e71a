// Package largeobj implements the large-object side path of spec.md §4.H:
// requests above the segregated dispatcher's MaxSize go straight to the OS
// via mmap/munmap, with a page-indexed registry recording each mapping's
// remaining size at every page it spans. That registry is what makes
// SizeOf work from an interior page without consulting any mini-heap;
// Free looks up the same registry and expects the allocation's starting
// address.
package largeobj

import (
	"unsafe"

	"dieharder/internal/pagemap"
)

// PageSize matches pagemap.PageSize; kept local so this package's registry
// math is self-contained and easy to audit against largeheap.h.
const PageSize = pagemap.PageSize

// mapper is the subset of *pagemap.Mapper this package depends on.
type mapper interface {
	Map(size int) []byte
	Unmap(data []byte) bool
}

// Heap is the large-object side path. Unlike the original's fixed
// 1<<(32-12)-entry array indexed by the pointer's page number, this
// registry is a Go map keyed by page index — sparse, and unbounded by a
// 32-bit address assumption, as spec.md's Open Question on 64-bit address
// spaces resolves.
type Heap struct {
	mapper mapper
	size   map[uintptr]int
}

// New constructs an empty large-object heap backed by m.
func New(m mapper) *Heap {
	return &Heap{mapper: m, size: make(map[uintptr]int)}
}

// Malloc maps a fresh sz-byte region directly from the OS and records its
// size across every page it spans.
func (h *Heap) Malloc(sz int) []byte {
	data := h.mapper.Map(sz)
	if data == nil {
		return nil
	}
	h.set(data, sz)
	return data
}

// Free releases ptr back to the OS if this heap is the one that mapped
// it. The caller's slice may be shorter than the actual mapping (the root
// Heap only has an unsafe.Pointer to work with, not a length) — the full
// span to unmap comes from the registry, not from len(ptr).
func (h *Heap) Free(ptr []byte) bool {
	sz, ok := h.get(ptr)
	if !ok || sz == 0 {
		return false
	}
	full := unsafe.Slice((*byte)(unsafe.Pointer(&ptr[0])), sz)
	h.clear(ptr)
	return h.mapper.Unmap(full)
}

// SizeOf returns the bytes remaining from the start of ptr (which may
// point anywhere within a tracked allocation, not just its start) to the
// end of that allocation, or 0 if ptr is not tracked here.
func (h *Heap) SizeOf(ptr []byte) int {
	s, ok := h.get(ptr)
	if !ok || s == 0 {
		return 0
	}
	offset := h.pageOffset(ptr)
	return s - offset
}

func (h *Heap) pageIndex(ptr []byte) uintptr {
	if len(ptr) == 0 {
		return 0
	}
	return uintptr(pointerOf(ptr)) / PageSize
}

func (h *Heap) pageOffset(ptr []byte) int {
	if len(ptr) == 0 {
		return 0
	}
	return int(uintptr(pointerOf(ptr)) % PageSize)
}

func (h *Heap) get(ptr []byte) (int, bool) {
	sz, ok := h.size[h.pageIndex(ptr)]
	return sz, ok
}

// set stamps every page this sz-byte region spans with the remaining size
// at that page, matching largeheap.h's set(): the first page gets the full
// size, each subsequent page PageSize less.
func (h *Heap) set(ptr []byte, sz int) {
	index := h.pageIndex(ptr)
	iterations := (sz + PageSize - 1) / PageSize
	remaining := sz
	for i := 0; i < iterations; i++ {
		h.size[index+uintptr(i)] = remaining
		remaining -= PageSize
	}
}

func pointerOf(ptr []byte) uintptr {
	return uintptr(unsafe.Pointer(&ptr[0]))
}

func (h *Heap) clear(ptr []byte) {
	index := h.pageIndex(ptr)
	sz := h.size[index]
	iterations := (sz + PageSize - 1) / PageSize
	for i := 0; i < iterations; i++ {
		delete(h.size, index+uintptr(i))
	}
}
