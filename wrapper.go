package dieharder

import "unsafe"

// Malloc is an alias for Allocate matching the POSIX name; both exist so
// callers can use whichever reads more naturally at the call site.
func (h *Heap) Malloc(sz int) unsafe.Pointer {
	return h.Allocate(sz)
}

// Calloc allocates space for nelem objects of elsize bytes each, zeroed.
// Matches calloc(3): a request for zero total bytes is rounded up to one,
// so it still returns a distinct, freeable pointer rather than nil.
func (h *Heap) Calloc(nelem, elsize int) unsafe.Pointer {
	n := nelem * elsize
	if n == 0 {
		n = 1
	}
	ptr := h.Allocate(n)
	if ptr == nil {
		return nil
	}
	zero(ptr, n)
	return ptr
}

// Realloc resizes the allocation at ptr to sz bytes, copying the lesser
// of the old and new sizes and freeing the original. A nil ptr behaves
// like Malloc(sz); a zero sz behaves like Free(ptr) and returns nil.
//
// The size-query, allocate, copy, and free below run under a single
// acquisition of the Heap's lock (spec.md §4.J: "a single lock, held
// across the entire public operation — allocate / free / size-query /
// realloc"). Releasing the lock between steps would let a concurrent
// Free or Realloc on the same ptr run in the gap, so this reads the old
// size and frees ptr through the already-locked helpers rather than the
// public Allocate/Free/SizeOf methods, which would each take the lock on
// their own.
func (h *Heap) Realloc(ptr unsafe.Pointer, sz int) unsafe.Pointer {
	if ptr == nil {
		return h.Allocate(sz)
	}
	if sz == 0 {
		h.Free(ptr)
		return nil
	}

	h.lock.Acquire()
	defer h.lock.Release()

	oldSize := h.sizeOfLocked(ptr)
	newPtr := h.allocateLocked(sz)
	if newPtr == nil {
		return nil
	}

	minSize := oldSize
	if sz < minSize {
		minSize = sz
	}
	copyBytes(newPtr, ptr, minSize)
	h.freeLocked(ptr)
	return newPtr
}

// Memalign returns a block of at least size bytes whose address is a
// multiple of alignment, which must be a power of two. It over-allocates
// 2*alignment+size and returns an aligned address inside that block
// without ever freeing the unaligned slack — the same leak the original
// implementation has, left unresolved per spec.md §9's Open Question on
// memalign: the base address needed to free the whole block is never
// recorded, so that slack cannot be recovered until the process heap
// goes away.
func (h *Heap) Memalign(alignment, size int) unsafe.Pointer {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return nil
	}
	buf := h.Allocate(2*alignment + size)
	if buf == nil {
		return nil
	}
	base := uintptr(buf)
	aligned := (base + uintptr(alignment) - 1) &^ uintptr(alignment-1)
	return unsafe.Pointer(aligned)
}

// PosixMemalign implements posix_memalign(3): on success it stores the
// aligned pointer through memptr and returns 0; on failure it returns a
// nonzero errno-style code without touching *memptr.
func (h *Heap) PosixMemalign(memptr *unsafe.Pointer, alignment, size int) int {
	const einval = 22
	const enomem = 12
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return einval
	}
	ptr := h.Memalign(alignment, size)
	if ptr == nil {
		return enomem
	}
	*memptr = ptr
	return 0
}

// Valloc returns a block aligned to the page size (assumed 8192 bytes,
// matching the original's hard-coded convenience value).
func (h *Heap) Valloc(sz int) unsafe.Pointer {
	return h.Memalign(8192, sz)
}

// Pvalloc rounds sz up to the next page-size multiple and behaves as
// Valloc.
func (h *Heap) Pvalloc(sz int) unsafe.Pointer {
	const pageSize = 8192
	sz = (sz + pageSize - 1) &^ (pageSize - 1)
	return h.Valloc(sz)
}

// UsableSize is an alias for SizeOf under the POSIX malloc_usable_size
// name.
func (h *Heap) UsableSize(ptr unsafe.Pointer) int {
	return h.SizeOf(ptr)
}

// Mallopt always fails, matching the original's stub: it exists only so
// callers that probe for the symbol's presence find one.
func (h *Heap) Mallopt(param, value int) bool {
	return false
}

// Strdup copies s into a freshly allocated, NUL-terminated buffer.
func (h *Heap) Strdup(s string) unsafe.Pointer {
	buf := h.Allocate(len(s) + 1)
	if buf == nil {
		return nil
	}
	dst := unsafe.Slice((*byte)(buf), len(s)+1)
	copy(dst, s)
	dst[len(s)] = 0
	return buf
}

// Strndup copies at most n bytes of s into a freshly allocated,
// NUL-terminated buffer, matching strndup(3)'s length cap.
func (h *Heap) Strndup(s string, n int) unsafe.Pointer {
	capped := len(s)
	if n < capped {
		capped = n
	}
	buf := h.Allocate(capped + 1)
	if buf == nil {
		return nil
	}
	dst := unsafe.Slice((*byte)(buf), capped+1)
	copy(dst, s[:capped])
	dst[capped] = 0
	return buf
}

// Wcsdup copies s (a slice of wide runes) into a freshly allocated,
// NUL-terminated buffer of int32 code units, matching wcsdup(3)'s
// wchar_t-width contract on Linux/amd64.
func (h *Heap) Wcsdup(s []int32) unsafe.Pointer {
	n := len(s)
	buf := h.Allocate((n + 1) * 4)
	if buf == nil {
		return nil
	}
	dst := unsafe.Slice((*int32)(buf), n+1)
	copy(dst, s)
	dst[n] = 0
	return buf
}

func zero(ptr unsafe.Pointer, n int) {
	dst := unsafe.Slice((*byte)(ptr), n)
	for i := range dst {
		dst[i] = 0
	}
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}
