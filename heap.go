// Package dieharder implements a probabilistic, security-hardened
// general-purpose memory allocator: randomized placement within
// over-provisioned, size-segregated regions defeats exploits that rely
// on predictable heap layout, and an optional canary discipline detects
// overflow into freshly freed neighbors.
package dieharder

import (
	"unsafe"

	"dieharder/internal/bumparena"
	"dieharder/internal/excl"
	"dieharder/internal/largeobj"
	"dieharder/internal/pagemap"
	"dieharder/internal/sizeclass"
)

// Heap is the combined allocator (spec.md §4.I): requests at or below
// Config.MaxSize are served by a segregated dispatcher of randomized
// mini-heaps; anything larger falls through to a direct OS-mapped large
// object. Exactly one lock guards every public method — neither path is
// independently goroutine-safe.
type Heap struct {
	cfg Config

	lock  *excl.Lock
	small *sizeclass.Dispatcher
	large *largeobj.Heap
}

// New constructs a Heap. With no options, it uses DefaultConfig.
func New(opts ...Option) *Heap {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = NewStderrHandler()
	}

	mapper := pagemap.New()
	arena := bumparena.New(mapper)
	diag := &diagAdapter{cfg.Diagnostics}

	return &Heap{
		cfg:   cfg,
		lock:  excl.New(),
		small: sizeclass.New(cfg.MaxSize, cfg.MiniHeapCapacity, cfg.Numerator, cfg.Denominator, arena, diag, cfg.CanaryMode),
		large: largeobj.New(mapper),
	}
}

// diagAdapter satisfies miniheap.Diagnostics (and, transitively,
// sizeclass's dependency on it) in terms of the public DiagnosticHandler,
// keeping the internal packages free of any dependency on the root
// package.
type diagAdapter struct {
	h DiagnosticHandler
}

func (a *diagAdapter) ReportDoubleFree()  { a.h.ReportDoubleFree() }
func (a *diagAdapter) ReportInvalidFree() { a.h.ReportInvalidFree() }
func (a *diagAdapter) ReportOverflow()    { a.h.ReportOverflow() }

// AssumeSingleThreaded disables this Heap's internal locking. Only safe
// when the caller guarantees no concurrent access for as long as this
// holds.
func (h *Heap) AssumeSingleThreaded() {
	h.lock.AssumeSingleThreaded()
}

// MarkMultithreaded re-enables locking after AssumeSingleThreaded.
func (h *Heap) MarkMultithreaded() {
	h.lock.MarkMultithreaded()
}

// Allocate returns sz bytes, or nil on out-of-memory or a randomized
// placement collision (spec.md §3: this is not an error, by design — a
// caller that needs a guarantee must retry itself).
func (h *Heap) Allocate(sz int) unsafe.Pointer {
	h.lock.Acquire()
	defer h.lock.Release()
	return h.allocateLocked(sz)
}

func (h *Heap) allocateLocked(sz int) unsafe.Pointer {
	if sz <= h.small.MaxSize() {
		if ptr := h.small.Malloc(sz); ptr != nil {
			return ptr
		}
		return nil
	}
	data := h.large.Malloc(sz)
	if data == nil {
		return nil
	}
	return unsafe.Pointer(&data[0])
}

// Free relinquishes ptr. Returns false if ptr was not allocated by this
// Heap, was already freed (a double free, reported via Diagnostics), or
// does not address the start of any managed object (an invalid free).
func (h *Heap) Free(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	h.lock.Acquire()
	defer h.lock.Release()
	return h.freeLocked(ptr)
}

func (h *Heap) freeLocked(ptr unsafe.Pointer) bool {
	if h.small.Free(ptr) {
		return true
	}
	if h.freeLargeLocked(ptr) {
		return true
	}
	if h.small.Owns(ptr) {
		// In range of a mini-heap but misaligned: a silent no-op,
		// matching randomminiheap.h's free() exactly (spec.md §9).
		return false
	}
	h.cfg.Diagnostics.ReportInvalidFree()
	return false
}

// freeLargeLocked adapts the large-object heap's []byte-keyed Free to the
// unsafe.Pointer-keyed public contract: internal/largeobj recovers the
// full mapped span from its own page registry, so a 1-byte slice over
// ptr's address is enough to thread through the lookup.
func (h *Heap) freeLargeLocked(ptr unsafe.Pointer) bool {
	return h.large.Free(unsafe.Slice((*byte)(ptr), 1))
}

// SizeOf returns the number of bytes remaining from ptr to the end of
// the object it addresses, or 0 if ptr is not managed by this Heap.
func (h *Heap) SizeOf(ptr unsafe.Pointer) int {
	if ptr == nil {
		return 0
	}
	h.lock.Acquire()
	defer h.lock.Release()
	return h.sizeOfLocked(ptr)
}

func (h *Heap) sizeOfLocked(ptr unsafe.Pointer) int {
	if sz := h.small.SizeOf(ptr); sz != 0 {
		return sz
	}
	return h.large.SizeOf(unsafe.Slice((*byte)(ptr), 1))
}
