// Package excl implements the single global exclusion primitive of
// spec.md §5: one lock guards every public operation of the combined
// heap, with no lock-free fast paths. The original C allocator defaults
// to an uncontended no-op lock until its wrapper layer observes a second
// thread being created; Go has no equivalent hook to observe that
// transition automatically, so this adaptation defaults to the safe,
// always-locking mode and instead exposes an explicit opt-in for callers
// that know they are single-threaded.
package excl

import (
	"sync"
	"sync/atomic"
)

// Lock is the allocator's single critical section. The zero value is
// ready to use and locks on every call.
type Lock struct {
	mu             sync.Mutex
	singleThreaded atomic.Bool
}

// New returns a Lock in its default, always-locking mode.
func New() *Lock {
	return &Lock{}
}

// AssumeSingleThreaded disables locking entirely. Callers must guarantee
// no concurrent access to the heap for as long as this holds; it exists
// for embedders that know they never spawn a second goroutine touching
// the allocator, trading the lock's overhead away.
func (l *Lock) AssumeSingleThreaded() {
	l.singleThreaded.Store(true)
}

// MarkMultithreaded re-enables locking. Safe to call even if locking was
// never disabled.
func (l *Lock) MarkMultithreaded() {
	l.singleThreaded.Store(false)
}

// Acquire takes the critical section, unless AssumeSingleThreaded is in
// effect, in which case it is a no-op.
func (l *Lock) Acquire() {
	if l.singleThreaded.Load() {
		return
	}
	l.mu.Lock()
}

// Release gives up the critical section taken by Acquire.
func (l *Lock) Release() {
	if l.singleThreaded.Load() {
		return
	}
	l.mu.Unlock()
}
