package dieharder

import (
	"fmt"
	"os"
	"time"

	"dieharder/internal/sizeclass"
)

// Stats is a snapshot of a Heap's occupancy across every size class.
type Stats struct {
	Classes []sizeclass.ClassStats
}

// Stats returns the current occupancy of every size class. Large-object
// allocations aren't counted here — the original keeps no running
// large-object count either, only per-page size entries.
func (h *Heap) Stats() Stats {
	h.lock.Acquire()
	defer h.lock.Release()
	return Stats{Classes: h.small.Stats()}
}

// StartStatsMonitor launches a goroutine that logs Stats via the Heap's
// DiagnosticHandler's underlying logger every interval, in the same
// periodic-ticker idiom the teacher uses for its own runtime monitors.
// The returned stop function halts the goroutine; it is safe to call
// more than once.
func (h *Heap) StartStatsMonitor(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var stopped bool

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.logStats()
			case <-done:
				return
			}
		}
	}()

	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
	}
}

func (h *Heap) logStats() {
	if logging, ok := h.cfg.Diagnostics.(*StderrHandler); ok {
		for _, c := range h.Stats().Classes {
			logging.logger.Printf("size-class %d: %d/%d in use (limit %d)", c.ObjectSize, c.InUse, c.Capacity, c.OccupancyLimit)
		}
		return
	}
	// A non-default handler doesn't expose a logger; fall back to a
	// direct stderr line so the monitor still has some effect.
	for _, c := range h.Stats().Classes {
		fmt.Fprintf(os.Stderr, "size-class %d: %d/%d in use (limit %d)\n", c.ObjectSize, c.InUse, c.Capacity, c.OccupancyLimit)
	}
}
