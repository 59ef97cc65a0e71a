// Command dieharder-stress hammers a dieharder.Heap with randomized
// malloc/free sequences, the way the original DieHard sources ship a
// standalone driver to shake out use-after-free and overflow bugs before
// they reach production code.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
	"unsafe"

	"dieharder"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dieharder-stress [flags]\n")
		fmt.Fprintf(os.Stderr, "Drives a dieharder.Heap through randomized malloc/free/realloc traffic.\n")
		flag.PrintDefaults()
	}

	objects := flag.Int("objects", 1000, "number of live objects to maintain")
	minSize := flag.Int("min-size", 8, "minimum request size in bytes")
	maxSize := flag.Int("max-size", 20000, "maximum request size in bytes (exceeds MaxSize to exercise the large path)")
	iterations := flag.Int("iterations", 200000, "number of malloc/free/realloc operations to perform")
	seed := flag.Int64("seed", 1, "PRNG seed for reproducible runs")
	canary := flag.Bool("canary", true, "enable the DieFast canary discipline")
	flag.Parse()

	rec := dieharder.NewRecordingHandler()
	h := dieharder.New(
		dieharder.WithCanaryMode(*canary),
		dieharder.WithDiagnosticHandler(rec),
	)

	rng := rand.New(rand.NewSource(*seed))
	live := make([]unsafe.Pointer, *objects)

	start := time.Now()
	var nulls int
	for i := 0; i < *iterations; i++ {
		slot := rng.Intn(len(live))
		if live[slot] != nil {
			switch rng.Intn(3) {
			case 0:
				h.Free(live[slot])
				live[slot] = nil
			case 1:
				sz := *minSize + rng.Intn(*maxSize-*minSize+1)
				live[slot] = h.Realloc(live[slot], sz)
			default:
				// leave it alone this round
			}
			continue
		}
		sz := *minSize + rng.Intn(*maxSize-*minSize+1)
		p := h.Allocate(sz)
		if p == nil {
			nulls++
			continue
		}
		live[slot] = p
	}

	for _, p := range live {
		if p != nil {
			h.Free(p)
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("%d iterations in %s (%d null allocations, %d integrity events)\n",
		*iterations, elapsed, nulls, len(rec.Events))
	for _, c := range h.Stats().Classes {
		fmt.Printf("  size-class %6d: %4d/%4d in use (limit %4d)\n",
			c.ObjectSize, c.InUse, c.Capacity, c.OccupancyLimit)
	}

	if len(rec.Events) > 0 {
		counts := make(map[error]int)
		for _, e := range rec.Events {
			counts[e]++
		}
		for e, n := range counts {
			fmt.Printf("  %s: %d\n", e, n)
		}
	}
}
