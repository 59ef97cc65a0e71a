// Package occbitmap implements the dynamically-sized occupancy bitmap of
// spec.md §4.C over github.com/bits-and-blooms/bitset, the bitset library
// the retrieval pack's own bitmap allocator (coredhcp's
// plugins/allocators/bitmap) uses for exactly this test-and-set /
// test-and-clear discipline.
//
// Every method here assumes the caller already holds the allocator's
// single global lock (spec.md §5) — nothing in this package synchronizes
// on its own.
package occbitmap

import "github.com/bits-and-blooms/bitset"

// Bitmap tracks which of N fixed slots are currently occupied.
type Bitmap struct {
	bits *bitset.BitSet
	n    uint
}

// Reserve sizes the bitmap for n slots, all initially clear.
func (b *Bitmap) Reserve(n uint) {
	b.bits = bitset.New(n)
	b.n = n
}

// TrySet reports whether bit i was previously clear; if so, it is now set.
// If it was already set, TrySet leaves it untouched and returns false.
func (b *Bitmap) TrySet(i uint) bool {
	if b.bits.Test(i) {
		return false
	}
	b.bits.Set(i)
	return true
}

// Reset reports whether bit i was previously set; if so, it is now clear.
// Returns false (and leaves the bit clear) if it was already clear — the
// double-free/double-reset case callers must detect.
func (b *Bitmap) Reset(i uint) bool {
	if !b.bits.Test(i) {
		return false
	}
	b.bits.Clear(i)
	return true
}

// IsSet is a plain read of bit i.
func (b *Bitmap) IsSet(i uint) bool {
	return b.bits.Test(i)
}

// Len returns the bitmap's capacity in bits.
func (b *Bitmap) Len() uint {
	return b.n
}

// Count returns the number of currently set bits.
func (b *Bitmap) Count() uint {
	if b.bits == nil {
		return 0
	}
	return b.bits.Count()
}
