// Package canary implements the DieFast poisoning discipline of
// spec.md §4.E: fill freed (or not-yet-used) memory with a secret word,
// then later check that nothing has disturbed it. A mismatch means the
// range was written to while it should have been untouched — a heap
// overflow or a write-after-free.
package canary

import "unsafe"

// WordSize is the size, in bytes, of one canary word — a native uintptr,
// matching the platform's pointer width.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// NewWord draws a fresh canary word from next (typically a mini-heap's own
// PRNG), forcing the low bit to 1 so the word can never alias a valid
// aligned pointer value.
func NewWord(next func() uint32) uintptr {
	hi := uintptr(next())
	lo := uintptr(next())
	word := (hi << 32) | lo
	return word | 1
}

// Fill writes word repeatedly across data, one WordSize slot at a time.
// Any trailing partial word (len(data) not a multiple of WordSize) is left
// untouched.
func Fill(data []byte, word uintptr) {
	n := len(data) / WordSize
	for i := 0; i < n; i++ {
		*wordAt(data, i) = word
	}
}

// CheckNot reports whether any word-sized slot in data differs from word
// — i.e., whether the range has been written to since it was poisoned.
func CheckNot(data []byte, word uintptr) bool {
	n := len(data) / WordSize
	for i := 0; i < n; i++ {
		if *wordAt(data, i) != word {
			return true
		}
	}
	return false
}

func wordAt(data []byte, i int) *uintptr {
	return (*uintptr)(unsafe.Pointer(&data[i*WordSize]))
}
