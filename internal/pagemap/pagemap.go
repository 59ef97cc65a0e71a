// Package pagemap is the allocator's page-mapping facade (spec.md §4.A): a
// narrow interface over raw address-space pages, consumed by the bump
// arena and the large-object side path. It never returns partial mappings
// — either the whole request succeeds or the caller gets nil.
package pagemap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageSize is the platform page size this package rounds every mapping to.
// The original source treats 4KiB as the typical case across the
// platforms it supports; this implementation targets Linux, where that
// holds for both amd64 and arm64.
const PageSize = 4096

// Mapper requests and releases anonymous, read/write pages from the OS.
type Mapper struct{}

// New returns a ready-to-use Mapper.
func New() *Mapper {
	return &Mapper{}
}

// Map reserves at least size bytes of fresh, zeroed, read/write anonymous
// memory, rounded up to a page multiple. Returns nil on failure — out of
// memory or address-space exhaustion — surfaced unchanged to the caller,
// per §4.A.
func (m *Mapper) Map(size int) []byte {
	if size <= 0 {
		return nil
	}
	aligned := alignUp(size, PageSize)
	data, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}
	return data
}

// Unmap releases a mapping obtained from Map, given a slice that starts at
// the mapping's base; its length is rounded up to a page multiple, so the
// size originally requested from Map is enough. Reports whether the unmap
// syscall succeeded.
func (m *Mapper) Unmap(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	data = unsafe.Slice(&data[0], alignUp(len(data), PageSize))
	return unix.Munmap(data) == nil
}

// AdviseDontNeed tells the OS it may reclaim the physical backing of data
// without unmapping the virtual range.
func (m *Mapper) AdviseDontNeed(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_DONTNEED)
}

// Protect makes data's range inaccessible, catching dangling-pointer
// accesses when the caller enables that mode.
func (m *Mapper) Protect(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Mprotect(data, unix.PROT_NONE)
}

// Unprotect restores a range previously passed to Protect back to
// read/write.
func (m *Mapper) Unprotect(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Mprotect(data, unix.PROT_READ|unix.PROT_WRITE)
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
