package sizeclass

import (
	"testing"
	"unsafe"

	"dieharder/internal/bumparena"
	"dieharder/internal/pagemap"
)

type noopDiag struct{}

func (noopDiag) ReportDoubleFree()  {}
func (noopDiag) ReportInvalidFree() {}
func (noopDiag) ReportOverflow()    {}

func TestClassCountForSpecReferenceValues(t *testing.T) {
	if got := classCount(16384); got != 12 {
		t.Errorf("classCount(16384) = %d, want 12", got)
	}
}

func TestIndexOfBoundaryValues(t *testing.T) {
	cases := []struct {
		sz   int
		want int
	}{
		{8, 0},
		{16, 1},
		{9, 1},
		{16384, 11},
	}
	for _, c := range cases {
		if got := indexOf(c.sz); got != c.want {
			t.Errorf("indexOf(%d) = %d, want %d", c.sz, got, c.want)
		}
	}
}

func TestMallocRejectsOversizeRequest(t *testing.T) {
	d := New(16384, 64, 1, 2, bumparena.New(pagemap.New()), noopDiag{}, false)
	if p := d.Malloc(16385); p != nil {
		t.Error("Malloc served a request larger than MaxSize")
	}
}

func TestMallocExactlyMaxSizeUsesLargestClass(t *testing.T) {
	d := New(16384, 4, 1, 2, bumparena.New(pagemap.New()), noopDiag{}, false)
	p := d.Malloc(16384)
	if p == nil {
		t.Fatal("Malloc(MaxSize) returned nil")
	}
	if d.heaps[len(d.heaps)-1].InUse() != 1 {
		t.Error("exact MaxSize request was not served by the largest mini-heap")
	}
}

func TestFreeRoundTrip(t *testing.T) {
	d := New(1024, 32, 1, 2, bumparena.New(pagemap.New()), noopDiag{}, false)
	p := d.Malloc(40)
	if p == nil {
		t.Fatal("Malloc returned nil")
	}
	if !d.Free(p) {
		t.Error("Free failed for a pointer this dispatcher just allocated")
	}
}

func TestOwnsDistinguishesMisalignedFromUnmanaged(t *testing.T) {
	d := New(1024, 8, 1, 2, bumparena.New(pagemap.New()), noopDiag{}, false)
	p := d.Malloc(40)
	if p == nil {
		t.Fatal("Malloc returned nil")
	}

	if !d.Owns(p) {
		t.Error("Owns(p) = false for a pointer this dispatcher just allocated")
	}

	var stray byte
	if d.Owns(unsafe.Pointer(&stray)) {
		t.Error("Owns reported ownership of a pointer never allocated by this dispatcher")
	}
}

func TestStatsLengthMatchesClassCount(t *testing.T) {
	d := New(4096, 16, 1, 2, bumparena.New(pagemap.New()), noopDiag{}, false)
	stats := d.Stats()
	if len(stats) != classCount(4096) {
		t.Errorf("len(Stats()) = %d, want %d", len(stats), classCount(4096))
	}
}
