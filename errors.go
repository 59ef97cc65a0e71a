package dieharder

// The integrity error kinds a Heap can report (spec.md §7). Each is a
// distinct type, not just a sentinel value, following the pack's
// coredhcp/plugins/allocators/bitmap convention of a named struct per
// failure kind so callers can pull one out of a DiagnosticHandler with
// errors.As.
//
// spec.md §7 also names InitCorruption (a canary mismatch found in a
// freshly allocated slot) as a distinct error kind from HeapOverflow (a
// mismatch found in a freed neighbor). But §6's diagnostic contract has
// only three entry points — report_double_free, report_invalid_free,
// report_overflow — with no fourth one for init corruption, so both
// cases reach DiagnosticHandler through ReportOverflow and are
// indistinguishable to a handler. A separate InitCorruptionError type
// would never be constructed, so none is defined here.

// DoubleFreeError indicates Free was called twice on the same object
// without an intervening Allocate reusing its slot.
type DoubleFreeError struct{}

func (DoubleFreeError) Error() string { return "dieharder: double free detected" }

// InvalidFreeError indicates Free received a pointer that lies outside
// every region this Heap manages. A pointer inside a mini-heap's region
// that does not address the start of an object is ignored without a
// report.
type InvalidFreeError struct{}

func (InvalidFreeError) Error() string { return "dieharder: invalid free" }

// HeapOverflowError indicates a canary check found a deviation in a
// freed neighbor or padding region — memory was written to outside the
// bounds of the object that owned it.
type HeapOverflowError struct{}

func (HeapOverflowError) Error() string { return "dieharder: heap overflow detected" }

// Package-level values for errors.Is-style comparison and for handlers
// that don't need to distinguish their own instance from another.
var (
	ErrDoubleFree   error = DoubleFreeError{}
	ErrInvalidFree  error = InvalidFreeError{}
	ErrHeapOverflow error = HeapOverflowError{}
)
