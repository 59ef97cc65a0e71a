package dieharder

import (
	"log"
	"os"
)

// DiagnosticHandler receives the Heap's three integrity-error
// notifications (spec.md §6): report_double_free, report_invalid_free,
// and report_overflow. Signatures are argument-less in the original
// wrapper contract, so a handler that needs to know which pointer
// triggered a report must track that itself (a stress harness, for
// instance, can record the pointer it just passed to Free before calling
// it).
type DiagnosticHandler interface {
	ReportDoubleFree()
	ReportInvalidFree()
	ReportOverflow()
}

// StderrHandler is the default DiagnosticHandler: one line per event,
// written to os.Stderr, in the same spirit as the corpus's direct
// console diagnostics (gc_monitor.go, schedtrace_monitor.go print status
// lines at the point something worth noticing happens, rather than
// routing through a structured logging library).
type StderrHandler struct {
	logger *log.Logger
}

// NewStderrHandler builds a StderrHandler writing to os.Stderr with
// microsecond-resolution timestamps.
func NewStderrHandler() *StderrHandler {
	return &StderrHandler{logger: log.New(os.Stderr, "dieharder: ", log.LstdFlags|log.Lmicroseconds)}
}

func (h *StderrHandler) ReportDoubleFree()  { h.logger.Print("double free detected") }
func (h *StderrHandler) ReportInvalidFree() { h.logger.Print("invalid free detected") }
func (h *StderrHandler) ReportOverflow()    { h.logger.Print("heap overflow detected") }

// RecordingHandler accumulates every report as a typed error instead of
// logging it, so tests can assert on exactly which integrity violations
// fired and in what order.
type RecordingHandler struct {
	Events []error
}

// NewRecordingHandler returns an empty RecordingHandler.
func NewRecordingHandler() *RecordingHandler {
	return &RecordingHandler{}
}

func (h *RecordingHandler) ReportDoubleFree()  { h.Events = append(h.Events, ErrDoubleFree) }
func (h *RecordingHandler) ReportInvalidFree() { h.Events = append(h.Events, ErrInvalidFree) }
func (h *RecordingHandler) ReportOverflow()    { h.Events = append(h.Events, ErrHeapOverflow) }
