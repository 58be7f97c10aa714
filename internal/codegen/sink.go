// Package codegen implements the constant evaluator and lowering visitor that drive LLVM-text IR emission
// from a SysY syntax tree (spec.md §4.3–§4.5).
package codegen

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Sink is the append-only two-stream IR emitter: a header buffer for declarations and globals, a body buffer
// for function definitions, fresh-name counters, and the break/continue label stacks for whichever loop is
// currently being lowered. One Sink is created per compilation and mutated linearly by the lowering visitor;
// it owns no synchronization because the engine is single-threaded (spec.md §5, DESIGN.md "Trimmed teacher
// concurrency").
type Sink struct {
	header strings.Builder
	body   strings.Builder

	nextTemp  int
	nextLabel int

	breakLabels    []int
	continueLabels []int
}

// ---------------------
// ----- Constants -----
// ---------------------

// noLabel is the sentinel PeekBreak/PeekContinue return value meaning "no enclosing loop" (spec.md §4.3).
const noLabel = -1

// ---------------------
// ----- functions -----
// ---------------------

// NewSink returns a freshly initialized Sink with empty buffers and zeroed counters.
func NewSink() *Sink {
	return &Sink{}
}

// EmitHeader appends s verbatim to the header stream (declarations, global variable definitions).
func (s *Sink) EmitHeader(str string) {
	s.header.WriteString(str)
}

// Emit appends s verbatim to the body stream (function bodies).
func (s *Sink) Emit(str string) {
	s.body.WriteString(str)
}

// EmitLabel writes a flush-left "labelN:\n" to the body stream.
func (s *Sink) EmitLabel(n int) {
	s.body.WriteString(fmt.Sprintf("label%d:\n", n))
}

// FreshTemp returns a new, never-before-issued SSA temporary name "%tK" and advances the counter.
func (s *Sink) FreshTemp() string {
	t := fmt.Sprintf("%%t%d", s.nextTemp)
	s.nextTemp++
	return t
}

// FreshLabel returns a new, never-before-issued label number and advances the counter. Label numbers share no
// namespace with temporaries; they are rendered by EmitLabel and by callers building branch targets.
func (s *Sink) FreshLabel() int {
	n := s.nextLabel
	s.nextLabel++
	return n
}

// PushBreak records label as the branch target for a "break" statement inside the loop currently being lowered.
func (s *Sink) PushBreak(label int) { s.breakLabels = append(s.breakLabels, label) }

// PopBreak removes the innermost break target, e.g. when a loop body finishes lowering.
func (s *Sink) PopBreak() {
	if n := len(s.breakLabels); n > 0 {
		s.breakLabels = s.breakLabels[:n-1]
	}
}

// PeekBreak returns the innermost break target, or noLabel if no loop currently encloses the point of call.
func (s *Sink) PeekBreak() int {
	if n := len(s.breakLabels); n > 0 {
		return s.breakLabels[n-1]
	}
	return noLabel
}

// PushContinue records label as the branch target for a "continue" statement inside the loop currently being
// lowered.
func (s *Sink) PushContinue(label int) { s.continueLabels = append(s.continueLabels, label) }

// PopContinue removes the innermost continue target.
func (s *Sink) PopContinue() {
	if n := len(s.continueLabels); n > 0 {
		s.continueLabels = s.continueLabels[:n-1]
	}
}

// PeekContinue returns the innermost continue target, or noLabel if no loop currently encloses the point of
// call.
func (s *Sink) PeekContinue() int {
	if n := len(s.continueLabels); n > 0 {
		return s.continueLabels[n-1]
	}
	return noLabel
}

// Output renders the final emitted file: the header buffer, a single newline, then the body buffer (spec.md
// §3, §6). Header emissions therefore always precede body emissions in the final output, regardless of
// interleaving during the visit.
func (s *Sink) Output() string {
	return s.header.String() + "\n" + s.body.String()
}
