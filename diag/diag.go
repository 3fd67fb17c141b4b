// Package diag implements the diagnostic sink shared by every compilation
// stage: ir, arch, arch/x64 and arch/arm64 all record problems here
// instead of returning a Go error, so that a single pass can keep
// collecting diagnostics after the first one rather than aborting on it.
package diag

// NodeRef identifies the IR node (or lowered instruction, or encoded
// instruction) a diagnostic is attached to. It is left as an opaque
// integer so every stage, from ir.Node offsets through assembled
// instruction indices, can reuse the same Sink type without diag
// depending on any of them.
type NodeRef int64

// NoNode is used for diagnostics that aren't attached to a single node.
const NoNode NodeRef = -1

// Kind classifies a diagnostic.
type Kind uint8

const (
	// OutOfMemory marks a diagnostic raised because a codebuf.Buffer could
	// not grow. There is normally at most one of these per compilation:
	// the stage that observed it stops making forward progress.
	OutOfMemory Kind = iota
	// MalformedInput marks IR a stage cannot handle.
	MalformedInput
	// EncodingError marks an assembler-level operand/displacement/label problem.
	EncodingError
)

// Error is a single recorded diagnostic.
type Error struct {
	Kind Kind
	Node NodeRef
	Msg  string
}

// Sink accumulates diagnostics across a single compilation. Presence of any
// Error makes the pipeline "poisoned but complete": the caller gets back
// whatever partial artifact was produced, plus this list.
type Sink struct {
	errs []Error
}

// Add records a diagnostic.
func (s *Sink) Add(kind Kind, node NodeRef, msg string) {
	s.errs = append(s.errs, Error{Kind: kind, Node: node, Msg: msg})
}

// Errors returns every diagnostic recorded so far, in recording order.
func (s *Sink) Errors() []Error { return s.errs }

// HasErrors reports whether any diagnostic was recorded.
func (s *Sink) HasErrors() bool { return len(s.errs) > 0 }

// Reset clears the sink for reuse on the next compilation.
func (s *Sink) Reset() { s.errs = s.errs[:0] }
