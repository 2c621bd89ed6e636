package vm

import (
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/value"
)

// callFrame records one activation (spec.md §4.5): the base register
// (every register reference in the dispatch loop is base-relative),
// the instruction pointer, the closure being run, and how many
// results the caller asked for. Protected-call boundaries (spec.md
// §7) aren't tracked here — Go's own panic/recover already scopes a
// RuntimeError's unwind to whichever Call/ProtectedCall invocation
// catches it, so no per-frame flag is needed.
type callFrame struct {
	closure    value.Value // the running closure's own handle
	proto      *bytecode.Proto
	base       int
	pc         int // word index into proto.Code
	numResults int // literal count the caller's call site asked for
	varargs    []value.Value
}

// Frame is one entry of a RuntimeError's stack trace: the function
// name and source line active in a call frame at the moment the error
// was raised, outermost call last.
type Frame struct {
	FuncName string
	Source   string
	Line     int32
}
