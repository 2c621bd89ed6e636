package vm

import (
	"fmt"
	"strings"

	"github.com/clarete/vine/diag"
)

// RuntimeError is raised for every failure spec.md §7 assigns to the
// runtime kind: an operator with no applicable metamethod, calling a
// non-callable value, exceeding the call-depth limit, dividing or
// taking a remainder by zero, or an explicit user throw. It
// carries a formatted message, the source span of the faulting
// instruction when line-info resolves, and a trace built by walking
// call frames outward from the one that raised it, innermost first.
type RuntimeError struct {
	Message string
	Span    diag.Span
	Trace   []Frame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Trace {
		fmt.Fprintf(&b, "\n\tat %s (%s:%d)", f.FuncName, f.Source, f.Line)
	}
	return b.String()
}

// panicUnwind is this package's analog to the teacher's
// backtrackingError: an internal control signal carried by panic/
// recover to unwind the Go stack up to the nearest protected boundary
// without every intermediate opcode handler having to thread an error
// return by hand. It never escapes this package — State.Call and
// State.ProtectedCall each recover it at their own entry.
type panicUnwind struct{ err *RuntimeError }

func throwf(t *Thread, format string, args ...interface{}) {
	panic(panicUnwind{err: &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Span:    t.currentSpan(),
		Trace:   t.trace(),
	}})
}
