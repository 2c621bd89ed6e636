package vm

import (
	"sort"

	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/diag"
	"github.com/clarete/vine/value"
)

// openUpvalue pairs an open gc upvalue handle with the absolute stack
// slot it currently aliases, so two closures capturing the same local
// share one upvalue object (spec.md §3's "Upvalue" data model).
type openUpvalue struct {
	stackIndex int
	handle     value.Value
}

// Thread is a coroutine: its own value stack and call-frame stack,
// its own open-upvalue list, sharing the global heap with every other
// thread of the same State (spec.md §5). NewState creates the main
// thread; this package has no constructor for additional ones.
type Thread struct {
	s      *State
	stack  []value.Value
	frames []callFrame
	open   []openUpvalue // kept sorted by descending stackIndex
	depth  int
}

func newThread(s *State) *Thread {
	t := &Thread{s: s}
	s.threads = append(s.threads, t)
	return t
}

// GCRoots satisfies gc.RootProvider: every live register slot on this
// thread's value stack is a root. Closed upvalues and the globals
// table are reached transitively (a closure's Trace visits its
// upvalues; State itself roots the globals table directly), so they
// need no special handling here.
func (t *Thread) GCRoots() []value.Value {
	return t.stack
}

func (t *Thread) push(v value.Value) { t.stack = append(t.stack, v) }

// ensure grows the stack so indices up to n-1 are valid, padding new
// slots with Null (never Undefined, which vmtable reserves to mean
// "absent key" — a register must always hold a well-defined value).
func (t *Thread) ensure(n int) {
	for len(t.stack) < n {
		t.stack = append(t.stack, value.Null())
	}
}

func (t *Thread) top() *callFrame { return &t.frames[len(t.frames)-1] }

// findOpenUpvalue returns the existing open upvalue aliasing
// stackIndex, if any, so closures capturing the same local share one
// handle rather than each getting its own.
func (t *Thread) findOpenUpvalue(stackIndex int) (value.Value, bool) {
	for _, u := range t.open {
		if u.stackIndex == stackIndex {
			return u.handle, true
		}
	}
	return value.Value{}, false
}

func (t *Thread) newOpenUpvalue(stackIndex int) value.Value {
	h := t.s.gc.NewUpvalue()
	t.open = append(t.open, openUpvalue{stackIndex: stackIndex, handle: h})
	sort.Slice(t.open, func(i, j int) bool { return t.open[i].stackIndex > t.open[j].stackIndex })
	return h
}

// closeUpvaluesFrom closes (copies the live stack value into, and
// unlinks) every open upvalue whose slot is at or above floor,
// highest index first (spec.md §4.5's "Upvalue close" walk).
func (t *Thread) closeUpvaluesFrom(floor int) {
	kept := t.open[:0]
	for _, u := range t.open {
		if u.stackIndex >= floor {
			val := t.stack[u.stackIndex]
			t.s.gc.CloseUpvalue(u.handle, val)
			t.s.gc.Barrier(u.handle, val)
		} else {
			kept = append(kept, u)
		}
	}
	t.open = kept
}

// instrIndexForPC maps a frame's saved pc, which the dispatch loop has
// already advanced past the instruction being executed, to that
// instruction's ordinal start index, the index LineInfo.LineAt
// expects (instructions may occupy one or two words).
func instrIndexForPC(p *bytecode.Proto, pc int) int {
	starts := p.InstrStarts()
	i := sort.Search(len(starts), func(i int) bool { return starts[i] >= pc })
	if i > 0 {
		i--
	}
	return i
}

// currentSpan resolves the faulting instruction's source line from
// the top frame's prototype, for a RuntimeError's Span field.
func (t *Thread) currentSpan() diag.Span {
	if len(t.frames) == 0 {
		return diag.Span{}
	}
	f := t.top()
	line := f.proto.Lines.LineAt(instrIndexForPC(f.proto, f.pc))
	loc := diag.Location{Line: line}
	return diag.Span{Start: loc, End: loc}
}

// trace walks the call-frame stack outward from the top, building a
// RuntimeError's stack trace.
func (t *Thread) trace() []Frame {
	out := make([]Frame, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		line := f.proto.Lines.LineAt(instrIndexForPC(f.proto, f.pc))
		name := f.proto.DebugName
		if name == "" {
			name = "?"
		}
		out = append(out, Frame{FuncName: name, Source: t.s.sourceName, Line: line})
	}
	return out
}
