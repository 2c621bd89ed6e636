package gc

import (
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vmtable"
)

// gcString wraps a Go string. Strings hold no outgoing references, so
// they need no Trace method (spec.md §5: "strings are never cleared
// from weak tables" — they also never need to be marked gray, only
// ever directly black or swept).
type gcString struct{ s string }

// gcTable wraps a vmtable.Table plus the handle of its metatable (kept
// alongside rather than inside vmtable.Table, since vmtable has no
// notion of gc.Collector or value.Handle bookkeeping). gcTable
// deliberately does not implement Tracer: tracing a table must skip
// whichever side its __mode marks weak, which requires the
// collector's own weak-table bookkeeping, so Collector.traceObject
// special-cases KindTable instead of going through the generic
// interface every other kind uses.
type gcTable struct {
	t    *vmtable.Table
	meta value.Value // Null() if unset
}

// gcUpvalue is either open (its value lives on a VM call frame's
// register stack, which the embedder supplies as part of the root
// set, so Trace need not chase it) or closed (the value has been
// copied out of the stack and lives here).
type gcUpvalue struct {
	closed bool
	val    value.Value
}

func (g *gcUpvalue) Trace(visit func(value.Value)) {
	if g.closed {
		visit(g.val)
	}
}

// HostFunc is a host-provided function wrapped as a closure (spec.md
// §6: "a host-callable is wrapped as an internal closure"). It carries
// no Go-level context of its own; package vm closes over its *State
// when it builds one, so this package never needs to know about vm.
type HostFunc func(args []value.Value) ([]value.Value, error)

// gcClosure is either a bytecode closure (a prototype paired with its
// captured upvalues, each itself a handle to a gcUpvalue object shared
// between every closure capturing the same open local, per spec.md
// §4.4/§5) or a host-backed "internal closure" (proto is nil, host is
// set instead), per spec.md §6.
type gcClosure struct {
	proto    *bytecode.Proto
	upvalues []value.Value
	host     HostFunc
}

func (g *gcClosure) Trace(visit func(value.Value)) {
	for _, uv := range g.upvalues {
		visit(uv)
	}
}

// gcProto wraps a compiled function prototype. Protos are owned by a
// loaded Module for the lifetime of the process, so the loader always
// registers them fixed (never swept); Trace is a no-op because a
// Proto's constant pool holds compile-time bit patterns, not live
// handles — closures instantiate the handle-bearing references at
// runtime (see gcClosure) rather than the prototype carrying them.
type gcProto struct {
	p *bytecode.Proto
}

// gcUserdata wraps an arbitrary host payload. If payload implements
// Tracer, its referenced Values are traced like any other object's;
// finalizer is the `__gc` destructor, run once when the object becomes
// unreachable (spec.md §5's finalizer FIFO queue).
type gcUserdata struct {
	payload    interface{}
	finalizer  func(value.Value)
	registered bool
}

func (g *gcUserdata) Trace(visit func(value.Value)) {
	if t, ok := g.payload.(Tracer); ok {
		t.Trace(visit)
	}
}

// RootProvider is implemented by a coroutine/thread object (owned by
// the vm package) so the collector can walk its value stack as part of
// the root set without this package knowing anything about call
// frames.
type RootProvider interface {
	GCRoots() []value.Value
}

// gcThread wraps a thread's root provider; vm.Thread satisfies
// RootProvider.
type gcThread struct {
	provider RootProvider
}

func (g *gcThread) Trace(visit func(value.Value)) {
	if g.provider == nil {
		return
	}
	for _, v := range g.provider.GCRoots() {
		visit(v)
	}
}
