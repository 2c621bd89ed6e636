package vm

import "github.com/clarete/vine/value"

// Closure is the host-visible handle returned by State.Load and
// accepted by State.Call: a function value paired with the State it
// was loaded into, so a caller can't accidentally run it against a
// different heap.
type Closure struct {
	s *State
	v value.Value
}

// UpvalueInfo describes one upvalue slot of a closure, for
// introspection (State.Upvalues) by a host debugger or REPL.
type UpvalueInfo struct {
	Name   string
	Value  value.Value
	Closed bool
}
