package vm

import (
	"bytes"
	"fmt"

	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/config"
	"github.com/clarete/vine/gc"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vmtable"
)

// HostFunc is the signature a host embedding registers under a global
// name (spec.md §6): it receives the owning State (so it can allocate
// tables/strings, raise errors, or call back into Vine) and the call's
// arguments, and returns result values or a Go error.
type HostFunc func(s *State, args []value.Value) ([]value.Value, error)

// ContinuationFunc resumes a host call that was suspended mid-call by
// a nested coroutine yield (spec.md §5's cooperative scheduling): it
// receives whatever values the resumer passed to Resume and returns
// the host call's final results, as if the original HostFunc had
// returned them directly.
type ContinuationFunc func(s *State, resumed []value.Value) ([]value.Value, error)

type hostEntry struct {
	fn   HostFunc
	cont ContinuationFunc
}

// Library is a named batch of host functions a single OpenLibs call
// attaches under one global table (spec.md §6's stdlib-attachment
// seam; no library ships with Vine itself).
type Library struct {
	Name      string
	Functions map[string]HostFunc
}

// State is the main interpreter state: one heap (via its Collector),
// one globals table, the host-function registry, and a main thread.
// Every *Closure returned by Load is tied to the State that produced
// it (spec.md §6).
type State struct {
	cfg *config.Config
	gc  *gc.Collector

	globals    value.Value
	globalsTbl *vmtable.Table

	hosts     map[string]*hostEntry
	overloads map[string]map[int]HostFunc

	threads []*Thread
	main    *Thread
	current *Thread

	sourceName     string
	interruptHook  func(s *State) error
	callDepthLimit int

	// protoModule maps every loaded prototype (main and every nested
	// child, recursively) back to the Module carrying its shared
	// string and shape tables — Proto itself only stores indices into
	// those tables, per spec.md §4.3.4's single-string-table format.
	protoModule map[*bytecode.Proto]*bytecode.Module
}

// NewState builds a fresh interpreter state, wiring vmtable's
// metamethod-name interning hook to this state's string intern table
// before any table ever consults a metatable.
func NewState(cfg *config.Config) *State {
	if cfg == nil {
		cfg = config.New()
	}
	c := gc.New()
	s := &State{
		cfg:            cfg,
		gc:             c,
		hosts:          make(map[string]*hostEntry),
		overloads:      make(map[string]map[int]HostFunc),
		callDepthLimit: cfg.GetInt("vm.call_depth_limit"),
		protoModule:    make(map[*bytecode.Proto]*bytecode.Module),
	}
	vmtable.SetStringKeyer(func(str string) value.Value { return c.String(str) })
	gh, gt := c.NewTable()
	s.globals, s.globalsTbl = gh, gt
	s.main = newThread(s)
	s.current = s.main
	c.SetRoots(s.gcRoots)
	return s
}

func (s *State) gcRoots() []value.Value {
	roots := []value.Value{s.globals}
	seen := map[*Thread]bool{}
	add := func(t *Thread) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		roots = append(roots, t.GCRoots()...)
	}
	add(s.main)
	add(s.current)
	return roots
}

// Load decodes a compiled module (spec.md §4.3.4's binary format,
// already fully implemented by bytecode.Read) and wraps its main
// function as a callable Closure. chunkName is recorded for
// diagnostics and stack traces.
func (s *State) Load(code []byte, chunkName string) (*Closure, error) {
	mod, err := bytecode.Read(bytes.NewReader(code))
	if err != nil {
		return nil, fmt.Errorf("vine: load %s: %w", chunkName, err)
	}
	s.sourceName = chunkName
	s.registerModule(mod)
	h := s.gc.NewClosure(mod.Main, nil)
	return &Closure{s: s, v: h}, nil
}

// LoadProto wraps an already-compiled module directly, skipping the
// binary round-trip — the path compiler.Compile's own callers (and
// this package's tests) use to run source text straight through.
func (s *State) LoadProto(mod *bytecode.Module, chunkName string) *Closure {
	s.sourceName = chunkName
	s.registerModule(mod)
	h := s.gc.NewClosure(mod.Main, nil)
	return &Closure{s: s, v: h}
}

// registerModule walks mod's prototype tree so every nested closure's
// string/shape constants can be traced back to the module that owns
// their backing tables.
func (s *State) registerModule(mod *bytecode.Module) {
	var walk func(p *bytecode.Proto)
	walk = func(p *bytecode.Proto) {
		if p == nil || s.protoModule[p] == mod {
			return
		}
		s.protoModule[p] = mod
		for _, child := range p.Children {
			walk(child)
		}
	}
	walk(mod.Main)
}

// constant materializes proto's constant-pool entry idx into a
// runtime Value, interning strings and instantiating shape templates
// through the module that owns proto (registerModule having already
// recorded it).
func (s *State) constant(proto *bytecode.Proto, idx int32) value.Value {
	if idx < 0 || int(idx) >= len(proto.Constants) {
		return value.Null()
	}
	c := proto.Constants[idx]
	switch c.Kind {
	case bytecode.ConstNull:
		return value.Null()
	case bytecode.ConstBool:
		return value.Bool(c.Bool)
	case bytecode.ConstNumber:
		return value.Double(c.Number)
	case bytecode.ConstString:
		return s.gc.String(s.stringAt(proto, c.StrIdx))
	case bytecode.ConstTable:
		return s.newShapeTable(proto, c.Shape)
	}
	return value.Null()
}

func (s *State) stringAt(proto *bytecode.Proto, idx int32) string {
	mod := s.protoModule[proto]
	if mod == nil || idx < 0 || int(idx) >= len(mod.Strings) {
		return ""
	}
	return mod.Strings[idx]
}

// newShapeTable instantiates the key-only template a table literal's
// OpCopyTable clones from, keys bound to Null until filled in by
// OpSetTableStringKey/OpSetList (an alternate table-construction path
// the compiler doesn't currently emit, kept for bytecode-format
// completeness — spec.md §4.3's Shape glossary entry).
func (s *State) newShapeTable(proto *bytecode.Proto, shapeIdx int32) value.Value {
	mod := s.protoModule[proto]
	h, tbl := s.gc.NewTable()
	if mod == nil || shapeIdx < 0 || int(shapeIdx) >= len(mod.Shapes) {
		return h
	}
	for _, strIdx := range mod.Shapes[shapeIdx] {
		if int(strIdx) < len(mod.Strings) {
			tbl.Set(s.gc.String(mod.Strings[strIdx]), value.Null())
		}
	}
	return h
}

// Call runs closure on the state's current thread to completion,
// recovering any *RuntimeError that unwound past every protected
// frame and returning it as a Go error (spec.md §7's "unprotected
// errors reach the host entry").
func (s *State) Call(closure *Closure, args []value.Value, nresults int) (results []value.Value, err error) {
	if closure == nil || closure.s != s {
		return nil, fmt.Errorf("vine: closure not loaded into this state")
	}
	defer func() {
		if r := recover(); r != nil {
			pu, ok := r.(panicUnwind)
			if !ok {
				panic(r)
			}
			err = pu.err
		}
	}()
	results = s.current.call(closure.v, args, nresults)
	return results, nil
}

// ProtectedCall runs callee (a closure or any callable value) much
// like Call, except it's meant to be invoked from inside a HostFunc
// that wants to shield itself from a nested failure — the seam a
// `pcall`-style library builtin would be implemented on top of
// (spec.md §7: "a protected-call frame catches unwind, converts to a
// host-level value, resumes caller").
func (s *State) ProtectedCall(callee value.Value, args []value.Value, nresults int) (results []value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			pu, ok := r.(panicUnwind)
			if !ok {
				panic(r)
			}
			err = pu.err
		}
	}()
	results = s.current.callValue(callee, args, nresults)
	return results, nil
}

// RegisterHost records fn and cont in the State's host registry and
// installs fn as a global Vine value any script can call by that
// name. Nothing in this package reads cont back.
func (s *State) RegisterHost(name string, fn HostFunc, cont ContinuationFunc) {
	s.hosts[name] = &hostEntry{fn: fn, cont: cont}
	h := s.gc.NewHostClosure(func(args []value.Value) ([]value.Value, error) { return fn(s, args) })
	s.globalsTbl.Set(s.gc.String(name), h)
}

// RegisterOverloadSet installs name as a single global dispatching on
// argument count to one of several host functions (SPEC_FULL.md §12's
// arity-overload supplement, grounded on original_source/gal's
// multi-arity builtins).
func (s *State) RegisterOverloadSet(name string, arities map[int]HostFunc) {
	s.overloads[name] = arities
	h := s.gc.NewHostClosure(func(args []value.Value) ([]value.Value, error) {
		fn, ok := arities[len(args)]
		if !ok {
			return nil, fmt.Errorf("%s: no overload accepts %d argument(s)", name, len(args))
		}
		return fn(s, args)
	})
	s.globalsTbl.Set(s.gc.String(name), h)
}

// OpenLibs attaches one or more host libraries, each under its own
// global table (so `str.upper(x)` resolves via load_global "str" then
// load_table), or directly into globals when Name is empty.
func (s *State) OpenLibs(libs ...Library) {
	for _, lib := range libs {
		target := s.globalsTbl
		if lib.Name != "" {
			key := s.gc.String(lib.Name)
			var tbl *vmtable.Table
			if existing := s.globalsTbl.Get(key); existing.IsHandle() {
				tbl, _ = s.gc.Table(existing)
			}
			if tbl == nil {
				h, t := s.gc.NewTable()
				tbl = t
				s.globalsTbl.Set(key, h)
			}
			target = tbl
		}
		for name, fn := range lib.Functions {
			hf := fn
			h := s.gc.NewHostClosure(func(args []value.Value) ([]value.Value, error) { return hf(s, args) })
			target.Set(s.gc.String(name), h)
		}
	}
}

// NewTable allocates a fresh table, for a HostFunc that needs to
// return or build one (e.g. a library's own constructors).
func (s *State) NewTable() (value.Value, *vmtable.Table) { return s.gc.NewTable() }

// String interns str, for a HostFunc that needs to produce a string
// result or a table key.
func (s *State) String(str string) value.Value { return s.gc.String(str) }

// SetMetatable attaches meta as obj's metatable (spec.md §5's
// metamethod-lookup seam) — the primitive a `setmetatable` library
// builtin is implemented on top of. Reports false if obj isn't a
// table.
func (s *State) SetMetatable(obj, meta value.Value) bool {
	return s.gc.SetMetatable(obj, meta)
}

// GetMetatable returns obj's metatable, if it has one.
func (s *State) GetMetatable(obj value.Value) (value.Value, bool) {
	return s.gc.Metatable(obj)
}

// SetInterruptHook installs a callback polled at every back-edge
// (loop back-jump and call, spec.md §5) — returning a non-nil error
// unwinds the current thread as a RuntimeError, letting a host cancel
// a runaway script.
func (s *State) SetInterruptHook(hook func(s *State) error) { s.interruptHook = hook }

// CurrentLine reports the source name and line currently executing on
// the state's active thread, for a host-side debugger or REPL prompt.
func (s *State) CurrentLine() (source string, line int) {
	t := s.current
	if len(t.frames) == 0 {
		return s.sourceName, 0
	}
	f := t.top()
	return s.sourceName, int(f.proto.Lines.LineAt(instrIndexForPC(f.proto, f.pc)))
}

// Upvalues introspects a closure's captured upvalues, resolving each
// through whichever thread still has it open.
func (s *State) Upvalues(c *Closure) []UpvalueInfo {
	proto, upvals, ok := s.gc.Closure(c.v)
	if !ok || proto == nil {
		return nil
	}
	out := make([]UpvalueInfo, 0, len(upvals))
	for i, uh := range upvals {
		name := "?"
		if i < len(proto.DebugUpvalues) {
			name = proto.DebugUpvalues[i]
		}
		val, closed := s.resolveUpvalue(uh)
		out = append(out, UpvalueInfo{Name: name, Value: val, Closed: closed})
	}
	return out
}

// resolveUpvalue reads an upvalue's current value regardless of
// whether it's closed (stored on the gc object) or still open
// (aliasing a live register on whichever thread owns that slot).
func (s *State) resolveUpvalue(h value.Value) (value.Value, bool) {
	if val, closed, ok := s.gc.Upvalue(h); ok && closed {
		return val, true
	}
	for _, th := range s.threads {
		for _, u := range th.open {
			if u.handle == h {
				return th.stack[u.stackIndex], false
			}
		}
	}
	return value.Null(), false
}

// storeUpvalue writes through an upvalue to wherever its value
// currently lives, applying the write barrier when the target has
// already been closed onto the heap.
func (s *State) storeUpvalue(h, val value.Value) {
	if _, closed, ok := s.gc.Upvalue(h); ok && closed {
		s.gc.CloseUpvalue(h, val)
		s.gc.Barrier(h, val)
		return
	}
	for _, th := range s.threads {
		for _, u := range th.open {
			if u.handle == h {
				th.stack[u.stackIndex] = val
				return
			}
		}
	}
}
