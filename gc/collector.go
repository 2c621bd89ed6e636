package gc

import (
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vmtable"
)

// State names one phase of the incremental collector (spec.md §5).
type State int

const (
	StatePause State = iota
	StatePropagate
	StateAtomic
	StateSweep
)

func (s State) String() string {
	switch s {
	case StatePause:
		return "pause"
	case StatePropagate:
		return "propagate"
	case StateAtomic:
		return "atomic"
	case StateSweep:
		return "sweep"
	}
	return "unknown"
}

// defaultGrowthRatio sets the next cycle's byte threshold relative to
// live bytes at the end of the current one (spec.md §5: "threshold is
// set to live * growth_ratio at the end of each cycle").
const defaultGrowthRatio = 2.0

// RootFunc returns every Value the embedder currently considers a
// root: the main thread's live register stack, the globals table, any
// registered overload sets, and every other thread's roots. The vm
// package installs this via SetRoots before running any collection.
type RootFunc func() []value.Value

// Collector owns the live-object table and drives the tri-color
// state machine. One Collector belongs to one `vm.State` (spec.md
// §5: "the global object list and GC metadata belong to the main
// state; child threads link their roots to it").
type Collector struct {
	objects []*object
	free    []uint64 // freed slot indices available for reuse

	currentWhite uint8 // color new allocations get; survives this cycle
	otherWhite   uint8 // color the sweep phase reclaims

	gray      []uint64
	grayAgain []uint64 // tables touched by the backward barrier

	weakTables  map[uint64]bool
	finalizable map[uint64]bool // handles with a registered finalizer not yet queued
	toFinalize  []uint64        // FIFO queue of handles whose finalizer must run

	state       State
	sweepCursor int

	bytesAllocated int
	threshold      int
	growthRatio    float64
	unitBytes      int // approximate per-object accounting unit

	intern map[string]value.Value // the string intern table (spec.md §5)

	roots RootFunc
}

// New creates a collector with an initial threshold; roots may be nil
// until the embedder calls SetRoots (useful for unit tests that only
// exercise allocation/weak-table/finalizer bookkeeping directly).
func New() *Collector {
	return &Collector{
		currentWhite: bitWhite0,
		weakTables:   make(map[uint64]bool),
		finalizable:  make(map[uint64]bool),
		intern:       make(map[string]value.Value),
		threshold:    4096,
		growthRatio:  defaultGrowthRatio,
		unitBytes:    32,
	}
}

// SetRoots installs the embedder's root-walking callback.
func (c *Collector) SetRoots(f RootFunc) { c.roots = f }

func (c *Collector) get(h value.Value) *object {
	if !h.IsHandle() {
		return nil
	}
	idx := h.AsHandle()
	if idx >= uint64(len(c.objects)) {
		return nil
	}
	return c.objects[idx]
}

func (c *Collector) put(o *object) value.Value {
	var idx uint64
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
		c.objects[idx] = o
	} else {
		idx = uint64(len(c.objects))
		c.objects = append(c.objects, o)
	}
	c.accountAlloc()
	return value.Handle(idx)
}

func (c *Collector) accountAlloc() {
	c.bytesAllocated += c.unitBytes
	if c.bytesAllocated >= c.threshold && c.state == StatePause {
		c.Step(c.unitBytes * 4)
	}
}

func newHeader(kind Kind, white uint8) header {
	return header{kind: kind, mark: white}
}

// ---- allocation ----

// String interns s, returning the same handle for every call made
// with equal content. Vine follows classic Lua's full-interning
// discipline rather than splitting short/long strings: every Value
// comparison (table keys, `==`) is then a cheap handle comparison
// instead of a byte-wise one. This makes every Vine string a
// permanently fixed object — a deliberate simplification over a real
// collector's generational or weak-keyed intern table, recorded in
// DESIGN.md, since nothing in SPEC_FULL.md exercises reclaiming an
// unreferenced interned string.
func (c *Collector) String(s string) value.Value {
	if v, ok := c.intern[s]; ok {
		return v
	}
	o := &object{header: newHeader(KindString, c.currentWhite), payload: &gcString{s: s}, fixed: true}
	h := c.put(o)
	c.intern[s] = h
	return h
}

// NewTable allocates an empty table object and returns its handle
// along with the underlying vmtable.Table for the caller to populate.
func (c *Collector) NewTable() (value.Value, *vmtable.Table) {
	gt := &gcTable{t: vmtable.New(), meta: value.Null()}
	o := &object{header: newHeader(KindTable, c.currentWhite), payload: gt}
	h := c.put(o)
	return c.graySurvive(h), gt.t
}

// NewClosure allocates a closure object over proto and the given
// upvalue handles (each must already be a gc.NewUpvalue handle).
func (c *Collector) NewClosure(proto *bytecode.Proto, upvalues []value.Value) value.Value {
	gcl := &gcClosure{proto: proto, upvalues: upvalues}
	o := &object{header: newHeader(KindClosure, c.currentWhite), payload: gcl}
	return c.graySurvive(c.put(o))
}

// NewHostClosure wraps a host-provided function as an "internal
// closure" (spec.md §6), so host callables and bytecode callables are
// indistinguishable from table/global storage's point of view: both
// are just KindClosure handles.
func (c *Collector) NewHostClosure(fn HostFunc) value.Value {
	gcl := &gcClosure{host: fn}
	o := &object{header: newHeader(KindClosure, c.currentWhite), payload: gcl}
	return c.graySurvive(c.put(o))
}

// HostFunc returns the wrapped host function for a closure built by
// NewHostClosure, or ok=false for a bytecode closure or any other kind.
func (c *Collector) HostFunc(h value.Value) (HostFunc, bool) {
	o := c.get(h)
	if o == nil {
		return nil, false
	}
	gcl, ok := o.payload.(*gcClosure)
	if !ok || gcl.host == nil {
		return nil, false
	}
	return gcl.host, true
}

// RegisterProto wraps a compiled prototype as a fixed heap object (a
// Module's prototypes live for the process's duration).
func (c *Collector) RegisterProto(p *bytecode.Proto) value.Value {
	o := &object{header: newHeader(KindProto, c.currentWhite), payload: &gcProto{p: p}, fixed: true}
	return c.put(o)
}

// NewUpvalue allocates an open upvalue; the VM closes it (copying the
// live stack value in and flipping Closed) when the owning scope exits.
func (c *Collector) NewUpvalue() value.Value {
	o := &object{header: newHeader(KindUpvalue, c.currentWhite), payload: &gcUpvalue{}}
	return c.graySurvive(c.put(o))
}

// CloseUpvalue transitions an open upvalue to closed, copying val in.
func (c *Collector) CloseUpvalue(h value.Value, val value.Value) {
	if o := c.get(h); o != nil {
		if uv, ok := o.payload.(*gcUpvalue); ok {
			uv.closed = true
			uv.val = val
		}
	}
}

// NewUserdata allocates a userdata object wrapping an arbitrary host
// payload. If fin is non-nil, the object is tracked on the finalizable
// list (spec.md §5's `__gc` dispatch).
func (c *Collector) NewUserdata(payload interface{}, fin func(value.Value)) value.Value {
	o := &object{header: newHeader(KindUserdata, c.currentWhite), payload: &gcUserdata{payload: payload, finalizer: fin}}
	h := c.put(o)
	if fin != nil {
		c.finalizable[h.AsHandle()] = true
	}
	return c.graySurvive(h)
}

// NewThread registers a coroutine's root provider as a heap object so
// it can be referenced (and traced through) like any other value.
func (c *Collector) NewThread(p RootProvider) value.Value {
	o := &object{header: newHeader(KindThread, c.currentWhite), payload: &gcThread{provider: p}}
	return c.graySurvive(c.put(o))
}

// graySurvive gray-queues h immediately if allocation happened mid-
// cycle (propagate or atomic), so a fresh object's children — which
// may include old, not-yet-marked objects — still get traced this
// cycle (the standard "allocate gray" incremental-GC discipline).
func (c *Collector) graySurvive(h value.Value) value.Value {
	if c.state == StatePropagate || c.state == StateAtomic {
		c.gray = append(c.gray, h.AsHandle())
	}
	return h
}

// ---- accessors ----

func (c *Collector) Kind(h value.Value) (Kind, bool) {
	o := c.get(h)
	if o == nil {
		return 0, false
	}
	return o.kind, true
}

func (c *Collector) Table(h value.Value) (*vmtable.Table, bool) {
	o := c.get(h)
	if o == nil {
		return nil, false
	}
	gt, ok := o.payload.(*gcTable)
	if !ok {
		return nil, false
	}
	return gt.t, true
}

func (c *Collector) Closure(h value.Value) (*bytecode.Proto, []value.Value, bool) {
	o := c.get(h)
	if o == nil {
		return nil, nil, false
	}
	gcl, ok := o.payload.(*gcClosure)
	if !ok {
		return nil, nil, false
	}
	return gcl.proto, gcl.upvalues, true
}

func (c *Collector) Proto(h value.Value) (*bytecode.Proto, bool) {
	o := c.get(h)
	if o == nil {
		return nil, false
	}
	gp, ok := o.payload.(*gcProto)
	if !ok {
		return nil, false
	}
	return gp.p, true
}

func (c *Collector) Upvalue(h value.Value) (val value.Value, closed bool, ok bool) {
	o := c.get(h)
	if o == nil {
		return value.Value{}, false, false
	}
	uv, is := o.payload.(*gcUpvalue)
	if !is {
		return value.Value{}, false, false
	}
	return uv.val, uv.closed, true
}

func (c *Collector) Userdata(h value.Value) (interface{}, bool) {
	o := c.get(h)
	if o == nil {
		return nil, false
	}
	gu, ok := o.payload.(*gcUserdata)
	if !ok {
		return nil, false
	}
	return gu.payload, true
}

// SetMetatable installs meta (a table handle, or value.Null() to
// clear) on the table at h, keeping the gc package's own metaHandle
// bookkeeping (needed for tracing and for the weak-mode lookup) in
// sync with vmtable's raw metatable pointer.
func (c *Collector) SetMetatable(h, meta value.Value) bool {
	to := c.get(h)
	if to == nil {
		return false
	}
	gt, ok := to.payload.(*gcTable)
	if !ok {
		return false
	}
	if meta.IsNull() {
		gt.t.SetMeta(nil)
		gt.meta = value.Null()
		delete(c.weakTables, h.AsHandle())
		return true
	}
	mo := c.get(meta)
	if mo == nil {
		return false
	}
	gm, ok := mo.payload.(*gcTable)
	if !ok {
		return false
	}
	gt.t.SetMeta(gm.t)
	gt.meta = meta
	if mode, ok := c.weakMode(h); ok && mode != weakNone {
		c.weakTables[h.AsHandle()] = true
	} else {
		delete(c.weakTables, h.AsHandle())
	}
	c.Barrier(h, meta)
	return true
}

// Metatable returns the handle of h's metatable, if any.
func (c *Collector) Metatable(h value.Value) (value.Value, bool) {
	o := c.get(h)
	if o == nil {
		return value.Value{}, false
	}
	gt, ok := o.payload.(*gcTable)
	if !ok || gt.meta.IsNull() {
		return value.Value{}, false
	}
	return gt.meta, true
}

// State reports the collector's current phase.
func (c *Collector) State() State { return c.state }

// BytesAllocated and Threshold expose allocation accounting for
// diagnostics and tests.
func (c *Collector) BytesAllocated() int { return c.bytesAllocated }
func (c *Collector) Threshold() int      { return c.threshold }

// LiveObjects reports how many object-table slots are currently
// occupied (diagnostics, tests).
func (c *Collector) LiveObjects() int { return len(c.objects) - len(c.free) }

// PendingFinalizers reports how many finalizers are queued to run.
func (c *Collector) PendingFinalizers() int { return len(c.toFinalize) }
