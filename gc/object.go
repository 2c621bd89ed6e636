// Package gc implements Vine's tri-color incremental mark-sweep
// collector (spec.md §5 / SPEC_FULL.md §5): a pause/propagate/atomic/
// sweep state machine, forward and backward write barriers, weak-table
// clearing, and FIFO finalizer dispatch, operating over a live-object
// table that `value.Handle` indexes into (see the Open Question
// resolution in DESIGN.md on why Vine values carry handles rather than
// raw Go pointers).
//
// The collector does not itself reclaim memory — Go's own runtime
// owns the backing storage for every object and frees it once nothing
// in this package's tables references it. What this package tracks is
// *language-level* reachability: which heap objects a Vine program can
// still observe, so that weak-table entries clear and `__gc`
// finalizers fire at the right moments, exactly as if a real
// mark-sweep collector had freed the underlying bytes.
package gc

import "github.com/clarete/vine/value"

// Kind tags a heap object's dynamic type, mirroring spec.md §3's
// object-header kind tag (string, table, closure, prototype, upvalue,
// user-data, thread).
type Kind uint8

const (
	KindString Kind = iota
	KindTable
	KindClosure
	KindProto
	KindUpvalue
	KindUserdata
	KindThread
)

var kindNames = [...]string{
	KindString: "string", KindTable: "table", KindClosure: "closure",
	KindProto: "proto", KindUpvalue: "upvalue", KindUserdata: "userdata",
	KindThread: "thread",
}

func (k Kind) String() string { return kindNames[k] }

// mark bits. Two white bits alternate meaning each cycle (spec.md §5:
// "the live-color meaning flips at cycle start so the newly-allocated
// objects start as the current white"); gray has neither white bit nor
// the black bit set, and is represented implicitly by queue membership
// rather than a dedicated bit.
const (
	bitWhite0 uint8 = 1 << iota
	bitWhite1
	bitBlack
)

const bothWhite = bitWhite0 | bitWhite1

// Tracer is implemented by any object payload that holds outgoing
// references to other heap values; the propagate phase calls Trace to
// discover a black object's children.
type Tracer interface {
	Trace(visit func(value.Value))
}

// header carries one heap object's GC metadata, shared by every kind.
type header struct {
	kind  Kind
	mark  uint8
	fixed bool // never swept (interned strings, loaded prototypes)
}

func (h *header) isWhite() bool { return h.mark&bothWhite != 0 }
func (h *header) isBlack() bool { return h.mark&bitBlack != 0 }
func (h *header) isGray() bool  { return !h.isWhite() && !h.isBlack() }

func (h *header) paintGray()        { h.mark = 0 }
func (h *header) paintBlack()       { h.mark = bitBlack }
func (h *header) paintWhite(w uint8) { h.mark = w }

// object is one entry in the collector's live-object table.
type object struct {
	header
	payload interface{} // *gcString, *gcTable, *gcClosure, *gcProto, *gcUpvalue, *gcUserdata, *gcThread
}

func (o *object) trace(visit func(value.Value)) {
	if t, ok := o.payload.(Tracer); ok {
		t.Trace(visit)
	}
}
