package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/clarete/vine/gc"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vmtable"
)

func typeName(s *State, v value.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case v.IsBool():
		return "boolean"
	case v.IsDouble():
		return "number"
	case v.IsUndefined():
		return "undefined"
	case v.IsHandle():
		if k, ok := s.gc.Kind(v); ok {
			switch k {
			case gc.KindString:
				return "string"
			case gc.KindTable:
				return "table"
			case gc.KindClosure:
				return "function"
			case gc.KindUserdata:
				return "userdata"
			case gc.KindThread:
				return "thread"
			}
		}
	}
	return "unknown"
}

func tableOf(s *State, v value.Value) (*vmtable.Table, bool) {
	if !v.IsHandle() {
		return nil, false
	}
	return s.gc.Table(v)
}

// metatableOf finds the metatable governing v's metamethod lookups:
// a table's own metatable, or nil for every other kind (strings,
// numbers and the rest have no per-value metatable in this
// implementation — a documented simplification over a full "string
// library as metatable" scheme, recorded in DESIGN.md).
func metatableOf(s *State, v value.Value) *vmtable.Table {
	t, ok := tableOf(s, v)
	if !ok {
		return nil
	}
	return t.Meta()
}

func tagged(s *State, v value.Value, mm vmtable.Metamethod) (value.Value, bool) {
	t, ok := tableOf(s, v)
	if !ok {
		return value.Value{}, false
	}
	return t.GetTaggedMethod(mm)
}

// toString renders v for concatenation and host-facing display
// (spec.md §3's value model: numbers print without a trailing ".0"
// when integral, matching the source syntax that produced them).
func toString(s *State, v value.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case v.IsUndefined():
		return "null"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsDouble():
		return formatNumber(v.AsDouble())
	case v.IsHandle():
		if str, ok := s.gc.ReadString(v); ok {
			return str
		}
		return fmt.Sprintf("%s: 0x%08x", typeName(s, v), v.AsHandle())
	}
	return "?"
}

func formatNumber(f float64) string {
	if math.Trunc(f) == f && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func asNumber(s *State, v value.Value) (float64, bool) {
	if v.IsDouble() {
		return v.AsDouble(), true
	}
	if v.IsHandle() {
		if str, ok := s.gc.ReadString(v); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func asInt(s *State, v value.Value) (int64, bool) {
	f, ok := asNumber(s, v)
	if !ok || math.Trunc(f) != f {
		return 0, false
	}
	return int64(f), true
}

type arithOp struct {
	name string
	mm   vmtable.Metamethod
	fn   func(a, b float64) (float64, error)
}

var (
	opAdd = arithOp{"add", vmtable.MMAdd, func(a, b float64) (float64, error) { return a + b, nil }}
	opSub = arithOp{"sub", vmtable.MMSub, func(a, b float64) (float64, error) { return a - b, nil }}
	opMul = arithOp{"mul", vmtable.MMMul, func(a, b float64) (float64, error) { return a * b, nil }}
	opDiv = arithOp{"div", vmtable.MMDiv, func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("attempt to divide by zero")
		}
		return a / b, nil
	}}
	opMod = arithOp{"mod", vmtable.MMMod, func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("attempt to perform 'n%%0'")
		}
		return math.Mod(a, b), nil
	}}
	opPow = arithOp{"pow", vmtable.MMPow, func(a, b float64) (float64, error) { return math.Pow(a, b), nil }}
)

// arith evaluates one of the add/sub/mul/div/mod/pow opcodes,
// attempting the numeric path first (spec.md §3's numeric tower: both
// operands coerce to float64) and falling back to the left, then
// right, operand's metamethod (spec.md §5's binary-operator
// resolution order) before raising a runtime error.
func (t *Thread) arith(op arithOp, a, b value.Value) value.Value {
	if fa, ok := asNumber(t.s, a); ok {
		if fb, ok := asNumber(t.s, b); ok {
			r, err := op.fn(fa, fb)
			if err != nil {
				throwf(t, "%s", err.Error())
			}
			return value.Double(r)
		}
	}
	if mm, ok := tagged(t.s, a, op.mm); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1))
	}
	if mm, ok := tagged(t.s, b, op.mm); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1))
	}
	throwf(t, "attempt to perform arithmetic on a %s value", badOperandType(t.s, a, b))
	return value.Null()
}

func badOperandType(s *State, a, b value.Value) string {
	if _, ok := asNumber(s, a); !ok {
		return typeName(s, a)
	}
	return typeName(s, b)
}

func first(vs []value.Value) value.Value {
	if len(vs) == 0 {
		return value.Null()
	}
	return vs[0]
}

// equals implements `==` (spec.md §5): numbers compare by value,
// handles of the same underlying string compare by content (strings
// are interned, so handle equality already implies content equality),
// other handles compare by identity unless __eq says otherwise.
func (t *Thread) equals(a, b value.Value) bool {
	if a.IsDouble() && b.IsDouble() {
		return a.AsDouble() == b.AsDouble()
	}
	if a == b {
		return true
	}
	ka, _ := t.s.gc.Kind(a)
	kb, _ := t.s.gc.Kind(b)
	if !a.IsHandle() || !b.IsHandle() || ka != kb || ka != gc.KindTable {
		return false
	}
	if mm, ok := tagged(t.s, a, vmtable.MMEq); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	if mm, ok := tagged(t.s, b, vmtable.MMEq); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	return false
}

func (t *Thread) less(a, b value.Value) bool {
	if fa, ok := asNumber(t.s, a); ok {
		if fb, ok := asNumber(t.s, b); ok {
			return fa < fb
		}
	}
	if sa, ok := t.s.gc.ReadString(a); ok {
		if sb, ok := t.s.gc.ReadString(b); ok {
			return sa < sb
		}
	}
	if mm, ok := tagged(t.s, a, vmtable.MMLt); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	if mm, ok := tagged(t.s, b, vmtable.MMLt); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	throwf(t, "attempt to compare %s with %s", typeName(t.s, a), typeName(t.s, b))
	return false
}

func (t *Thread) lessEqual(a, b value.Value) bool {
	if fa, ok := asNumber(t.s, a); ok {
		if fb, ok := asNumber(t.s, b); ok {
			return fa <= fb
		}
	}
	if sa, ok := t.s.gc.ReadString(a); ok {
		if sb, ok := t.s.gc.ReadString(b); ok {
			return sa <= sb
		}
	}
	if mm, ok := tagged(t.s, a, vmtable.MMLe); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	if mm, ok := tagged(t.s, b, vmtable.MMLe); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1)).Truthy()
	}
	throwf(t, "attempt to compare %s with %s", typeName(t.s, a), typeName(t.s, b))
	return false
}

func (t *Thread) concat(a, b value.Value) value.Value {
	_, aNum := asNumber(t.s, a)
	_, bNum := asNumber(t.s, b)
	aStr := a.IsHandle()
	bStr := b.IsHandle()
	if (aNum || aStr) && (bNum || bStr) {
		if _, ok := t.s.gc.ReadString(a); ok || aNum {
			if _, ok := t.s.gc.ReadString(b); ok || bNum {
				return t.s.gc.String(toString(t.s, a) + toString(t.s, b))
			}
		}
	}
	if mm, ok := tagged(t.s, a, vmtable.MMConcat); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1))
	}
	if mm, ok := tagged(t.s, b, vmtable.MMConcat); ok {
		return first(t.callValue(mm, []value.Value{a, b}, 1))
	}
	throwf(t, "attempt to concatenate a %s value", badOperandType(t.s, a, b))
	return value.Null()
}

func (t *Thread) length(a value.Value) value.Value {
	if mm, ok := tagged(t.s, a, vmtable.MMLen); ok {
		return first(t.callValue(mm, []value.Value{a}, 1))
	}
	if tbl, ok := tableOf(t.s, a); ok {
		return value.Double(float64(tbl.Len()))
	}
	if str, ok := t.s.gc.ReadString(a); ok {
		return value.Double(float64(len(str)))
	}
	throwf(t, "attempt to get length of a %s value", typeName(t.s, a))
	return value.Null()
}

func (t *Thread) unm(a value.Value) value.Value {
	if f, ok := asNumber(t.s, a); ok {
		return value.Double(-f)
	}
	if mm, ok := tagged(t.s, a, vmtable.MMUnm); ok {
		return first(t.callValue(mm, []value.Value{a, a}, 1))
	}
	throwf(t, "attempt to perform arithmetic on a %s value", typeName(t.s, a))
	return value.Null()
}

func intBitwise(t *Thread, a, b value.Value, fn func(x, y int64) int64) value.Value {
	ia, ok1 := asInt(t.s, a)
	ib, ok2 := asInt(t.s, b)
	if !ok1 || !ok2 {
		throwf(t, "number has no integer representation")
	}
	return value.Double(float64(fn(ia, ib)))
}

// index resolves `t[k]` per spec.md §5's __index chain: a raw hit
// returns directly; a miss consults __index, which may be a table
// (recurse) or a function (call it with (t, k)); absence of both
// terminates at null. depth bounds pathological metatable cycles.
func (t *Thread) index(obj, key value.Value) value.Value {
	const maxDepth = 100
	for depth := 0; depth < maxDepth; depth++ {
		tbl, ok := tableOf(t.s, obj)
		if !ok {
			if mm, ok := tagged(t.s, obj, vmtable.MMIndex); ok {
				if callable(t.s, mm) {
					return first(t.callValue(mm, []value.Value{obj, key}, 1))
				}
				obj = mm
				continue
			}
			throwf(t, "attempt to index a %s value", typeName(t.s, obj))
		}
		v := tbl.Get(key)
		if !v.IsUndefined() {
			return v
		}
		mm, ok := tbl.GetTaggedMethod(vmtable.MMIndex)
		if !ok {
			return value.Null()
		}
		if callable(t.s, mm) {
			return first(t.callValue(mm, []value.Value{obj, key}, 1))
		}
		obj = mm
	}
	throwf(t, "'__index' chain too long; possible loop")
	return value.Null()
}

// newindex resolves `t[k] = v` per spec.md §5's __newindex chain: a
// table with the key already present, or with no __newindex, stores
// directly; otherwise __newindex is invoked (function) or the store
// is retried against it (table).
func (t *Thread) newindex(obj, key, val value.Value) {
	const maxDepth = 100
	for depth := 0; depth < maxDepth; depth++ {
		tbl, ok := tableOf(t.s, obj)
		if !ok {
			throwf(t, "attempt to index a %s value", typeName(t.s, obj))
		}
		if !tbl.Get(key).IsUndefined() {
			tbl.Set(key, val)
			t.barrierStore(obj, key, val)
			return
		}
		mm, ok := tbl.GetTaggedMethod(vmtable.MMNewIndex)
		if !ok {
			tbl.Set(key, val)
			t.barrierStore(obj, key, val)
			return
		}
		if callable(t.s, mm) {
			t.callValue(mm, []value.Value{obj, key, val}, 0)
			return
		}
		obj = mm
	}
	throwf(t, "'__newindex' chain too long; possible loop")
}

func (t *Thread) barrierStore(owner, key, val value.Value) {
	t.s.gc.Barrier(owner, key)
	t.s.gc.Barrier(owner, val)
}

func callable(s *State, v value.Value) bool {
	if !v.IsHandle() {
		return false
	}
	if k, ok := s.gc.Kind(v); ok && k == gc.KindClosure {
		return true
	}
	_, ok := tagged(s, v, vmtable.MMCall)
	return ok
}
