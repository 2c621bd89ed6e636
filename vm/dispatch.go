package vm

import (
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vmtable"
)

// call is the Thread-level entry point every State.Call/ProtectedCall
// funnels through: it's just callValue with no special casing, since
// a loaded chunk's closure, a host closure, and a __call-able table
// are otherwise indistinguishable call targets (spec.md §6).
func (t *Thread) call(closure value.Value, args []value.Value, nresults int) []value.Value {
	return t.callValue(closure, args, nresults)
}

// callValue runs callee to completion and returns exactly nresults
// values (padding with Null or truncating as needed), dispatching to
// a host function, a bytecode closure (via a nested dispatch loop), or
// an object's __call metamethod, in that order (spec.md §5/§6).
func (t *Thread) callValue(callee value.Value, args []value.Value, nresults int) []value.Value {
	if hf, ok := t.s.gc.HostFunc(callee); ok {
		res, err := hf(args)
		if err != nil {
			throwf(t, "%s", err.Error())
		}
		return padResults(res, nresults)
	}
	if proto, _, ok := t.s.gc.Closure(callee); ok && proto != nil {
		return t.runNested(callee, proto, args, nresults)
	}
	if mm, ok := tagged(t.s, callee, vmtable.MMCall); ok {
		return t.callValue(mm, append([]value.Value{callee}, args...), nresults)
	}
	throwf(t, "attempt to call a %s value", typeName(t.s, callee))
	return nil
}

func padResults(res []value.Value, n int) []value.Value {
	out := make([]value.Value, n)
	for i := range out {
		if i < len(res) {
			out[i] = res[i]
		} else {
			out[i] = value.Null()
		}
	}
	return out
}

// runNested pushes a fresh activation for a bytecode closure past the
// end of the thread's current stack use, runs the dispatch loop until
// that activation (and anything it calls) has returned, then lifts the
// results back out — the path metamethod dispatch and State.Call use
// to get a synchronous result from what is, underneath, the same
// iterative frame-stack machinery OpCall drives directly.
func (t *Thread) runNested(callee value.Value, proto *bytecode.Proto, args []value.Value, nresults int) []value.Value {
	if len(t.frames) >= t.s.callDepthLimit {
		throwf(t, "call stack overflow")
	}
	calleeAbs := len(t.stack)
	t.stack = append(t.stack, callee)
	t.stack = append(t.stack, args...)
	stopDepth := len(t.frames)
	t.pushCallFrame(calleeAbs, len(args), nresults)
	t.run(stopDepth)
	out := make([]value.Value, nresults)
	copy(out, t.stack[calleeAbs:calleeAbs+nresults])
	t.stack = t.stack[:calleeAbs]
	return out
}

// pushCallFrame lays out a new activation's register window starting
// right after the callee's own slot (calleeAbs), binds the given
// arguments to parameter registers (padding missing ones with Null,
// spilling extras into the frame's vararg list when the prototype
// accepts them), and zero-fills the rest of the frame's register file
// so a read of an as-yet-unassigned local never sees stale data left
// by a previous activation that used the same stack space.
func (t *Thread) pushCallFrame(calleeAbs, argc, nresults int) {
	callee := t.stack[calleeAbs]
	proto, _, ok := t.s.gc.Closure(callee)
	if !ok || proto == nil {
		throwf(t, "attempt to call a %s value", typeName(t.s, callee))
	}
	paramsBase := calleeAbs + 1
	nparams := int(proto.NumParams)

	t.ensure(paramsBase + argc)
	var varargs []value.Value
	if proto.IsVararg && argc > nparams {
		varargs = append([]value.Value{}, t.stack[paramsBase+nparams:paramsBase+argc]...)
	}
	for i := argc; i < nparams; i++ {
		t.stack[paramsBase+i] = value.Null()
	}

	size := int(proto.MaxStackSize)
	if size < nparams {
		size = nparams
	}
	t.ensure(paramsBase + size)
	for i := nparams; i < size; i++ {
		t.stack[paramsBase+i] = value.Null()
	}

	t.frames = append(t.frames, callFrame{
		closure:    callee,
		proto:      proto,
		base:       paramsBase,
		pc:         0,
		numResults: nresults,
		varargs:    varargs,
	})
}

// doCall implements the `call` opcode: R[base+a] holds the callee,
// argc literal arguments follow contiguously, and the caller wants
// nresults values back starting at that same register (spec.md
// §4.6's "call A B C"). A bytecode callee pushes an activation the
// run loop's own iteration will pick up next; anything else (a host
// function or a __call-able value) is resolved synchronously here.
func (t *Thread) doCall(base int, a, b, c uint8) {
	calleeAbs := base + int(a)
	argc := int(b)
	nresults := int(c)
	callee := t.stack[calleeAbs]

	t.pollInterrupt()

	if proto, _, ok := t.s.gc.Closure(callee); ok && proto != nil {
		if len(t.frames) >= t.s.callDepthLimit {
			throwf(t, "call stack overflow")
		}
		t.pushCallFrame(calleeAbs, argc, nresults)
		return
	}

	args := append([]value.Value{}, t.stack[calleeAbs+1:calleeAbs+1+argc]...)
	results := t.callValue(callee, args, nresults)
	t.ensure(calleeAbs + nresults)
	for i := 0; i < nresults; i++ {
		t.stack[calleeAbs+i] = results[i]
	}
}

// doReturn implements `call_return`: copies the B results starting at
// frame-relative register A back to the caller's expected slot (the
// callee register the matching `call` instruction referenced),
// closing every upvalue this activation opened before popping it
// (spec.md §4.5's "Upvalue close").
func (t *Thread) doReturn(fr *callFrame, a, b uint8) {
	n := int(b)
	resultsAbs := fr.base + int(a)
	results := make([]value.Value, n)
	copy(results, t.stack[resultsAbs:resultsAbs+n])

	floor := fr.base
	dest := fr.base - 1
	want := fr.numResults

	t.closeUpvaluesFrom(floor)
	t.frames = t.frames[:len(t.frames)-1]

	t.ensure(dest + want)
	for i := 0; i < want; i++ {
		if i < len(results) {
			t.stack[dest+i] = results[i]
		} else {
			t.stack[dest+i] = value.Null()
		}
	}
}

func (t *Thread) pollInterrupt() {
	if t.s.interruptHook != nil {
		if err := t.s.interruptHook(t.s); err != nil {
			throwf(t, "%s", err.Error())
		}
	}
}

func (t *Thread) frameUpvalues(fr *callFrame) []value.Value {
	_, upvals, _ := t.s.gc.Closure(fr.closure)
	return upvals
}

// run is the dispatch loop: it keeps executing the top frame's next
// instruction until the thread's call-frame stack has unwound back to
// stopDepth, at which point either the thread's outermost call has
// finished (stopDepth == 0) or a synchronous nested call (runNested)
// has returned to its caller.
func (t *Thread) run(stopDepth int) {
	for len(t.frames) > stopDepth {
		fr := t.top()
		code := fr.proto.Code
		if fr.pc >= len(code) {
			t.doReturn(fr, 0, 0)
			continue
		}
		instr := bytecode.Decode(code, fr.pc)
		nextPC := fr.pc + bytecode.SizeInWords(instr.Op)
		fr.pc = nextPC
		t.execute(fr, instr, nextPC)
	}
}

func (t *Thread) execute(fr *callFrame, instr bytecode.Instruction, nextPC int) {
	base := fr.base
	reg := func(r uint8) value.Value { return t.stack[base+int(r)] }
	set := func(r uint8, v value.Value) { t.stack[base+int(r)] = v }

	switch instr.Op {
	case bytecode.OpMove:
		set(instr.A, reg(instr.B))
	case bytecode.OpLoadNull:
		set(instr.A, value.Null())
	case bytecode.OpLoadBoolean:
		set(instr.A, value.Bool(instr.D == 1))
	case bytecode.OpLoadNumber:
		set(instr.A, value.Double(float64(instr.D)))
	case bytecode.OpLoadKey:
		set(instr.A, t.s.constant(fr.proto, instr.D))
	case bytecode.OpLoadKeyExtra:
		set(instr.A, t.s.constant(fr.proto, int32(instr.Aux)))

	case bytecode.OpLoadGlobal:
		key := t.s.gc.String(t.s.stringAt(fr.proto, int32(instr.Aux)))
		set(instr.A, t.index(t.s.globals, key))
	case bytecode.OpSetGlobal:
		key := t.s.gc.String(t.s.stringAt(fr.proto, int32(instr.Aux)))
		t.newindex(t.s.globals, key, reg(instr.A))

	case bytecode.OpGetUpvalue:
		ups := t.frameUpvalues(fr)
		val, _ := t.s.resolveUpvalue(ups[instr.B])
		set(instr.A, val)
	case bytecode.OpSetUpvalue:
		ups := t.frameUpvalues(fr)
		t.s.storeUpvalue(ups[instr.B], reg(instr.A))

	case bytecode.OpLoadTable:
		set(instr.A, t.index(reg(instr.B), reg(instr.C)))
	case bytecode.OpSetTable:
		t.newindex(reg(instr.A), reg(instr.B), reg(instr.C))
	case bytecode.OpNewTable:
		h, _ := t.s.gc.NewTable()
		set(instr.A, h)
	case bytecode.OpCopyTable:
		h, dst := t.s.gc.NewTable()
		if src, ok := tableOf(t.s, reg(instr.B)); ok {
			src.ForEachMutable(func(k, v value.Value) bool {
				dst.Set(k, v)
				t.barrierStore(h, k, v)
				return true
			})
		}
		set(instr.A, h)
	case bytecode.OpSetTableStringKey:
		if tbl, ok := tableOf(t.s, reg(instr.A)); ok {
			key := t.s.constant(fr.proto, int32(instr.B))
			val := reg(instr.C)
			tbl.Set(key, val)
			t.barrierStore(reg(instr.A), key, val)
		}
	case bytecode.OpSetList:
		if tbl, ok := tableOf(t.s, reg(instr.A)); ok {
			start := int(instr.B)
			count := int(instr.C)
			for i := 0; i < count; i++ {
				k := value.Double(float64(i + 1))
				v := t.stack[base+start+i]
				tbl.Set(k, v)
				t.barrierStore(reg(instr.A), k, v)
			}
		}

	case bytecode.OpNewClosure:
		t.execNewClosure(fr, instr, nextPC)

	case bytecode.OpCloseUpvalues:
		t.closeUpvaluesFrom(base + int(instr.A))
	case bytecode.OpPrepareVarargs:
		h, tbl := t.s.gc.NewTable()
		for i, v := range fr.varargs {
			tbl.Set(value.Double(float64(i+1)), v)
		}
		set(instr.A, h)

	case bytecode.OpCall:
		t.doCall(base, instr.A, instr.B, instr.C)
	case bytecode.OpCallReturn:
		t.doReturn(fr, instr.A, instr.B)
	case bytecode.OpNamedCall:
		obj := reg(instr.B)
		key := reg(instr.C)
		set(instr.A, t.index(obj, key))
		set(instr.A+1, obj)

	case bytecode.OpBindMethod:
		// Packages (receiver, fn) as a host-backed closure: calling the
		// bound value prepends receiver to the argument list and
		// forwards to fn, same as a `:method(...)` call site would.
		receiver := reg(instr.B)
		fn := reg(instr.C)
		bound := t.s.gc.NewHostClosure(func(args []value.Value) ([]value.Value, error) {
			return t.callValue(fn, append([]value.Value{receiver}, args...), 1), nil
		})
		set(instr.A, bound)

	case bytecode.OpJump:
		fr.pc = nextPC + int(instr.D)
	case bytecode.OpJumpExtra:
		fr.pc = nextPC + int(instr.E)
	case bytecode.OpJumpIf:
		if reg(instr.A).Truthy() {
			fr.pc = nextPC + int(instr.D)
		}
	case bytecode.OpJumpIfNot:
		if !reg(instr.A).Truthy() {
			fr.pc = nextPC + int(instr.D)
		}
	case bytecode.OpJumpIfEqualKey:
		if t.equals(reg(instr.A), t.stack[base+int(instr.A)+1]) {
			fr.pc = nextPC + int(instr.D)
		}
	case bytecode.OpJumpBack:
		t.pollInterrupt()
		fr.pc = nextPC + int(instr.D)

	case bytecode.OpForNumericLoopPrepare:
		t.execForPrepare(fr, instr, nextPC)
	case bytecode.OpForNumericLoop:
		t.execForLoop(fr, instr, nextPC)
	case bytecode.OpForGeneratorLoopPrepareNext, bytecode.OpForGeneratorLoopPrepareINext:
		fr.pc = nextPC + int(instr.D)
	case bytecode.OpForGeneratorLoop:
		t.execGeneratorLoop(fr, instr, nextPC)

	case bytecode.OpAdd:
		set(instr.A, t.arith(opAdd, reg(instr.B), reg(instr.C)))
	case bytecode.OpSub:
		set(instr.A, t.arith(opSub, reg(instr.B), reg(instr.C)))
	case bytecode.OpMul:
		set(instr.A, t.arith(opMul, reg(instr.B), reg(instr.C)))
	case bytecode.OpDiv:
		set(instr.A, t.arith(opDiv, reg(instr.B), reg(instr.C)))
	case bytecode.OpMod:
		set(instr.A, t.arith(opMod, reg(instr.B), reg(instr.C)))
	case bytecode.OpPow:
		set(instr.A, t.arith(opPow, reg(instr.B), reg(instr.C)))
	case bytecode.OpConcat:
		set(instr.A, t.concat(reg(instr.B), reg(instr.C)))
	case bytecode.OpBOr:
		set(instr.A, intBitwise(t, reg(instr.B), reg(instr.C), func(x, y int64) int64 { return x | y }))
	case bytecode.OpBXor:
		set(instr.A, intBitwise(t, reg(instr.B), reg(instr.C), func(x, y int64) int64 { return x ^ y }))
	case bytecode.OpBAnd:
		set(instr.A, intBitwise(t, reg(instr.B), reg(instr.C), func(x, y int64) int64 { return x & y }))
	case bytecode.OpShl:
		set(instr.A, intBitwise(t, reg(instr.B), reg(instr.C), func(x, y int64) int64 { return x << uint(y) }))
	case bytecode.OpShr:
		set(instr.A, intBitwise(t, reg(instr.B), reg(instr.C), func(x, y int64) int64 { return x >> uint(y) }))
	case bytecode.OpEq:
		set(instr.A, value.Bool(t.equals(reg(instr.B), reg(instr.C))))
	case bytecode.OpLt:
		set(instr.A, value.Bool(t.less(reg(instr.B), reg(instr.C))))
	case bytecode.OpLe:
		set(instr.A, value.Bool(t.lessEqual(reg(instr.B), reg(instr.C))))
	case bytecode.OpUnm:
		set(instr.A, t.unm(reg(instr.B)))
	case bytecode.OpNot:
		set(instr.A, value.Bool(!reg(instr.B).Truthy()))
	case bytecode.OpLen:
		set(instr.A, t.length(reg(instr.B)))
	case bytecode.OpBNot:
		i, ok := asInt(t.s, reg(instr.B))
		if !ok {
			throwf(t, "number has no integer representation")
		}
		set(instr.A, value.Double(float64(^i)))

	default:
		throwf(t, "unimplemented opcode %s", instr.Op)
	}
}

// execNewClosure instantiates a child prototype, consuming the run of
// `capture` instructions the builder always emits immediately after
// `new_closure` (validated at compile time, spec.md §4.3.1) rather
// than dispatching them as separate opcodes.
func (t *Thread) execNewClosure(fr *callFrame, instr bytecode.Instruction, nextPC int) {
	c := fr.proto.Constants[instr.D]
	child := fr.proto.Children[c.ChildID]
	nUp := int(child.NumUpvalues)
	upvals := make([]value.Value, nUp)
	parentUpvals := t.frameUpvalues(fr)

	pc := nextPC
	for i := 0; i < nUp; i++ {
		cap := bytecode.Decode(fr.proto.Code, pc)
		switch cap.B {
		case 0: // captureLocal
			slot := fr.base + int(cap.C)
			if h, ok := t.findOpenUpvalue(slot); ok {
				upvals[i] = h
			} else {
				upvals[i] = t.newOpenUpvalue(slot)
			}
		default: // captureUpvalue
			upvals[i] = parentUpvals[int(cap.C)]
		}
		pc += bytecode.SizeInWords(cap.Op)
	}

	h := t.s.gc.NewClosure(child, upvals)
	t.stack[fr.base+int(instr.A)] = h
	fr.pc = pc
}

func (t *Thread) execForPrepare(fr *callFrame, instr bytecode.Instruction, nextPC int) {
	base := fr.base + int(instr.A)
	start, ok1 := asNumber(t.s, t.stack[base])
	_, ok2 := asNumber(t.s, t.stack[base+1])
	step, ok3 := asNumber(t.s, t.stack[base+2])
	if !ok1 || !ok2 || !ok3 {
		throwf(t, "'for' initial value, limit, and step must be numbers")
	}
	if step == 0 {
		throwf(t, "'for' step is zero")
	}
	t.stack[base] = value.Double(start - step)
	fr.pc = nextPC + int(instr.D)
}

func (t *Thread) execForLoop(fr *callFrame, instr bytecode.Instruction, nextPC int) {
	base := fr.base + int(instr.A)
	cur, _ := asNumber(t.s, t.stack[base])
	stop, _ := asNumber(t.s, t.stack[base+1])
	step, _ := asNumber(t.s, t.stack[base+2])
	cur += step
	cont := (step > 0 && cur <= stop) || (step < 0 && cur >= stop)
	t.stack[base] = value.Double(cur)
	if cont {
		t.pollInterrupt()
		t.stack[base+3] = value.Double(cur)
		fr.pc = nextPC + int(instr.D)
	} else {
		fr.pc = nextPC
	}
}

// execGeneratorLoop is a best-effort completion of an opcode the
// compiler never emits (generic `for` lowers to a plain call/test
// sequence instead, see compileGenericFor): it calls R[base] with
// (R[base+1], R[base+2]) and loops back while the first result is
// truthy, mirroring that lowering's own stop condition.
func (t *Thread) execGeneratorLoop(fr *callFrame, instr bytecode.Instruction, nextPC int) {
	base := fr.base + int(instr.A)
	callee := t.stack[base]
	args := []value.Value{t.stack[base+1], t.stack[base+2]}
	results := t.callValue(callee, args, 1)
	r := first(results)
	if r.Truthy() {
		t.stack[base+2] = r
		t.stack[base+3] = r
		fr.pc = nextPC + int(instr.D)
	} else {
		fr.pc = nextPC
	}
}
