package bytecode

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// isJumpOp reports whether op carries a branch target that PatchJumpD
// resolves, rather than a literal D/E field set at emit time.
func isJumpOp(op Op) bool {
	switch op {
	case OpJump, OpJumpIf, OpJumpIfNot, OpJumpIfEqualKey, OpJumpBack,
		OpForNumericLoopPrepare, OpForNumericLoop, OpForGeneratorLoop:
		return true
	}
	return false
}

// buildInstr is a building-time instruction: its jump target (if any)
// is tracked as an instruction INDEX into the function's growing
// instrs slice, not yet resolved to a signed word offset. Resolution
// happens once, in finalizeJumps, after validation/folding/expansion
// have settled on final instruction positions.
type buildInstr struct {
	Instruction
	jumpTarget    int
	hasJumpTarget bool
}

// funcState is one function's in-progress builder state; BeginFunction
// pushes one, EndFunction pops it and appends the finished Proto to
// the enclosing function's Children (or the module's Main, for the
// outermost).
type funcState struct {
	instrs []buildInstr
	lines  []int32

	constants []Constant
	children  []*Proto

	debugLocals   []DebugLocal
	debugUpvalues []string
	debugName     string

	numParams   uint8
	isVararg    bool
	numUpvalues uint8

	hasLongJump bool
	curLine     int32
}

// Builder assembles one Module: one growing instruction vector and
// line-info vector per function being built, plus module-wide pools
// (spec.md §4.3).
type Builder struct {
	strings    []string
	stringIdx  map[string]int32
	shapes     [][]int32

	stack []*funcState

	sourceName string
}

func NewBuilder() *Builder {
	return &Builder{stringIdx: make(map[string]int32)}
}

func (b *Builder) cur() *funcState { return b.stack[len(b.stack)-1] }

// InstrCount reports how many instructions have been emitted so far
// into the function currently open on the builder; callers use it to
// compute "jump to here" targets for forward jumps.
func (b *Builder) InstrCount() int { return len(b.cur().instrs) }

// SetLine sets the source line attributed to subsequently emitted
// instructions, until changed again.
func (b *Builder) SetLine(line int32) { b.cur().curLine = line }

// BeginFunction frames a new function prototype (spec.md §4.3).
func (b *Builder) BeginFunction(numParams uint8, isVararg bool) {
	b.stack = append(b.stack, &funcState{numParams: numParams, isVararg: isVararg})
}

func (b *Builder) SetDebugFunctionName(name string) { b.cur().debugName = name }
func (b *Builder) PushDebugLocal(name string, reg uint8, beginPC, endPC int32) {
	fs := b.cur()
	fs.debugLocals = append(fs.debugLocals, DebugLocal{Name: name, Register: reg, BeginPC: beginPC, EndPC: endPC})
}
func (b *Builder) PushDebugUpvalue(name string) {
	fs := b.cur()
	fs.debugUpvalues = append(fs.debugUpvalues, name)
}
func (b *Builder) SetDumpSource(name string) { b.sourceName = name }

// emit appends an instruction, recording the builder's current line,
// and returns its index (the jump-label PatchJumpD later resolves).
func (b *Builder) emit(i Instruction) int {
	fs := b.cur()
	fs.instrs = append(fs.instrs, buildInstr{Instruction: i})
	fs.lines = append(fs.lines, fs.curLine)
	return len(fs.instrs) - 1
}

func (b *Builder) EmitABC(op Op, a, b_, c uint8) int { return b.emit(ABC(op, a, b_, c)) }
func (b *Builder) EmitAD(op Op, a uint8, d int32) int { return b.emit(AD(op, a, d)) }
func (b *Builder) EmitE(op Op, e int32) int           { return b.emit(EInstr(op, e)) }

// EmitAux attaches an AUX word to the most recently emitted
// instruction, which must be one of the opcodes declared to carry one.
func (b *Builder) EmitAux(aux uint32) {
	fs := b.cur()
	fs.instrs[len(fs.instrs)-1].Aux = aux
}

// PatchJumpD resolves a previously-emitted jump instruction's target.
// The actual signed offset is computed later by finalizeJumps, once
// folding and long-jump expansion have settled on final positions;
// here we only record which instruction index the jump lands on.
func (b *Builder) PatchJumpD(jumpPC, targetPC int) bool {
	fs := b.cur()
	if jumpPC < 0 || jumpPC >= len(fs.instrs) || !isJumpOp(fs.instrs[jumpPC].Op) {
		return false
	}
	fs.instrs[jumpPC].hasJumpTarget = true
	fs.instrs[jumpPC].jumpTarget = targetPC
	return true
}

// --- constant pool -------------------------------------------------

func (b *Builder) addConstant(c Constant) int32 {
	fs := b.cur()
	if i := slices.IndexFunc(fs.constants, func(existing Constant) bool { return existing.equal(c) }); i >= 0 {
		return int32(i)
	}
	if len(fs.constants) >= maxConstants {
		return sentinelIndex
	}
	fs.constants = append(fs.constants, c)
	return int32(len(fs.constants) - 1)
}

func (b *Builder) AddConstantNull() int32            { return b.addConstant(Constant{Kind: ConstNull}) }
func (b *Builder) AddConstantBool(v bool) int32       { return b.addConstant(Constant{Kind: ConstBool, Bool: v}) }
func (b *Builder) AddConstantNumber(v float64) int32  { return b.addConstant(Constant{Kind: ConstNumber, Number: v}) }
func (b *Builder) AddConstantClosure(childID int32) int32 {
	return b.addConstant(Constant{Kind: ConstClosure, ChildID: childID})
}
func (b *Builder) AddConstantTable(shape int32) int32 {
	return b.addConstant(Constant{Kind: ConstTable, Shape: shape})
}
func (b *Builder) AddConstantImport(path []int32) int32 {
	return b.addConstant(Constant{Kind: ConstImport, Import: append([]int32{}, path...)})
}

// AddConstantString interns s in the module's string table, then adds
// a ConstString entry pointing at it.
func (b *Builder) AddConstantString(s string) int32 {
	idx := b.AddString(s)
	return b.addConstant(Constant{Kind: ConstString, StrIdx: idx})
}

// AddString interns s into the module-wide string table (shared
// across every function, per spec.md §4.3.4's single string table).
func (b *Builder) AddString(s string) int32 {
	if idx, ok := b.stringIdx[s]; ok {
		return idx
	}
	idx := int32(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIdx[s] = idx
	return idx
}

// AddShape interns an ordered key-index list into the shape table,
// used by `new_table`/`copy_table` for table-literal layouts
// (spec.md's glossary entry "Shape").
func (b *Builder) AddShape(keys []int32) int32 {
	if i := slices.IndexFunc(b.shapes, func(s []int32) bool { return slices.Equal(s, keys) }); i >= 0 {
		return int32(i)
	}
	b.shapes = append(b.shapes, append([]int32{}, keys...))
	return int32(len(b.shapes) - 1)
}

// --- end of function -------------------------------------------------

// ErrValidation is returned by EndFunction when the finished function
// fails the checks in spec.md §4.3.1.
type ErrValidation struct{ Msg string }

func (e ErrValidation) Error() string { return "bytecode: " + e.Msg }

// EndFunction finalizes the current function: validates it (§4.3.1),
// folds jumps (§4.3.2), expands long jumps if needed (§4.3.3), encodes
// to words, and attaches the result to the enclosing function's child
// list (or returns it directly for the outermost/main function).
func (b *Builder) EndFunction(maxStackSize uint8, numUpvalues uint8) (*Proto, error) {
	fs := b.stack[len(b.stack)-1]
	fs.numUpvalues = numUpvalues

	if err := validate(fs, maxStackSize); err != nil {
		return nil, err
	}
	foldJumps(fs)
	expandLongJumps(fs)
	if err := validate(fs, maxStackSize); err != nil {
		return nil, err
	}

	code, lineNums := finalizeJumps(fs)

	p := &Proto{
		Code:          code,
		Constants:     fs.constants,
		Children:      fs.children,
		Lines:         compressLines(lineNums),
		DebugLocals:   fs.debugLocals,
		DebugUpvalues: fs.debugUpvalues,
		DebugName:     fs.debugName,
		NumParams:     fs.numParams,
		IsVararg:      fs.isVararg,
		NumUpvalues:   fs.numUpvalues,
		MaxStackSize:  maxStackSize,
	}

	b.stack = b.stack[:len(b.stack)-1]
	if len(b.stack) > 0 {
		parent := b.cur()
		parent.children = append(parent.children, p)
	}
	return p, nil
}

// Module returns the finished module, given the Proto EndFunction
// produced for the outermost (main) function.
func (b *Builder) Module(main *Proto) *Module {
	return &Module{Strings: b.strings, Shapes: b.shapes, Main: main, SourceName: b.sourceName}
}

func (e ErrValidation) GoString() string { return fmt.Sprintf("ErrValidation(%q)", e.Msg)  }
