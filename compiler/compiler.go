// Package compiler lowers a Vine AST into bytecode, per spec.md §4.4:
// a per-function register allocator (a monotonic top lowered again by freeTo),
// a locals table, an upvalue table resolved through enclosing
// functions, and a loop-context stack for break/continue patching.
package compiler

import (
	"fmt"

	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/diag"
)

// captureKind tags how a child function reaches a free variable.
type captureKind int

const (
	captureLocal   captureKind = iota // parent's local register
	captureUpvalue                    // parent's own upvalue index
)

type upvalueBinding struct {
	name   string
	kind   captureKind
	source uint8
}

type localVar struct {
	name     string
	reg      uint8
	depth    int
	captured bool
}

// loopContext collects break/continue jump sites emitted inside one
// loop body; the loop's own compiler resolves both lists once it
// knows the instruction indices for "after the loop" and "re-test the
// loop condition" respectively.
type loopContext struct {
	breakJumps    []int
	continueJumps []int
}

// funcCompiler holds the state for one function being compiled; the
// nesting of funcCompilers mirrors bytecode.Builder's own
// BeginFunction/EndFunction stack exactly; the compiler only ever has
// one Builder.
type funcCompiler struct {
	parent *funcCompiler
	b      *bytecode.Builder

	locals     []localVar
	scopeDepth int

	upvalues []upvalueBinding

	top    uint8 // next free register
	maxTop uint8 // high-water mark, becomes Proto.MaxStackSize

	loops []loopContext

	childCount int // number of nested function literals compiled so far

	isVararg bool
}

func newFuncCompiler(parent *funcCompiler, b *bytecode.Builder, isVararg bool) *funcCompiler {
	return &funcCompiler{parent: parent, b: b, isVararg: isVararg}
}

// ---- register allocation ----

func (fc *funcCompiler) instrCount() int { return fc.b.InstrCount() }

func (fc *funcCompiler) alloc() uint8 {
	r := fc.top
	fc.top++
	if fc.top > fc.maxTop {
		fc.maxTop = fc.top
	}
	return r
}

// reserve bumps top past n registers without considering them
// temporaries (used for locals, which live until their scope ends).
func (fc *funcCompiler) reserve(n int) uint8 {
	first := fc.top
	for i := 0; i < n; i++ {
		fc.alloc()
	}
	return first
}

// freeTo releases every temporary register at or above mark,
// restoring top. Locals are never released this way; callers must
// only pass a mark at or above the last declared local's register.
func (fc *funcCompiler) freeTo(mark uint8) {
	if mark < fc.top {
		fc.top = mark
	}
}

// ---- locals ----

func (fc *funcCompiler) declareLocal(name string) uint8 {
	reg := fc.alloc()
	fc.locals = append(fc.locals, localVar{name: name, reg: reg, depth: fc.scopeDepth})
	return reg
}

// bindLocal activates name as a local bound to an already-allocated
// register reg. Splitting allocation from activation lets an
// initializer expression (`local a = a`) resolve `a` against the
// enclosing scope before the new local becomes visible, matching
// spec.md §4.4's local-declaration ordering.
func (fc *funcCompiler) bindLocal(name string, reg uint8) {
	fc.locals = append(fc.locals, localVar{name: name, reg: reg, depth: fc.scopeDepth})
}

func (fc *funcCompiler) resolveLocal(name string) (uint8, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return fc.locals[i].reg, true
		}
	}
	return 0, false
}

func (fc *funcCompiler) markCaptured(name string) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			fc.locals[i].captured = true
			return
		}
	}
}

// ---- loop context stack ----

func (fc *funcCompiler) pushLoop() {
	fc.loops = append(fc.loops, loopContext{})
}

func (fc *funcCompiler) popLoop() loopContext {
	lc := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	return lc
}

func (fc *funcCompiler) currentLoop() (*loopContext, bool) {
	if len(fc.loops) == 0 {
		return nil, false
	}
	return &fc.loops[len(fc.loops)-1], true
}

func (fc *funcCompiler) recordBreak(pc int) {
	lc, _ := fc.currentLoop()
	lc.breakJumps = append(lc.breakJumps, pc)
}

func (fc *funcCompiler) recordContinue(pc int) {
	lc, _ := fc.currentLoop()
	lc.continueJumps = append(lc.continueJumps, pc)
}

func (fc *funcCompiler) enterScope() { fc.scopeDepth++ }

// exitScope pops every local declared in the scope being left,
// emitting close_upvalues first if any of them were captured by a
// nested closure (spec.md §4.4: "block end emits close_upvalues if
// any upvalue captured a local in this scope, then releases
// registers").
func (fc *funcCompiler) exitScope() {
	var lowestCaptured uint8 = 255
	hasCaptured := false
	i := len(fc.locals)
	for i > 0 && fc.locals[i-1].depth >= fc.scopeDepth {
		i--
		if fc.locals[i].captured {
			hasCaptured = true
			if fc.locals[i].reg < lowestCaptured {
				lowestCaptured = fc.locals[i].reg
			}
		}
	}
	if hasCaptured {
		fc.b.EmitABC(bytecode.OpCloseUpvalues, lowestCaptured, 0, 0)
	}
	if i < len(fc.locals) {
		fc.freeTo(fc.locals[i].reg)
		fc.locals = fc.locals[:i]
	}
	fc.scopeDepth--
}

// ---- upvalue resolution ----

// resolveUpvalue resolves name to an upvalue index in fc, recursively
// chaining through enclosing functions and registering an upvalue
// binding at every level along the way (the classic closure-capture
// walk).
func resolveUpvalue(fc *funcCompiler, name string) (int, bool) {
	for i, u := range fc.upvalues {
		if u.name == name {
			return i, true
		}
	}
	if fc.parent == nil {
		return 0, false
	}
	if reg, ok := fc.parent.resolveLocal(name); ok {
		fc.parent.markCaptured(name)
		fc.upvalues = append(fc.upvalues, upvalueBinding{name: name, kind: captureLocal, source: reg})
		fc.b.PushDebugUpvalue(name)
		return len(fc.upvalues) - 1, true
	}
	if parentIdx, ok := resolveUpvalue(fc.parent, name); ok {
		fc.upvalues = append(fc.upvalues, upvalueBinding{name: name, kind: captureUpvalue, source: uint8(parentIdx)})
		fc.b.PushDebugUpvalue(name)
		return len(fc.upvalues) - 1, true
	}
	return 0, false
}

// ---- compiler entry point ----

// Compiler drives one compile unit (one source file/module).
type Compiler struct {
	b     *bytecode.Builder
	diags []diag.Diagnostic
}

func New() *Compiler { return &Compiler{b: bytecode.NewBuilder()} }

func (c *Compiler) errorf(span diag.Span, format string, args ...interface{}) {
	c.diags = append(c.diags, diag.NewDiagnostic(diag.KindCompile, span, diag.MsgCompileError, fmt.Sprintf(format, args...)))
}

// diagAt records a diagnostic against one of diag's pre-registered
// message IDs, rather than formatting a one-off string.
func (c *Compiler) diagAt(span diag.Span, id diag.MessageID, args ...interface{}) {
	c.diags = append(c.diags, diag.NewDiagnostic(diag.KindCompile, span, id, args...))
}

// Compile lowers block (a parsed top-level chunk) into a Module whose
// Main function takes no parameters and is vararg (the top-level
// chunk receives any CLI/embedder-supplied arguments as `...`).
func (c *Compiler) Compile(block *ast.Block, sourceName string) (*bytecode.Module, []diag.Diagnostic) {
	fc := newFuncCompiler(nil, c.b, true)
	c.b.BeginFunction(0, true)
	c.b.SetDebugFunctionName("main")
	c.b.SetDumpSource(sourceName)

	if fc.isVararg {
		c.b.EmitABC(bytecode.OpPrepareVarargs, 0, 0, 0)
	}
	c.compileBlock(fc, block)
	c.b.EmitABC(bytecode.OpCallReturn, 0, 0, 0)

	main, err := c.b.EndFunction(fc.maxTop, uint8(len(fc.upvalues)))
	if err != nil {
		c.errorf(block.Span(), "%s", err)
		return nil, c.diags
	}
	return c.b.Module(main), c.diags
}

func (c *Compiler) compileBlock(fc *funcCompiler, block *ast.Block) {
	fc.enterScope()
	for _, stmt := range block.Stmts {
		c.compileStmt(fc, stmt)
	}
	fc.exitScope()
}
