package compiler

import (
	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/diag"
)

func (c *Compiler) compileStmt(fc *funcCompiler, node ast.Node) {
	switch n := node.(type) {
	case *ast.LocalDecl:
		c.compileLocalDecl(fc, n)
	case *ast.AssignStmt:
		c.compileAssignStmt(fc, n)
	case *ast.CompoundAssign:
		c.compileCompoundAssign(fc, n)
	case *ast.IfStmt:
		c.compileIfStmt(fc, n)
	case *ast.WhileStmt:
		c.compileWhileStmt(fc, n)
	case *ast.RepeatStmt:
		c.compileRepeatStmt(fc, n)
	case *ast.NumericFor:
		c.compileNumericFor(fc, n)
	case *ast.GenericFor:
		c.compileGenericFor(fc, n)
	case *ast.BreakStmt:
		if _, ok := fc.currentLoop(); !ok {
			c.diagAt(n.Span(), diag.MsgBreakOutsideLoop)
			return
		}
		pc := c.b.EmitAD(bytecode.OpJump, 0, 0)
		fc.recordBreak(pc)
	case *ast.ContinueStmt:
		if _, ok := fc.currentLoop(); !ok {
			c.diagAt(n.Span(), diag.MsgContinueOutsideLoop)
			return
		}
		pc := c.b.EmitAD(bytecode.OpJump, 0, 0)
		fc.recordContinue(pc)
	case *ast.ReturnStmt:
		c.compileReturnStmt(fc, n)
	case *ast.ExprStmt:
		mark := fc.top
		r := fc.alloc()
		c.compileExpr(fc, n.Expr, r)
		fc.freeTo(mark)
	case *ast.FunctionDecl:
		c.compileFunctionDecl(fc, n)
	case *ast.LocalFunctionDecl:
		reg := fc.declareLocal(n.Name)
		c.compileFunctionLit(fc, n.Fn, reg)
	case *ast.TypeAlias, *ast.DeclareGlobal, *ast.DeclareFunction, *ast.DeclareClass:
		// Ambient declarations reserved for the type checker; no
		// runtime code is emitted for them.
	case *ast.StmtError:
		// The parser already recorded a diagnostic for this node.
	default:
		c.errorf(node.Span(), "compiler: unsupported statement node %s", node.Kind())
	}
}

// compileLocalDecl evaluates each initializer before any of the new
// names become visible, so `local x = x` resolves the right-hand `x`
// against the enclosing scope (spec.md §4.4).
func (c *Compiler) compileLocalDecl(fc *funcCompiler, n *ast.LocalDecl) {
	for _, name := range n.Names {
		for _, l := range fc.locals {
			if l.depth == fc.scopeDepth && l.name == name {
				c.diagAt(n.Span(), diag.MsgDuplicateLocal, name)
				break
			}
		}
	}
	regs := make([]uint8, len(n.Names))
	for i := range n.Names {
		regs[i] = fc.alloc()
		if i < len(n.Exprs) {
			c.compileExpr(fc, n.Exprs[i], regs[i])
		} else {
			c.b.EmitABC(bytecode.OpLoadNull, regs[i], 0, 0)
		}
	}
	// Extra trailing initializers (more exprs than names) are still
	// evaluated for their side effects, into scratch registers freed
	// immediately after.
	if len(n.Exprs) > len(n.Names) {
		mark := fc.top
		for _, e := range n.Exprs[len(n.Names):] {
			r := fc.alloc()
			c.compileExpr(fc, e, r)
		}
		fc.freeTo(mark)
	}
	for i, name := range n.Names {
		fc.bindLocal(name, regs[i])
	}
}

// compileAssignStmt evaluates every right-hand expression before any
// assignment happens, so `a, b = b, a` swaps correctly.
func (c *Compiler) compileAssignStmt(fc *funcCompiler, n *ast.AssignStmt) {
	mark := fc.top
	vals := make([]uint8, len(n.Targets))
	for i := range n.Targets {
		vals[i] = fc.alloc()
		if i < len(n.Exprs) {
			c.compileExpr(fc, n.Exprs[i], vals[i])
		} else {
			c.b.EmitABC(bytecode.OpLoadNull, vals[i], 0, 0)
		}
	}
	for i, t := range n.Targets {
		c.compileAssignTarget(fc, t, vals[i])
	}
	fc.freeTo(mark)
}

func (c *Compiler) compileAssignTarget(fc *funcCompiler, target ast.Node, src uint8) {
	switch t := target.(type) {
	case *ast.LocalRef:
		if reg, ok := fc.resolveLocal(t.Name); ok {
			if reg != src {
				c.b.EmitABC(bytecode.OpMove, reg, src, 0)
			}
			return
		}
		if idx, ok := resolveUpvalue(fc, t.Name); ok {
			c.b.EmitABC(bytecode.OpSetUpvalue, src, uint8(idx), 0)
			return
		}
		k := c.b.AddString(t.Name)
		c.b.EmitAD(bytecode.OpSetGlobal, src, 0)
		c.b.EmitAux(uint32(k))
	case *ast.GlobalRef:
		k := c.b.AddString(t.Name)
		c.b.EmitAD(bytecode.OpSetGlobal, src, 0)
		c.b.EmitAux(uint32(k))
	case *ast.Index:
		mark := fc.top
		tgt := fc.alloc()
		c.compileExpr(fc, t.Target, tgt)
		key := fc.alloc()
		c.compileExpr(fc, t.Key, key)
		c.b.EmitABC(bytecode.OpSetTable, tgt, key, src)
		fc.freeTo(mark)
	default:
		c.errorf(target.Span(), "invalid assignment target")
	}
}

func (c *Compiler) compileCompoundAssign(fc *funcCompiler, n *ast.CompoundAssign) {
	mark := fc.top
	cur := fc.alloc()
	c.compileExpr(fc, n.Target, cur)
	rhs := fc.alloc()
	c.compileExpr(fc, n.Expr, rhs)
	op, ok := binOpcode[n.Op]
	if !ok {
		c.errorf(n.Span(), "unsupported compound-assignment operator %s", n.Op)
		op = bytecode.OpAdd
	}
	c.b.EmitABC(op, cur, cur, rhs)
	c.compileAssignTarget(fc, n.Target, cur)
	fc.freeTo(mark)
}

func (c *Compiler) compileReturnStmt(fc *funcCompiler, n *ast.ReturnStmt) {
	mark := fc.top
	base := mark
	for _, e := range n.Exprs {
		r := fc.alloc()
		c.compileExpr(fc, e, r)
	}
	c.b.EmitABC(bytecode.OpCallReturn, base, uint8(len(n.Exprs)), 0)
	fc.freeTo(mark)
}

func (c *Compiler) compileIfStmt(fc *funcCompiler, n *ast.IfStmt) {
	var endJumps []int
	for _, clause := range n.Clauses {
		mark := fc.top
		cond := fc.alloc()
		c.compileExpr(fc, clause.Cond, cond)
		fc.freeTo(mark)
		jf := c.b.EmitAD(bytecode.OpJumpIfNot, cond, 0)
		c.compileBlock(fc, clause.Body)
		endJumps = append(endJumps, c.b.EmitAD(bytecode.OpJump, 0, 0))
		c.b.PatchJumpD(jf, fc.instrCount())
	}
	if n.Else != nil {
		c.compileBlock(fc, n.Else)
	}
	end := fc.instrCount()
	for _, j := range endJumps {
		c.b.PatchJumpD(j, end)
	}
}

func (c *Compiler) compileWhileStmt(fc *funcCompiler, n *ast.WhileStmt) {
	head := fc.instrCount()
	mark := fc.top
	cond := fc.alloc()
	c.compileExpr(fc, n.Cond, cond)
	fc.freeTo(mark)
	exitJump := c.b.EmitAD(bytecode.OpJumpIfNot, cond, 0)

	fc.pushLoop()
	c.compileBlock(fc, n.Body)
	lc := fc.popLoop()

	back := c.b.EmitAD(bytecode.OpJumpBack, 0, 0)
	c.b.PatchJumpD(back, head)

	end := fc.instrCount()
	c.b.PatchJumpD(exitJump, end)
	for _, j := range lc.breakJumps {
		c.b.PatchJumpD(j, end)
	}
	for _, j := range lc.continueJumps {
		c.b.PatchJumpD(j, head)
	}
}

func (c *Compiler) compileRepeatStmt(fc *funcCompiler, n *ast.RepeatStmt) {
	head := fc.instrCount()
	fc.enterScope()
	fc.pushLoop()
	for _, s := range n.Body.Stmts {
		c.compileStmt(fc, s)
	}
	condPC := fc.instrCount()
	lc := fc.popLoop()

	mark := fc.top
	cond := fc.alloc()
	c.compileExpr(fc, n.Cond, cond)
	fc.freeTo(mark)
	fc.exitScope()

	back := c.b.EmitAD(bytecode.OpJumpIfNot, cond, 0)
	c.b.PatchJumpD(back, head)

	end := fc.instrCount()
	for _, j := range lc.breakJumps {
		c.b.PatchJumpD(j, end)
	}
	for _, j := range lc.continueJumps {
		c.b.PatchJumpD(j, condPC)
	}
}

// compileNumericFor uses the classic FORPREP/FORLOOP idiom: prepare
// jumps forward to the per-iteration test, which jumps back into the
// body for as long as the loop continues (spec.md §4.4).
func (c *Compiler) compileNumericFor(fc *funcCompiler, n *ast.NumericFor) {
	mark := fc.top
	base := fc.alloc() // start
	fc.alloc()         // stop
	fc.alloc()         // step

	c.compileExpr(fc, n.Start, base)
	c.compileExpr(fc, n.Stop, base+1)
	if n.Step != nil {
		c.compileExpr(fc, n.Step, base+2)
	} else {
		k := c.b.AddConstantNumber(1)
		c.b.EmitAD(bytecode.OpLoadKey, base+2, k)
	}

	prep := c.b.EmitAD(bytecode.OpForNumericLoopPrepare, base, 0)
	bodyStart := fc.instrCount()

	fc.enterScope()
	loopVar := fc.alloc()
	fc.bindLocal(n.Var, loopVar)
	fc.pushLoop()
	for _, s := range n.Body.Stmts {
		c.compileStmt(fc, s)
	}
	lc := fc.popLoop()
	fc.exitScope()

	testPC := fc.instrCount()
	loopJump := c.b.EmitAD(bytecode.OpForNumericLoop, base, 0)
	c.b.PatchJumpD(loopJump, bodyStart)
	c.b.PatchJumpD(prep, testPC)

	end := fc.instrCount()
	for _, j := range lc.breakJumps {
		c.b.PatchJumpD(j, end)
	}
	for _, j := range lc.continueJumps {
		c.b.PatchJumpD(j, testPC)
	}
	fc.freeTo(mark)
}

// compileGenericFor lowers `for v1, ..., vn in explist: body` to a
// plain call-and-test loop: call(iterator, state, control), stop when
// the first result is falsy, otherwise bind the results and repeat
// (a deliberate simplification of Lua's nil-only stop condition, since
// the iterator/"to-be-closed" protocol isn't implemented by a runtime
// here yet).
func (c *Compiler) compileGenericFor(fc *funcCompiler, n *ast.GenericFor) {
	mark := fc.top
	iterReg := fc.alloc()
	stateReg := fc.alloc()
	ctrlReg := fc.alloc()
	ctrlSlots := []uint8{iterReg, stateReg, ctrlReg}
	for i, reg := range ctrlSlots {
		if i < len(n.Exprs) {
			c.compileExpr(fc, n.Exprs[i], reg)
		} else {
			c.b.EmitABC(bytecode.OpLoadNull, reg, 0, 0)
		}
	}

	head := fc.instrCount()
	callBase := fc.alloc()
	argState := fc.alloc()
	argCtrl := fc.alloc()
	if extra := len(n.Vars) - 3; extra > 0 {
		fc.reserve(extra)
	}
	c.b.EmitABC(bytecode.OpMove, callBase, iterReg, 0)
	c.b.EmitABC(bytecode.OpMove, argState, stateReg, 0)
	c.b.EmitABC(bytecode.OpMove, argCtrl, ctrlReg, 0)
	c.b.EmitABC(bytecode.OpCall, callBase, 2, uint8(len(n.Vars)))
	c.b.EmitABC(bytecode.OpMove, ctrlReg, callBase, 0)
	exitJump := c.b.EmitAD(bytecode.OpJumpIfNot, ctrlReg, 0)

	fc.enterScope()
	for i, name := range n.Vars {
		reg := fc.alloc()
		if i == 0 {
			c.b.EmitABC(bytecode.OpMove, reg, ctrlReg, 0)
		} else {
			c.b.EmitABC(bytecode.OpMove, reg, callBase+uint8(i), 0)
		}
		fc.bindLocal(name, reg)
	}
	fc.pushLoop()
	for _, s := range n.Body.Stmts {
		c.compileStmt(fc, s)
	}
	lc := fc.popLoop()
	fc.exitScope()

	back := c.b.EmitAD(bytecode.OpJumpBack, 0, 0)
	c.b.PatchJumpD(back, head)

	end := fc.instrCount()
	c.b.PatchJumpD(exitJump, end)
	for _, j := range lc.breakJumps {
		c.b.PatchJumpD(j, end)
	}
	for _, j := range lc.continueJumps {
		c.b.PatchJumpD(j, head)
	}
	fc.freeTo(mark)
}

func (c *Compiler) compileFunctionDecl(fc *funcCompiler, n *ast.FunctionDecl) {
	fn := n.Fn
	target := n.Target
	if n.Method != "" {
		params := append([]ast.Param{{Name: "self"}}, fn.Params...)
		fn = ast.NewFunctionLit(params, fn.IsVararg, fn.Body, fn.Span())
		target = ast.NewIndex(n.Target, ast.NewStringLit(n.Method, n.Span()), true, n.Span())
	}
	mark := fc.top
	r := fc.alloc()
	c.compileFunctionLit(fc, fn, r)
	c.compileAssignTarget(fc, target, r)
	fc.freeTo(mark)
}
