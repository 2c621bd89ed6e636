package compiler

import (
	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/bytecode"
)

var binOpcode = map[ast.BinaryOp]bytecode.Op{
	ast.BinBOr: bytecode.OpBOr, ast.BinBXor: bytecode.OpBXor, ast.BinBAnd: bytecode.OpBAnd,
	ast.BinEq: bytecode.OpEq, ast.BinLt: bytecode.OpLt, ast.BinLe: bytecode.OpLe,
	ast.BinShl: bytecode.OpShl, ast.BinShr: bytecode.OpShr,
	ast.BinAdd: bytecode.OpAdd, ast.BinSub: bytecode.OpSub, ast.BinMul: bytecode.OpMul,
	ast.BinDiv: bytecode.OpDiv, ast.BinMod: bytecode.OpMod, ast.BinPow: bytecode.OpPow,
	ast.BinConcat: bytecode.OpConcat,
}

var unaryOpcode = map[ast.UnaryOp]bytecode.Op{
	ast.UnaryNeg: bytecode.OpUnm, ast.UnaryNot: bytecode.OpNot,
	ast.UnaryLen: bytecode.OpLen, ast.UnaryBNot: bytecode.OpBNot,
}

// compileExpr emits code that leaves node's value in register dst.
func (c *Compiler) compileExpr(fc *funcCompiler, node ast.Node, dst uint8) {
	switch n := node.(type) {
	case *ast.NullLit:
		c.b.EmitABC(bytecode.OpLoadNull, dst, 0, 0)

	case *ast.BoolLit:
		d := int32(0)
		if n.Value {
			d = 1
		}
		c.b.EmitAD(bytecode.OpLoadBoolean, dst, d)

	case *ast.NumberLit:
		k := c.b.AddConstantNumber(n.Value)
		c.b.EmitAD(bytecode.OpLoadKey, dst, k)

	case *ast.StringLit:
		k := c.b.AddConstantString(n.Value)
		c.b.EmitAD(bytecode.OpLoadKey, dst, k)

	case *ast.Vararg:
		// varargs are materialized as a table by prepare_varargs at
		// function entry; referencing `...` alone in an expression
		// context loads its first value via the conventional vararg
		// base register (register 0 of the reserved vararg area).
		c.b.EmitABC(bytecode.OpMove, dst, 0, 0)

	case *ast.LocalRef:
		c.compileNameRef(fc, n.Name, dst)

	case *ast.GlobalRef:
		k := c.b.AddString(n.Name)
		c.b.EmitAD(bytecode.OpLoadGlobal, dst, 0)
		c.b.EmitAux(uint32(k))

	case *ast.Group:
		c.compileExpr(fc, n.Expr, dst)

	case *ast.Unary:
		mark := fc.top
		src := fc.alloc()
		c.compileExpr(fc, n.Expr, src)
		op, ok := unaryOpcode[n.Op]
		if !ok {
			c.errorf(n.Span(), "unsupported unary operator %s", n.Op)
			op = bytecode.OpNot
		}
		c.b.EmitABC(op, dst, src, 0)
		fc.freeTo(mark)

	case *ast.Binary:
		c.compileBinary(fc, n, dst)

	case *ast.Index:
		mark := fc.top
		tgt := fc.alloc()
		c.compileExpr(fc, n.Target, tgt)
		key := fc.alloc()
		c.compileExpr(fc, n.Key, key)
		c.b.EmitABC(bytecode.OpLoadTable, dst, tgt, key)
		fc.freeTo(mark)

	case *ast.Call:
		c.compileCall(fc, n, dst, 1)

	case *ast.BindMethod:
		c.compileBindMethod(fc, n, dst)

	case *ast.FunctionLit:
		c.compileFunctionLit(fc, n, dst)

	case *ast.TableCtor:
		c.compileTableCtor(fc, n, dst)

	case *ast.TypeAssert:
		// Type annotations are parsed but not enforced by the
		// compiler (reserved for a checker component).
		c.compileExpr(fc, n.Expr, dst)

	case *ast.IfExpr:
		c.compileIfExpr(fc, n, dst)

	case *ast.ExprError:
		c.b.EmitABC(bytecode.OpLoadNull, dst, 0, 0)

	default:
		c.errorf(node.Span(), "compiler: unsupported expression node %s", node.Kind())
		c.b.EmitABC(bytecode.OpLoadNull, dst, 0, 0)
	}
}

func (c *Compiler) compileNameRef(fc *funcCompiler, name string, dst uint8) {
	if reg, ok := fc.resolveLocal(name); ok {
		if reg != dst {
			c.b.EmitABC(bytecode.OpMove, dst, reg, 0)
		}
		return
	}
	if idx, ok := resolveUpvalue(fc, name); ok {
		c.b.EmitABC(bytecode.OpGetUpvalue, dst, uint8(idx), 0)
		return
	}
	k := c.b.AddString(name)
	c.b.EmitAD(bytecode.OpLoadGlobal, dst, 0)
	c.b.EmitAux(uint32(k))
}

func (c *Compiler) compileBinary(fc *funcCompiler, n *ast.Binary, dst uint8) {
	// `and`/`or` short-circuit and are compiled as branches, not as a
	// plain two-operand opcode.
	switch n.Op {
	case ast.BinAnd:
		c.compileExpr(fc, n.Left, dst)
		skip := c.b.EmitAD(bytecode.OpJumpIfNot, dst, 0)
		c.compileExpr(fc, n.Right, dst)
		c.b.PatchJumpD(skip, fc.instrCount())
		return
	case ast.BinOr:
		c.compileExpr(fc, n.Left, dst)
		skip := c.b.EmitAD(bytecode.OpJumpIf, dst, 0)
		c.compileExpr(fc, n.Right, dst)
		c.b.PatchJumpD(skip, fc.instrCount())
		return
	case ast.BinNotEq, ast.BinGt, ast.BinGe:
		// desugar to the canonical form: a != b -> not (a == b);
		// a > b -> b < a; a >= b -> b <= a.
		c.compileDesugaredComparison(fc, n, dst)
		return
	}

	op, ok := binOpcode[n.Op]
	if !ok {
		c.errorf(n.Span(), "unsupported binary operator %s", n.Op)
		c.b.EmitABC(bytecode.OpLoadNull, dst, 0, 0)
		return
	}
	mark := fc.top
	l := fc.alloc()
	c.compileExpr(fc, n.Left, l)
	r := fc.alloc()
	c.compileExpr(fc, n.Right, r)
	c.b.EmitABC(op, dst, l, r)
	fc.freeTo(mark)
}

// compileDesugaredComparison handles !=, >, >= in terms of ==, <, <=.
func (c *Compiler) compileDesugaredComparison(fc *funcCompiler, n *ast.Binary, dst uint8) {
	mark := fc.top
	l := fc.alloc()
	r := fc.alloc()
	switch n.Op {
	case ast.BinNotEq:
		c.compileExpr(fc, n.Left, l)
		c.compileExpr(fc, n.Right, r)
		c.b.EmitABC(bytecode.OpEq, dst, l, r)
		c.b.EmitABC(bytecode.OpNot, dst, dst, 0)
	case ast.BinGt:
		c.compileExpr(fc, n.Right, l)
		c.compileExpr(fc, n.Left, r)
		c.b.EmitABC(bytecode.OpLt, dst, l, r)
	case ast.BinGe:
		c.compileExpr(fc, n.Right, l)
		c.compileExpr(fc, n.Left, r)
		c.b.EmitABC(bytecode.OpLe, dst, l, r)
	}
	fc.freeTo(mark)
}

func (c *Compiler) compileCall(fc *funcCompiler, n *ast.Call, dst uint8, numResults int) {
	mark := fc.top
	base := fc.alloc()
	argc := 0

	if n.Method != "" {
		// `obj:method(args)` desugars to a call with an implicit self
		// argument: R[base] = obj.method, R[base+1] = obj, args follow.
		// self must land immediately after base, so it's reserved before
		// any scratch registers used to evaluate the object/key.
		self := fc.alloc()
		scratchMark := fc.top
		objReg := fc.alloc()
		c.compileExpr(fc, n.Callee, objReg)
		k := c.b.AddConstantString(n.Method)
		keyReg := fc.alloc()
		c.b.EmitAD(bytecode.OpLoadKey, keyReg, k)
		c.b.EmitABC(bytecode.OpLoadTable, base, objReg, keyReg)
		c.b.EmitABC(bytecode.OpMove, self, objReg, 0)
		fc.freeTo(scratchMark)
		argc++
	} else {
		c.compileExpr(fc, n.Callee, base)
	}

	for _, a := range n.Args {
		argReg := fc.alloc()
		c.compileExpr(fc, a, argReg)
		argc++
	}

	c.b.EmitABC(bytecode.OpCall, base, uint8(argc), uint8(numResults))
	if numResults > 0 && base != dst {
		c.b.EmitABC(bytecode.OpMove, dst, base, 0)
	}
	fc.freeTo(mark)
}

// compileBindMethod handles `obj:method` taken as a value rather than
// called — it loads the function out of obj, then emits bind_method to
// package it together with obj as a receiver-bound callable
// (SPEC_FULL.md §12).
func (c *Compiler) compileBindMethod(fc *funcCompiler, n *ast.BindMethod, dst uint8) {
	mark := fc.top
	objReg := fc.alloc()
	c.compileExpr(fc, n.Target, objReg)
	k := c.b.AddConstantString(n.Method)
	keyReg := fc.alloc()
	c.b.EmitAD(bytecode.OpLoadKey, keyReg, k)
	fnReg := fc.alloc()
	c.b.EmitABC(bytecode.OpLoadTable, fnReg, objReg, keyReg)
	c.b.EmitABC(bytecode.OpBindMethod, dst, objReg, fnReg)
	fc.freeTo(mark)
}

func (c *Compiler) compileTableCtor(fc *funcCompiler, n *ast.TableCtor, dst uint8) {
	c.b.EmitABC(bytecode.OpNewTable, dst, 0, 0)
	arrayIndex := 1
	for _, field := range n.Fields {
		mark := fc.top
		if field.Key == nil {
			v := fc.alloc()
			c.compileExpr(fc, field.Value, v)
			idxConst := c.b.AddConstantNumber(float64(arrayIndex))
			keyReg := fc.alloc()
			c.b.EmitAD(bytecode.OpLoadKey, keyReg, idxConst)
			c.b.EmitABC(bytecode.OpSetTable, dst, keyReg, v)
			arrayIndex++
		} else if s, ok := field.Key.(*ast.StringLit); ok {
			v := fc.alloc()
			c.compileExpr(fc, field.Value, v)
			k := c.b.AddConstantString(s.Value)
			keyReg := fc.alloc()
			c.b.EmitAD(bytecode.OpLoadKey, keyReg, k)
			c.b.EmitABC(bytecode.OpSetTable, dst, keyReg, v)
		} else {
			keyReg := fc.alloc()
			c.compileExpr(fc, field.Key, keyReg)
			v := fc.alloc()
			c.compileExpr(fc, field.Value, v)
			c.b.EmitABC(bytecode.OpSetTable, dst, keyReg, v)
		}
		fc.freeTo(mark)
	}
}

// compileFunctionLit compiles a nested function literal into its own
// Proto (via a child funcCompiler nested on the same Builder) and
// emits the new_closure + capture sequence that instantiates it into
// dst in the enclosing function (spec.md §4.4).
func (c *Compiler) compileFunctionLit(fc *funcCompiler, n *ast.FunctionLit, dst uint8) {
	child := newFuncCompiler(fc, c.b, n.IsVararg)
	c.b.BeginFunction(uint8(len(n.Params)), n.IsVararg)
	if n.Name != "" {
		c.b.SetDebugFunctionName(n.Name)
	}
	for _, p := range n.Params {
		reg := child.alloc()
		child.bindLocal(p.Name, reg)
	}
	if n.IsVararg {
		c.b.EmitABC(bytecode.OpPrepareVarargs, 0, 0, 0)
	}
	c.compileBlock(child, n.Body)
	c.b.EmitABC(bytecode.OpCallReturn, 0, 0, 0)

	_, err := c.b.EndFunction(child.maxTop, uint8(len(child.upvalues)))
	if err != nil {
		c.errorf(n.Span(), "%s", err)
		c.b.EmitABC(bytecode.OpLoadNull, dst, 0, 0)
		return
	}

	childID := int32(fc.childCount)
	fc.childCount++
	k := c.b.AddConstantClosure(childID)
	c.b.EmitAD(bytecode.OpNewClosure, dst, k)
	for i, uv := range child.upvalues {
		c.b.EmitABC(bytecode.OpCapture, uint8(i), uint8(uv.kind), uv.source)
	}
}

func (c *Compiler) compileIfExpr(fc *funcCompiler, n *ast.IfExpr, dst uint8) {
	mark := fc.top
	cond := fc.alloc()
	c.compileExpr(fc, n.Cond, cond)
	fc.freeTo(mark)
	jf := c.b.EmitAD(bytecode.OpJumpIfNot, cond, 0)
	c.compileExpr(fc, n.Then, dst)
	jend := c.b.EmitAD(bytecode.OpJump, 0, 0)
	c.b.PatchJumpD(jf, fc.instrCount())
	c.compileExpr(fc, n.Else, dst)
	c.b.PatchJumpD(jend, fc.instrCount())
}
