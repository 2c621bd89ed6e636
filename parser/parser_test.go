package parser

import (
	"testing"

	"github.com/clarete/vine/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Block {
	t.Helper()
	p := New([]byte(src))
	block, diags := p.Parse()
	require.Empty(t, diags, "unexpected diagnostics: %v", diags)
	return block
}

func TestParseLocalDecl(t *testing.T) {
	block := parse(t, `local x = 1`)
	require.Len(t, block.Stmts, 1)
	decl, ok := ast.As[*ast.LocalDecl](block.Stmts[0])
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, decl.Names)
	require.Len(t, decl.Exprs, 1)
	num, ok := ast.As[*ast.NumberLit](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, 1.0, num.Value)
}

func TestParseLocalDeclWithType(t *testing.T) {
	block := parse(t, `local x: number = 1`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	require.Len(t, decl.Types, 1)
	ref, ok := ast.As[*ast.TypeRef](decl.Types[0])
	require.True(t, ok)
	assert.Equal(t, "number", ref.Name)
}

func TestParseIfElifElse(t *testing.T) {
	block := parse(t, `
if x then
  y = 1
elif z then
  y = 2
else
  y = 3
end
`)
	require.Len(t, block.Stmts, 1)
	ifs, ok := ast.As[*ast.IfStmt](block.Stmts[0])
	require.True(t, ok)
	require.Len(t, ifs.Clauses, 2)
	require.NotNil(t, ifs.Else)
}

func TestParseWhileAndBreak(t *testing.T) {
	block := parse(t, `
while x < 10 do
  x = x + 1
  if x == 5 then
    break
  end
end
`)
	ws, ok := ast.As[*ast.WhileStmt](block.Stmts[0])
	require.True(t, ok)
	bin, ok := ast.As[*ast.Binary](ws.Cond)
	require.True(t, ok)
	assert.Equal(t, ast.BinLt, bin.Op)
}

func TestParseNumericForWithBreak(t *testing.T) {
	block := parse(t, `
for i = 1, 10 do
  if i == 5 then
    break
  end
end
`)
	nf, ok := ast.As[*ast.NumericFor](block.Stmts[0])
	require.True(t, ok)
	assert.Equal(t, "i", nf.Var)
	assert.Nil(t, nf.Step)
}

func TestParseNumericForWithStep(t *testing.T) {
	block := parse(t, `for i = 10, 1, -1 do end`)
	nf := block.Stmts[0].(*ast.NumericFor)
	require.NotNil(t, nf.Step)
	un, ok := ast.As[*ast.Unary](nf.Step)
	require.True(t, ok)
	assert.Equal(t, ast.UnaryNeg, un.Op)
}

func TestParseGenericFor(t *testing.T) {
	block := parse(t, `
for k, v in pairs(t) do
end
`)
	gf, ok := ast.As[*ast.GenericFor](block.Stmts[0])
	require.True(t, ok)
	assert.Equal(t, []string{"k", "v"}, gf.Vars)
	require.Len(t, gf.Exprs, 1)
}

func TestParseRepeatUntil(t *testing.T) {
	block := parse(t, `
repeat
  x = x - 1
until x == 0
`)
	rs, ok := ast.As[*ast.RepeatStmt](block.Stmts[0])
	require.True(t, ok)
	bin, ok := ast.As[*ast.Binary](rs.Cond)
	require.True(t, ok)
	assert.Equal(t, ast.BinEq, bin.Op)
}

func TestParseBinaryPrecedence(t *testing.T) {
	// `1 + 2 * 3` should parse as `1 + (2 * 3)`.
	block := parse(t, `local x = 1 + 2 * 3`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	top, ok := ast.As[*ast.Binary](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, ast.BinAdd, top.Op)
	rhs, ok := ast.As[*ast.Binary](top.Right)
	require.True(t, ok)
	assert.Equal(t, ast.BinMul, rhs.Op)
}

func TestParsePowIsRightAssociativeAndTighterThanUnary(t *testing.T) {
	// `-x ** 2` should parse as `-(x ** 2)`.
	block := parse(t, `local y = -x ** 2`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	un, ok := ast.As[*ast.Unary](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, ast.UnaryNeg, un.Op)
	pow, ok := ast.As[*ast.Binary](un.Expr)
	require.True(t, ok)
	assert.Equal(t, ast.BinPow, pow.Op)
}

func TestParsePowRightAssociative(t *testing.T) {
	// `2 ** 3 ** 2` should parse as `2 ** (3 ** 2)`.
	block := parse(t, `local y = 2 ** 3 ** 2`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	top, ok := ast.As[*ast.Binary](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, ast.BinPow, top.Op)
	_, ok = ast.As[*ast.NumberLit](top.Left)
	require.True(t, ok)
	rhs, ok := ast.As[*ast.Binary](top.Right)
	require.True(t, ok)
	assert.Equal(t, ast.BinPow, rhs.Op)
}

func TestParseConcatRightAssociative(t *testing.T) {
	block := parse(t, `local s = a .. b .. c`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	top, ok := ast.As[*ast.Binary](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, ast.BinConcat, top.Op)
	_, ok = ast.As[*ast.LocalRef](top.Left)
	require.True(t, ok)
	rhs, ok := ast.As[*ast.Binary](top.Right)
	require.True(t, ok)
	assert.Equal(t, ast.BinConcat, rhs.Op)
}

func TestParseFunctionDeclSugar(t *testing.T) {
	block := parse(t, `
function obj.method(a, b)
  return a + b
end
`)
	fd, ok := ast.As[*ast.FunctionDecl](block.Stmts[0])
	require.True(t, ok)
	idx, ok := ast.As[*ast.Index](fd.Target)
	require.True(t, ok)
	assert.True(t, idx.Dotted)
	require.Len(t, fd.Fn.Params, 2)
}

func TestParseLocalFunctionDecl(t *testing.T) {
	block := parse(t, `
local function fib(n)
  if n < 2 then
    return n
  end
  return fib(n - 1) + fib(n - 2)
end
`)
	lf, ok := ast.As[*ast.LocalFunctionDecl](block.Stmts[0])
	require.True(t, ok)
	assert.Equal(t, "fib", lf.Name)
}

func TestParseTableCtorMixedFields(t *testing.T) {
	block := parse(t, `local t = { 1, 2, x = 3, [y] = 4 }`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	tc, ok := ast.As[*ast.TableCtor](decl.Exprs[0])
	require.True(t, ok)
	require.Len(t, tc.Fields, 4)
	assert.Nil(t, tc.Fields[0].Key)
	assert.Nil(t, tc.Fields[1].Key)
	skey, ok := ast.As[*ast.StringLit](tc.Fields[2].Key)
	require.True(t, ok)
	assert.Equal(t, "x", skey.Value)
	_, ok = ast.As[*ast.LocalRef](tc.Fields[3].Key)
	require.True(t, ok)
}

func TestParseMethodCallAndChaining(t *testing.T) {
	block := parse(t, `obj:method(1, 2).field[3]()`)
	require.Len(t, block.Stmts, 1)
	es, ok := ast.As[*ast.ExprStmt](block.Stmts[0])
	require.True(t, ok)
	call, ok := ast.As[*ast.Call](es.Expr)
	require.True(t, ok)
	assert.Equal(t, "", call.Method)
	idx, ok := ast.As[*ast.Index](call.Callee)
	require.True(t, ok)
	assert.False(t, idx.Dotted)
}

func TestParseBindMethodWithoutCall(t *testing.T) {
	block := parse(t, `local f = obj:method`)
	decl, ok := ast.As[*ast.LocalDecl](block.Stmts[0])
	require.True(t, ok)
	bm, ok := ast.As[*ast.BindMethod](decl.Exprs[0])
	require.True(t, ok)
	assert.Equal(t, "method", bm.Method)
}

func TestParseIfExpression(t *testing.T) {
	block := parse(t, `local x = if y then 1 else 2`)
	decl := block.Stmts[0].(*ast.LocalDecl)
	ie, ok := ast.As[*ast.IfExpr](decl.Exprs[0])
	require.True(t, ok)
	require.NotNil(t, ie.Else)
}

func TestParseCompoundAssign(t *testing.T) {
	block := parse(t, `x += 1`)
	ca, ok := ast.As[*ast.CompoundAssign](block.Stmts[0])
	require.True(t, ok)
	assert.Equal(t, ast.BinAdd, ca.Op)
}

func TestParseVarargAndReturn(t *testing.T) {
	block := parse(t, `
local function f(...)
  return ...
end
`)
	lf := block.Stmts[0].(*ast.LocalFunctionDecl)
	assert.True(t, lf.Fn.IsVararg)
	ret, ok := ast.As[*ast.ReturnStmt](lf.Fn.Body.Stmts[0])
	require.True(t, ok)
	require.Len(t, ret.Exprs, 1)
	_, ok = ast.As[*ast.Vararg](ret.Exprs[0])
	require.True(t, ok)
}

func TestParseErrorRecoveryContinuesAfterBadToken(t *testing.T) {
	p := New([]byte(`
local x = )
local y = 2
`))
	block, diags := p.Parse()
	require.NotEmpty(t, diags)
	require.Len(t, block.Stmts, 2)
	_, ok := ast.As[*ast.LocalDecl](block.Stmts[1])
	require.True(t, ok)
}
