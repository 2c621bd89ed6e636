package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clarete/vine/diag"
)

// ---- literals ----

type NullLit struct{ base }

func NewNullLit(sp diag.Span) *NullLit { return &NullLit{base{KindNullLit, sp}} }
func (n *NullLit) Children() []Node    { return nil }
func (n *NullLit) String() string      { return "null" }

type BoolLit struct {
	base
	Value bool
}

func NewBoolLit(v bool, sp diag.Span) *BoolLit { return &BoolLit{base{KindBoolLit, sp}, v} }
func (n *BoolLit) Children() []Node             { return nil }
func (n *BoolLit) String() string               { return strconv.FormatBool(n.Value) }

type NumberLit struct {
	base
	Value float64
	Raw   string
}

func NewNumberLit(v float64, raw string, sp diag.Span) *NumberLit {
	return &NumberLit{base{KindNumberLit, sp}, v, raw}
}
func (n *NumberLit) Children() []Node { return nil }
func (n *NumberLit) String() string   { return n.Raw }

type StringLit struct {
	base
	Value string
}

func NewStringLit(v string, sp diag.Span) *StringLit {
	return &StringLit{base{KindStringLit, sp}, v}
}
func (n *StringLit) Children() []Node { return nil }
func (n *StringLit) String() string   { return strconv.Quote(n.Value) }

// ---- identifiers ----

// LocalRef/GlobalRef are distinguished by the compiler's scope
// resolution (spec.md §4.4), not by the parser: the parser always
// produces a plain name reference (LocalRef) and the compiler
// resolves it to a local, an upvalue, or a global (load_global)
// without rewriting the node. GlobalRef has the same shape and is
// compiled straight to load_global.

type LocalRef struct {
	base
	Name string
}

func NewLocalRef(name string, sp diag.Span) *LocalRef {
	return &LocalRef{base{KindLocalRef, sp}, name}
}
func (n *LocalRef) Children() []Node { return nil }
func (n *LocalRef) String() string   { return n.Name }

type GlobalRef struct {
	base
	Name string
}

func NewGlobalRef(name string, sp diag.Span) *GlobalRef {
	return &GlobalRef{base{KindGlobalRef, sp}, name}
}
func (n *GlobalRef) Children() []Node { return nil }
func (n *GlobalRef) String() string   { return n.Name }

type Vararg struct{ base }

func NewVararg(sp diag.Span) *Vararg { return &Vararg{base{KindVararg, sp}} }
func (n *Vararg) Children() []Node   { return nil }
func (n *Vararg) String() string     { return "..." }

// ---- operators ----

type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryLen
	UnaryBNot
)

func (op UnaryOp) String() string {
	return [...]string{"-", "not", "#", "~"}[op]
}

type Unary struct {
	base
	Op   UnaryOp
	Expr Node
}

func NewUnary(op UnaryOp, expr Node, sp diag.Span) *Unary {
	return &Unary{base{KindUnary, sp}, op, expr}
}
func (n *Unary) Children() []Node { return []Node{n.Expr} }
func (n *Unary) String() string   { return fmt.Sprintf("(%s %s)", n.Op, n.Expr) }

type BinaryOp int

const (
	BinOr BinaryOp = iota
	BinAnd
	BinBOr
	BinBXor
	BinBAnd
	BinEq
	BinNotEq
	BinLt
	BinLe
	BinGt
	BinGe
	BinShl
	BinShr
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinConcat
)

var binOpNames = [...]string{
	"or", "and", "|", "~", "&", "==", "!=", "<", "<=", ">", ">=",
	"<<", ">>", "+", "-", "*", "/", "%", "**", "..",
}

func (op BinaryOp) String() string { return binOpNames[op] }

type Binary struct {
	base
	Op          BinaryOp
	Left, Right Node
}

func NewBinary(op BinaryOp, l, r Node, sp diag.Span) *Binary {
	return &Binary{base{KindBinary, sp}, op, l, r}
}
func (n *Binary) Children() []Node { return []Node{n.Left, n.Right} }
func (n *Binary) String() string   { return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right) }

type Group struct {
	base
	Expr Node
}

func NewGroup(expr Node, sp diag.Span) *Group { return &Group{base{KindGroup, sp}, expr} }
func (n *Group) Children() []Node             { return []Node{n.Expr} }
func (n *Group) String() string               { return fmt.Sprintf("(%s)", n.Expr) }

// ---- calls & indexing ----

type Call struct {
	base
	Callee Node
	Args   []Node
	// Method, when non-empty, means this call was written as
	// `Callee:Method(Args...)`; the compiler lowers it to a plain call
	// with Callee passed as the implicit first (self) argument.
	Method string
}

func NewCall(callee Node, method string, args []Node, sp diag.Span) *Call {
	return &Call{base{KindCall, sp}, callee, args, method}
}
func (n *Call) Children() []Node {
	children := append([]Node{n.Callee}, n.Args...)
	return children
}
func (n *Call) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	if n.Method != "" {
		return fmt.Sprintf("%s:%s(%s)", n.Callee, n.Method, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s(%s)", n.Callee, strings.Join(parts, ", "))
}

// BindMethod is `obj:method` written where a call is not immediately
// taken — a first-class reference to a method bound to its receiver,
// supplementing the `:method(args)` call sugar with a value form
// (SPEC_FULL.md §12, grounded on original_source/gal's bound-method
// proxies).
type BindMethod struct {
	base
	Target Node
	Method string
}

func NewBindMethod(target Node, method string, sp diag.Span) *BindMethod {
	return &BindMethod{base{KindBindMethod, sp}, target, method}
}
func (n *BindMethod) Children() []Node { return []Node{n.Target} }
func (n *BindMethod) String() string   { return fmt.Sprintf("%s:%s", n.Target, n.Method) }

type Index struct {
	base
	Target Node
	Key    Node
	// Dotted is true for `a.b` sugar (constant string key written
	// with dot syntax) vs. `a[b]` general indexing.
	Dotted bool
}

func NewIndex(target, key Node, dotted bool, sp diag.Span) *Index {
	return &Index{base{KindIndex, sp}, target, key, dotted}
}
func (n *Index) Children() []Node { return []Node{n.Target, n.Key} }
func (n *Index) String() string {
	if n.Dotted {
		if s, ok := n.Key.(*StringLit); ok {
			return fmt.Sprintf("%s.%s", n.Target, s.Value)
		}
	}
	return fmt.Sprintf("%s[%s]", n.Target, n.Key)
}

// ---- function literal ----

type Param struct {
	Name string
	Type Node // may be nil; reserved for the checker per spec.md §4.2
}

type FunctionLit struct {
	base
	Params   []Param
	IsVararg bool
	Body     *Block
	Name     string // debug name, set when sugared from a declaration
}

func NewFunctionLit(params []Param, vararg bool, body *Block, sp diag.Span) *FunctionLit {
	return &FunctionLit{base{KindFunctionLit, sp}, params, vararg, body, ""}
}
func (n *FunctionLit) Children() []Node { return []Node{n.Body} }
func (n *FunctionLit) String() string {
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("function(%s)", strings.Join(names, ", "))
}

// ---- table constructor ----

type TableField struct {
	// Key is nil for array-style (positional) entries.
	Key   Node
	Value Node
}

type TableCtor struct {
	base
	Fields []TableField
}

func NewTableCtor(fields []TableField, sp diag.Span) *TableCtor {
	return &TableCtor{base{KindTableCtor, sp}, fields}
}
func (n *TableCtor) Children() []Node {
	var out []Node
	for _, f := range n.Fields {
		if f.Key != nil {
			out = append(out, f.Key)
		}
		out = append(out, f.Value)
	}
	return out
}
func (n *TableCtor) String() string { return fmt.Sprintf("{...%d fields}", len(n.Fields)) }

// ---- type assertion & if-expression ----

type TypeAssert struct {
	base
	Expr Node
	Type Node
}

func NewTypeAssert(expr, typ Node, sp diag.Span) *TypeAssert {
	return &TypeAssert{base{KindTypeAssert, sp}, expr, typ}
}
func (n *TypeAssert) Children() []Node { return []Node{n.Expr, n.Type} }
func (n *TypeAssert) String() string   { return fmt.Sprintf("(%s :: %s)", n.Expr, n.Type) }

type IfExpr struct {
	base
	Cond, Then, Else Node
}

func NewIfExpr(cond, then, els Node, sp diag.Span) *IfExpr {
	return &IfExpr{base{KindIfExpr, sp}, cond, then, els}
}
func (n *IfExpr) Children() []Node { return []Node{n.Cond, n.Then, n.Else} }
func (n *IfExpr) String() string {
	return fmt.Sprintf("(if %s then %s else %s)", n.Cond, n.Then, n.Else)
}

// ---- error node ----

// ExprError covers the offending range when the parser can't build a
// valid expression; it records a message index into diag's side
// table rather than a raw string (spec.md §4.2).
type ExprError struct {
	base
	MessageID diag.MessageID
	Args      []interface{}
}

func NewExprError(id diag.MessageID, args []interface{}, sp diag.Span) *ExprError {
	return &ExprError{base{KindExprError, sp}, id, args}
}
func (n *ExprError) Children() []Node { return nil }
func (n *ExprError) String() string   { return "<expr-error>" }
