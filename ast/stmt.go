package ast

import (
	"fmt"
	"strings"

	"github.com/clarete/vine/diag"
)

type Block struct {
	base
	Stmts []Node
}

func NewBlock(stmts []Node, sp diag.Span) *Block { return &Block{base{KindBlock, sp}, stmts} }
func (n *Block) Children() []Node                { return n.Stmts }
func (n *Block) String() string                  { return fmt.Sprintf("block(%d)", len(n.Stmts)) }

// IfClause is one `if`/`elif` arm; structural keyword locations are
// carried for diagnostics per spec.md §4.2.
type IfClause struct {
	Cond     Node
	Body     *Block
	ThenSpan diag.Span
}

type IfStmt struct {
	base
	Clauses []IfClause
	Else    *Block // nil if there is no else arm
	ElseSpan diag.Span
}

func NewIfStmt(clauses []IfClause, els *Block, sp diag.Span) *IfStmt {
	return &IfStmt{base{KindIfStmt, sp}, clauses, els, diag.Span{}}
}
func (n *IfStmt) Children() []Node {
	var out []Node
	for _, c := range n.Clauses {
		out = append(out, c.Cond, c.Body)
	}
	if n.Else != nil {
		out = append(out, n.Else)
	}
	return out
}
func (n *IfStmt) String() string { return fmt.Sprintf("if(%d clauses)", len(n.Clauses)) }

type WhileStmt struct {
	base
	Cond   Node
	Body   *Block
	DoSpan diag.Span
}

func NewWhileStmt(cond Node, body *Block, sp diag.Span) *WhileStmt {
	return &WhileStmt{base{KindWhileStmt, sp}, cond, body, diag.Span{}}
}
func (n *WhileStmt) Children() []Node { return []Node{n.Cond, n.Body} }
func (n *WhileStmt) String() string   { return "while" }

type RepeatStmt struct {
	base
	Body      *Block
	Cond      Node
	UntilSpan diag.Span
}

func NewRepeatStmt(body *Block, cond Node, sp diag.Span) *RepeatStmt {
	return &RepeatStmt{base{KindRepeatStmt, sp}, body, cond, diag.Span{}}
}
func (n *RepeatStmt) Children() []Node { return []Node{n.Body, n.Cond} }
func (n *RepeatStmt) String() string   { return "repeat" }

// NumericFor: `for i = a, b [, c]: body`.
type NumericFor struct {
	base
	Var              string
	Start, Stop, Step Node // Step may be nil
	Body             *Block
	InSpan           diag.Span
}

func NewNumericFor(varName string, start, stop, step Node, body *Block, sp diag.Span) *NumericFor {
	return &NumericFor{base{KindNumericFor, sp}, varName, start, stop, step, body, diag.Span{}}
}
func (n *NumericFor) Children() []Node {
	out := []Node{n.Start, n.Stop}
	if n.Step != nil {
		out = append(out, n.Step)
	}
	return append(out, n.Body)
}
func (n *NumericFor) String() string { return fmt.Sprintf("for %s", n.Var) }

// GenericFor: `for v1, v2, ... in iter: body`.
type GenericFor struct {
	base
	Vars   []string
	Exprs  []Node
	Body   *Block
	InSpan diag.Span
}

func NewGenericFor(vars []string, exprs []Node, body *Block, sp diag.Span) *GenericFor {
	return &GenericFor{base{KindGenericFor, sp}, vars, exprs, body, diag.Span{}}
}
func (n *GenericFor) Children() []Node {
	out := append([]Node{}, n.Exprs...)
	return append(out, n.Body)
}
func (n *GenericFor) String() string { return fmt.Sprintf("for %s in", strings.Join(n.Vars, ", ")) }

type BreakStmt struct{ base }

func NewBreakStmt(sp diag.Span) *BreakStmt { return &BreakStmt{base{KindBreakStmt, sp}} }
func (n *BreakStmt) Children() []Node      { return nil }
func (n *BreakStmt) String() string        { return "break" }

type ContinueStmt struct{ base }

func NewContinueStmt(sp diag.Span) *ContinueStmt { return &ContinueStmt{base{KindContinueStmt, sp}} }
func (n *ContinueStmt) Children() []Node         { return nil }
func (n *ContinueStmt) String() string           { return "continue" }

type ReturnStmt struct {
	base
	Exprs []Node
}

func NewReturnStmt(exprs []Node, sp diag.Span) *ReturnStmt {
	return &ReturnStmt{base{KindReturnStmt, sp}, exprs}
}
func (n *ReturnStmt) Children() []Node { return n.Exprs }
func (n *ReturnStmt) String() string   { return "return" }

type ExprStmt struct {
	base
	Expr Node
}

func NewExprStmt(expr Node, sp diag.Span) *ExprStmt { return &ExprStmt{base{KindExprStmt, sp}, expr} }
func (n *ExprStmt) Children() []Node                { return []Node{n.Expr} }
func (n *ExprStmt) String() string                  { return n.Expr.String() }

// LocalDecl: `local name [: type] = expr` introduces a local slot and
// computes its initial value directly into that slot (spec.md §4.2).
type LocalDecl struct {
	base
	Names []string
	Types []Node // parallel to Names; may contain nils
	Exprs []Node
}

func NewLocalDecl(names []string, types, exprs []Node, sp diag.Span) *LocalDecl {
	return &LocalDecl{base{KindLocalDecl, sp}, names, types, exprs}
}
func (n *LocalDecl) Children() []Node { return n.Exprs }
func (n *LocalDecl) String() string   { return fmt.Sprintf("local %s", strings.Join(n.Names, ", ")) }

type AssignStmt struct {
	base
	Targets []Node
	Exprs   []Node
}

func NewAssignStmt(targets, exprs []Node, sp diag.Span) *AssignStmt {
	return &AssignStmt{base{KindAssignStmt, sp}, targets, exprs}
}
func (n *AssignStmt) Children() []Node {
	return append(append([]Node{}, n.Targets...), n.Exprs...)
}
func (n *AssignStmt) String() string { return "assign" }

type CompoundAssign struct {
	base
	Target Node
	Op     BinaryOp
	Expr   Node
}

func NewCompoundAssign(target Node, op BinaryOp, expr Node, sp diag.Span) *CompoundAssign {
	return &CompoundAssign{base{KindCompoundAssign, sp}, target, op, expr}
}
func (n *CompoundAssign) Children() []Node { return []Node{n.Target, n.Expr} }
func (n *CompoundAssign) String() string   { return fmt.Sprintf("%s %s=", n.Target, n.Op) }

// FunctionDecl sugars `function a.b.c(args): body` to assignment
// through a dotted l-value (spec.md §4.2); Target carries that
// l-value (a LocalRef/GlobalRef or Index chain), Method is set when
// declared with `:` method sugar (an implicit `self` parameter).
type FunctionDecl struct {
	base
	Target Node
	Method string
	Fn     *FunctionLit
}

func NewFunctionDecl(target Node, method string, fn *FunctionLit, sp diag.Span) *FunctionDecl {
	return &FunctionDecl{base{KindFunctionDecl, sp}, target, method, fn}
}
func (n *FunctionDecl) Children() []Node { return []Node{n.Target, n.Fn} }
func (n *FunctionDecl) String() string   { return "function decl" }

// LocalFunctionDecl sugars `local function name(args): body` to
// `local name = function(args): body` with forward-visibility for
// recursion (spec.md §4.2): the local slot is introduced before the
// function body is compiled.
type LocalFunctionDecl struct {
	base
	Name string
	Fn   *FunctionLit
}

func NewLocalFunctionDecl(name string, fn *FunctionLit, sp diag.Span) *LocalFunctionDecl {
	return &LocalFunctionDecl{base{KindLocalFunctionDecl, sp}, name, fn}
}
func (n *LocalFunctionDecl) Children() []Node { return []Node{n.Fn} }
func (n *LocalFunctionDecl) String() string   { return fmt.Sprintf("local function %s", n.Name) }

// TypeAlias: `type Name = TypeExpr` (parsed, not enforced — spec.md §4.2).
type TypeAlias struct {
	base
	Name string
	Type Node
}

func NewTypeAlias(name string, typ Node, sp diag.Span) *TypeAlias {
	return &TypeAlias{base{KindTypeAlias, sp}, name, typ}
}
func (n *TypeAlias) Children() []Node { return []Node{n.Type} }
func (n *TypeAlias) String() string   { return fmt.Sprintf("type %s", n.Name) }

// DeclareGlobal/DeclareFunction/DeclareClass are ambient declarations
// (no runtime code emitted) reserved for the type checker named in
// spec.md §4.2 and carried through unenforced, same as type
// annotations generally.
type DeclareGlobal struct {
	base
	Name string
	Type Node
}

func NewDeclareGlobal(name string, typ Node, sp diag.Span) *DeclareGlobal {
	return &DeclareGlobal{base{KindDeclareGlobal, sp}, name, typ}
}
func (n *DeclareGlobal) Children() []Node { return []Node{n.Type} }
func (n *DeclareGlobal) String() string   { return fmt.Sprintf("declare %s", n.Name) }

type DeclareFunction struct {
	base
	Name   string
	Params []Param
	Ret    Node
}

func NewDeclareFunction(name string, params []Param, ret Node, sp diag.Span) *DeclareFunction {
	return &DeclareFunction{base{KindDeclareFunction, sp}, name, params, ret}
}
func (n *DeclareFunction) Children() []Node {
	if n.Ret != nil {
		return []Node{n.Ret}
	}
	return nil
}
func (n *DeclareFunction) String() string { return fmt.Sprintf("declare function %s", n.Name) }

type DeclareClass struct {
	base
	Name    string
	Parent  string
	Members []TypeAlias
}

func NewDeclareClass(name, parent string, members []TypeAlias, sp diag.Span) *DeclareClass {
	return &DeclareClass{base{KindDeclareClass, sp}, name, parent, members}
}
func (n *DeclareClass) Children() []Node { return nil }
func (n *DeclareClass) String() string   { return fmt.Sprintf("declare class %s", n.Name) }

// StmtError mirrors ExprError for the statement grammar.
type StmtError struct {
	base
	MessageID diag.MessageID
	Args      []interface{}
}

func NewStmtError(id diag.MessageID, args []interface{}, sp diag.Span) *StmtError {
	return &StmtError{base{KindStmtError, sp}, id, args}
}
func (n *StmtError) Children() []Node { return nil }
func (n *StmtError) String() string   { return "<stmt-error>" }
