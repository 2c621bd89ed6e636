// Package ast defines Vine's node hierarchy: a polymorphic,
// arena-owned tree with a compile-time Kind tag per spec.md §3 and the
// REDESIGN FLAG in spec.md §9 (a tagged enum over concrete node
// variants rather than a counter-bumped RTTI trick).
//
// The AST is arena-owned: nodes reference each other by raw
// (non-owning) pointers and the parser never mutates structure once a
// node is built. There is no separate arena type: every node stays
// reachable through the tree rooted at the parsed Block, so walkers
// can hold raw pointers safely.
package ast

import "github.com/clarete/vine/diag"

// Kind tags every concrete node variant. It replaces the source
// language's counter-bumped template trick with a plain enum, per
// spec.md §9's REDESIGN FLAG.
type Kind int

const (
	// expressions
	KindNullLit Kind = iota
	KindBoolLit
	KindNumberLit
	KindStringLit
	KindLocalRef
	KindGlobalRef
	KindVararg
	KindUnary
	KindBinary
	KindGroup
	KindCall
	KindIndex
	KindBindMethod
	KindFunctionLit
	KindTableCtor
	KindTypeAssert
	KindIfExpr
	KindExprError

	// statements
	KindBlock
	KindIfStmt
	KindWhileStmt
	KindRepeatStmt
	KindNumericFor
	KindGenericFor
	KindBreakStmt
	KindContinueStmt
	KindReturnStmt
	KindExprStmt
	KindLocalDecl
	KindAssignStmt
	KindCompoundAssign
	KindFunctionDecl
	KindLocalFunctionDecl
	KindTypeAlias
	KindDeclareGlobal
	KindDeclareFunction
	KindDeclareClass
	KindStmtError

	// type expressions
	KindTypeRef
	KindTypeTable
	KindTypeFunction
	KindTypeOf
	KindTypeUnion
	KindTypeIntersection
	KindTypeSingletonBool
	KindTypeSingletonString
	KindTypePackExplicit
	KindTypePackVariadic
	KindTypePackGeneric
	KindTypeError
)

var kindNames = [...]string{
	KindNullLit: "NullLit", KindBoolLit: "BoolLit", KindNumberLit: "NumberLit",
	KindStringLit: "StringLit", KindLocalRef: "LocalRef", KindGlobalRef: "GlobalRef",
	KindVararg: "Vararg", KindUnary: "Unary", KindBinary: "Binary", KindGroup: "Group",
	KindCall: "Call", KindIndex: "Index", KindBindMethod: "BindMethod",
	KindFunctionLit: "FunctionLit",
	KindTableCtor: "TableCtor", KindTypeAssert: "TypeAssert", KindIfExpr: "IfExpr",
	KindExprError: "ExprError",
	KindBlock:     "Block", KindIfStmt: "IfStmt", KindWhileStmt: "WhileStmt",
	KindRepeatStmt: "RepeatStmt", KindNumericFor: "NumericFor", KindGenericFor: "GenericFor",
	KindBreakStmt: "BreakStmt", KindContinueStmt: "ContinueStmt", KindReturnStmt: "ReturnStmt",
	KindExprStmt: "ExprStmt", KindLocalDecl: "LocalDecl", KindAssignStmt: "AssignStmt",
	KindCompoundAssign: "CompoundAssign", KindFunctionDecl: "FunctionDecl",
	KindLocalFunctionDecl: "LocalFunctionDecl", KindTypeAlias: "TypeAlias",
	KindDeclareGlobal: "DeclareGlobal", KindDeclareFunction: "DeclareFunction",
	KindDeclareClass: "DeclareClass", KindStmtError: "StmtError",
	KindTypeRef: "TypeRef", KindTypeTable: "TypeTable", KindTypeFunction: "TypeFunction",
	KindTypeOf: "TypeOf", KindTypeUnion: "TypeUnion", KindTypeIntersection: "TypeIntersection",
	KindTypeSingletonBool: "TypeSingletonBool", KindTypeSingletonString: "TypeSingletonString",
	KindTypePackExplicit: "TypePackExplicit", KindTypePackVariadic: "TypePackVariadic",
	KindTypePackGeneric: "TypePackGeneric", KindTypeError: "TypeError",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Unknown"
}

// Node is implemented by every concrete AST variant. Range/span
// carried on every node, per spec.md §3.
type Node interface {
	Kind() Kind
	Span() diag.Span
	Children() []Node
	String() string
}

// base is embedded by every concrete node to carry its span and kind;
// it is never used standalone.
type base struct {
	kind Kind
	span diag.Span
}

func (b base) Kind() Kind      { return b.kind }
func (b base) Span() diag.Span { return b.span }

// VisitFunc is the visitor hook named in spec.md §3: it returns a
// boolean controlling recursion into the node's children, matching
// the teacher's Inspect combinator rather than a virtual
// double-dispatch visitor (spec.md §9 REDESIGN FLAG).
type VisitFunc func(Node) bool

// Walk traverses an AST in depth-first pre-order. It calls f for each
// node; if f returns false, Walk skips that node's children.
func Walk(n Node, f VisitFunc) {
	if n == nil {
		return
	}
	if !f(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, f)
	}
}

// Is reports whether n is of concrete type T (the `is<T>` downcast
// named in spec.md §3, expressed with Go's native type assertion
// rather than a class-index comparison).
func Is[T Node](n Node) bool {
	_, ok := n.(T)
	return ok
}

// As attempts the `as<T>` downcast named in spec.md §3.
func As[T Node](n Node) (T, bool) {
	v, ok := n.(T)
	return v, ok
}
