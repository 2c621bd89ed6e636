package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clarete/vine/diag"
)

// Type expressions are parsed for diagnostics and tooling but never
// enforced by the compiler (spec.md §4.2, §4.4: "reserved for a
// checker component").

type TypeRef struct {
	base
	Name string
	Args []Node // generic instantiation args, may be empty
}

func NewTypeRef(name string, args []Node, sp diag.Span) *TypeRef {
	return &TypeRef{base{KindTypeRef, sp}, name, args}
}
func (n *TypeRef) Children() []Node { return n.Args }
func (n *TypeRef) String() string   { return n.Name }

type TypeTableField struct {
	Key  string // empty for indexer/array entries
	Type Node
}

type TypeTable struct {
	base
	Fields []TypeTableField
}

func NewTypeTable(fields []TypeTableField, sp diag.Span) *TypeTable {
	return &TypeTable{base{KindTypeTable, sp}, fields}
}
func (n *TypeTable) Children() []Node {
	out := make([]Node, len(n.Fields))
	for i, f := range n.Fields {
		out[i] = f.Type
	}
	return out
}
func (n *TypeTable) String() string { return fmt.Sprintf("{...%d}", len(n.Fields)) }

type TypeFunction struct {
	base
	Params []Node
	Ret    Node
}

func NewTypeFunction(params []Node, ret Node, sp diag.Span) *TypeFunction {
	return &TypeFunction{base{KindTypeFunction, sp}, params, ret}
}
func (n *TypeFunction) Children() []Node {
	out := append([]Node{}, n.Params...)
	if n.Ret != nil {
		out = append(out, n.Ret)
	}
	return out
}
func (n *TypeFunction) String() string { return "(...)->(...)" }

type TypeOf struct {
	base
	Expr Node
}

func NewTypeOf(expr Node, sp diag.Span) *TypeOf { return &TypeOf{base{KindTypeOf, sp}, expr} }
func (n *TypeOf) Children() []Node              { return []Node{n.Expr} }
func (n *TypeOf) String() string                { return fmt.Sprintf("typeof(%s)", n.Expr) }

type TypeUnion struct {
	base
	Options []Node
}

func NewTypeUnion(options []Node, sp diag.Span) *TypeUnion {
	return &TypeUnion{base{KindTypeUnion, sp}, options}
}
func (n *TypeUnion) Children() []Node { return n.Options }
func (n *TypeUnion) String() string {
	parts := make([]string, len(n.Options))
	for i, o := range n.Options {
		parts[i] = o.String()
	}
	return strings.Join(parts, " | ")
}

type TypeIntersection struct {
	base
	Options []Node
}

func NewTypeIntersection(options []Node, sp diag.Span) *TypeIntersection {
	return &TypeIntersection{base{KindTypeIntersection, sp}, options}
}
func (n *TypeIntersection) Children() []Node { return n.Options }
func (n *TypeIntersection) String() string {
	parts := make([]string, len(n.Options))
	for i, o := range n.Options {
		parts[i] = o.String()
	}
	return strings.Join(parts, " & ")
}

type TypeSingletonBool struct {
	base
	Value bool
}

func NewTypeSingletonBool(v bool, sp diag.Span) *TypeSingletonBool {
	return &TypeSingletonBool{base{KindTypeSingletonBool, sp}, v}
}
func (n *TypeSingletonBool) Children() []Node { return nil }
func (n *TypeSingletonBool) String() string   { return strconv.FormatBool(n.Value) }

type TypeSingletonString struct {
	base
	Value string
}

func NewTypeSingletonString(v string, sp diag.Span) *TypeSingletonString {
	return &TypeSingletonString{base{KindTypeSingletonString, sp}, v}
}
func (n *TypeSingletonString) Children() []Node { return nil }
func (n *TypeSingletonString) String() string   { return strconv.Quote(n.Value) }

// TypePackExplicit: `(T1, T2, T3)` an explicit fixed pack.
type TypePackExplicit struct {
	base
	Types []Node
}

func NewTypePackExplicit(types []Node, sp diag.Span) *TypePackExplicit {
	return &TypePackExplicit{base{KindTypePackExplicit, sp}, types}
}
func (n *TypePackExplicit) Children() []Node { return n.Types }
func (n *TypePackExplicit) String() string   { return "(...)" }

// TypePackVariadic: `...T` a variadic pack of a single type.
type TypePackVariadic struct {
	base
	Type Node
}

func NewTypePackVariadic(typ Node, sp diag.Span) *TypePackVariadic {
	return &TypePackVariadic{base{KindTypePackVariadic, sp}, typ}
}
func (n *TypePackVariadic) Children() []Node { return []Node{n.Type} }
func (n *TypePackVariadic) String() string   { return fmt.Sprintf("...%s", n.Type) }

// TypePackGeneric: a named generic pack parameter, e.g. `A...`.
type TypePackGeneric struct {
	base
	Name string
}

func NewTypePackGeneric(name string, sp diag.Span) *TypePackGeneric {
	return &TypePackGeneric{base{KindTypePackGeneric, sp}, name}
}
func (n *TypePackGeneric) Children() []Node { return nil }
func (n *TypePackGeneric) String() string   { return n.Name + "..." }

type TypeError struct {
	base
	MessageID diag.MessageID
	Args      []interface{}
}

func NewTypeError(id diag.MessageID, args []interface{}, sp diag.Span) *TypeError {
	return &TypeError{base{KindTypeError, sp}, id, args}
}
func (n *TypeError) Children() []Node { return nil }
func (n *TypeError) String() string   { return "<type-error>" }
