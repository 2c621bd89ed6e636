package ast

import (
	"fmt"
	"strings"

	"github.com/clarete/vine/ascii"
)

// FormatFunc decides whether a printed token is wrapped in a color
// escape, mirroring the teacher's twin PrettyString/HighlightPrettyString
// accessors (vm_program.go, value.go).
type FormatFunc func(input string, tok ascii.Token) string

type treePrinter struct {
	pad    []string
	output *strings.Builder
	format FormatFunc
}

func newTreePrinter(format FormatFunc) *treePrinter {
	return &treePrinter{output: &strings.Builder{}, format: format}
}

func (tp *treePrinter) indent(s string)   { tp.pad = append(tp.pad, s) }
func (tp *treePrinter) unindent()         { tp.pad = tp.pad[:len(tp.pad)-1] }
func (tp *treePrinter) padding()          {
	for _, s := range tp.pad {
		tp.write(s)
	}
}
func (tp *treePrinter) write(s string)  { tp.output.WriteString(s) }
func (tp *treePrinter) writel(s string) { tp.write(s); tp.output.WriteRune('\n') }
func (tp *treePrinter) pwrite(s string) { tp.padding(); tp.write(s) }

// PrettyString renders the hierarchical structure of node recursively
// (spec.md §3's AstNode.PrettyString()).
func PrettyString(n Node) string {
	tp := newTreePrinter(func(in string, _ ascii.Token) string { return in })
	printNode(tp, n)
	return tp.output.String()
}

// HighlightPrettyString is PrettyString with ASCII-color theming,
// matching the teacher's twin-accessor pattern exactly.
func HighlightPrettyString(n Node) string {
	tp := newTreePrinter(func(in string, tok ascii.Token) string {
		return ascii.DefaultTheme.Color(tok) + in + ascii.Reset
	})
	printNode(tp, n)
	return tp.output.String()
}

func printNode(tp *treePrinter, n Node) {
	if n == nil {
		tp.writel(tp.format("<nil>", ascii.TokLiteral))
		return
	}
	label := fmt.Sprintf("%s (%s)", n.Kind(), n.Span())
	tp.writel(tp.format(label, ascii.TokOperator))
	children := n.Children()
	for i, c := range children {
		last := i == len(children)-1
		if last {
			tp.pwrite("└── ")
			tp.indent("    ")
		} else {
			tp.pwrite("├── ")
			tp.indent("│   ")
		}
		printNode(tp, c)
		tp.unindent()
	}
}
