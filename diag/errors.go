package diag

import "fmt"

// Kind discriminates the four error families named in spec.md §7.
type Kind int

const (
	KindLex Kind = iota
	KindParse
	KindCompile
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "lex"
	case KindParse:
		return "parse"
	case KindCompile:
		return "compile"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// MessageID indexes into a fixed table of format strings so AST error
// nodes and bytecode validation failures never carry raw strings
// inline (spec.md §4.2, §7).
type MessageID int

const (
	MsgNone MessageID = iota
	MsgUnexpectedToken
	MsgExpectedToken
	MsgUnterminatedString
	MsgUnterminatedComment
	MsgInvalidNumber
	MsgInvalidUnicode
	MsgExpectedExpression
	MsgExpectedStatement
	MsgExpectedName
	MsgMissingEnd
	MsgTooManyConstants
	MsgTooManyLocals
	MsgTooManyUpvalues
	MsgJumpOutOfRange
	MsgMalformedDeclaration
	MsgBreakOutsideLoop
	MsgContinueOutsideLoop
	MsgDuplicateLocal
	MsgCompileError
)

var messages = map[MessageID]string{
	MsgNone:                 "",
	MsgUnexpectedToken:      "unexpected token %s",
	MsgExpectedToken:        "expected %s, found %s",
	MsgUnterminatedString:   "unterminated string literal",
	MsgUnterminatedComment:  "unterminated block comment",
	MsgInvalidNumber:        "invalid number literal %q",
	MsgInvalidUnicode:       "invalid byte 0x%02x outside string literal",
	MsgExpectedExpression:   "expected expression, found %s",
	MsgExpectedStatement:    "expected statement, found %s",
	MsgExpectedName:         "expected identifier, found %s",
	MsgMissingEnd:           "missing `end` to close block opened at %s",
	MsgTooManyConstants:     "function has too many constants (limit %d)",
	MsgTooManyLocals:        "function has too many locals (limit %d)",
	MsgTooManyUpvalues:      "function has too many upvalues (limit %d)",
	MsgJumpOutOfRange:       "jump offset %d out of range after long-jump expansion",
	MsgMalformedDeclaration: "malformed declaration",
	MsgBreakOutsideLoop:     "break outside of a loop",
	MsgContinueOutsideLoop:  "continue outside of a loop",
	MsgDuplicateLocal:       "local %q already declared in this scope",
	MsgCompileError:         "%s",
}

// Format renders a MessageID with arguments, looked up from the side
// table rather than formatted inline at the call site.
func Format(id MessageID, args ...interface{}) string {
	tpl, ok := messages[id]
	if !ok {
		return fmt.Sprintf("unknown diagnostic %d", id)
	}
	if len(args) == 0 {
		return tpl
	}
	return fmt.Sprintf(tpl, args...)
}

// Diagnostic is a single lex/parse finding; the parser accumulates
// these instead of aborting (spec.md §4.2, §6).
type Diagnostic struct {
	Kind    Kind
	ID      MessageID
	Args    []interface{}
	Span    Span
	Message string // not set by this package; Error() formats from ID and Args
}

func NewDiagnostic(kind Kind, span Span, id MessageID, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: kind, ID: id, Args: args, Span: span}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s @ %s", Format(d.ID, d.Args...), d.Span)
}

// CompileError is fatal to the current compile unit (spec.md §7).
type CompileError struct {
	Diagnostic
	FuncName string
	PC       int
}

func (e CompileError) Error() string {
	if e.FuncName == "" {
		return e.Diagnostic.Error()
	}
	return fmt.Sprintf("%s: in function %q at pc %d", e.Diagnostic.Error(), e.FuncName, e.PC)
}

func NewCompileError(span Span, id MessageID, funcName string, pc int, args ...interface{}) CompileError {
	return CompileError{Diagnostic: NewDiagnostic(KindCompile, span, id, args...), FuncName: funcName, PC: pc}
}

// backtrackingError-style internal control error for "this
// alternative didn't match" situations. Nothing else in the module
// references it (the parser recovers through its synchronization
// set), and it is never returned from public entry points.
type syncError struct{ msg string }

func (e syncError) Error() string { return e.msg }

func IsThrown(err error) bool {
	_, ok := err.(Diagnostic)
	return ok
}
