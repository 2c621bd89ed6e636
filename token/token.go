// Package token defines Vine's lexical token kinds, per spec.md §3.
package token

import "github.com/clarete/vine/diag"

type Kind int

const (
	EOF Kind = iota

	// punctuation, represented by its code point when single-char
	Punct

	// compound symbols
	Pow          // **
	Eq           // ==
	NotEq        // !=
	LessEq       // <=
	GreaterEq    // >=
	Shl          // <<
	Shr          // >>
	PlusEq       // +=
	MinusEq      // -=
	StarEq       // *=
	SlashEq      // /=
	PercentEq    // %=
	PowEq        // **=
	DoubleColon  // ::
	Arrow        // ->
	Ellipsis     // ...
	Concat       // ..

	// literals
	RawString
	QuotedString
	Number
	Name

	// comments
	LineComment
	BlockComment

	// broken forms
	BrokenString
	BrokenComment
	BrokenUnicode

	// keywords
	KwAnd
	KwBreak
	KwDo
	KwElse
	KwElif
	KwEnd
	KwFalse
	KwFor
	KwFunction
	KwIf
	KwIn
	KwLocal
	KwNull
	KwNot
	KwOr
	KwRepeat
	KwReturn
	KwThen
	KwTrue
	KwUntil
	KwWhile
	KwContinue
)

var keywords = map[string]Kind{
	"and":      KwAnd,
	"break":    KwBreak,
	"do":       KwDo,
	"else":     KwElse,
	"elif":     KwElif,
	"end":      KwEnd,
	"false":    KwFalse,
	"for":      KwFor,
	"function": KwFunction,
	"if":       KwIf,
	"in":       KwIn,
	"local":    KwLocal,
	"null":     KwNull,
	"not":      KwNot,
	"or":       KwOr,
	"repeat":   KwRepeat,
	"return":   KwReturn,
	"then":     KwThen,
	"true":     KwTrue,
	"until":    KwUntil,
	"while":    KwWhile,
	"continue": KwContinue,
}

// LookupKeyword returns the keyword Kind for name, and ok=false if
// name is a plain identifier.
func LookupKeyword(name string) (Kind, bool) {
	k, ok := keywords[name]
	return k, ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?"
}

var kindNames = map[Kind]string{
	EOF:           "<eof>",
	Punct:         "punct",
	Pow:           "**",
	Eq:            "==",
	NotEq:         "!=",
	LessEq:        "<=",
	GreaterEq:     ">=",
	Shl:           "<<",
	Shr:           ">>",
	PlusEq:        "+=",
	MinusEq:       "-=",
	StarEq:        "*=",
	SlashEq:       "/=",
	PercentEq:     "%=",
	PowEq:         "**=",
	DoubleColon:   "::",
	Arrow:         "->",
	Ellipsis:      "...",
	Concat:        "..",
	RawString:     "raw-string",
	QuotedString:  "string",
	Number:        "number",
	Name:          "name",
	LineComment:   "line-comment",
	BlockComment:  "block-comment",
	BrokenString:  "broken-string",
	BrokenComment: "broken-comment",
	BrokenUnicode: "broken-unicode",
}

func init() {
	for name, k := range keywords {
		kindNames[k] = name
	}
}

// NumberSuffix tags the sub-type of a parsed numeric literal.
type NumberSuffix int

const (
	SuffixNone NumberSuffix = iota
	SuffixUnsigned
	SuffixLong
	SuffixFloat
)

// Token is a discriminated variant over all lexical forms named in
// spec.md §3. Every field beyond Kind/Span is a payload used only by
// the kinds that need it.
type Token struct {
	Kind Kind
	Span diag.Span
	Rg   diag.Range

	// Punct payload: the code point for single-char punctuation.
	Rune rune

	// literal payload
	Text    string // text for Name/RawString/QuotedString (interned for Name)
	Number  float64
	Suffix  NumberSuffix

	// broken-unicode payload
	BadRune rune

	// lex-error payload, set on Broken* kinds
	Err error
}

func (t Token) String() string {
	switch t.Kind {
	case Punct:
		return string(t.Rune)
	case Name, RawString, QuotedString:
		return t.Text
	case Number:
		return t.Kind.String()
	default:
		return t.Kind.String()
	}
}

func (t Token) IsKeyword() bool {
	return t.Kind >= KwAnd && t.Kind <= KwContinue
}
