// Package lexer turns Vine source bytes into a token stream, per
// spec.md §4.1.
package lexer

import (
	"strconv"
	"strings"

	"github.com/clarete/vine/diag"
	"github.com/clarete/vine/token"
)

const eof = -1

// Names interns identifier text into a shared pool, per spec.md §4.1
// ("A name table interns identifier text into a shared pool").
type Names struct {
	pool map[string]string
}

func NewNames() *Names { return &Names{pool: make(map[string]string)} }

func (n *Names) Intern(s string) string {
	if v, ok := n.pool[s]; ok {
		return v
	}
	n.pool[s] = s
	return s
}

// Lexer maintains a cursor (byte offset, line, column) into a buffer
// and a single-token look-ahead.
type Lexer struct {
	src    []byte
	names  *Names
	cursor int
	line   int
	column int

	lookahead    *token.Token
	skipComments bool

	lines *diag.LineIndex
}

func New(src []byte, names *Names) *Lexer {
	norm := diag.NormalizeLineEndings(src)
	if names == nil {
		names = NewNames()
	}
	return &Lexer{
		src:          norm,
		names:        names,
		line:         1,
		column:       1,
		skipComments: true,
		lines:        diag.NewLineIndex(norm),
	}
}

// SetSkipComments controls whether Next()/PeekNext() skip over
// comment tokens transparently (true by default) or surface them as
// LineComment/BlockComment tokens.
func (l *Lexer) SetSkipComments(v bool) { l.skipComments = v }

func (l *Lexer) span(start int) diag.Span { return l.lines.Span(diag.NewRange(start, l.cursor)) }

// Next consumes whitespace (optionally skipping comments) and returns
// the next token, advancing the cursor.
func (l *Lexer) Next() token.Token {
	if l.lookahead != nil {
		t := *l.lookahead
		l.lookahead = nil
		return t
	}
	return l.scan()
}

// PeekNext yields the upcoming token without advancing permanent
// state.
func (l *Lexer) PeekNext() token.Token {
	if l.lookahead == nil {
		t := l.scan()
		l.lookahead = &t
	}
	return *l.lookahead
}

func (l *Lexer) peekByte() byte {
	if l.cursor >= len(l.src) {
		return 0
	}
	return l.src[l.cursor]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.cursor+off >= len(l.src) {
		return 0
	}
	return l.src[l.cursor+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.cursor]
	l.cursor++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) atEOF() bool { return l.cursor >= len(l.src) }

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		c := l.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '-' && l.peekByteAt(1) == '-' && l.skipComments:
			l.scanComment()
		default:
			return
		}
	}
}

func (l *Lexer) scanComment() {
	l.advance()
	l.advance()
	if l.peekByte() == '[' {
		if level, ok := l.tryOpenLongBracket(); ok {
			l.scanLongBracketBody(level)
			return
		}
	}
	for !l.atEOF() && l.peekByte() != '\n' {
		l.advance()
	}
}

func (l *Lexer) scan() token.Token {
	l.skipWhitespaceAndComments()
	start := l.cursor

	if l.atEOF() {
		return token.Token{Kind: token.EOF, Span: l.span(start), Rg: diag.NewRange(start, start)}
	}

	c := l.peekByte()
	switch {
	case isDigit(c):
		return l.scanNumber(start)
	case isNameStart(c):
		return l.scanName(start)
	case c == '"' || c == '\'':
		return l.scanQuotedOrMultiline(start, c)
	case c == '[' && (l.hasPrefixAt(start, "[[") || l.hasPrefixAt(start, "[=")):
		return l.scanQuotedOrMultiline(start, c)
	default:
		return l.scanSymbol(start)
	}
}

func (l *Lexer) mk(kind token.Kind, start int) token.Token {
	return token.Token{Kind: kind, Span: l.span(start), Rg: diag.NewRange(start, l.cursor)}
}

// scanSymbol implements the compound-symbol lookahead: read up to
// three bytes and commit the longest match (spec.md §4.1).
func (l *Lexer) scanSymbol(start int) token.Token {
	three := string([]byte{l.peekByte(), l.peekByteAt(1), l.peekByteAt(2)})
	two := three[:2]
	one := three[:1]

	switch three {
	case "**=":
		l.advance()
		l.advance()
		l.advance()
		return l.mk(token.PowEq, start)
	case "...":
		l.advance()
		l.advance()
		l.advance()
		return l.mk(token.Ellipsis, start)
	}

	switch two {
	case "**":
		l.advance()
		l.advance()
		return l.mk(token.Pow, start)
	case "==":
		l.advance()
		l.advance()
		return l.mk(token.Eq, start)
	case "!=":
		l.advance()
		l.advance()
		return l.mk(token.NotEq, start)
	case "<=":
		l.advance()
		l.advance()
		return l.mk(token.LessEq, start)
	case ">=":
		l.advance()
		l.advance()
		return l.mk(token.GreaterEq, start)
	case "<<":
		l.advance()
		l.advance()
		return l.mk(token.Shl, start)
	case ">>":
		l.advance()
		l.advance()
		return l.mk(token.Shr, start)
	case "+=":
		l.advance()
		l.advance()
		return l.mk(token.PlusEq, start)
	case "-=":
		l.advance()
		l.advance()
		return l.mk(token.MinusEq, start)
	case "*=":
		l.advance()
		l.advance()
		return l.mk(token.StarEq, start)
	case "/=":
		l.advance()
		l.advance()
		return l.mk(token.SlashEq, start)
	case "%=":
		l.advance()
		l.advance()
		return l.mk(token.PercentEq, start)
	case "::":
		l.advance()
		l.advance()
		return l.mk(token.DoubleColon, start)
	case "->":
		l.advance()
		l.advance()
		return l.mk(token.Arrow, start)
	case "..":
		l.advance()
		l.advance()
		return l.mk(token.Concat, start)
	}

	r := l.advance()
	if r >= 0x80 {
		// continuation bytes of a UTF-8 rune outside of a string
		// literal: decode the rune so the diagnostic is readable.
		l.cursor = start
		l.line, l.column = l.line, l.column // best effort; rune decode below
		ru := decodeRuneAt(l.src, start)
		for l.cursor < start+runeLen(ru) {
			l.advance()
		}
		t := l.mk(token.BrokenUnicode, start)
		t.BadRune = ru
		return t
	}
	t := l.mk(token.Punct, start)
	t.Rune = rune(one[0])
	return t
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool  { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isNameStart(c byte) bool { return isAlpha(c) || c == '_' }
func isNameCont(c byte) bool  { return isNameStart(c) || isDigit(c) }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) scanName(start int) token.Token {
	for !l.atEOF() && isNameCont(l.peekByte()) {
		l.advance()
	}
	text := l.names.Intern(string(l.src[start:l.cursor]))
	if kw, ok := token.LookupKeyword(text); ok {
		return l.mk(kw, start)
	}
	t := l.mk(token.Name, start)
	t.Text = text
	return t
}

// scanNumber parses integer, float, hex (0x), and binary (0b)
// literals with optional unsigned/long/float suffix letters
// (spec.md §4.1).
func (l *Lexer) scanNumber(start int) token.Token {
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advance()
		l.advance()
		hstart := l.cursor
		for !l.atEOF() && isHex(l.peekByte()) {
			l.advance()
		}
		text := string(l.src[hstart:l.cursor])
		n, err := strconv.ParseUint(text, 16, 64)
		suffix, serr := l.scanNumberSuffix()
		t := l.mk(token.Number, start)
		if err != nil || serr != nil || text == "" {
			t.Kind = token.BrokenString
			t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgInvalidNumber, string(l.src[start:l.cursor]))
			return t
		}
		t.Number = float64(n)
		t.Suffix = suffix
		return t
	}
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'b' || l.peekByteAt(1) == 'B') {
		l.advance()
		l.advance()
		bstart := l.cursor
		for !l.atEOF() && (l.peekByte() == '0' || l.peekByte() == '1') {
			l.advance()
		}
		text := string(l.src[bstart:l.cursor])
		n, err := strconv.ParseUint(text, 2, 64)
		suffix, serr := l.scanNumberSuffix()
		t := l.mk(token.Number, start)
		if err != nil || serr != nil || text == "" {
			t.Kind = token.BrokenString
			t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgInvalidNumber, string(l.src[start:l.cursor]))
			return t
		}
		t.Number = float64(n)
		t.Suffix = suffix
		return t
	}

	for !l.atEOF() && isDigit(l.peekByte()) {
		l.advance()
	}
	isFloat := false
	if l.peekByte() == '.' && isDigit(l.peekByteAt(1)) {
		isFloat = true
		l.advance()
		for !l.atEOF() && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		save := l.cursor
		l.advance()
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.advance()
		}
		if isDigit(l.peekByte()) {
			isFloat = true
			for !l.atEOF() && isDigit(l.peekByte()) {
				l.advance()
			}
		} else {
			l.cursor = save
		}
	}
	text := string(l.src[start:l.cursor])
	suffix, serr := l.scanNumberSuffix()
	t := l.mk(token.Number, start)
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || serr != nil {
		t.Kind = token.BrokenString
		t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgInvalidNumber, string(l.src[start:l.cursor]))
		return t
	}
	t.Number = n
	if suffix == token.SuffixFloat {
		isFloat = true
	}
	t.Suffix = suffix
	_ = isFloat
	return t
}

// scanNumberSuffix consumes a trailing tag letter (u/l/f, case
// insensitive). A suffix letter that doesn't match a known tag is a
// lex error carried via the token (spec.md §4.1).
func (l *Lexer) scanNumberSuffix() (token.NumberSuffix, error) {
	c := l.peekByte()
	switch c {
	case 'u', 'U':
		l.advance()
		return token.SuffixUnsigned, nil
	case 'l', 'L':
		l.advance()
		return token.SuffixLong, nil
	case 'f', 'F':
		l.advance()
		return token.SuffixFloat, nil
	}
	if isAlpha(c) {
		return token.SuffixNone, diag.NewDiagnostic(diag.KindLex, diag.Span{}, diag.MsgInvalidNumber, string(c))
	}
	return token.SuffixNone, nil
}

// tryOpenLongBracket attempts to open a `<LEVEL<` style multi-line
// frame at the cursor (spec.md §4.1 calls this `<LEVEL<` … `>LEVEL>`).
// Vine spells the bracket with square brackets and `=` run length,
// following the same "level must match on both sides" contract:
// `[==[` … `]==]`. Any non-matching prefix at the cursor is "not a
// multi-line string": rewind without error (spec.md §9 open question).
func (l *Lexer) tryOpenLongBracket() (int, bool) {
	save, saveLine, saveCol := l.cursor, l.line, l.column
	if l.peekByte() != '[' {
		return 0, false
	}
	l.advance()
	level := 0
	for l.peekByte() == '=' {
		l.advance()
		level++
	}
	if l.peekByte() != '[' {
		l.cursor, l.line, l.column = save, saveLine, saveCol
		return 0, false
	}
	l.advance()
	return level, true
}

func (l *Lexer) scanLongBracketBody(level int) {
	closer := "]" + strings.Repeat("=", level) + "]"
	for !l.atEOF() {
		if l.peekByte() == ']' && l.hasPrefixAt(l.cursor, closer) {
			for i := 0; i < len(closer); i++ {
				l.advance()
			}
			return
		}
		l.advance()
	}
}

func (l *Lexer) hasPrefixAt(pos int, s string) bool {
	if pos+len(s) > len(l.src) {
		return false
	}
	return string(l.src[pos:pos+len(s)]) == s
}

// scanQuotedOrMultiline handles raw strings, quoted strings, and the
// long-bracket multi-line form (spec.md §4.1: "Multi-line strings are
// framed by `<LEVEL<` … `>LEVEL>`", spelled here as `[==[ ... ]==]`).
// A run of three identical quotes opens a quoted_string with an
// extended (raw) body; otherwise the quote is a normal delimiter.
func (l *Lexer) scanQuotedOrMultiline(start int, quote byte) token.Token {
	if l.peekByte() == '[' {
		if level, ok := l.tryOpenLongBracket(); ok {
			bodyStart := l.cursor
			closer := "]" + strings.Repeat("=", level) + "]"
			for !l.atEOF() && !l.hasPrefixAt(l.cursor, closer) {
				l.advance()
			}
			if l.atEOF() {
				t := l.mk(token.BrokenString, start)
				t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgUnterminatedString)
				return t
			}
			text := string(l.src[bodyStart:l.cursor])
			for i := 0; i < len(closer); i++ {
				l.advance()
			}
			t := l.mk(token.RawString, start)
			t.Text = text
			return t
		}
	}
	if quote == '[' {
		return l.scanSymbol(start)
	}

	three := l.hasPrefixAt(start, strings.Repeat(string(quote), 3))
	if three {
		l.advance()
		l.advance()
		l.advance()
		bodyStart := l.cursor
		closer := strings.Repeat(string(quote), 3)
		for !l.atEOF() && !l.hasPrefixAt(l.cursor, closer) {
			l.advance()
		}
		if l.atEOF() {
			t := l.mk(token.BrokenString, start)
			t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgUnterminatedString)
			return t
		}
		text := string(l.src[bodyStart:l.cursor])
		l.advance()
		l.advance()
		l.advance()
		t := l.mk(token.RawString, start)
		t.Text = text
		return t
	}

	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.atEOF() || l.peekByte() == '\n' {
			t := l.mk(token.BrokenString, start)
			t.Err = diag.NewDiagnostic(diag.KindLex, t.Span, diag.MsgUnterminatedString)
			// resync at the next newline per spec.md §4.1.
			for !l.atEOF() && l.peekByte() != '\n' {
				l.advance()
			}
			return t
		}
		c := l.peekByte()
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			sb.WriteByte(l.scanEscape())
			continue
		}
		sb.WriteByte(l.advance())
	}
	t := l.mk(token.QuotedString, start)
	t.Text = sb.String()
	return t
}

func (l *Lexer) scanEscape() byte {
	if l.atEOF() {
		return '\\'
	}
	c := l.advance()
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\', '\'', '"':
		return c
	default:
		return c
	}
}

func decodeRuneAt(src []byte, pos int) rune {
	if pos >= len(src) {
		return eof
	}
	b := src[pos]
	if b < 0x80 {
		return rune(b)
	}
	// minimal UTF-8 decode sufficient to report the offending rune
	n := 0
	switch {
	case b&0xE0 == 0xC0:
		n = 2
	case b&0xF0 == 0xE0:
		n = 3
	case b&0xF8 == 0xF0:
		n = 4
	default:
		return rune(b)
	}
	if pos+n > len(src) {
		return rune(b)
	}
	r := rune(b & (0xFF >> (n + 1)))
	for i := 1; i < n; i++ {
		r = r<<6 | rune(src[pos+i]&0x3F)
	}
	return r
}

func runeLen(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}
