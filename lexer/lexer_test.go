package lexer

import (
	"testing"

	"github.com/clarete/vine/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New([]byte(src), nil)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestLexerKeywordsAndNames(t *testing.T) {
	toks := scanAll(t, "local x = function")
	require.Len(t, toks, 5)
	assert.Equal(t, token.KwLocal, toks[0].Kind)
	assert.Equal(t, token.Name, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Text)
	assert.Equal(t, token.Punct, toks[2].Kind)
	assert.Equal(t, token.KwFunction, toks[3].Kind)
	assert.Equal(t, token.EOF, toks[4].Kind)
}

func TestLexerCompoundSymbols(t *testing.T) {
	toks := scanAll(t, "a **= b == c != d <= e >= f ... g")
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Contains(t, kinds, token.PowEq)
	assert.Contains(t, kinds, token.Eq)
	assert.Contains(t, kinds, token.NotEq)
	assert.Contains(t, kinds, token.LessEq)
	assert.Contains(t, kinds, token.GreaterEq)
	assert.Contains(t, kinds, token.Ellipsis)
}

func TestLexerNumbers(t *testing.T) {
	toks := scanAll(t, "10 3.14 0x1F 0b101 2e3")
	require.Len(t, toks, 6)
	assert.Equal(t, float64(10), toks[0].Number)
	assert.Equal(t, 3.14, toks[1].Number)
	assert.Equal(t, float64(0x1F), toks[2].Number)
	assert.Equal(t, float64(5), toks[3].Number)
	assert.Equal(t, float64(2000), toks[4].Number)
}

func TestLexerQuotedString(t *testing.T) {
	toks := scanAll(t, `"hello\nworld"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.QuotedString, toks[0].Kind)
	assert.Equal(t, "hello\nworld", toks[0].Text)
}

func TestLexerUnterminatedStringIsBroken(t *testing.T) {
	toks := scanAll(t, "\"abc\nlocal x")
	assert.Equal(t, token.BrokenString, toks[0].Kind)
	// lexing always advances so peek progress is guaranteed
	assert.Equal(t, token.KwLocal, toks[1].Kind)
}

func TestLexerMultilineString(t *testing.T) {
	toks := scanAll(t, "[==[ hi\nthere ]==]")
	require.Len(t, toks, 2)
	assert.Equal(t, token.RawString, toks[0].Kind)
	assert.Equal(t, " hi\nthere ", toks[0].Text)
}

func TestLexerPeekNextDoesNotAdvance(t *testing.T) {
	l := New([]byte("local x"), nil)
	first := l.PeekNext()
	second := l.PeekNext()
	assert.Equal(t, first.Kind, second.Kind)
	third := l.Next()
	assert.Equal(t, first.Kind, third.Kind)
	fourth := l.Next()
	assert.Equal(t, token.Name, fourth.Kind)
}

func TestLexerLineComment(t *testing.T) {
	toks := scanAll(t, "local x -- comment\nlocal y")
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.NotContains(t, kinds, token.LineComment)
	assert.Contains(t, kinds, token.KwLocal)
}
