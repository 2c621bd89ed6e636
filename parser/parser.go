// Package parser implements Vine's recursive-descent parser with
// operator-precedence climbing for binary expressions, per spec.md
// §4.2.
//
// Block syntax follows the real grammar of the source language this
// spec distills (original_source/gal's lexer.hpp keyword table:
// `then`/`do`/`end`/`elif`/`until`), resolving spec.md §8's
// colon-and-semicolon worked examples as pseudocode shorthand for
// "then ... end" rather than a distinct concrete syntax (an Open
// Question resolution recorded in DESIGN.md).
package parser

import (
	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/diag"
	"github.com/clarete/vine/lexer"
	"github.com/clarete/vine/token"
)

// syncSet is the set of tokens the parser resynchronizes on after a
// syntax error: statement-terminating tokens, block keywords, and
// end-of-file (spec.md §4.2).
var syncSet = map[token.Kind]bool{
	token.EOF:        true,
	token.KwEnd:      true,
	token.KwElse:     true,
	token.KwElif:     true,
	token.KwUntil:    true,
	token.KwLocal:    true,
	token.KwIf:       true,
	token.KwWhile:    true,
	token.KwFor:      true,
	token.KwRepeat:   true,
	token.KwReturn:   true,
	token.KwFunction: true,
	token.KwBreak:    true,
	token.KwContinue: true,
}

// Parser is a recursive-descent parser driven by the lexer's
// single-token look-ahead.
type Parser struct {
	lex   *lexer.Lexer
	names *lexer.Names
	cur   token.Token

	diags []diag.Diagnostic
}

func New(src []byte) *Parser {
	names := lexer.NewNames()
	p := &Parser{lex: lexer.New(src, names), names: names}
	p.advance()
	return p
}

// Diagnostics returns every diagnostic accumulated during Parse,
// matching spec.md §6's "AST root plus a vector of diagnostics out".
func (p *Parser) Diagnostics() []diag.Diagnostic { return p.diags }

func (p *Parser) advance() token.Token {
	t := p.cur
	p.cur = p.lex.Next()
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) atPunct(r rune) bool {
	return p.cur.Kind == token.Punct && p.cur.Rune == r
}

func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errorf(diag.MsgExpectedToken, k.String(), p.cur.Kind.String())
	return p.cur, false
}

func (p *Parser) expectPunct(r rune) (token.Token, bool) {
	if p.atPunct(r) {
		return p.advance(), true
	}
	p.errorf(diag.MsgExpectedToken, string(r), p.cur.String())
	return p.cur, false
}

func (p *Parser) errorf(id diag.MessageID, args ...interface{}) {
	p.diags = append(p.diags, diag.NewDiagnostic(diag.KindParse, p.cur.Span, id, args...))
}

// synchronize advances past the erroneous region until a token in
// syncSet is reached, per spec.md §4.2.
func (p *Parser) synchronize() {
	for !syncSet[p.cur.Kind] {
		p.advance()
	}
}

func spanFrom(start diag.Span, end diag.Span) diag.Span {
	return diag.Span{Start: start.Start, End: end.End}
}

// Parse parses a whole source unit and returns its root Block node
// plus any accumulated diagnostics.
func (p *Parser) Parse() (*ast.Block, []diag.Diagnostic) {
	start := p.cur.Span
	stmts := p.parseStmts(func() bool { return p.at(token.EOF) })
	end := p.cur.Span
	return ast.NewBlock(stmts, spanFrom(start, end)), p.diags
}

func (p *Parser) parseStmts(stop func() bool) []ast.Node {
	var stmts []ast.Node
	for !stop() && !p.at(token.EOF) {
		s := p.parseStmt()
		if s != nil {
			stmts = append(stmts, s)
		}
		// optional statement separator
		if p.atPunct(';') {
			p.advance()
		}
	}
	return stmts
}

func (p *Parser) parseBlockUntil(stop func() bool) *ast.Block {
	start := p.cur.Span
	stmts := p.parseStmts(stop)
	end := p.cur.Span
	return ast.NewBlock(stmts, spanFrom(start, end))
}

func (p *Parser) parseStmt() ast.Node {
	start := p.cur.Span
	switch p.cur.Kind {
	case token.KwLocal:
		return p.parseLocal()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwRepeat:
		return p.parseRepeat()
	case token.KwFor:
		return p.parseFor()
	case token.KwBreak:
		p.advance()
		return ast.NewBreakStmt(start)
	case token.KwContinue:
		p.advance()
		return ast.NewContinueStmt(start)
	case token.KwReturn:
		return p.parseReturn()
	case token.KwFunction:
		return p.parseFunctionDecl()
	case token.KwDo:
		p.advance()
		b := p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
		p.expect(token.KwEnd)
		return b
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLocal() ast.Node {
	start := p.cur.Span
	p.advance() // local
	if p.at(token.KwFunction) {
		p.advance()
		name, _ := p.expectName()
		fn := p.parseFunctionBody(name)
		return ast.NewLocalFunctionDecl(name, fn, spanFrom(start, fn.Span()))
	}

	var names []string
	var types []ast.Node
	for {
		name, _ := p.expectName()
		names = append(names, name)
		if p.atPunct(':') {
			p.advance()
			types = append(types, p.parseTypeExpr())
		} else {
			types = append(types, nil)
		}
		if p.atPunct(',') {
			p.advance()
			continue
		}
		break
	}

	var exprs []ast.Node
	if p.atPunct('=') {
		p.advance()
		exprs = p.parseExprList()
	}
	end := p.cur.Span
	return ast.NewLocalDecl(names, types, exprs, spanFrom(start, end))
}

func (p *Parser) expectName() (string, bool) {
	if p.at(token.Name) {
		t := p.advance()
		return t.Text, true
	}
	p.errorf(diag.MsgExpectedName, p.cur.Kind.String())
	return "", false
}

func (p *Parser) parseIf() ast.Node {
	start := p.cur.Span
	p.advance() // if
	var clauses []ast.IfClause
	for {
		cond := p.parseExpr()
		thenSpan, _ := p.expect(token.KwThen)
		body := p.parseBlockUntil(func() bool {
			return p.at(token.KwElif) || p.at(token.KwElse) || p.at(token.KwEnd)
		})
		clauses = append(clauses, ast.IfClause{Cond: cond, Body: body, ThenSpan: thenSpan.Span})
		if p.at(token.KwElif) {
			p.advance()
			continue
		}
		break
	}
	var els *ast.Block
	if p.at(token.KwElse) {
		p.advance()
		els = p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
	}
	end, _ := p.expect(token.KwEnd)
	return ast.NewIfStmt(clauses, els, spanFrom(start, end.Span))
}

func (p *Parser) parseWhile() ast.Node {
	start := p.cur.Span
	p.advance()
	cond := p.parseExpr()
	doSpan, _ := p.expect(token.KwDo)
	body := p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
	end, _ := p.expect(token.KwEnd)
	stmt := ast.NewWhileStmt(cond, body, spanFrom(start, end.Span))
	stmt.DoSpan = doSpan.Span
	return stmt
}

func (p *Parser) parseRepeat() ast.Node {
	start := p.cur.Span
	p.advance()
	body := p.parseBlockUntil(func() bool { return p.at(token.KwUntil) })
	untilSpan, _ := p.expect(token.KwUntil)
	cond := p.parseExpr()
	stmt := ast.NewRepeatStmt(body, cond, spanFrom(start, p.cur.Span))
	stmt.UntilSpan = untilSpan.Span
	return stmt
}

func (p *Parser) parseFor() ast.Node {
	start := p.cur.Span
	p.advance()
	first, _ := p.expectName()
	if p.atPunct('=') {
		p.advance()
		from := p.parseExpr()
		p.expectPunct(',')
		to := p.parseExpr()
		var step ast.Node
		if p.atPunct(',') {
			p.advance()
			step = p.parseExpr()
		}
		doSpan, _ := p.expect(token.KwDo)
		body := p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
		end, _ := p.expect(token.KwEnd)
		nf := ast.NewNumericFor(first, from, to, step, body, spanFrom(start, end.Span))
		nf.InSpan = doSpan.Span
		return nf
	}

	vars := []string{first}
	for p.atPunct(',') {
		p.advance()
		name, _ := p.expectName()
		vars = append(vars, name)
	}
	inSpan, _ := p.expect(token.KwIn)
	exprs := p.parseExprList()
	doSpan, _ := p.expect(token.KwDo)
	body := p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
	end, _ := p.expect(token.KwEnd)
	gf := ast.NewGenericFor(vars, exprs, body, spanFrom(start, end.Span))
	gf.InSpan = inSpan.Span
	_ = doSpan
	return gf
}

func (p *Parser) parseReturn() ast.Node {
	start := p.cur.Span
	p.advance()
	var exprs []ast.Node
	if !p.at(token.KwEnd) && !p.at(token.EOF) && !p.atPunct(';') &&
		!p.at(token.KwElse) && !p.at(token.KwElif) && !p.at(token.KwUntil) {
		exprs = p.parseExprList()
	}
	return ast.NewReturnStmt(exprs, spanFrom(start, p.cur.Span))
}

// parseFunctionDecl handles `function a.b.c(args) body end` and
// `function a.b:m(args) body end` sugar, desugaring to assignment
// through a dotted l-value per spec.md §4.2.
func (p *Parser) parseFunctionDecl() ast.Node {
	start := p.cur.Span
	p.advance()
	name, _ := p.expectName()
	var target ast.Node = ast.NewLocalRef(name, start)
	method := ""
	for p.atPunct('.') {
		p.advance()
		field, _ := p.expectName()
		target = ast.NewIndex(target, ast.NewStringLit(field, p.cur.Span), true, p.cur.Span)
	}
	if p.atPunct(':') {
		p.advance()
		method, _ = p.expectName()
	}
	fn := p.parseFunctionBody(name)
	return ast.NewFunctionDecl(target, method, fn, spanFrom(start, fn.Span()))
}

func (p *Parser) parseFunctionBody(name string) *ast.FunctionLit {
	start := p.cur.Span
	p.expectPunct('(')
	var params []ast.Param
	vararg := false
	for !p.atPunct(')') {
		if p.at(token.Ellipsis) {
			p.advance()
			vararg = true
			break
		}
		pname, _ := p.expectName()
		var ptype ast.Node
		if p.atPunct(':') {
			p.advance()
			ptype = p.parseTypeExpr()
		}
		params = append(params, ast.Param{Name: pname, Type: ptype})
		if p.atPunct(',') {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(')')
	if p.atPunct(':') {
		// return type annotation, parsed but not attached (unenforced
		// per spec.md §4.2)
		p.advance()
		p.parseTypeExpr()
	}
	body := p.parseBlockUntil(func() bool { return p.at(token.KwEnd) })
	end, _ := p.expect(token.KwEnd)
	fn := ast.NewFunctionLit(params, vararg, body, spanFrom(start, end.Span))
	fn.Name = name
	return fn
}

// parseExprOrAssignStmt parses a statement starting with an
// expression: either a bare call statement, an assignment, or a
// compound assignment.
func (p *Parser) parseExprOrAssignStmt() ast.Node {
	start := p.cur.Span
	first := p.parseSuffixedExpr()

	if op, ok := p.compoundAssignOp(); ok {
		p.advance()
		rhs := p.parseExpr()
		return ast.NewCompoundAssign(first, op, rhs, spanFrom(start, p.cur.Span))
	}

	if p.atPunct('=') || p.atPunct(',') {
		targets := []ast.Node{first}
		for p.atPunct(',') {
			p.advance()
			targets = append(targets, p.parseSuffixedExpr())
		}
		p.expectPunct('=')
		exprs := p.parseExprList()
		return ast.NewAssignStmt(targets, exprs, spanFrom(start, p.cur.Span))
	}

	if ast.Is[*ast.ExprError](first) {
		p.synchronize()
	}
	return ast.NewExprStmt(first, spanFrom(start, p.cur.Span))
}

func (p *Parser) compoundAssignOp() (ast.BinaryOp, bool) {
	switch p.cur.Kind {
	case token.PlusEq:
		return ast.BinAdd, true
	case token.MinusEq:
		return ast.BinSub, true
	case token.StarEq:
		return ast.BinMul, true
	case token.SlashEq:
		return ast.BinDiv, true
	case token.PercentEq:
		return ast.BinMod, true
	case token.PowEq:
		return ast.BinPow, true
	}
	return 0, false
}

func (p *Parser) parseExprList() []ast.Node {
	exprs := []ast.Node{p.parseExpr()}
	for p.atPunct(',') {
		p.advance()
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}
