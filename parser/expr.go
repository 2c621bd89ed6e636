package parser

import (
	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/diag"
	"github.com/clarete/vine/token"
)

// binOp describes one binary operator's precedence level and
// associativity for the climbing parser below (spec.md §4.2's
// precedence table).
type binOp struct {
	prec   int
	right  bool
	op     ast.BinaryOp
}

// binOps maps a lexical token to its binary operator, ordered lowest
// to highest precedence: or < and < | < ~ < & < ==/!= < </<=/>/>= <
// <</>> < .. (concat, right-assoc) < +/- < */,/% < ** (right-assoc,
// binds tighter than unary so `-x**2` parses as `-(x**2)`).
func (p *Parser) binOpFor(t token.Token) (binOp, bool) {
	switch t.Kind {
	case token.KwOr:
		return binOp{1, false, ast.BinOr}, true
	case token.KwAnd:
		return binOp{2, false, ast.BinAnd}, true
	case token.Eq:
		return binOp{6, false, ast.BinEq}, true
	case token.NotEq:
		return binOp{6, false, ast.BinNotEq}, true
	case token.LessEq:
		return binOp{7, false, ast.BinLe}, true
	case token.GreaterEq:
		return binOp{7, false, ast.BinGe}, true
	case token.Shl:
		return binOp{8, false, ast.BinShl}, true
	case token.Shr:
		return binOp{8, false, ast.BinShr}, true
	case token.Concat:
		return binOp{9, true, ast.BinConcat}, true
	case token.Pow:
		return binOp{13, true, ast.BinPow}, true
	case token.Punct:
		switch t.Rune {
		case '|':
			return binOp{3, false, ast.BinBOr}, true
		case '~':
			return binOp{4, false, ast.BinBXor}, true
		case '&':
			return binOp{5, false, ast.BinBAnd}, true
		case '<':
			return binOp{7, false, ast.BinLt}, true
		case '>':
			return binOp{7, false, ast.BinGt}, true
		case '+':
			return binOp{10, false, ast.BinAdd}, true
		case '-':
			return binOp{10, false, ast.BinSub}, true
		case '*':
			return binOp{11, false, ast.BinMul}, true
		case '/':
			return binOp{11, false, ast.BinDiv}, true
		case '%':
			return binOp{11, false, ast.BinMod}, true
		}
	}
	return binOp{}, false
}

// parseExpr parses a full expression, including the `if ... then ...
// else ...` conditional expression form (spec.md §4.2) and the
// type-assertion suffix `expr :: Type`.
func (p *Parser) parseExpr() ast.Node {
	if p.at(token.KwIf) {
		return p.parseIfExpr()
	}
	e := p.parseBinExpr(0)
	if p.at(token.DoubleColon) {
		start := e.Span()
		p.advance()
		typ := p.parseTypeExpr()
		e = ast.NewTypeAssert(e, typ, spanFrom(start, typ.Span()))
	}
	return e
}

func (p *Parser) parseIfExpr() ast.Node {
	start := p.cur.Span
	p.advance() // if
	cond := p.parseBinExpr(0)
	p.expect(token.KwThen)
	then := p.parseExpr()
	var els ast.Node
	if p.at(token.KwElse) {
		p.advance()
		els = p.parseExpr()
	}
	return ast.NewIfExpr(cond, then, els, spanFrom(start, p.cur.Span))
}

// parseBinExpr implements precedence climbing: it parses a unary
// expression, then repeatedly consumes binary operators whose
// precedence is at least minPrec.
func (p *Parser) parseBinExpr(minPrec int) ast.Node {
	left := p.parseUnary()
	for {
		op, ok := p.binOpFor(p.cur)
		if !ok || op.prec < minPrec {
			return left
		}
		p.advance()
		nextMin := op.prec + 1
		if op.right {
			nextMin = op.prec
		}
		right := p.parseBinExpr(nextMin)
		left = ast.NewBinary(op.op, left, right, spanFrom(left.Span(), right.Span()))
	}
}

func (p *Parser) parseUnary() ast.Node {
	start := p.cur.Span
	switch {
	case p.at(token.KwNot):
		p.advance()
		e := p.parseUnary()
		return ast.NewUnary(ast.UnaryNot, e, spanFrom(start, e.Span()))
	case p.atPunct('-'):
		p.advance()
		e := p.parseUnary()
		return ast.NewUnary(ast.UnaryNeg, e, spanFrom(start, e.Span()))
	case p.atPunct('#'):
		p.advance()
		e := p.parseUnary()
		return ast.NewUnary(ast.UnaryLen, e, spanFrom(start, e.Span()))
	case p.atPunct('~'):
		p.advance()
		e := p.parseUnary()
		return ast.NewUnary(ast.UnaryBNot, e, spanFrom(start, e.Span()))
	}
	return p.parsePow()
}

// parsePow binds `**` tighter than unary operators, so the operand to
// its left is itself parsed through the power level, matching Lua's
// `^` precedence rule.
func (p *Parser) parsePow() ast.Node {
	base := p.parseSuffixedExpr()
	if p.at(token.Pow) {
		start := base.Span()
		p.advance()
		rhs := p.parseUnary() // right-assoc, and RHS may itself be unary (`2**-1`)
		return ast.NewBinary(ast.BinPow, base, rhs, spanFrom(start, rhs.Span()))
	}
	return base
}

// parseSuffixedExpr parses a primary expression followed by any chain
// of `.field`, `[expr]`, `(args)`, and `:method(args)` suffixes.
func (p *Parser) parseSuffixedExpr() ast.Node {
	e := p.parsePrimary()
	for {
		start := e.Span()
		switch {
		case p.atPunct('.'):
			p.advance()
			name, _ := p.expectName()
			e = ast.NewIndex(e, ast.NewStringLit(name, p.cur.Span), true, spanFrom(start, p.cur.Span))
		case p.atPunct('['):
			p.advance()
			key := p.parseExpr()
			end, _ := p.expectPunct(']')
			e = ast.NewIndex(e, key, false, spanFrom(start, end.Span))
		case p.atPunct('('):
			args := p.parseArgs()
			e = ast.NewCall(e, "", args, spanFrom(start, p.cur.Span))
		case p.at(token.QuotedString) || p.at(token.RawString):
			// `f "literal"` sugar: a single string literal as the sole
			// argument with no parentheses.
			s := p.parseStringLit()
			e = ast.NewCall(e, "", []ast.Node{s}, spanFrom(start, p.cur.Span))
		case p.atPunct('{'):
			t := p.parseTableCtor()
			e = ast.NewCall(e, "", []ast.Node{t}, spanFrom(start, p.cur.Span))
		case p.atPunct(':'):
			p.advance()
			method, _ := p.expectName()
			if !p.atPunct('(') && !p.at(token.QuotedString) && !p.at(token.RawString) && !p.atPunct('{') {
				// `obj:method` not immediately called is a bound-method
				// value, not a call (SPEC_FULL.md §12).
				e = ast.NewBindMethod(e, method, spanFrom(start, p.cur.Span))
				continue
			}
			args := p.parseArgs()
			e = ast.NewCall(e, method, args, spanFrom(start, p.cur.Span))
		default:
			return e
		}
	}
}

func (p *Parser) parseArgs() []ast.Node {
	p.expectPunct('(')
	var args []ast.Node
	for !p.atPunct(')') {
		args = append(args, p.parseExpr())
		if p.atPunct(',') {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(')')
	return args
}

func (p *Parser) parseStringLit() ast.Node {
	t := p.advance()
	return ast.NewStringLit(t.Text, t.Span)
}

func (p *Parser) parsePrimary() ast.Node {
	start := p.cur.Span
	switch p.cur.Kind {
	case token.KwNull:
		p.advance()
		return ast.NewNullLit(start)
	case token.KwTrue:
		p.advance()
		return ast.NewBoolLit(true, start)
	case token.KwFalse:
		p.advance()
		return ast.NewBoolLit(false, start)
	case token.Number:
		t := p.advance()
		return ast.NewNumberLit(t.Number, t.String(), start)
	case token.QuotedString, token.RawString:
		return p.parseStringLit()
	case token.Ellipsis:
		p.advance()
		return ast.NewVararg(start)
	case token.Name:
		t := p.advance()
		return ast.NewLocalRef(t.Text, start)
	case token.KwFunction:
		p.advance()
		return p.parseFunctionBody("")
	default:
		if p.atPunct('(') {
			p.advance()
			e := p.parseExpr()
			end, _ := p.expectPunct(')')
			return ast.NewGroup(e, spanFrom(start, end.Span))
		}
		if p.atPunct('{') {
			return p.parseTableCtor()
		}
	}
	p.errorf(diag.MsgExpectedExpression, p.cur.Kind.String())
	bad := p.advance()
	p.synchronize()
	return ast.NewExprError(diag.MsgExpectedExpression, []interface{}{bad.Kind.String()}, start)
}

// parseTableCtor parses `{ [expr]=expr, name=expr, expr, ... }`
// (spec.md §4.2): explicit keys, name-sugar keys, and bare positional
// entries may be freely mixed.
func (p *Parser) parseTableCtor() ast.Node {
	start := p.cur.Span
	p.expectPunct('{')
	var fields []ast.TableField
	for !p.atPunct('}') {
		switch {
		case p.atPunct('['):
			p.advance()
			key := p.parseExpr()
			p.expectPunct(']')
			p.expectPunct('=')
			val := p.parseExpr()
			fields = append(fields, ast.TableField{Key: key, Value: val})
		case p.at(token.Name) && p.lex.PeekNext().Kind == token.Punct && p.lex.PeekNext().Rune == '=':
			name := p.advance()
			p.advance() // '='
			val := p.parseExpr()
			fields = append(fields, ast.TableField{Key: ast.NewStringLit(name.Text, name.Span), Value: val})
		default:
			val := p.parseExpr()
			fields = append(fields, ast.TableField{Key: nil, Value: val})
		}
		if p.atPunct(',') || p.atPunct(';') {
			p.advance()
			continue
		}
		break
	}
	end, _ := p.expectPunct('}')
	return ast.NewTableCtor(fields, spanFrom(start, end.Span))
}
