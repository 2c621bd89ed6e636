package parser

import (
	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/diag"
	"github.com/clarete/vine/token"
)

// parseTypeExpr parses type annotations. These are accepted throughout
// the grammar wherever spec.md §4.2 allows a `: Type` suffix, but
// carried unenforced — no checker consumes them yet (spec.md §4.2,
// §9 Open Question).
func (p *Parser) parseTypeExpr() ast.Node {
	t := p.parseTypeUnion()
	return t
}

func (p *Parser) parseTypeUnion() ast.Node {
	start := p.cur.Span
	first := p.parseTypeIntersection()
	if !p.atPunct('|') {
		return first
	}
	options := []ast.Node{first}
	for p.atPunct('|') {
		p.advance()
		options = append(options, p.parseTypeIntersection())
	}
	return ast.NewTypeUnion(options, spanFrom(start, p.cur.Span))
}

func (p *Parser) parseTypeIntersection() ast.Node {
	start := p.cur.Span
	first := p.parseTypePrimary()
	if !p.atPunct('&') {
		return first
	}
	options := []ast.Node{first}
	for p.atPunct('&') {
		p.advance()
		options = append(options, p.parseTypePrimary())
	}
	return ast.NewTypeIntersection(options, spanFrom(start, p.cur.Span))
}

func (p *Parser) parseTypePrimary() ast.Node {
	start := p.cur.Span
	switch {
	case p.at(token.KwTrue):
		p.advance()
		return ast.NewTypeSingletonBool(true, start)
	case p.at(token.KwFalse):
		p.advance()
		return ast.NewTypeSingletonBool(false, start)
	case p.at(token.QuotedString) || p.at(token.RawString):
		t := p.advance()
		return ast.NewTypeSingletonString(t.Text, start)
	case p.at(token.Ellipsis):
		p.advance()
		typ := p.parseTypePrimary()
		return ast.NewTypePackVariadic(typ, spanFrom(start, typ.Span()))
	case p.atPunct('{'):
		return p.parseTypeTable()
	case p.atPunct('('):
		return p.parseTypeFunctionOrPack()
	case p.at(token.Name):
		name := p.advance()
		if name.Text == "typeof" && p.atPunct('(') {
			p.advance()
			e := p.parseExpr()
			end, _ := p.expectPunct(')')
			return ast.NewTypeOf(e, spanFrom(start, end.Span))
		}
		var args []ast.Node
		if p.atPunct('<') {
			p.advance()
			for !p.atPunct('>') {
				args = append(args, p.parseTypeExpr())
				if p.atPunct(',') {
					p.advance()
					continue
				}
				break
			}
			p.expectPunct('>')
		}
		if p.at(token.Ellipsis) {
			p.advance()
			return ast.NewTypePackGeneric(name.Text, spanFrom(start, p.cur.Span))
		}
		return ast.NewTypeRef(name.Text, args, spanFrom(start, p.cur.Span))
	}
	p.errorf(diag.MsgExpectedToken, "type", p.cur.Kind.String())
	bad := p.advance()
	return ast.NewTypeError(diag.MsgExpectedToken, []interface{}{"type", bad.Kind.String()}, start)
}

func (p *Parser) parseTypeTable() ast.Node {
	start := p.cur.Span
	p.expectPunct('{')
	var fields []ast.TypeTableField
	for !p.atPunct('}') {
		if p.atPunct('[') {
			p.advance()
			p.parseTypeExpr() // indexer key type, not tracked per-field
			p.expectPunct(']')
			p.expectPunct(':')
			typ := p.parseTypeExpr()
			fields = append(fields, ast.TypeTableField{Key: "", Type: typ})
		} else {
			name, _ := p.expectName()
			p.expectPunct(':')
			typ := p.parseTypeExpr()
			fields = append(fields, ast.TypeTableField{Key: name, Type: typ})
		}
		if p.atPunct(',') || p.atPunct(';') {
			p.advance()
			continue
		}
		break
	}
	end, _ := p.expectPunct('}')
	return ast.NewTypeTable(fields, spanFrom(start, end.Span))
}

// parseTypeFunctionOrPack disambiguates `(T1, T2) -> T3` function
// types from a plain explicit type pack `(T1, T2)`.
func (p *Parser) parseTypeFunctionOrPack() ast.Node {
	start := p.cur.Span
	p.expectPunct('(')
	var types []ast.Node
	for !p.atPunct(')') {
		types = append(types, p.parseTypeExpr())
		if p.atPunct(',') {
			p.advance()
			continue
		}
		break
	}
	end, _ := p.expectPunct(')')
	if p.at(token.Arrow) {
		p.advance()
		ret := p.parseTypeExpr()
		return ast.NewTypeFunction(types, ret, spanFrom(start, ret.Span()))
	}
	return ast.NewTypePackExplicit(types, spanFrom(start, end.Span))
}
