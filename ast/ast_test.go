package ast

import (
	"testing"

	"github.com/clarete/vine/diag"
	"github.com/stretchr/testify/assert"
)

func TestWalkControlsRecursion(t *testing.T) {
	inner := NewNumberLit(1, "1", diag.Span{})
	outer := NewUnary(UnaryNeg, inner, diag.Span{})

	var visited []Kind
	Walk(outer, func(n Node) bool {
		visited = append(visited, n.Kind())
		return false // never descend
	})
	assert.Equal(t, []Kind{KindUnary}, visited)

	visited = nil
	Walk(outer, func(n Node) bool {
		visited = append(visited, n.Kind())
		return true
	})
	assert.Equal(t, []Kind{KindUnary, KindNumberLit}, visited)
}

func TestIsAndAs(t *testing.T) {
	var n Node = NewBoolLit(true, diag.Span{})
	assert.True(t, Is[*BoolLit](n))
	assert.False(t, Is[*NumberLit](n))

	b, ok := As[*BoolLit](n)
	assert.True(t, ok)
	assert.True(t, b.Value)
}

func TestPrettyStringRendersShape(t *testing.T) {
	block := NewBlock([]Node{
		NewLocalDecl([]string{"x"}, []Node{nil}, []Node{NewNumberLit(0, "0", diag.Span{})}, diag.Span{}),
	}, diag.Span{})
	out := PrettyString(block)
	assert.Contains(t, out, "Block")
	assert.Contains(t, out, "LocalDecl")
	assert.Contains(t, out, "NumberLit")
}
