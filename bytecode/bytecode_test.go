package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionEncodeDecodeABC(t *testing.T) {
	i := ABC(OpAdd, 1, 2, 3)
	words := i.Encode()
	require.Len(t, words, 1)
	decoded := Decode(words, 0)
	assert.Equal(t, OpAdd, decoded.Op)
	assert.EqualValues(t, 1, decoded.A)
	assert.EqualValues(t, 2, decoded.B)
	assert.EqualValues(t, 3, decoded.C)
}

func TestInstructionEncodeDecodeADNegative(t *testing.T) {
	i := AD(OpJump, 0, -1000)
	words := i.Encode()
	decoded := Decode(words, 0)
	assert.EqualValues(t, -1000, decoded.D)
}

func TestInstructionWithAux(t *testing.T) {
	i := AD(OpLoadGlobal, 5, 0)
	i.Aux = 0xCAFEBABE
	words := i.Encode()
	require.Len(t, words, 2)
	decoded := Decode(words, 0)
	assert.EqualValues(t, 5, decoded.A)
	assert.EqualValues(t, 0xCAFEBABE, decoded.Aux)
}

func TestLineInfoCompression(t *testing.T) {
	lines := []int32{10, 10, 10, 11, 11, 12, 300, 300}
	li := compressLines(lines)
	for i, want := range lines {
		assert.Equal(t, want, li.LineAt(i), "instruction %d", i)
	}
}

func TestBuilderSimpleFunction(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	b.SetLine(1)
	kIdx := b.AddConstantNumber(42)
	b.EmitAD(OpLoadNumber, 0, int32(kIdx))
	b.EmitABC(OpCallReturn, 0, 1, 0)
	proto, err := b.EndFunction(2, 0)
	require.NoError(t, err)
	assert.Len(t, proto.InstrStarts(), 2)
	assert.Equal(t, OpLoadNumber, Decode(proto.Code, 0).Op)
}

func TestBuilderConstantDedup(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	first := b.AddConstantNumber(7)
	second := b.AddConstantNumber(7)
	assert.Equal(t, first, second)
	third := b.AddConstantNumber(8)
	assert.NotEqual(t, first, third)
	b.EmitABC(OpCallReturn, 0, 0, 0)
	_, err := b.EndFunction(1, 0)
	require.NoError(t, err)
}

func TestBuilderJumpPatchAndForwardExecution(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	jmp := b.EmitAD(OpJump, 0, 0)
	b.EmitABC(OpLoadNull, 0, 0, 0) // skipped
	target := b.EmitABC(OpCallReturn, 0, 0, 0)
	ok := b.PatchJumpD(jmp, target)
	require.True(t, ok)
	proto, err := b.EndFunction(1, 0)
	require.NoError(t, err)

	// After folding, the jump-to-call_return collapses in place.
	decoded := Decode(proto.Code, 0)
	assert.Equal(t, OpCallReturn, decoded.Op)
}

func TestBuilderUnconditionalChainFolds(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	j1 := b.EmitAD(OpJump, 0, 0)
	j2 := b.EmitAD(OpJump, 0, 0)
	b.PatchJumpD(j1, j2)
	b.EmitABC(OpLoadNull, 0, 0, 0)
	final := b.EmitABC(OpAdd, 0, 0, 0)
	b.PatchJumpD(j2, final)
	b.EmitABC(OpCallReturn, 0, 0, 0)
	proto, err := b.EndFunction(1, 0)
	require.NoError(t, err)

	starts := proto.InstrStarts()
	first := Decode(proto.Code, starts[0])
	require.Equal(t, OpJump, first.Op)
	// the first jump (j1) is retargeted to `final` directly, two
	// instructions past j2 (which itself still points at final).
	assert.Equal(t, int32(2), first.D)
}

func TestLongJumpExpansion(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	cond := b.EmitAD(OpJumpIfNot, 0, 0)
	for i := 0; i < 20000; i++ {
		b.EmitABC(OpLoadNull, 0, 0, 0)
	}
	end := b.EmitABC(OpCallReturn, 0, 0, 0)
	ok := b.PatchJumpD(cond, end)
	require.True(t, ok)
	proto, err := b.EndFunction(1, 0)
	require.NoError(t, err)

	starts := proto.InstrStarts()
	first := Decode(proto.Code, starts[0])
	assert.Equal(t, OpJump, first.Op)
	second := Decode(proto.Code, starts[1])
	assert.Equal(t, OpJumpExtra, second.Op)
	third := Decode(proto.Code, starts[2])
	assert.Equal(t, OpJumpIfNot, third.Op)
	assert.Equal(t, int32(-2), third.D)
}

func TestValidationRejectsOutOfRangeRegister(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	b.EmitABC(OpAdd, 200, 0, 0)
	_, err := b.EndFunction(4, 0)
	require.Error(t, err)
	var verr ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestModuleSerializeRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(1, false)
	b.SetDebugFunctionName("main")
	sIdx := b.AddConstantString("hello")
	b.EmitAD(OpLoadKey, 0, sIdx)
	b.EmitABC(OpCallReturn, 0, 1, 0)
	main, err := b.EndFunction(2, 0)
	require.NoError(t, err)

	mod := b.Module(main)
	mod.SourceName = "test.vine"

	var buf bytes.Buffer
	require.NoError(t, mod.Write(&buf))

	loaded, err := Read(&buf)
	require.NoError(t, err)
	require.NotNil(t, loaded.Main)
	assert.Equal(t, "main", loaded.Main.DebugName)
	assert.Equal(t, []string{"hello"}, loaded.Strings)
	assert.Equal(t, main.Code, loaded.Main.Code)
	require.Len(t, loaded.Main.Constants, 1)
	assert.Equal(t, ConstString, loaded.Main.Constants[0].Kind)
}

func TestProtoPrettyStringContainsOpNames(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	b.EmitABC(OpAdd, 0, 1, 2)
	b.EmitABC(OpCallReturn, 0, 0, 0)
	proto, err := b.EndFunction(3, 0)
	require.NoError(t, err)

	out := proto.PrettyString()
	assert.Contains(t, out, "add")
	assert.Contains(t, out, "call_return")
}

func TestProtoDebugJSON(t *testing.T) {
	b := NewBuilder()
	b.BeginFunction(0, false)
	b.SetDebugFunctionName("f")
	b.EmitABC(OpAdd, 0, 1, 2)
	b.EmitABC(OpCallReturn, 0, 0, 0)
	proto, err := b.EndFunction(3, 0)
	require.NoError(t, err)

	data, err := proto.DebugJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"f"`)
	assert.Contains(t, string(data), `"op":"add"`)
}
