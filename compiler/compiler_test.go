package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/clarete/vine/bytecode"
	"github.com/clarete/vine/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	block, pdiags := parser.New([]byte(src)).Parse()
	require.Empty(t, pdiags, "unexpected parse diagnostics: %v", pdiags)
	mod, cdiags := New().Compile(block, "test.vn")
	require.Empty(t, cdiags, "unexpected compile diagnostics: %v", cdiags)
	require.NotNil(t, mod)
	return mod
}

func TestCompileLocalArithmetic(t *testing.T) {
	mod := compile(t, `
local a = 1
local b = a + 2
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "add")
	assert.Contains(t, dump, "load_key")
}

func TestCompileIfStmt(t *testing.T) {
	mod := compile(t, `
local a = 1
if a == 1 then
  a = 2
elif a == 2 then
  a = 3
else
  a = 4
end
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "jump_if_not")
	assert.Contains(t, dump, "eq")
}

func TestCompileWhileBreak(t *testing.T) {
	mod := compile(t, `
local i = 0
while i < 10 do
  i = i + 1
  if i == 5 then
    break
  end
end
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "jump_back")
	assert.Contains(t, dump, "lt")
}

func TestCompileNumericForWithStep(t *testing.T) {
	mod := compile(t, `
local total = 0
for i = 1, 10, 2 do
  total = total + i
end
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "for_numeric_loop_prepare")
	assert.Contains(t, dump, "for_numeric_loop")
}

func TestCompileRepeatUntil(t *testing.T) {
	mod := compile(t, `
local i = 0
repeat
  i = i + 1
until i >= 3
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "le")
}

func TestCompileClosureCapturesLocal(t *testing.T) {
	mod := compile(t, `
local function makeCounter()
  local n = 0
  local function increment()
    n = n + 1
    return n
  end
  return increment
end
`)
	require.Len(t, mod.Main.Children, 1)
	makeCounter := mod.Main.Children[0]
	require.Len(t, makeCounter.Children, 1)
	increment := makeCounter.Children[0]
	assert.EqualValues(t, 1, increment.NumUpvalues)
	dump := makeCounter.PrettyString()
	assert.Contains(t, dump, "new_closure")
	assert.Contains(t, dump, "capture")
	assert.Contains(t, dump, "close_upvalues")
}

func TestCompileMethodCallDesugarsSelf(t *testing.T) {
	mod := compile(t, `
local obj = {}
function obj:greet(name)
  return name
end
obj:greet("hi")
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "load_table")
	assert.True(t, strings.Contains(dump, "call"))
}

func TestCompileModuleSerializeRoundTrip(t *testing.T) {
	mod := compile(t, `
local a = 1
local b = a + 2
return b
`)
	var buf bytes.Buffer
	require.NoError(t, mod.Write(&buf))

	got, err := bytecode.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, mod.Main.PrettyString(), got.Main.PrettyString())
}

func TestCompileBindMethodEmitsBindMethodOpcode(t *testing.T) {
	mod := compile(t, `
local obj = {}
local bound = obj:greet
`)
	dump := mod.Main.PrettyString()
	assert.Contains(t, dump, "bind_method")
}

func TestCompileBreakOutsideLoopIsDiagnostic(t *testing.T) {
	block, pdiags := parser.New([]byte("break")).Parse()
	require.Empty(t, pdiags)
	_, diags := New().Compile(block, "test.vn")
	require.NotEmpty(t, diags)
}
