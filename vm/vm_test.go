package vm

import (
	"fmt"
	"testing"

	"github.com/clarete/vine/compiler"
	"github.com/clarete/vine/config"
	"github.com/clarete/vine/parser"
	"github.com/clarete/vine/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, src string) (*State, *Closure) {
	t.Helper()
	block, pdiags := parser.New([]byte(src)).Parse()
	require.Empty(t, pdiags, "unexpected parse diagnostics: %v", pdiags)
	mod, cdiags := compiler.New().Compile(block, "test.vn")
	require.Empty(t, cdiags, "unexpected compile diagnostics: %v", cdiags)
	s := NewState(config.New())
	return s, s.LoadProto(mod, "test.vn")
}

func run(t *testing.T, src string, nresults int) []value.Value {
	t.Helper()
	s, closure := load(t, src)
	results, err := s.Call(closure, nil, nresults)
	require.NoError(t, err)
	return results
}

func TestArithmeticAndLocals(t *testing.T) {
	results := run(t, `
local a = 1
local b = a + 2
local c = b * 3
return c
`, 1)
	require.True(t, results[0].IsDouble())
	assert.Equal(t, 9.0, results[0].AsDouble())
}

func TestIfElifElse(t *testing.T) {
	results := run(t, `
local x = 2
local out = 0
if x == 1 then
  out = 10
elif x == 2 then
  out = 20
else
  out = 30
end
return out
`, 1)
	assert.Equal(t, 20.0, results[0].AsDouble())
}

func TestNumericForWithBreak(t *testing.T) {
	results := run(t, `
local sum = 0
for i = 1, 10 do
  if i == 5 then
    break
  end
  sum = sum + i
end
return sum
`, 1)
	assert.Equal(t, 10.0, results[0].AsDouble()) // 1+2+3+4
}

func TestNumericForWithNegativeStep(t *testing.T) {
	results := run(t, `
local sum = 0
for i = 5, 1, -1 do
  sum = sum + i
end
return sum
`, 1)
	assert.Equal(t, 15.0, results[0].AsDouble())
}

func TestWhileLoop(t *testing.T) {
	results := run(t, `
local i = 0
local sum = 0
while i < 5 do
  sum = sum + i
  i = i + 1
end
return sum
`, 1)
	assert.Equal(t, 10.0, results[0].AsDouble())
}

func TestClosureCapturesLocalByReference(t *testing.T) {
	results := run(t, `
local function makeCounter()
  local count = 0
  local function increment()
    count = count + 1
    return count
  end
  return increment
end

local increment = makeCounter()
increment()
increment()
return increment()
`, 1)
	assert.Equal(t, 3.0, results[0].AsDouble())
}

func TestRecursiveFunctionCall(t *testing.T) {
	results := run(t, `
local function fib(n)
  if n < 2 then
    return n
  end
  return fib(n - 1) + fib(n - 2)
end
return fib(10)
`, 1)
	assert.Equal(t, 55.0, results[0].AsDouble())
}

func TestDeepIterativeRecursionDoesNotOverflowGoStack(t *testing.T) {
	block, pdiags := parser.New([]byte(`
local function countdown(n, acc)
  if n == 0 then
    return acc
  end
  return countdown(n - 1, acc + 1)
end
return countdown(50000, 0)
`)).Parse()
	require.Empty(t, pdiags)
	mod, cdiags := compiler.New().Compile(block, "test.vn")
	require.Empty(t, cdiags)

	cfg := config.New()
	cfg.SetInt("vm.call_depth_limit", 100000)
	s := NewState(cfg)
	closure := s.LoadProto(mod, "test.vn")

	results, err := s.Call(closure, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, results[0].AsDouble())
}

func TestMethodCallDesugarsSelf(t *testing.T) {
	s, closure := load(t, `
local obj = {}
function obj:greet(name)
  return name
end
return obj:greet("hi")
`)
	results, err := s.Call(closure, nil, 1)
	require.NoError(t, err)
	str, ok := s.gc.ReadString(results[0])
	require.True(t, ok)
	assert.Equal(t, "hi", str)
}

func TestAddMetamethod(t *testing.T) {
	s, closure := load(t, `
local function addVectors(a, b)
  return a + b
end
return addVectors
`)
	results, err := s.Call(closure, nil, 1)
	require.NoError(t, err)
	addFn := results[0]

	vecAHandle, vecA := s.NewTable()
	vecBHandle, vecB := s.NewTable()
	vecA.Set(s.String("x"), value.Double(1))
	vecB.Set(s.String("x"), value.Double(2))

	metaHandle, meta := s.NewTable()
	addMM := s.gc.NewHostClosure(func(args []value.Value) ([]value.Value, error) {
		at, _ := s.gc.Table(args[0])
		bt, _ := s.gc.Table(args[1])
		sum := at.Get(s.String("x")).AsDouble() + bt.Get(s.String("x")).AsDouble()
		rh, rt := s.NewTable()
		rt.Set(s.String("x"), value.Double(sum))
		return []value.Value{rh}, nil
	})
	meta.Set(s.String("__add"), addMM)

	require.True(t, s.SetMetatable(vecAHandle, metaHandle))

	result, err := s.ProtectedCall(addFn, []value.Value{vecAHandle, vecBHandle}, 1)
	require.NoError(t, err)
	sumTbl, ok := s.gc.Table(result[0])
	require.True(t, ok)
	assert.Equal(t, 3.0, sumTbl.Get(s.String("x")).AsDouble())
}

func TestBindMethodProducesReceiverBoundCallable(t *testing.T) {
	results := run(t, `
local obj = {}
obj.base = 10
function obj:addTo(n)
  return self.base + n
end
local bound = obj:addTo
return bound(5)
`, 1)
	assert.Equal(t, 15.0, results[0].AsDouble())
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	s, closure := load(t, `
local x = 1
return x()
`)
	_, err := s.Call(closure, nil, 1)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "attempt to call")
}

func TestIndexingUndeclaredFieldYieldsNull(t *testing.T) {
	results := run(t, `
local t = {}
return t.missing
`, 1)
	assert.True(t, results[0].IsNull())
}

// pairsHost implements the `for k, v in pairs(t)` iterator calling
// convention this compiler's generic-for lowering actually uses: a
// single iterator expression is called repeatedly with no meaningful
// arguments, stopping when its first result is falsy — not Lua's
// three-value iterator/state/control protocol.
func pairsHost(s *State, args []value.Value) ([]value.Value, error) {
	tbl, ok := s.gc.Table(args[0])
	if !ok {
		return nil, fmt.Errorf("pairs: argument is not a table")
	}
	cur := value.Undefined()
	iter := s.gc.NewHostClosure(func([]value.Value) ([]value.Value, error) {
		k, v, ok := tbl.Next(cur)
		if !ok {
			return []value.Value{value.Null()}, nil
		}
		cur = k
		return []value.Value{k, v}, nil
	})
	return []value.Value{iter}, nil
}

func TestGenericForOverTable(t *testing.T) {
	s, closure := load(t, `
local sum = 0
local t = {}
t.a = 1
t.b = 2
t.c = 3
for k, v in pairs(t) do
  sum = sum + v
end
return sum
`)
	s.RegisterHost("pairs", pairsHost, nil)
	results, err := s.Call(closure, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 6.0, results[0].AsDouble())
}
