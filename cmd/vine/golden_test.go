package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clarete/vine/compiler"
	"github.com/clarete/vine/config"
	"github.com/clarete/vine/parser"
	"github.com/clarete/vine/value"
	"github.com/clarete/vine/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGolden parses, compiles, and runs one testdata/*.vn script to
// completion, registering the handful of stdlib seams the fixtures
// rely on (spec.md §1 carries no standard library; these are the
// host-supplied stand-ins an embedder would provide).
func runGolden(t *testing.T, name string) value.Value {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)

	block, pdiags := parser.New(src).Parse()
	require.Empty(t, pdiags, "unexpected parse diagnostics: %v", pdiags)
	mod, cdiags := compiler.New().Compile(block, name)
	require.Empty(t, cdiags, "unexpected compile diagnostics: %v", cdiags)

	s := vm.NewState(config.New())
	s.RegisterHost("setmetatable", func(s *vm.State, args []value.Value) ([]value.Value, error) {
		s.SetMetatable(args[0], args[1])
		return []value.Value{args[0]}, nil
	}, nil)

	closure := s.LoadProto(mod, name)
	results, err := s.Call(closure, nil, 1)
	require.NoError(t, err)
	return results[0]
}

func TestGoldenNumericForBreak(t *testing.T) {
	got := runGolden(t, "numeric_for_break.vn")
	assert.Equal(t, 10.0, got.AsDouble()) // 1+2+3+4
}

func TestGoldenClosureCapture(t *testing.T) {
	got := runGolden(t, "closure_capture.vn")
	assert.Equal(t, 3.0, got.AsDouble())
}

func TestGoldenAddMetamethod(t *testing.T) {
	got := runGolden(t, "add_metamethod.vn")
	assert.Equal(t, 3.0, got.AsDouble())
}

func TestGoldenBindMethod(t *testing.T) {
	got := runGolden(t, "bind_method.vn")
	assert.Equal(t, 15.0, got.AsDouble())
}
