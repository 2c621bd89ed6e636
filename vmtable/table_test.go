package vmtable

import (
	"testing"

	"github.com/clarete/vine/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strv(s string) value.Value {
	// deterministic stand-in for the VM's interned-string values: two
	// calls with the same text must produce equal Values for table
	// keys to behave correctly, so string Values are not exercised
	// directly by this package's tests beyond key equality.
	var h uint64
	for i := 0; i < len(s); i++ {
		h = h*31 + uint64(s[i])
	}
	return value.Handle(h)
}

func TestArrayPartGrowsContiguously(t *testing.T) {
	tbl := New()
	tbl.Set(value.Double(1), value.Double(10))
	tbl.Set(value.Double(2), value.Double(20))
	tbl.Set(value.Double(3), value.Double(30))
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, 20.0, tbl.Get(value.Double(2)).AsDouble())
}

func TestSparseIntegerKeyGoesToHashPart(t *testing.T) {
	tbl := New()
	tbl.Set(value.Double(100), value.Double(1))
	assert.Equal(t, 0, tbl.Len(), "a single key at index 100 is not a contiguous array border")
	assert.Equal(t, 1.0, tbl.Get(value.Double(100)).AsDouble())
}

func TestHashMigratesIntoArrayOnceContiguous(t *testing.T) {
	tbl := New()
	tbl.Set(value.Double(2), value.Double(20)) // sparse, goes to hash
	tbl.Set(value.Double(1), value.Double(10)) // now 1,2 are contiguous
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 20.0, tbl.Get(value.Double(2)).AsDouble())
}

func TestSetUndefinedDeletes(t *testing.T) {
	tbl := New()
	tbl.Set(strv("x"), value.Double(1))
	tbl.Set(strv("x"), value.Undefined())
	assert.True(t, tbl.Get(strv("x")).IsUndefined())
}

func TestMetamethodLookupAndAbsenceCache(t *testing.T) {
	SetStringKeyer(strv)
	defer SetStringKeyer(nil)

	tbl := New()
	meta := New()
	tbl.SetMeta(meta)

	_, ok := tbl.GetTaggedMethod(MMAdd)
	assert.False(t, ok)

	meta.Set(strv("__add"), value.Double(42))
	// still cached as absent until the metatable changes again.
	_, ok = tbl.GetTaggedMethod(MMAdd)
	assert.False(t, ok)

	tbl.SetMeta(meta) // re-install to invalidate the cache
	v, ok := tbl.GetTaggedMethod(MMAdd)
	require.True(t, ok)
	assert.Equal(t, 42.0, v.AsDouble())
}

func TestLookupMetamethodName(t *testing.T) {
	mm, ok := LookupMetamethod("__index")
	require.True(t, ok)
	assert.Equal(t, MMIndex, mm)

	_, ok = LookupMetamethod("__nope")
	assert.False(t, ok)
}

func TestNextIteratesArrayThenHash(t *testing.T) {
	SetStringKeyer(strv)
	defer SetStringKeyer(nil)

	tbl := New()
	tbl.Set(value.Double(1), value.Double(10))
	tbl.Set(value.Double(2), value.Double(20))
	tbl.Set(strv("k"), value.Double(99))

	k, v, ok := tbl.Next(value.Undefined())
	require.True(t, ok)
	assert.Equal(t, 1.0, k.AsDouble())
	assert.Equal(t, 10.0, v.AsDouble())

	k, v, ok = tbl.Next(k)
	require.True(t, ok)
	assert.Equal(t, 2.0, k.AsDouble())
	assert.Equal(t, 20.0, v.AsDouble())

	k, v, ok = tbl.Next(k)
	require.True(t, ok)
	assert.Equal(t, 99.0, v.AsDouble())

	_, _, ok = tbl.Next(k)
	assert.False(t, ok)
}
