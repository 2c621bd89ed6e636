package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingletonsRoundTrip(t *testing.T) {
	assert.True(t, Null().IsNull())
	assert.True(t, Undefined().IsUndefined())
	assert.True(t, True().IsBool())
	assert.True(t, True().AsBool())
	assert.True(t, False().IsBool())
	assert.False(t, False().AsBool())
}

func TestDoubleRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.14159, math.MaxFloat64, -math.MaxFloat64, 1e300, -0.0} {
		v := Double(f)
		require := assert.New(t)
		require.True(v.IsDouble())
		require.Equal(f, v.AsDouble())
	}
}

func TestNaNDoesNotAliasSingletons(t *testing.T) {
	v := Double(math.NaN())
	assert.False(t, v.IsNull())
	assert.False(t, v.IsBool())
	assert.False(t, v.IsHandle())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, Undefined().Truthy())
	assert.False(t, False().Truthy())
	assert.True(t, True().Truthy())
	assert.True(t, Double(0).Truthy())
	assert.True(t, Double(0).Truthy(), "unlike some languages, 0 is truthy")
}

func TestHandleRoundTrip(t *testing.T) {
	h := Handle(0xDEADBEEF)
	assert.True(t, h.IsHandle())
	assert.Equal(t, uint64(0xDEADBEEF), h.AsHandle())
	assert.True(t, h.Truthy())
}

func TestDecodeRejectsReservedTags(t *testing.T) {
	bits := qnan | uint64(tagReserved1)<<tagShift
	_, err := Decode(bits)
	assert.ErrorAs(t, err, &ErrReservedTag{})
}

func TestDecodeAcceptsKnownTags(t *testing.T) {
	v, err := Decode(Null().Bits())
	assert.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "number", KindNumber.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
