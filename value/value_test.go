package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_NumberRoundTrip(t *testing.T) {
	for _, n := range []float64{0, 1, -1, 3.5, -3.5, math.MaxFloat64, -math.MaxFloat64} {
		v := Number(n)
		require.True(t, v.IsNumber())
		assert.Equal(t, n, v.AsNumber())
	}
}

func TestValue_Singletons(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.False(t, Nil.IsNumber())
	assert.False(t, Nil.IsBool())

	assert.True(t, True.IsBool())
	assert.True(t, True.AsBool())
	assert.True(t, False.IsBool())
	assert.False(t, False.AsBool())

	assert.False(t, Number(0).IsBool())
	assert.False(t, Number(0).IsNil())
}

func TestValue_IsFalsey(t *testing.T) {
	assert.True(t, Nil.IsFalsey())
	assert.True(t, False.IsFalsey())
	assert.False(t, True.IsFalsey())
	assert.False(t, Number(0).IsFalsey())
	assert.False(t, Obj_(&ObjString{Chars: ""}).IsFalsey())
}

func TestValue_ObjRoundTrip(t *testing.T) {
	s := &ObjString{Chars: "hello", Hash: FNV1a32("hello")}
	v := Obj_(s)
	require.True(t, v.IsObj())
	assert.Same(t, s, v.AsObj())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Number(2)))
	assert.True(t, Equal(Nil, Nil))
	assert.True(t, Equal(True, True))

	a := &ObjString{Chars: "x", Hash: FNV1a32("x")}
	b := &ObjString{Chars: "x", Hash: FNV1a32("x")}
	assert.True(t, Equal(Obj_(a), Obj_(a)))
	assert.False(t, Equal(Obj_(a), Obj_(b)), "objects compare by pointer identity, not content")
}
