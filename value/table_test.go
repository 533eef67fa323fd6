package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *ObjString {
	return &ObjString{Chars: s, Hash: FNV1a32(s)}
}

func TestTable_SetGetDelete(t *testing.T) {
	tbl := NewTable()
	key := str("count")

	isNew := tbl.Set(key, Number(1))
	assert.True(t, isNew)

	v, ok := tbl.Get(key)
	require.True(t, ok)
	assert.Equal(t, float64(1), v.AsNumber())

	isNew = tbl.Set(key, Number(2))
	assert.False(t, isNew, "re-setting an existing key is not a new insert")
	v, _ = tbl.Get(key)
	assert.Equal(t, float64(2), v.AsNumber())

	assert.True(t, tbl.Delete(key))
	_, ok = tbl.Get(key)
	assert.False(t, ok)
	assert.False(t, tbl.Delete(key), "deleting twice reports no entry present")
}

func TestTable_GrowsAndKeepsEntries(t *testing.T) {
	tbl := NewTable()
	keys := make([]*ObjString, 0, 64)
	for i := 0; i < 64; i++ {
		k := str(string(rune('a' + i%26)) + string(rune('0'+i/26)))
		keys = append(keys, k)
		tbl.Set(k, Number(float64(i)))
	}
	assert.Equal(t, 64, tbl.Len())
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestTable_FindString(t *testing.T) {
	tbl := NewTable()
	key := str("needle")
	tbl.Set(key, Nil)

	found := tbl.FindString("needle", FNV1a32("needle"))
	require.NotNil(t, found)
	assert.Same(t, key, found)

	assert.Nil(t, tbl.FindString("missing", FNV1a32("missing")))
}

func TestTable_AddAll(t *testing.T) {
	a, b := str("a"), str("b")

	src := NewTable()
	src.Set(a, Number(1))
	src.Set(b, Number(2))

	dst := NewTable()
	dst.Set(a, Number(99))
	dst.AddAll(src)

	v, _ := dst.Get(a)
	assert.Equal(t, float64(1), v.AsNumber(), "AddAll overwrites existing keys from src")
	v, _ = dst.Get(b)
	assert.Equal(t, float64(2), v.AsNumber())
}
