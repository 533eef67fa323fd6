package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/value"
)

func newStr(s string) *value.ObjString {
	return &value.ObjString{Chars: s, Hash: value.FNV1a32(s)}
}

func TestHeap_RegisterAddsToInfant(t *testing.T) {
	h := New(Options{})
	a := newStr("a")
	h.Register(a)
	assert.False(t, h.ShouldCollectInfant())
}

func TestHeap_ShouldCollectInfant_ThresholdAndStress(t *testing.T) {
	h := New(Options{InfantThreshold: objSize})
	h.Register(newStr("a"))
	assert.False(t, h.ShouldCollectInfant(), "one object at exactly the threshold hasn't crossed it")
	h.Register(newStr("b"))
	assert.True(t, h.ShouldCollectInfant())

	stressed := New(Options{StressTest: true})
	assert.True(t, stressed.ShouldCollectInfant())
}

func TestHeap_CollectionDisabled(t *testing.T) {
	h := New(Options{StressTest: true})
	prev := h.SetCollectionDisabled(true)
	assert.False(t, prev)
	assert.False(t, h.ShouldCollectInfant())
	assert.False(t, h.ShouldCollectOlder())

	prev = h.SetCollectionDisabled(false)
	assert.True(t, prev)
	assert.True(t, h.ShouldCollectInfant())
}

func TestHeap_CollectInfant_SweepsUnreachable(t *testing.T) {
	h := New(Options{})
	reachable := newStr("kept")
	garbage := newStr("collected")
	h.Register(reachable)
	h.Register(garbage)

	h.CollectInfant(func(mark func(value.Obj)) {
		mark(reachable)
	}, nil)

	assert.Equal(t, 1, h.Stats.Collections)
	assert.Equal(t, 1, h.Stats.Promotions, "only the reachable object survives into the older generation")
	assert.Equal(t, objSize, h.Stats.BytesReclaimed)

	assert.Equal(t, reachable, h.olderHead)
	assert.False(t, value.HeaderOf(reachable).IsMarked(), "survivors are unmarked again after the sweep")
}

func TestHeap_CollectInfant_DontCollectSurvives(t *testing.T) {
	h := New(Options{})
	pinned := newStr("pinned")
	value.HeaderOf(pinned).SetDontCollect(true)
	h.Register(pinned)

	h.CollectInfant(func(mark func(value.Obj)) {}, nil)

	assert.Equal(t, pinned, h.olderHead, "dontCollect objects survive even when unreached by any root")
}

func TestHeap_CollectOlder_AlsoMarksInfantReachability(t *testing.T) {
	h := New(Options{})

	older := newStr("older")
	value.HeaderOf(older).SetGeneration(1)
	h.olderHead = older
	h.olderBytes = objSize

	stillYoung := newStr("young")
	h.Register(stillYoung)

	h.CollectOlder(func(mark func(value.Obj)) {}, nil)

	assert.Nil(t, h.olderHead, "unreachable older object is swept since no root marked it")
	assert.False(t, value.HeaderOf(stillYoung).IsMarked(), "infant generation is unaffected by an older collection's sweep")
}

func TestHeap_CollectOlder_GrowsThreshold(t *testing.T) {
	h := New(Options{OlderGrowFactor: 2.0})
	kept := newStr("kept")
	h.olderHead = kept
	h.olderBytes = objSize

	h.CollectOlder(func(mark func(value.Obj)) {
		mark(kept)
	}, nil)

	assert.Equal(t, int(float64(objSize+1)*2.0), h.olderNext)
}

func TestHeap_Mark_IsIdempotent(t *testing.T) {
	h := New(Options{})
	o := newStr("x")
	h.Mark(o)
	require.Len(t, h.gray, 1)
	h.Mark(o)
	assert.Len(t, h.gray, 1, "marking an already-marked object is a no-op")
}

func TestHeap_Mark_NilIsNoop(t *testing.T) {
	h := New(Options{})
	h.Mark(nil)
	assert.Empty(t, h.gray)
}

func TestHeap_CollectInfant_AfterTraceSeesMarksBeforeSweepClearsThem(t *testing.T) {
	h := New(Options{})
	reachable := newStr("kept")
	garbage := newStr("collected")
	h.Register(reachable)
	h.Register(garbage)

	var sawReachableMarked, sawGarbageMarked bool
	h.CollectInfant(func(mark func(value.Obj)) {
		mark(reachable)
	}, func() {
		sawReachableMarked = value.HeaderOf(reachable).IsMarked()
		sawGarbageMarked = value.HeaderOf(garbage).IsMarked()
	})

	assert.True(t, sawReachableMarked, "afterTrace must run before sweep clears a survivor's mark bit")
	assert.False(t, sawGarbageMarked, "an unrooted object is still unmarked when afterTrace runs")
}

func TestDefaultOptions_FillZeroValues(t *testing.T) {
	h := New(Options{})
	assert.Equal(t, DefaultOptions().InfantThreshold, h.opts.InfantThreshold)
	assert.Equal(t, DefaultOptions().OlderGrowFactor, h.opts.OlderGrowFactor)
}
