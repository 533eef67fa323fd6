// Package gc implements loxvm's two-generation tracing collector: a small
// "infant" generation for new allocations and an "older" generation for
// survivors, collected independently per spec §4.4. The collector only knows
// about value.Obj; the VM supplies root enumeration, since roots live across
// the VM, compiler, module and debugger subsystems (spec §1).
package gc

import (
	"fmt"

	"github.com/loxlang/loxvm/value"
)

// Options configures collection thresholds and diagnostics.
type Options struct {
	// InfantThreshold is the byte budget for the infant generation before a
	// collection is triggered from the allocator.
	InfantThreshold int
	// OlderGrowFactor scales the older generation's threshold after each
	// older collection, the way clox's GC_HEAP_GROW_FACTOR does.
	OlderGrowFactor float64
	// StressTest forces a collection on every allocation, build-time toggle
	// described in spec §4.4.
	StressTest bool
	// LogCollections, when set, receives one line per collection cycle.
	LogCollections func(msg string)
}

// DefaultOptions returns a 64 KiB infant budget and 2x older-generation growth.
func DefaultOptions() Options {
	return Options{
		InfantThreshold: 1 << 16,
		OlderGrowFactor: 2.0,
	}
}

// Heap owns the two generation lists and drives allocation/collection.
type Heap struct {
	opts Options

	infantHead  value.Obj
	olderHead   value.Obj
	infantBytes int
	olderBytes  int
	olderNext   int

	gray []value.Obj

	// collectionDisabled supports the allocator's "disable GC during
	// bootstrap" toggle (spec §4.4).
	collectionDisabled bool

	Stats Stats
}

// Stats tracks cumulative collector activity, useful for tests asserting
// soundness property §8.4.
type Stats struct {
	Collections     int
	BytesReclaimed  int
	Promotions      int
}

// New creates a Heap with the given options.
func New(opts Options) *Heap {
	if opts.InfantThreshold == 0 {
		opts.InfantThreshold = DefaultOptions().InfantThreshold
	}
	if opts.OlderGrowFactor == 0 {
		opts.OlderGrowFactor = DefaultOptions().OlderGrowFactor
	}
	h := &Heap{opts: opts}
	h.olderNext = opts.InfantThreshold * 4
	return h
}

// objSize is a coarse, constant per-object accounting unit. loxvm doesn't
// need byte-exact accounting (Go's own runtime owns real memory); the
// collector only needs monotonically increasing pressure to decide when to
// run, matching the *observable* behaviour spec §8.4 requires rather than
// clox's literal sizeof().
const objSize = 48

// Register adds a freshly allocated object to the infant generation. Callers
// (the VM's allocator) must call this exactly once per new object, in the
// same order objects become reachable, so the GC-safety discipline in spec
// §4.4 (push-before-link) is honored by the allocator, not by the heap.
func (h *Heap) Register(o value.Obj) {
	hdr := value.HeaderOf(o)
	hdr.SetNext(h.infantHead)
	h.infantHead = o
	h.infantBytes += objSize
}

// ShouldCollectInfant reports whether the infant generation has crossed its
// byte threshold (or stress-test mode forces every allocation to collect).
func (h *Heap) ShouldCollectInfant() bool {
	if h.collectionDisabled {
		return false
	}
	return h.opts.StressTest || h.infantBytes > h.opts.InfantThreshold
}

// ShouldCollectOlder reports whether the older generation has crossed its
// (growing) threshold.
func (h *Heap) ShouldCollectOlder() bool {
	if h.collectionDisabled {
		return false
	}
	return h.opts.StressTest || h.olderBytes > h.olderNext
}

// SetCollectionDisabled toggles collection off (for critical sections like
// module compilation, VM setup, native setup) and returns the previous
// state, so callers can restore it (spec §4.4).
func (h *Heap) SetCollectionDisabled(disabled bool) bool {
	prev := h.collectionDisabled
	h.collectionDisabled = disabled
	return prev
}

// Mark adds o to the gray stack if it isn't already marked. This is the
// function callers' root-marking closures invoke for every root object.
func (h *Heap) Mark(o value.Obj) {
	if o == nil {
		return
	}
	hdr := value.HeaderOf(o)
	if hdr.IsMarked() {
		return
	}
	hdr.SetMarked(true)
	h.gray = append(h.gray, o)
}

// trace drains the gray stack, blackening each object (marking the objects
// it transitively owns) until no gray objects remain.
func (h *Heap) trace() {
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		o := h.gray[n]
		h.gray = h.gray[:n]
		o.Blacken(h.Mark)
	}
}

// CollectInfant runs one infant-generation cycle: mark roots, trace, sweep
// the infant list, promote survivors to the older generation, and reset the
// infant byte counter. afterTrace, if non-nil, runs once tracing has settled
// which objects survived but before sweep clears their mark bits again —
// the only point at which a weak-reference table (vm.sweepWeakTables) can
// tell a reachable key from a collected one.
func (h *Heap) CollectInfant(markRoots func(mark func(value.Obj)), afterTrace func()) {
	markRoots(h.Mark)
	h.trace()
	if afterTrace != nil {
		afterTrace()
	}

	before := h.infantBytes
	survivors, freed := h.sweep(h.infantHead)
	h.Stats.Collections++
	h.Stats.BytesReclaimed += freed * objSize

	// splice survivors onto the front of the older list, promoting them.
	for _, o := range survivors {
		hdr := value.HeaderOf(o)
		hdr.SetGeneration(1)
		hdr.SetNext(h.olderHead)
		h.olderHead = o
		h.olderBytes += objSize
	}
	h.Stats.Promotions += len(survivors)

	h.infantHead = nil
	h.infantBytes = 0
	h.clearMarks(h.olderHead)
	_ = before
	h.log("infant collect: freed=%d promoted=%d", freed, len(survivors))
}

// CollectOlder runs an older-generation cycle: both generations' roots are
// marked (per spec Design Note (d), in lieu of a write barrier), but only
// the older list is swept. afterTrace behaves as in CollectInfant.
func (h *Heap) CollectOlder(markRoots func(mark func(value.Obj)), afterTrace func()) {
	markRoots(h.Mark)
	// also mark anything currently alive in the infant generation so that
	// infant->older pointers (rare, but possible via OP_EXPORT-style
	// patching) don't get freed out from under an older object.
	for o := h.infantHead; o != nil; o = value.HeaderOf(o).Next() {
		h.Mark(o)
	}
	h.trace()
	if afterTrace != nil {
		afterTrace()
	}

	survivors, freed := h.sweep(h.olderHead)
	h.Stats.Collections++
	h.Stats.BytesReclaimed += freed * objSize

	h.olderHead = nil
	h.olderBytes = 0
	for _, o := range survivors {
		value.HeaderOf(o).SetNext(h.olderHead)
		h.olderHead = o
		h.olderBytes += objSize
	}
	h.olderNext = int(float64(h.olderBytes+1) * h.opts.OlderGrowFactor)
	h.clearMarks(h.infantHead)
	h.log("older collect: freed=%d survivors=%d", freed, len(survivors))
}

// sweep walks a generation's list, returning the objects still marked
// (survivors, in original order) and the count of unmarked (freed) objects.
// Unmarked objects are unlinked; Go's own GC reclaims their memory once
// nothing else references them, but loxvm explicitly releases their NaN-box
// handle slot so future boxing doesn't collide with a freed object's slot.
func (h *Heap) sweep(head value.Obj) (survivors []value.Obj, freed int) {
	for o := head; o != nil; {
		hdr := value.HeaderOf(o)
		next := hdr.Next()
		if hdr.IsMarked() || hdr.DontCollect() {
			hdr.SetMarked(false)
			survivors = append(survivors, o)
		} else {
			value.ReleaseHandle(hdr)
			freed++
		}
		o = next
	}
	return survivors, freed
}

func (h *Heap) clearMarks(head value.Obj) {
	for o := head; o != nil; o = value.HeaderOf(o).Next() {
		value.HeaderOf(o).SetMarked(false)
	}
}

func (h *Heap) log(format string, args ...interface{}) {
	if h.opts.LogCollections == nil {
		return
	}
	h.opts.LogCollections(fmt.Sprintf(format, args...))
}
