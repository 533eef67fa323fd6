// Package value implements loxvm's runtime value representation: a NaN-boxed
// 64-bit Value, the heap object family every Value of kind Obj points at, and
// the open-addressed Table used for fields, methods, globals and exports.
package value

import "math"

// Value is a NaN-boxed 64-bit slot. Doubles are stored as their own IEEE-754
// bit pattern; nil, true, false and heap pointers are encoded in the otherwise
// unused bit patterns of a quiet NaN, following
// _examples/original_source/clox/src/value.h.
type Value uint64

const (
	signBit uint64 = 0x8000000000000000
	qnan    uint64 = 0x7ffc000000000000

	tagNil   uint64 = 1 // 01
	tagFalse uint64 = 2 // 10
	tagTrue  uint64 = 3 // 11
)

// Nil, False and True are the singleton encodings for their respective
// literals.
const (
	Nil   Value = Value(qnan | tagNil)
	False Value = Value(qnan | tagFalse)
	True  Value = Value(qnan | tagTrue)
)

// Number encodes a float64 as a Value. NaN payloads that happen to collide
// with the reserved tag space are impossible to produce from ordinary
// arithmetic; Go's math.NaN() canonicalizes to a bit pattern outside the
// reserved tags, preserving the invariant in spec §3.
func Number(n float64) Value {
	return Value(math.Float64bits(n))
}

// Bool encodes a boolean as a Value.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Obj boxes a heap object pointer into a Value.
func Obj_(o Obj) Value {
	return Value(signBit | qnan | uint64(objToBits(o)))
}

// IsNumber reports whether v holds a double (i.e. is not one of the reserved
// quiet-NaN patterns).
func (v Value) IsNumber() bool { return uint64(v)&qnan != qnan }

// IsNil reports whether v is the nil singleton.
func (v Value) IsNil() bool { return v == Nil }

// IsBool reports whether v is True or False.
func (v Value) IsBool() bool { return uint64(v)|1 == uint64(True) }

// IsObj reports whether v holds a heap object pointer.
func (v Value) IsObj() bool {
	return uint64(v)&(qnan|signBit) == (qnan | signBit)
}

// AsNumber decodes v as a float64. Caller must have checked IsNumber.
func (v Value) AsNumber() float64 { return math.Float64frombits(uint64(v)) }

// AsBool decodes v as a bool. Caller must have checked IsBool.
func (v Value) AsBool() bool { return v == True }

// AsObj decodes v as the boxed Obj. Caller must have checked IsObj.
func (v Value) AsObj() Obj {
	return bitsToObj(uint64(v) &^ (signBit | qnan))
}

// IsFalsey implements Lox truthiness: nil and false are falsey, everything
// else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements value equality: pointer equality for heap objects (except
// numbers, which compare by IEEE-754 equality), direct equality otherwise.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	return a == b
}

// objToBits/bitsToObj round-trip an Obj through the 48 low bits of a Value.
// Go pointers aren't guaranteed to fit losslessly into 48 bits, so rather
// than truncate an unsafe.Pointer (undefined once the GC moves / frees the
// referent), loxvm keeps a process-wide handle table and boxes the handle
// index instead. This preserves the NaN-boxing *encoding* spec.md specifies
// while staying within safe Go.
var (
	handles    []Obj
	freeHandle []uint32
)

func objToBits(o Obj) uint64 {
	if o == nil {
		return 0
	}
	if h := o.header(); h.handle != 0 {
		return uint64(h.handle)
	}
	var idx uint32
	if n := len(freeHandle); n > 0 {
		idx = freeHandle[n-1]
		freeHandle = freeHandle[:n-1]
		handles[idx] = o
	} else {
		idx = uint32(len(handles))
		handles = append(handles, o)
	}
	o.header().handle = idx + 1
	return uint64(idx + 1)
}

func bitsToObj(bits uint64) Obj {
	if bits == 0 || bits > uint64(len(handles)) {
		return nil
	}
	return handles[bits-1]
}

// releaseHandle is called by the GC sweep when an object is freed so its
// handle slot can be recycled.
func releaseHandle(h *ObjHeader) {
	if h.handle == 0 {
		return
	}
	idx := h.handle - 1
	handles[idx] = nil
	freeHandle = append(freeHandle, idx)
	h.handle = 0
}
