package value

import (
	"fmt"
	"strings"
)

// ObjType tags the concrete variant of a heap object.
type ObjType byte

const (
	ObjTypePrototype ObjType = iota
	ObjTypeBoundMethod
	ObjTypeArray
	ObjTypeDict
	ObjTypeClass
	ObjTypeClosure
	ObjTypeFunction
	ObjTypeInstance
	ObjTypeNativeFn
	ObjTypeNativeProp
	ObjTypeNativeMethod
	ObjTypeString
	ObjTypeUpvalue
	ObjTypeModule
	ObjTypeReference
)

func (t ObjType) String() string {
	switch t {
	case ObjTypePrototype:
		return "prototype"
	case ObjTypeBoundMethod:
		return "bound method"
	case ObjTypeArray:
		return "array"
	case ObjTypeDict:
		return "dict"
	case ObjTypeClass:
		return "class"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeFunction:
		return "function"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeNativeFn, ObjTypeNativeProp, ObjTypeNativeMethod:
		return "native"
	case ObjTypeString:
		return "string"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeModule:
		return "module"
	case ObjTypeReference:
		return "reference"
	default:
		return "object"
	}
}

// Obj is implemented by every heap object variant. Header exposes the GC
// bookkeeping every object carries; Blacken marks the objects this one
// transitively owns (spec §4.4).
type Obj interface {
	header() *ObjHeader
	Type() ObjType
	Blacken(mark func(Obj))
	GoString() string
}

// ObjHeader is the common heap-object prefix: type tag, GC flags, prototype
// pointer and the generation-list link (spec §3's Obj).
type ObjHeader struct {
	marked      bool
	generation  uint8 // 0 = infant, 1 = older
	dontCollect bool
	next        Obj
	prototype   *ObjPrototype
	handle      uint32
}

func (h *ObjHeader) header() *ObjHeader { return h }

// Generation reports which GC generation the object currently lives in.
func (h *ObjHeader) Generation() uint8          { return h.generation }
func (h *ObjHeader) SetGeneration(g uint8)      { h.generation = g }
func (h *ObjHeader) IsMarked() bool             { return h.marked }
func (h *ObjHeader) SetMarked(m bool)           { h.marked = m }
func (h *ObjHeader) DontCollect() bool          { return h.dontCollect }
func (h *ObjHeader) SetDontCollect(d bool)      { h.dontCollect = d }
func (h *ObjHeader) Next() Obj                  { return h.next }
func (h *ObjHeader) SetNext(o Obj)              { h.next = o }

// Prototype returns the object's native-dispatch prototype, or nil for
// internal objects that never participate in property/method lookup.
func (h *ObjHeader) Prototype() *ObjPrototype { return h.prototype }

func (h *ObjHeader) SetPrototype(p *ObjPrototype) { h.prototype = p }

// HeaderOf exposes o's GC header to packages outside value (the gc package)
// without making the header lookup part of every object's public API.
func HeaderOf(o Obj) *ObjHeader { return o.header() }

// ReleaseHandle recycles o's NaN-box handle slot after the GC has freed it.
func ReleaseHandle(h *ObjHeader) { releaseHandle(h) }

// ---- ObjString ----

// ObjString is an immutable, interned character buffer with a cached
// FNV-1a hash.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) Type() ObjType           { return ObjTypeString }
func (s *ObjString) Blacken(mark func(Obj))  {}
func (s *ObjString) GoString() string        { return s.Chars }

// FNV1a32 is the hash function used by the string intern table, matching
// clox's hashString.
func FNV1a32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ---- ObjFunction ----

// ObjFunction is the compiled form of a function (or a module's top-level
// script). It is immutable once compilation of its body completes.
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString // nil for the top-level script
}

func (f *ObjFunction) Type() ObjType { return ObjTypeFunction }
func (f *ObjFunction) Blacken(mark func(Obj)) {
	if f.Name != nil {
		mark(f.Name)
	}
	for _, c := range f.Chunk.Constants {
		if c.IsObj() {
			mark(c.AsObj())
		}
	}
}
func (f *ObjFunction) GoString() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// Chunk is the per-function bytecode buffer. Defined here (rather than in a
// separate package) because ObjFunction must embed it by value and the
// value/chunk/compiler packages would otherwise form an import cycle; the
// chunk package re-exports this type and the opcode constants that operate
// on it.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
	Module    *Module
	// Compiler holds the *compiler.FuncCompiler that produced this chunk
	// (spec §3's Chunk.compiler_record), kept alive so the debugger's
	// compile-eval helper can resolve locals/upvalues visible at a live
	// frame. Typed as any to avoid an import cycle between value and
	// compiler; only the compiler package reads it back.
	Compiler any
}

func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends value to the constant pool, deduplicating by value
// equality (spec §3's Chunk invariant), and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	for i, existing := range c.Constants {
		if Equal(existing, v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// ---- ObjUpvalue ----

// ObjUpvalue is a shared cell for a captured variable. OPEN upvalues point
// into a live stack slot; CLOSED upvalues own their value directly.
type ObjUpvalue struct {
	ObjHeader
	Location *Value // points into the stack while open, &Closed once closed
	Closed   Value
	NextOpen *ObjUpvalue // link in the VM's sorted open-upvalue list
}

func (u *ObjUpvalue) Type() ObjType { return ObjTypeUpvalue }
func (u *ObjUpvalue) Blacken(mark func(Obj)) {
	if u.Closed.IsObj() {
		mark(u.Closed.AsObj())
	}
}
func (u *ObjUpvalue) GoString() string { return "upvalue" }

// IsOpen reports whether this upvalue still aliases a live stack slot.
func (u *ObjUpvalue) IsOpen() bool { return u.Location != &u.Closed }

// Close transitions an OPEN upvalue to CLOSED, copying the current value.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// ---- ObjClosure ----

// ObjClosure pairs a compiled function with its captured upvalues.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Type() ObjType { return ObjTypeClosure }
func (c *ObjClosure) Blacken(mark func(Obj)) {
	mark(c.Function)
	for _, u := range c.Upvalues {
		if u != nil {
			mark(u)
		}
	}
}
func (c *ObjClosure) GoString() string { return c.Function.GoString() }

// ---- ObjClass / ObjInstance / ObjBoundMethod ----

// ObjClass is a class: a name and a methods table (method name -> ObjClosure).
type ObjClass struct {
	ObjHeader
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) Type() ObjType { return ObjTypeClass }
func (c *ObjClass) Blacken(mark func(Obj)) {
	mark(c.Name)
	c.Methods.Mark(mark)
}
func (c *ObjClass) GoString() string { return fmt.Sprintf("<class %s>", c.Name.Chars) }

// ObjInstance is an instance of a class with its own fields table.
type ObjInstance struct {
	ObjHeader
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) Type() ObjType { return ObjTypeInstance }
func (i *ObjInstance) Blacken(mark func(Obj)) {
	mark(i.Class)
	i.Fields.Mark(mark)
}
func (i *ObjInstance) GoString() string {
	return fmt.Sprintf("<%s instance>", i.Class.Name.Chars)
}

// ObjBoundMethod binds a receiver to a method, created whenever property
// access resolves to a method rather than a field (spec §3). Method is set
// for a Lox-defined method; Native is set instead when the receiver's
// prototype chain supplied the match (e.g. `"abc".toString` read as a value
// rather than invoked directly).
type ObjBoundMethod struct {
	ObjHeader
	Receiver Value
	Method   *ObjClosure
	Native   *ObjNativeMethod
}

func (b *ObjBoundMethod) Type() ObjType { return ObjTypeBoundMethod }
func (b *ObjBoundMethod) Blacken(mark func(Obj)) {
	if b.Receiver.IsObj() {
		mark(b.Receiver.AsObj())
	}
	if b.Method != nil {
		mark(b.Method)
	}
	if b.Native != nil {
		mark(b.Native)
	}
}
func (b *ObjBoundMethod) GoString() string {
	if b.Method != nil {
		return b.Method.GoString()
	}
	return b.Native.GoString()
}

// ---- ObjDict / ObjArray ----

// ObjDict is a hash map keyed by interned strings.
type ObjDict struct {
	ObjHeader
	Fields *Table
}

func (d *ObjDict) Type() ObjType             { return ObjTypeDict }
func (d *ObjDict) Blacken(mark func(Obj))    { d.Fields.Mark(mark) }
func (d *ObjDict) GoString() string          { return "<dict>" }

// ObjArray is an ordered sequence of Values.
type ObjArray struct {
	ObjHeader
	Values []Value
}

func (a *ObjArray) Type() ObjType { return ObjTypeArray }
func (a *ObjArray) Blacken(mark func(Obj)) {
	for _, v := range a.Values {
		if v.IsObj() {
			mark(v.AsObj())
		}
	}
}
func (a *ObjArray) GoString() string { return "<array>" }

// ---- ObjPrototype ----

// ObjPrototype is a per-type table of native properties and methods, chained
// to a parent prototype to form the single-inheritance built-in dispatch
// chain (length, toString, __getitem__, __setitem__, ...). Prototypes are
// interned singletons owned by the VM's type registry and are never
// collected (dontCollect is set at construction).
type ObjPrototype struct {
	ObjHeader
	Parent       *ObjPrototype
	PropsNative  *Table
	MethodsNative *Table
}

func (p *ObjPrototype) Type() ObjType { return ObjTypePrototype }
func (p *ObjPrototype) Blacken(mark func(Obj)) {
	if p.Parent != nil {
		mark(p.Parent)
	}
	p.PropsNative.Mark(mark)
	p.MethodsNative.Mark(mark)
}
func (p *ObjPrototype) GoString() string { return "<prototype>" }

// LookupMethod walks the prototype chain for a native method named name.
func (p *ObjPrototype) LookupMethod(name *ObjString) (*ObjNativeMethod, bool) {
	for cur := p; cur != nil; cur = cur.Parent {
		if v, ok := cur.MethodsNative.Get(name); ok && v.IsObj() {
			if m, ok := v.AsObj().(*ObjNativeMethod); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// LookupProp walks the prototype chain for a native property named name.
func (p *ObjPrototype) LookupProp(name *ObjString) (*ObjNativeProp, bool) {
	for cur := p; cur != nil; cur = cur.Parent {
		if v, ok := cur.PropsNative.Get(name); ok && v.IsObj() {
			if np, ok := v.AsObj().(*ObjNativeProp); ok {
				return np, true
			}
		}
	}
	return nil, false
}

// ---- Native wrappers ----

// NativeContext exposes the minimal heap/runtime services a native
// function/method/property body needs, without giving natives access to the
// full VM (mirrors spec §1's "native-function authoring conventions beyond
// the calling contract" being out of THE CORE's elaboration, while the
// calling contract itself is in scope).
type NativeContext interface {
	InternString(s string) *ObjString
	NewArray(vs []Value) *ObjArray
	NewDict() *ObjDict
	RuntimeError(format string, args ...interface{}) error
}

// NativeFn is a host function callable from Lox code.
type NativeFn func(ctx NativeContext, args []Value) (Value, error)

// NativeMethodFn is a host method bound to a receiver value.
type NativeMethodFn func(ctx NativeContext, receiver Value, args []Value) (Value, error)

// NativeGetter/NativeSetter implement a native property's get/set pair.
type NativeGetter func(ctx NativeContext, receiver Value) (Value, error)
type NativeSetter func(ctx NativeContext, receiver Value, v Value) error

// ObjNativeFn wraps a NativeFn with a fixed arity.
type ObjNativeFn struct {
	ObjHeader
	Function NativeFn
	Name     *ObjString
	Arity    int
}

func (n *ObjNativeFn) Type() ObjType          { return ObjTypeNativeFn }
func (n *ObjNativeFn) Blacken(mark func(Obj)) { mark(n.Name) }
func (n *ObjNativeFn) GoString() string       { return fmt.Sprintf("<native fn %s>", n.Name.Chars) }

// ObjNativeMethod wraps a NativeMethodFn with a fixed arity.
type ObjNativeMethod struct {
	ObjHeader
	Method NativeMethodFn
	Arity  int
	Name   *ObjString
}

func (n *ObjNativeMethod) Type() ObjType          { return ObjTypeNativeMethod }
func (n *ObjNativeMethod) Blacken(mark func(Obj)) { mark(n.Name) }
func (n *ObjNativeMethod) GoString() string       { return fmt.Sprintf("<native method %s>", n.Name.Chars) }

// ObjNativeProp wraps a get/set pair exposed as a property.
type ObjNativeProp struct {
	ObjHeader
	Get  NativeGetter
	Set  NativeSetter
	Name *ObjString
}

func (n *ObjNativeProp) Type() ObjType          { return ObjTypeNativeProp }
func (n *ObjNativeProp) Blacken(mark func(Obj)) { mark(n.Name) }
func (n *ObjNativeProp) GoString() string       { return fmt.Sprintf("<native prop %s>", n.Name.Chars) }

// ---- Module / ObjModule / ObjReference ----

// Module is a compiled/loaded source file: its root function, the closure
// running its top level once interpreted, and the names it exports (spec
// §3). The VM owns the process-wide module list.
type Module struct {
	Name         *ObjString
	Path         string // empty if this module has no backing file
	Source       string
	RootFunction *ObjFunction
	RootClosure  *ObjClosure
	Exports      *Table
	Next         *Module
}

// ObjModule boxes a *Module as a heap Value so it can sit on the VM stack
// (e.g. as the result of evaluating an import target) and be marked by the
// GC alongside ordinary objects.
type ObjModule struct {
	ObjHeader
	Mod *Module
}

func (m *ObjModule) Type() ObjType { return ObjTypeModule }
func (m *ObjModule) Blacken(mark func(Obj)) {
	if m.Mod == nil {
		return
	}
	mark(m.Mod.Name)
	if m.Mod.RootFunction != nil {
		mark(m.Mod.RootFunction)
	}
	if m.Mod.RootClosure != nil {
		mark(m.Mod.RootClosure)
	}
	m.Mod.Exports.Mark(mark)
}
func (m *ObjModule) GoString() string {
	if m.Mod == nil {
		return "<module>"
	}
	return fmt.Sprintf("<module %s>", m.Mod.Name.Chars)
}

// ObjReference is a cross-module binding: a name exported by one module and
// imported by another. A reference is *broken* (owningClosure == nil) until
// the exporting module's top-level closure has assembled and patched it in
// (spec §3, Design Notes' two-phase construction).
type ObjReference struct {
	ObjHeader
	ExportedName  *ObjString
	OwningModule  *Module
	OwningClosure *ObjClosure
	UpvalueIndex  int
	Chunk         *Chunk
}

func (r *ObjReference) Type() ObjType { return ObjTypeReference }
func (r *ObjReference) Blacken(mark func(Obj)) {
	mark(r.ExportedName)
	if r.OwningClosure != nil {
		mark(r.OwningClosure)
	}
}
func (r *ObjReference) GoString() string {
	return fmt.Sprintf("<reference %s>", r.ExportedName.Chars)
}

// IsBroken reports whether the exporting module's top level has not yet run.
func (r *ObjReference) IsBroken() bool { return r.OwningClosure == nil }

// Get dereferences the reference, reading the live upvalue cell. Reads of a
// broken reference yield a diagnostic string rather than crashing (spec §3).
func (r *ObjReference) Get() Value {
	if r.IsBroken() {
		return Obj_(internDiagnostic(r))
	}
	return *r.OwningClosure.Upvalues[r.UpvalueIndex].Location
}

// Set writes through the reference's live upvalue cell. Writing to a broken
// reference is a silent no-op and never panics.
func (r *ObjReference) Set(v Value) {
	if r.IsBroken() {
		return
	}
	*r.OwningClosure.Upvalues[r.UpvalueIndex].Location = v
}

func internDiagnostic(r *ObjReference) *ObjString {
	msg := fmt.Sprintf("<broken reference %s>", r.ExportedName.Chars)
	return &ObjString{Chars: msg, Hash: FNV1a32(msg)}
}

// ---- printing helpers ----

// TypeName returns the dynamic type name of v, used by the `typeof`-style
// debugger output and error messages.
func TypeName(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return "bool"
	case v.IsNumber():
		return "number"
	case v.IsObj():
		return v.AsObj().Type().String()
	default:
		return "unknown"
	}
}

// ToString renders v the way `print` and string coercion do.
func ToString(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObj():
		return objToString(v.AsObj())
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	s := fmt.Sprintf("%g", n)
	return s
}

func objToString(o Obj) string {
	switch t := o.(type) {
	case *ObjString:
		return t.Chars
	case *ObjArray:
		var b strings.Builder
		b.WriteByte('[')
		for i, v := range t.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			if v.IsObj() {
				if s, ok := v.AsObj().(*ObjString); ok {
					b.WriteByte('"')
					b.WriteString(s.Chars)
					b.WriteByte('"')
					continue
				}
			}
			b.WriteString(ToString(v))
		}
		b.WriteByte(']')
		return b.String()
	case *ObjDict:
		var b strings.Builder
		b.WriteByte('{')
		first := true
		t.Fields.Each(func(k *ObjString, v Value) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(k.Chars)
			b.WriteString(": ")
			b.WriteString(ToString(v))
		})
		b.WriteByte('}')
		return b.String()
	default:
		return o.GoString()
	}
}
