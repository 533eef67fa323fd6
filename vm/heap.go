package vm

import (
	"fmt"

	"github.com/loxlang/loxvm/gc"
	"github.com/loxlang/loxvm/value"
)

// Heap is loxvm's allocator: every Obj the VM, compiler or natives create
// passes through here so it's registered with the GC and, for strings,
// interned. It implements both compiler.Host (so the compiler package never
// imports vm) and value.NativeContext (so native bodies can allocate without
// seeing the full VM), grounded on object.c's allocateObject/copyString/
// takeString and native.c's calling convention.
type Heap struct {
	gc      *gc.Heap
	strings *value.Table
	globals *value.Table

	vm *VM // back-reference for RuntimeError's stack trace and for triggering collections; set by New

	// stringProto/arrayProto/dictProto are stamped onto every ObjString/
	// ObjArray/ObjDict at allocation time (spec §3's Obj invariant: "prototype
	// is non-null for variants that dispatch property lookup"). Installed by
	// vm.installPrototypes once, early in New(); nil before then, so the
	// strings New interns first ("init", "__getitem__", "__setitem__") carry
	// no prototype, same as any internal object.
	stringProto *value.ObjPrototype
	arrayProto  *value.ObjPrototype
	dictProto   *value.ObjPrototype
}

// SetTypeProtos installs the native prototypes new strings/arrays/dicts are
// stamped with. Called once by vm.installPrototypes.
func (h *Heap) SetTypeProtos(str, arr, dict *value.ObjPrototype) {
	h.stringProto, h.arrayProto, h.dictProto = str, arr, dict
}

// NewHeap creates a Heap backed by opts, with empty intern and global tables
// (vm.strings/vm.globals in clox's VM struct).
func NewHeap(opts gc.Options) *Heap {
	return &Heap{
		gc:      gc.New(opts),
		strings: value.NewTable(),
		globals: value.NewTable(),
	}
}

func (h *Heap) register(o value.Obj) {
	h.gc.Register(o)
	if h.gc.ShouldCollectInfant() && h.vm != nil {
		h.vm.collectInfant()
	}
}

// Intern returns the canonical *ObjString for s, allocating and interning a
// new one only if s hasn't been seen before (object.c's copyString).
func (h *Heap) Intern(s string) *value.ObjString {
	hash := value.FNV1a32(s)
	if existing := h.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &value.ObjString{Chars: s, Hash: hash}
	if h.stringProto != nil {
		str.SetPrototype(h.stringProto)
	}
	h.register(str)
	h.strings.Set(str, value.Nil)
	return str
}

// InternString implements value.NativeContext.
func (h *Heap) InternString(s string) *value.ObjString { return h.Intern(s) }

// NewFunction allocates an empty ObjFunction (object.c's newFunction).
func (h *Heap) NewFunction() *value.ObjFunction {
	fn := &value.ObjFunction{}
	h.register(fn)
	return fn
}

// NewClosure wraps fn in a fresh ObjClosure with unset upvalue slots
// (object.c's newClosure); the VM's loadUpvalues fills them in after
// allocation.
func (h *Heap) NewClosure(fn *value.ObjFunction) *value.ObjClosure {
	cl := &value.ObjClosure{Function: fn, Upvalues: make([]*value.ObjUpvalue, fn.UpvalueCount)}
	h.register(cl)
	return cl
}

// NewUpvalue allocates an open upvalue pointing at slot.
func (h *Heap) NewUpvalue(slot *value.Value) *value.ObjUpvalue {
	uv := &value.ObjUpvalue{Location: slot}
	h.register(uv)
	return uv
}

// NewClass allocates an empty class named name.
func (h *Heap) NewClass(name *value.ObjString) *value.ObjClass {
	cls := &value.ObjClass{Name: name, Methods: value.NewTable()}
	h.register(cls)
	return cls
}

// NewInstance allocates an instance of klass with an empty fields table.
func (h *Heap) NewInstance(klass *value.ObjClass) *value.ObjInstance {
	inst := &value.ObjInstance{Class: klass, Fields: value.NewTable()}
	h.register(inst)
	return inst
}

// NewBoundMethod binds receiver to a Lox-defined method.
func (h *Heap) NewBoundMethod(receiver value.Value, method *value.ObjClosure) *value.ObjBoundMethod {
	b := &value.ObjBoundMethod{Receiver: receiver, Method: method}
	h.register(b)
	return b
}

// NewBoundNativeMethod binds receiver to a native prototype method, for a
// property read that resolves to a method without immediately calling it.
func (h *Heap) NewBoundNativeMethod(receiver value.Value, method *value.ObjNativeMethod) *value.ObjBoundMethod {
	b := &value.ObjBoundMethod{Receiver: receiver, Native: method}
	h.register(b)
	return b
}

// NewArray implements value.NativeContext and the array-literal opcode path.
func (h *Heap) NewArray(vs []value.Value) *value.ObjArray {
	a := &value.ObjArray{Values: vs}
	if h.arrayProto != nil {
		a.SetPrototype(h.arrayProto)
	}
	h.register(a)
	return a
}

// NewDict implements value.NativeContext and the dict-literal opcode path.
func (h *Heap) NewDict() *value.ObjDict {
	d := &value.ObjDict{Fields: value.NewTable()}
	if h.dictProto != nil {
		d.SetPrototype(h.dictProto)
	}
	h.register(d)
	return d
}

// NewReference implements compiler.Host: it allocates a broken reference
// (OwningClosure == nil) that OP_EXPORT later patches once the exporting
// module's top level runs (spec §3/§9's two-phase construction).
func (h *Heap) NewReference(name *value.ObjString, mod *value.Module, upvalueIndex int, chunk *value.Chunk) *value.ObjReference {
	r := &value.ObjReference{ExportedName: name, OwningModule: mod, UpvalueIndex: upvalueIndex, Chunk: chunk}
	h.register(r)
	return r
}

// NewModule boxes mod as a heap Value.
func (h *Heap) NewModule(mod *value.Module) *value.ObjModule {
	m := &value.ObjModule{Mod: mod}
	h.register(m)
	return m
}

// NewNativeFn/NewNativeMethod/NewNativeProp wrap host functions as callables,
// mirroring native.c's defineNativeFn / the prototype setup's method/prop
// wrappers.
func (h *Heap) NewNativeFn(name string, arity int, fn value.NativeFn) *value.ObjNativeFn {
	n := &value.ObjNativeFn{Name: h.Intern(name), Arity: arity, Function: fn}
	h.register(n)
	return n
}

func (h *Heap) NewNativeMethod(name string, arity int, fn value.NativeMethodFn) *value.ObjNativeMethod {
	n := &value.ObjNativeMethod{Name: h.Intern(name), Arity: arity, Method: fn}
	h.register(n)
	return n
}

func (h *Heap) NewNativeProp(name string, get value.NativeGetter, set value.NativeSetter) *value.ObjNativeProp {
	n := &value.ObjNativeProp{Name: h.Intern(name), Get: get, Set: set}
	h.register(n)
	return n
}

// NewPrototype allocates a prototype singleton and marks it don't-collect
// (spec §9: "Represent prototypes as interned singletons owned by the
// type-registry; never collect them").
func (h *Heap) NewPrototype(parent *value.ObjPrototype) *value.ObjPrototype {
	p := &value.ObjPrototype{Parent: parent, PropsNative: value.NewTable(), MethodsNative: value.NewTable()}
	h.register(p)
	value.HeaderOf(p).SetDontCollect(true)
	return p
}

// DefineGlobal installs a VM-bootstrapped native under name (object.c's
// defineNativeFn: tableSet(&vm.globals, ...)). Only natives ever populate
// this table; every source-level var/fun/class compiles as a local per
// compiler.Host.HasGlobal's contract.
func (h *Heap) DefineGlobal(name *value.ObjString, v value.Value) {
	h.globals.Set(name, v)
}

// HasGlobal implements compiler.Host.
func (h *Heap) HasGlobal(name *value.ObjString) bool { return h.globals.Has(name) }

// Globals exposes the VM-wide global table for the interpreter loop's
// GET_GLOBAL/SET_GLOBAL/DEFINE_GLOBAL opcodes.
func (h *Heap) Globals() *value.Table { return h.globals }

// RuntimeError implements value.NativeContext, letting native bodies raise
// the same traced error the interpreter loop itself raises.
func (h *Heap) RuntimeError(format string, args ...interface{}) error {
	if h.vm == nil {
		return &RuntimeError{Message: fmt.Sprintf(format, args...)}
	}
	return h.vm.newRuntimeError(format, args...)
}

// GC exposes the underlying collector for the VM's root-marking callbacks.
func (h *Heap) GC() *gc.Heap { return h.gc }

// Strings exposes the intern table so the VM can mark/sweep it as a weak
// table (spec §4.4/§4.7).
func (h *Heap) Strings() *value.Table { return h.strings }
