package vm

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/loxlang/loxvm/chunk"
	"github.com/loxlang/loxvm/compiler"
	"github.com/loxlang/loxvm/gc"
	"github.com/loxlang/loxvm/value"
)

// TraceLevel selects how much of the execution loop gets written to Options.Out,
// the Go-native substitute for clox's DEBUG_TRACE_EXECUTION compile flag.
type TraceLevel int

const (
	TraceNone TraceLevel = iota
	TraceOpcodes
	TraceModules
)

// Options configures a VM at construction (spec §4.3/§4.4/§6.3).
type Options struct {
	GC         gc.Options
	Trace      TraceLevel
	Out        io.Writer // receives `print` output; discarded (io.Discard) if nil
	ScriptArgs []string
}

// VM is loxvm's single-threaded bytecode interpreter: one fixed call-frame
// array, one value stack, the global table and module registry, wired to a
// Heap allocator and (optionally) a Debugger. Grounded on
// _examples/original_source/clox/src/vm.c/vm.h's VM struct and run() loop;
// the run loop is a plain switch rather than clox's optional computed-goto
// variant, per spec §9's Design Notes allowance.
type VM struct {
	heap *Heap

	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]callFrame
	frameCount int

	openUpvalues *value.ObjUpvalue
	initString   *value.ObjString

	modules     *value.Module
	exitAtFrame int
	loader      ModuleLoader

	out   io.Writer
	trace TraceLevel

	// failOnRuntimeErr mirrors vm.c's flag of the same name: true while
	// evalInFrame runs a debugger expression, restored when it returns. The
	// interpreter loop does not read it; evalInFrame itself puts the stack
	// back after a failed expression.
	failOnRuntimeErr bool

	// onNextTick is invoked after every instruction once a debugger is
	// attached, whatever its state; nil means no debugger is present
	// (spec §4.6).
	onNextTick func(instr chunk.OpCode)

	scriptArgs []string

	// stringProto/arrayProto/dictProto are the native prototype singletons
	// backing built-in string/array/dict methods (spec §9's prototype-chain
	// dispatch); installed by installPrototypes at construction.
	stringProto *value.ObjPrototype
	arrayProto  *value.ObjPrototype
	dictProto   *value.ObjPrototype

	getitemName *value.ObjString
	setitemName *value.ObjString
}

// New constructs a VM with its heap, registers the single never-collected
// "init" sentinel string, and installs loxvm's built-in natives and
// prototype chain (object.c's initTypes/defineBuiltins).
func New(opts Options) *VM {
	h := NewHeap(opts.GC)
	vm := &VM{heap: h, out: opts.Out, trace: opts.Trace, scriptArgs: opts.ScriptArgs}
	h.vm = vm
	if vm.out == nil {
		vm.out = io.Discard
	}
	disabled := h.gc.SetCollectionDisabled(true)
	vm.initString = h.Intern("init")
	vm.getitemName = h.Intern("__getitem__")
	vm.setitemName = h.Intern("__setitem__")
	vm.installPrototypes()
	vm.defineBuiltins()
	h.gc.SetCollectionDisabled(disabled)
	return vm
}

// Heap exposes the allocator, e.g. for cmd/loxi to pass to the module loader.
func (vm *VM) Heap() *Heap { return vm.heap }

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// currentFrame is the top call frame, or nil if the VM is idle.
func (vm *VM) currentFrame() *callFrame {
	if vm.frameCount == 0 {
		return nil
	}
	return &vm.frames[vm.frameCount-1]
}

// CurrentModule reports the module whose code the running frame belongs to
// (module.c's getCurrentModule).
func (vm *VM) CurrentModule() *value.Module {
	f := vm.currentFrame()
	if f == nil {
		return nil
	}
	return f.closure.Function.Chunk.Module
}

// Interpret runs module's root closure to completion (module.c's
// interpretVM): push the call, run, then leave the stack/frames reset.
func (vm *VM) Interpret(module *value.Module) error {
	if err := vm.call(module.RootClosure, 0); err != nil {
		return err
	}
	return vm.run()
}

// call pushes a new call frame for closure (vm.c's call). Reports a runtime
// error if the caller passed the wrong number of arguments or the frame
// stack is full.
func (vm *VM) call(closure *value.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.newRuntimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == FramesMax {
		return vm.newRuntimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = callFrame{
		closure: closure,
		ip:      0,
		base:    vm.stackTop - argCount - 1,
	}
	vm.frameCount++
	return nil
}

// callValue dispatches a call to whatever kind of callable sits at
// stack[-argCount-1] (vm.c's callValue): bound method, class constructor,
// closure, or native function/method.
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if callee.IsObj() {
		switch o := callee.AsObj().(type) {
		case *value.ObjBoundMethod:
			vm.stack[vm.stackTop-argCount-1] = o.Receiver
			if o.Native != nil {
				if o.Native.Arity != argCount {
					return vm.newRuntimeError("%s requires %d arguments.", o.Native.Name.Chars, o.Native.Arity)
				}
				args := vm.stack[vm.stackTop-argCount : vm.stackTop]
				result, err := o.Native.Method(vm.heap, o.Receiver, args)
				if err != nil {
					return err
				}
				vm.stackTop -= argCount + 1
				vm.push(result)
				return nil
			}
			return vm.call(o.Method, argCount)
		case *value.ObjClass:
			inst := vm.heap.NewInstance(o)
			vm.stack[vm.stackTop-argCount-1] = value.Obj_(inst)
			if init, ok := o.Methods.Get(vm.initString); ok {
				return vm.call(init.AsObj().(*value.ObjClosure), argCount)
			}
			if argCount != 0 {
				return vm.newRuntimeError("Expected 0 arguments but got %d.", argCount)
			}
			return nil
		case *value.ObjClosure:
			return vm.call(o, argCount)
		case *value.ObjNativeFn:
			if o.Arity != argCount {
				return vm.newRuntimeError("%s requires %d arguments.", o.Name.Chars, o.Arity)
			}
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := o.Function(vm.heap, args)
			if err != nil {
				return err
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		case *value.ObjNativeMethod:
			if o.Arity != argCount {
				return vm.newRuntimeError("%s requires %d arguments.", o.Name.Chars, o.Arity)
			}
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			receiver := vm.stack[vm.stackTop-argCount-1]
			result, err := o.Method(vm.heap, receiver, args)
			if err != nil {
				return err
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		}
	}
	return vm.newRuntimeError("Can only call functions and classes.")
}

// invoke implements the fused property-get-then-call OP_INVOKE (vm.c's
// invoke): instance/dict fields win over methods. An instance falls back to
// its class's method table; a dict miss is an error; everything else uses
// the native prototype chain.
func (vm *VM) invoke(name *value.ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	var fields *value.Table
	switch o := receiverObj(receiver).(type) {
	case *value.ObjInstance:
		fields = o.Fields
	case *value.ObjDict:
		fields = o.Fields
	}

	if fields == nil {
		method, ok := vm.nativeMethodFor(receiver, name)
		if !ok {
			return vm.newRuntimeError("Method %s not found.", name.Chars)
		}
		return vm.callValue(value.Obj_(method), argCount)
	}

	if v, ok := fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	if inst, ok := receiverObj(receiver).(*value.ObjInstance); ok {
		return vm.invokeFromClass(inst.Class, name, argCount)
	}
	return vm.newRuntimeError("Undefined property '%s'.", name.Chars)
}

func (vm *VM) invokeFromClass(klass *value.ObjClass, name *value.ObjString, argCount int) error {
	method, ok := klass.Methods.Get(name)
	if !ok {
		return vm.newRuntimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsObj().(*value.ObjClosure), argCount)
}

// bindMethod wraps peek(0) (the receiver) and klass's method named name into
// an ObjBoundMethod, replacing the receiver on the stack with the bound
// method (vm.c's bindMethod).
func (vm *VM) bindMethod(klass *value.ObjClass, name *value.ObjString) error {
	method, ok := klass.Methods.Get(name)
	if !ok {
		return vm.newRuntimeError("Undefined property '%s'.", name.Chars)
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.AsObj().(*value.ObjClosure))
	vm.pop()
	vm.push(value.Obj_(bound))
	return nil
}

// uintptrOf exposes a *value.Value's address for ordering comparisons;
// Go has no relational operators on pointers, unlike clox's raw Value*
// arithmetic in captureUpvalue/closeUpvalues.
func uintptrOf(p *value.Value) uintptr { return uintptr(unsafe.Pointer(p)) }

// captureUpvalue finds or creates the open upvalue aliasing local, keeping
// the VM's open-upvalue list sorted by descending stack address (vm.c's
// captureUpvalue).
func (vm *VM) captureUpvalue(local *value.Value) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Location != local && uintptrOf(cur.Location) > uintptrOf(local) {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Location == local {
		return cur
	}
	created := vm.heap.NewUpvalue(local)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above last, copying the
// stack value into the upvalue itself (vm.c's closeUpvalues).
func (vm *VM) closeUpvalues(last *value.Value) {
	for vm.openUpvalues != nil && uintptrOf(vm.openUpvalues.Location) >= uintptrOf(last) {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.NextOpen
	}
}

// concatenate always allocates a fresh interned string for `a + b` string
// addition, matching object.c/vm.c's concatenate (never mutates an operand).
func (vm *VM) concatenate() {
	b := vm.peek(0).AsObj().(*value.ObjString)
	a := vm.peek(1).AsObj().(*value.ObjString)
	result := vm.heap.Intern(a.Chars + b.Chars)
	vm.pop()
	vm.pop()
	vm.push(value.Obj_(result))
}

// loadUpvalues fills closure's upvalue slots from the UpvalueDesc list its
// originating FuncCompiler recorded (vm.c's loadUpvalues), the reason
// value.Chunk.Compiler is retained past compilation: the debugger's
// compile-eval and every OP_CLOSURE both need it.
func (vm *VM) loadUpvalues(frame *callFrame, closure *value.ObjClosure) {
	fc, _ := closure.Function.Chunk.Compiler.(*compiler.FuncCompiler)
	if fc == nil {
		return
	}
	for i, d := range fc.Upvalues {
		if d.IsLocal {
			closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.base+int(d.Index)])
		} else {
			closure.Upvalues[i] = frame.closure.Upvalues[d.Index]
		}
	}
}

func receiverObj(v value.Value) value.Obj {
	if !v.IsObj() {
		return nil
	}
	return v.AsObj()
}

// run is the fetch-decode-execute loop (vm.c's run()). It owns the hot path:
// every opcode in chunk.OpCode is handled here via a plain switch, per spec
// §9's allowance to default away from computed-goto.
func (vm *VM) run() error {
	frame := vm.currentFrame()

	var importModule *value.Module

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() uint16 {
		v := chunk.ReadShort(&frame.closure.Function.Chunk, frame.ip)
		frame.ip += 2
		return v
	}
	readConstant := func() value.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *value.ObjString { return readConstant().AsObj().(*value.ObjString) }

	for {
		if vm.trace == TraceOpcodes {
			fmt.Fprintf(vm.out, "%s\n", chunk.OpCode(frame.closure.Function.Chunk.Code[frame.ip]))
		}

		op := chunk.OpCode(readByte())
		var err error

		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())
		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.True)
		case chunk.OpFalse:
			vm.push(value.False)
		case chunk.OpPop:
			vm.pop()
		case chunk.OpGetLocal:
			vm.push(vm.stack[frame.base+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[frame.base+int(readByte())] = vm.peek(0)
		case chunk.OpGetReference:
			ref := vm.stack[frame.base+int(readByte())].AsObj().(*value.ObjReference)
			vm.push(ref.Get())
		case chunk.OpSetReference:
			ref := vm.stack[frame.base+int(readByte())].AsObj().(*value.ObjReference)
			ref.Set(vm.peek(0))
		case chunk.OpGetUpvalue:
			vm.push(*frame.closure.Upvalues[readByte()].Location)
		case chunk.OpSetUpvalue:
			*frame.closure.Upvalues[readByte()].Location = vm.peek(0)
		case chunk.OpDefineGlobal:
			name := readString()
			vm.heap.DefineGlobal(name, vm.peek(0))
			vm.pop()
		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.heap.Globals().Get(name)
			if !ok {
				err = vm.newRuntimeError("Undefined variable '%s'.", name.Chars)
				break
			}
			vm.push(v)
		case chunk.OpSetGlobal:
			name := readString()
			if vm.heap.Globals().Set(name, vm.peek(0)) {
				vm.heap.Globals().Delete(name)
				err = vm.newRuntimeError("Undefined variable '%s'.", name.Chars)
			}
		case chunk.OpGetProperty:
			obj := vm.pop()
			name := readString()
			err = vm.getProperty(obj, name)
		case chunk.OpSetProperty:
			v := vm.pop()
			obj := vm.pop()
			name := readString()
			err = vm.setProperty(obj, name, v)
		case chunk.OpGetIndexer:
			key := vm.pop()
			obj := vm.pop()
			err = vm.getIndexer(obj, key)
		case chunk.OpSetIndexer:
			v := vm.pop()
			key := vm.pop()
			obj := vm.pop()
			err = vm.setIndexer(obj, key, v)
		case chunk.OpGetSuper:
			name := readString()
			superclass := vm.pop().AsObj().(*value.ObjClass)
			err = vm.bindMethod(superclass, name)
		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			err = vm.binaryNumberOp(func(a, b float64) value.Value { return value.Bool(a > b) })
		case chunk.OpLess:
			err = vm.binaryNumberOp(func(a, b float64) value.Value { return value.Bool(a < b) })
		case chunk.OpAdd:
			err = vm.add()
		case chunk.OpSubtract:
			err = vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a - b) })
		case chunk.OpMultiply:
			err = vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a * b) })
		case chunk.OpDivide:
			err = vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a / b) })
		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				err = vm.newRuntimeError("Operand must be a number.")
				break
			}
			vm.push(value.Number(-vm.pop().AsNumber()))
		case chunk.OpPrint:
			fmt.Fprint(vm.out, value.ToString(vm.pop()))
		case chunk.OpJump:
			offset := readShort()
			frame.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= int(offset)
		case chunk.OpCall:
			argCount := int(readByte())
			if err = vm.callValue(vm.peek(argCount), argCount); err == nil {
				frame = vm.currentFrame()
			}
		case chunk.OpInvoke:
			method := readString()
			argCount := int(readByte())
			if err = vm.invoke(method, argCount); err == nil {
				frame = vm.currentFrame()
			}
		case chunk.OpSuperInvoke:
			method := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsObj().(*value.ObjClass)
			if err = vm.invokeFromClass(superclass, method, argCount); err == nil {
				frame = vm.currentFrame()
			}
		case chunk.OpClosure:
			fn := readConstant().AsObj().(*value.ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.Obj_(closure))
			vm.loadUpvalues(frame, closure)
			frame.ip += 2 * fn.UpvalueCount
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()
		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[frame.base])
			vm.frameCount--
			vm.stackTop = frame.base
			if vm.frameCount == vm.exitAtFrame {
				return nil
			}
			vm.push(result)
			frame = vm.currentFrame()
		case chunk.OpEvalExit:
			vm.frameCount--
			return nil
		case chunk.OpClass:
			vm.push(value.Obj_(vm.heap.NewClass(readString())))
		case chunk.OpInherit:
			super := vm.peek(1)
			superclass, ok := receiverObj(super).(*value.ObjClass)
			if !ok {
				err = vm.newRuntimeError("Superclass must be a class.")
				break
			}
			subclass := vm.peek(0).AsObj().(*value.ObjClass)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop()
		case chunk.OpMethod:
			vm.defineMethod(readString())
		case chunk.OpDefineDict:
			vm.push(value.Obj_(vm.heap.NewDict()))
		case chunk.OpDictField:
			name := readString()
			v := vm.pop()
			vm.peek(0).AsObj().(*value.ObjDict).Fields.Set(name, v)
		case chunk.OpDefineArray:
			vm.push(value.Obj_(vm.heap.NewArray(nil)))
		case chunk.OpArrayPush:
			v := vm.pop()
			arr := vm.peek(0).AsObj().(*value.ObjArray)
			arr.Values = append(arr.Values, v)
		case chunk.OpImportModule:
			path := readConstant().AsObj().(*value.ObjString)
			importModule, err = vm.getModuleByPath(path.Chars)
			if vm.trace == TraceModules && err == nil {
				fmt.Fprintf(vm.out, "loaded module %s\n", importModule.Name.Chars)
			}
		case chunk.OpImportVariable:
			nameInExport := readString()
			_ = readString() // alias, kept only for the instruction's debug shape
			varIdx := readByte()
			ref, ok := importModule.Exports.Get(nameInExport)
			if !ok {
				err = vm.newRuntimeError("%s is not exported from %s.", nameInExport.Chars, importModule.Name.Chars)
				break
			}
			vm.stack[frame.base+int(varIdx)] = ref
			vm.stackTop = frame.base + int(varIdx) + 1
		case chunk.OpExport:
			ident := readString()
			localIdx := readByte()
			upIdx := readByte()
			frame.closure.Upvalues[upIdx] = vm.captureUpvalue(&vm.stack[frame.base+int(localIdx)])
			if ref, ok := frame.closure.Function.Chunk.Module.Exports.Get(ident); ok {
				ref.AsObj().(*value.ObjReference).OwningClosure = frame.closure
			}
		case chunk.OpIndexerCompoundUnsupported:
			err = vm.newRuntimeError("Compound assignment through '[]' is not supported.")
		case chunk.OpThrow:
			err = vm.newRuntimeError("throw is reserved and not implemented.")
		default:
			err = vm.newRuntimeError("Unknown opcode %d.", op)
		}

		if err != nil {
			vm.resetStack()
			return err
		}

		if vm.onNextTick != nil {
			vm.onNextTick(op)
		}

		if vm.heap.gc.ShouldCollectOlder() {
			vm.collectOlder()
		}
	}
}

func (vm *VM) binaryNumberOp(f func(a, b float64) value.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.newRuntimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(f(a, b))
	return nil
}

func (vm *VM) add() error {
	bIsStr := vm.peek(0).IsObj()
	aIsStr := vm.peek(1).IsObj()
	if bIsStr && aIsStr {
		if _, ok := vm.peek(0).AsObj().(*value.ObjString); ok {
			if _, ok := vm.peek(1).AsObj().(*value.ObjString); ok {
				vm.concatenate()
				return nil
			}
		}
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(value.Number(a + b))
		return nil
	}
	return vm.newRuntimeError("Operands must be two numbers or two strings.")
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	klass := vm.peek(1).AsObj().(*value.ObjClass)
	klass.Methods.Set(name, method)
	vm.pop()
}

// collectInfant runs one infant-generation cycle, reusing markRoots for the
// gray-stack seed.
func (vm *VM) collectInfant() {
	vm.heap.gc.CollectInfant(vm.markRoots, vm.sweepWeakTables)
}

// collectOlder runs one older-generation cycle (spec Open Question (d): both
// generations' roots are rescanned in place of a write barrier).
func (vm *VM) collectOlder() {
	vm.heap.gc.CollectOlder(vm.markRoots, vm.sweepWeakTables)
}

// markRoots enumerates every GC root: the value stack, every active frame's
// closure, the open-upvalue list, the init-method sentinel, the globals
// table, the native string/array/dict prototypes (so their method and
// property tables survive), and every registered module's own roots
// (vm.c's markRootsVM). The
// intern table is deliberately not marked here: it's a weak table pruned by
// sweepWeakTables instead, so an otherwise-unreferenced string can still be
// collected.
func (vm *VM) markRoots(mark func(value.Obj)) {
	for i := 0; i < vm.stackTop; i++ {
		if vm.stack[i].IsObj() {
			mark(vm.stack[i].AsObj())
		}
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		mark(uv)
	}
	if vm.initString != nil {
		mark(vm.initString)
	}
	vm.heap.globals.Mark(mark)
	for _, p := range []*value.ObjPrototype{vm.stringProto, vm.arrayProto, vm.dictProto} {
		if p != nil {
			mark(p)
		}
	}
	for m := vm.modules; m != nil; m = m.Next {
		mark(m.Name)
		if m.RootFunction != nil {
			mark(m.RootFunction)
		}
		if m.RootClosure != nil {
			mark(m.RootClosure)
		}
		m.Exports.Mark(mark)
	}
}

// sweepWeakTables drops unmarked entries from the intern/global tables
// (vm.c's sweepVM). Passed as CollectInfant/CollectOlder's afterTrace hook,
// so it runs once tracing has settled which objects are reachable but
// before sweep clears every survivor's mark bit again — the only window in
// which a key's mark bit actually distinguishes "reachable" from
// "collected" this cycle. globals is also marked as a root in markRoots, so
// this only ever prunes it of names whose backing value didn't survive;
// strings is never marked as a root, so this is what actually reclaims
// unreachable interned strings.
func (vm *VM) sweepWeakTables() {
	vm.heap.strings.RemoveWhite()
	vm.heap.globals.RemoveWhite()
}
