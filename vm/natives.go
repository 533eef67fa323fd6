package vm

import (
	"strconv"
	"strings"
	"time"

	"github.com/loxlang/loxvm/value"
)

// defineBuiltins installs the VM-bootstrapped globals (native.c's
// defineAll): clock, str and num. These are the only entries the globals
// table ever carries, since every source-level declaration compiles to a
// local (compiler.Host.HasGlobal's contract).
func (vm *VM) defineBuiltins() {
	vm.heap.DefineGlobal(vm.heap.Intern("clock"), value.Obj_(vm.heap.NewNativeFn("clock", 0, nativeClock)))
	vm.heap.DefineGlobal(vm.heap.Intern("str"), value.Obj_(vm.heap.NewNativeFn("str", 1, nativeStr)))
	vm.heap.DefineGlobal(vm.heap.Intern("num"), value.Obj_(vm.heap.NewNativeFn("num", 1, nativeNum)))
}

func nativeClock(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeStr(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	return value.Obj_(ctx.InternString(value.ToString(args[0]))), nil
}

func nativeNum(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if !args[0].IsObj() {
		return value.Nil, ctx.RuntimeError("num() requires a string argument.")
	}
	s, ok := args[0].AsObj().(*value.ObjString)
	if !ok {
		return value.Nil, ctx.RuntimeError("num() requires a string argument.")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s.Chars), 64)
	if err != nil {
		return value.Number(0), nil
	}
	return value.Number(n), nil
}

// installPrototypes builds the string/array/dict native prototype chains
// (spec §3's ObjPrototype, §4.2's Design Note on subscript dispatch) and
// stamps the Heap so every new string/array/dict picks one up at
// allocation.
func (vm *VM) installPrototypes() {
	vm.stringProto = vm.heap.NewPrototype(nil)
	vm.arrayProto = vm.heap.NewPrototype(nil)
	vm.dictProto = vm.heap.NewPrototype(nil)
	vm.heap.SetTypeProtos(vm.stringProto, vm.arrayProto, vm.dictProto)

	addProp(vm.heap, vm.stringProto, "length", stringLength, nil)
	addMethod(vm.heap, vm.stringProto, "toString", 0, stringToString)
	addMethod(vm.heap, vm.stringProto, "__getitem__", 1, stringGetItem)
	addMethod(vm.heap, vm.stringProto, "__setitem__", 2, stringSetItem)

	addProp(vm.heap, vm.arrayProto, "length", arrayLength, nil)
	addMethod(vm.heap, vm.arrayProto, "toString", 0, arrayToString)
	addMethod(vm.heap, vm.arrayProto, "__getitem__", 1, arrayGetItem)
	addMethod(vm.heap, vm.arrayProto, "__setitem__", 2, arraySetItem)
	addMethod(vm.heap, vm.arrayProto, "push", 1, arrayPush)
	addMethod(vm.heap, vm.arrayProto, "pop", 0, arrayPop)

	addProp(vm.heap, vm.dictProto, "length", dictLength, nil)
	addMethod(vm.heap, vm.dictProto, "toString", 0, dictToString)
	addMethod(vm.heap, vm.dictProto, "__getitem__", 1, dictGetItem)
	addMethod(vm.heap, vm.dictProto, "__setitem__", 2, dictSetItem)
}

func addMethod(h *Heap, proto *value.ObjPrototype, name string, arity int, fn value.NativeMethodFn) {
	m := h.NewNativeMethod(name, arity, fn)
	proto.MethodsNative.Set(m.Name, value.Obj_(m))
}

func addProp(h *Heap, proto *value.ObjPrototype, name string, get value.NativeGetter, set value.NativeSetter) {
	p := h.NewNativeProp(name, get, set)
	proto.PropsNative.Set(p.Name, value.Obj_(p))
}

func mustIndex(ctx value.NativeContext, key value.Value, length int) (int, error) {
	if !key.IsNumber() {
		return 0, ctx.RuntimeError("Index must be a number.")
	}
	i := int(key.AsNumber())
	if i < 0 || i >= length {
		return 0, ctx.RuntimeError("Index out of bounds.")
	}
	return i, nil
}

func stringLength(ctx value.NativeContext, receiver value.Value) (value.Value, error) {
	s := receiver.AsObj().(*value.ObjString)
	return value.Number(float64(len(s.Chars))), nil
}

func stringToString(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	return receiver, nil
}

func stringGetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	s := receiver.AsObj().(*value.ObjString)
	i, err := mustIndex(ctx, args[0], len(s.Chars))
	if err != nil {
		return value.Nil, err
	}
	return value.Obj_(ctx.InternString(string(s.Chars[i]))), nil
}

func stringSetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	return value.Nil, ctx.RuntimeError("Strings are immutable.")
}

func arrayLength(ctx value.NativeContext, receiver value.Value) (value.Value, error) {
	a := receiver.AsObj().(*value.ObjArray)
	return value.Number(float64(len(a.Values))), nil
}

func arrayToString(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	return value.Obj_(ctx.InternString(value.ToString(receiver))), nil
}

func arrayGetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	a := receiver.AsObj().(*value.ObjArray)
	i, err := mustIndex(ctx, args[0], len(a.Values))
	if err != nil {
		return value.Nil, err
	}
	return a.Values[i], nil
}

func arraySetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	a := receiver.AsObj().(*value.ObjArray)
	i, err := mustIndex(ctx, args[0], len(a.Values))
	if err != nil {
		return value.Nil, err
	}
	a.Values[i] = args[1]
	return args[1], nil
}

func arrayPush(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	a := receiver.AsObj().(*value.ObjArray)
	a.Values = append(a.Values, args[0])
	return receiver, nil
}

func arrayPop(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	a := receiver.AsObj().(*value.ObjArray)
	if len(a.Values) == 0 {
		return value.Nil, ctx.RuntimeError("Cannot pop from an empty array.")
	}
	v := a.Values[len(a.Values)-1]
	a.Values = a.Values[:len(a.Values)-1]
	return v, nil
}

func dictLength(ctx value.NativeContext, receiver value.Value) (value.Value, error) {
	d := receiver.AsObj().(*value.ObjDict)
	return value.Number(float64(d.Fields.Len())), nil
}

func dictToString(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	return value.Obj_(ctx.InternString(value.ToString(receiver))), nil
}

func dictGetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	d := receiver.AsObj().(*value.ObjDict)
	if !args[0].IsObj() {
		return value.Nil, ctx.RuntimeError("Dict keys must be strings.")
	}
	key, ok := args[0].AsObj().(*value.ObjString)
	if !ok {
		return value.Nil, ctx.RuntimeError("Dict keys must be strings.")
	}
	v, ok := d.Fields.Get(key)
	if !ok {
		return value.Nil, ctx.RuntimeError("Key '%s' not found.", key.Chars)
	}
	return v, nil
}

func dictSetItem(ctx value.NativeContext, receiver value.Value, args []value.Value) (value.Value, error) {
	d := receiver.AsObj().(*value.ObjDict)
	if !args[0].IsObj() {
		return value.Nil, ctx.RuntimeError("Dict keys must be strings.")
	}
	key, ok := args[0].AsObj().(*value.ObjString)
	if !ok {
		return value.Nil, ctx.RuntimeError("Dict keys must be strings.")
	}
	d.Fields.Set(key, args[1])
	return args[1], nil
}
