package vm

import "github.com/loxlang/loxvm/value"

// getProperty implements OP_GET_PROPERTY (vm.c's run() case OP_GET_PROPERTY).
// Instance/dict fields win outright. For an instance, a name that misses the
// fields table falls back to the class's method table (wrapped as a bound
// method); for a dict, a miss is an "Undefined property" error and the dict
// prototype is not consulted; any other receiver goes straight to the native
// prototype chain. This departs from the
// literal source, which calls bindMethod unconditionally even after a
// successful field lookup, spuriously erroring for a plain data field whose
// name doesn't also name a method (see DESIGN.md).
func (vm *VM) getProperty(obj value.Value, name *value.ObjString) error {
	switch o := receiverObj(obj).(type) {
	case *value.ObjInstance:
		if v, ok := o.Fields.Get(name); ok {
			vm.push(v)
			return nil
		}
		return vm.bindMethod(o.Class, name)
	case *value.ObjDict:
		if v, ok := o.Fields.Get(name); ok {
			vm.push(v)
			return nil
		}
		return vm.newRuntimeError("Undefined property '%s'.", name.Chars)
	}

	if prop, ok := vm.nativePropFor(obj, name); ok {
		v, err := prop.Get(vm.heap, obj)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	if method, ok := vm.nativeMethodFor(obj, name); ok {
		vm.push(value.Obj_(vm.heap.NewBoundNativeMethod(obj, method)))
		return nil
	}
	return vm.newRuntimeError("%s has no property '%s'.", value.TypeName(obj), name.Chars)
}

// setProperty implements OP_SET_PROPERTY: dict/instance fields are always
// writable (creating the field if absent), everything else goes through the
// prototype chain's native setter (vm.c's OP_SET_PROPERTY plus native.c's
// property convention).
func (vm *VM) setProperty(obj value.Value, name *value.ObjString, v value.Value) error {
	switch o := receiverObj(obj).(type) {
	case *value.ObjInstance:
		o.Fields.Set(name, v)
		vm.push(v)
		return nil
	case *value.ObjDict:
		o.Fields.Set(name, v)
		vm.push(v)
		return nil
	}

	if prop, ok := vm.nativePropFor(obj, name); ok {
		if err := prop.Set(vm.heap, obj, v); err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	return vm.newRuntimeError("%s has no settable property '%s'.", value.TypeName(obj), name.Chars)
}

// getIndexer implements OP_GET_INDEXER: subscript always dispatches to
// __getitem__ on the receiver's prototype chain (spec §4.2's Design Note).
func (vm *VM) getIndexer(obj, key value.Value) error {
	method, ok := vm.nativeMethodFor(obj, vm.getitemName)
	if !ok {
		return vm.newRuntimeError("%s does not support indexing.", value.TypeName(obj))
	}
	result, err := method.Method(vm.heap, obj, []value.Value{key})
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// setIndexer implements OP_SET_INDEXER via __setitem__.
func (vm *VM) setIndexer(obj, key, v value.Value) error {
	method, ok := vm.nativeMethodFor(obj, vm.setitemName)
	if !ok {
		return vm.newRuntimeError("%s does not support index assignment.", value.TypeName(obj))
	}
	result, err := method.Method(vm.heap, obj, []value.Value{key, v})
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// nativeMethodFor/nativePropFor walk obj's prototype chain (the ObjHeader's
// Prototype field, stamped at allocation by Heap) looking for name. Non-Obj
// receivers (numbers, bools, nil) never match, matching clox's numbers
// having no callable surface.
func (vm *VM) nativeMethodFor(obj value.Value, name *value.ObjString) (*value.ObjNativeMethod, bool) {
	o := receiverObj(obj)
	if o == nil {
		return nil, false
	}
	proto := value.HeaderOf(o).Prototype()
	if proto == nil {
		return nil, false
	}
	return proto.LookupMethod(name)
}

func (vm *VM) nativePropFor(obj value.Value, name *value.ObjString) (*value.ObjNativeProp, bool) {
	o := receiverObj(obj)
	if o == nil {
		return nil, false
	}
	proto := value.HeaderOf(o).Prototype()
	if proto == nil {
		return nil, false
	}
	return proto.LookupProp(name)
}
