package vm

import (
	"github.com/loxlang/loxvm/compiler"
	"github.com/loxlang/loxvm/value"
)

// evalInFrame compiles expr as a debugger eval expression against frame's
// live scope and runs it to completion, restoring every bit of VM state it
// touched afterward (vm.c's vm_eval/vm_evalBuild/vm_evalRun). Used by the
// debugger's `print`, `watch` and breakpoint `cond` commands.
func (vm *VM) evalInFrame(expr string, frame *callFrame) (value.Value, error) {
	if frame == nil {
		return value.Nil, vm.newRuntimeError("No active frame to evaluate against.")
	}

	disabled := vm.heap.gc.SetCollectionDisabled(true)
	fn, errs := compiler.CompileEval(expr, &frame.closure.Function.Chunk, vm.heap)
	if errs != nil {
		vm.heap.gc.SetCollectionDisabled(disabled)
		return value.Nil, &CompileError{Errs: errs}
	}

	closure := vm.heap.NewClosure(fn)
	savedStackTop := vm.stackTop
	vm.push(value.Obj_(closure))
	vm.loadUpvalues(frame, closure)
	vm.heap.gc.SetCollectionDisabled(disabled)

	savedOpenUpvalues := vm.openUpvalues
	savedFrameCount := vm.frameCount
	savedFailOnErr := vm.failOnRuntimeErr
	vm.failOnRuntimeErr = true
	defer func() { vm.failOnRuntimeErr = savedFailOnErr }()

	if err := vm.call(closure, 0); err != nil {
		vm.pop()
		vm.frameCount = savedFrameCount
		return value.Nil, err
	}
	runErr := vm.run()
	vm.frameCount = savedFrameCount

	if runErr != nil {
		// run resets the stack on any runtime error; put the paused
		// program's stack back.
		vm.stackTop = savedStackTop
		vm.openUpvalues = savedOpenUpvalues
		return value.Nil, runErr
	}
	result := vm.pop()
	vm.pop() // the closure pushed above
	return result, nil
}
