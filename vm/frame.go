package vm

import "github.com/loxlang/loxvm/value"

// FramesMax/StackMax are the fixed call-frame and value-stack caps spec §4.3
// requires ("a fixed array of call frames (cap 64) and a value stack (cap
// frames × 256)"), matching clox's FRAMES_MAX/STACK_MAX exactly.
const (
	FramesMax = 64
	StackMax  = FramesMax * 256
)

// callFrame is one active call's bookkeeping: its closure, instruction
// pointer (as an index into the closure's chunk, since Go slices don't carry
// raw pointers the way clox's CallFrame.ip does) and its base stack slot.
type callFrame struct {
	closure *value.ObjClosure
	ip      int
	base    int
}
