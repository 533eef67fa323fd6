package compiler

import (
	"fmt"

	"github.com/loxlang/loxvm/lexer"
	"github.com/loxlang/loxvm/value"
)

// Host supplies the heap services the compiler needs without pulling in the
// vm package (which would import compiler back to compile modules). Grounded
// on _examples/original_source/clox/src/compiler.c's reliance on vm-owned
// allocation (newFunction, copyString, newReference) and the global table
// (tableHasKey(&vm.globals, ...) in variableAccessOp).
type Host interface {
	// Intern returns the canonical *value.ObjString for s.
	Intern(s string) *value.ObjString
	// NewFunction allocates a fresh, empty ObjFunction on the heap.
	NewFunction() *value.ObjFunction
	// NewReference allocates an ObjReference bound to an export name, the
	// owning module and the upvalue slot that will be patched once the
	// exporting module's top level runs (spec §3's two-phase construction).
	NewReference(name *value.ObjString, mod *value.Module, upvalueIndex int, chunk *value.Chunk) *value.ObjReference
	// HasGlobal reports whether name is already a defined global, used to
	// decide whether an unresolved identifier should compile as
	// OP_GET_GLOBAL/OP_SET_GLOBAL or be reported as undefined.
	HasGlobal(name *value.ObjString) bool
}

// FunctionType says what kind of function body is being compiled, since a
// handful of decisions (implicit `this`, bare return, eval's unreserved
// slot 0) depend on it (spec §3).
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeMethod
	TypeInitializer
	TypeScript
	TypeEval
)

// Local is a stack slot reserved for a declared variable, tracked by the
// enclosing FuncCompiler so reads/writes can resolve to OP_GET_LOCAL /
// OP_SET_LOCAL (or OP_GET_REFERENCE / OP_SET_REFERENCE for imported names)
// instead of a global lookup.
type Local struct {
	Name       lexer.Token
	Depth      int // -1 while the initializer expression is still compiling
	IsCaptured bool
	IsReference bool
}

// UpvalueDesc records one upvalue slot: whether it aliases a local in the
// immediately enclosing function or forwards an upvalue of that function.
type UpvalueDesc struct {
	Index   byte
	IsLocal bool
}

// ClassCompiler tracks whether the class body currently being compiled has a
// superclass, so `super` can be validated and `this`/`super` locals scoped
// correctly (spec §4.6).
type ClassCompiler struct {
	Enclosing     *ClassCompiler
	HasSuperclass bool
}

// patchJump is one forward jump awaiting patching once a loop's start/end
// bytecode offset is known (break/continue targets).
type patchJump struct {
	pos  int
	next *patchJump
}

// loopCompiler collects break/continue jumps for one loop nesting level.
type loopCompiler struct {
	enclosing       *loopCompiler
	patchContinue   *patchJump
	patchBreak      *patchJump
}

// FuncCompiler is the per-function compilation record (spec §3's
// compiler_record): locals, upvalues and the chunk being emitted into. These
// form a linked chain through Enclosing that mirrors the lexical nesting of
// function declarations, letting resolveUpvalue walk outward to find a
// captured variable (clox's Compiler struct).
type FuncCompiler struct {
	Enclosing *FuncCompiler

	Function *value.ObjFunction
	Type     FunctionType

	Locals     []Local
	ScopeDepth int
	Upvalues   []UpvalueDesc

	loop *loopCompiler
}

func (fc *FuncCompiler) chunk() *value.Chunk { return &fc.Function.Chunk }

// CompileError is one `[line L] Error at 'lexeme': message` diagnostic,
// matching original clox's errorAt formatting (spec §4.1's failure modes).
type CompileError struct {
	Line    int
	Where   string
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error%s: %s", e.Line, e.Where, e.Message)
}
