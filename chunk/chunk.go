// Package chunk defines loxvm's bytecode format: the opcode set (spec §4.3),
// their immediate-byte encodings (spec §6.1), and the growable byte buffer
// with its parallel line table and constant pool. The buffer itself
// (value.Chunk) lives in package value because ObjFunction must embed it by
// value without creating an import cycle between value and chunk; this
// package re-exports the type so callers write chunk.Chunk the way the rest
// of the component design talks about it.
package chunk

import "github.com/loxlang/loxvm/value"

// Chunk is a function's bytecode buffer: code, per-byte line numbers and a
// deduplicated constant pool (spec §3).
type Chunk = value.Chunk

// OpCode is one bytecode instruction.
type OpCode byte

// The instruction set, grouped per spec §4.3's table. Values are stable
// across a process but not a persisted format.
const (
	// Literals
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse

	// Stack
	OpPop
	OpCloseUpvalue

	// Locals
	OpGetLocal
	OpSetLocal
	OpGetReference
	OpSetReference

	// Upvalues
	OpGetUpvalue
	OpSetUpvalue

	// Globals
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal

	// Objects
	OpGetProperty
	OpSetProperty
	OpGetIndexer
	OpSetIndexer
	OpGetSuper

	// Compare/Arith
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate

	// Control
	OpJump
	OpJumpIfFalse
	OpLoop

	// Calls
	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure
	OpReturn
	OpEvalExit

	// Classes
	OpClass
	OpInherit
	OpMethod

	// Collections
	OpDefineDict
	OpDictField
	OpDefineArray
	OpArrayPush

	// I/O
	OpPrint

	// Modules
	OpImportModule
	OpImportVariable
	OpExport

	// Reserved, never emitted (spec §9 Open Question (a)).
	OpThrow

	// OpIndexerCompoundUnsupported is emitted for `x[y] op= z` (spec §9 Open
	// Question (b)): the subscript compound-assignment path is compiled but
	// always raises a runtime error when executed, rather than being
	// rejected at compile time, matching the FIXME-marked dead code in
	// original clox's subscript() parse function.
	OpIndexerCompoundUnsupported
)

var names = map[OpCode]string{
	OpConstant: "OP_CONSTANT", OpNil: "OP_NIL", OpTrue: "OP_TRUE", OpFalse: "OP_FALSE",
	OpPop: "OP_POP", OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpGetLocal: "OP_GET_LOCAL", OpSetLocal: "OP_SET_LOCAL",
	OpGetReference: "OP_GET_REFERENCE", OpSetReference: "OP_SET_REFERENCE",
	OpGetUpvalue: "OP_GET_UPVALUE", OpSetUpvalue: "OP_SET_UPVALUE",
	OpDefineGlobal: "OP_DEFINE_GLOBAL", OpGetGlobal: "OP_GET_GLOBAL", OpSetGlobal: "OP_SET_GLOBAL",
	OpGetProperty: "OP_GET_PROPERTY", OpSetProperty: "OP_SET_PROPERTY",
	OpGetIndexer: "OP_GET_INDEXER", OpSetIndexer: "OP_SET_INDEXER", OpGetSuper: "OP_GET_SUPER",
	OpEqual: "OP_EQUAL", OpGreater: "OP_GREATER", OpLess: "OP_LESS",
	OpAdd: "OP_ADD", OpSubtract: "OP_SUBTRACT", OpMultiply: "OP_MULTIPLY", OpDivide: "OP_DIVIDE",
	OpNot: "OP_NOT", OpNegate: "OP_NEGATE",
	OpJump: "OP_JUMP", OpJumpIfFalse: "OP_JUMP_IF_FALSE", OpLoop: "OP_LOOP",
	OpCall: "OP_CALL", OpInvoke: "OP_INVOKE", OpSuperInvoke: "OP_SUPER_INVOKE",
	OpClosure: "OP_CLOSURE", OpReturn: "OP_RETURN", OpEvalExit: "OP_EVAL_EXIT",
	OpClass: "OP_CLASS", OpInherit: "OP_INHERIT", OpMethod: "OP_METHOD",
	OpDefineDict: "OP_DEFINE_DICT", OpDictField: "OP_DICT_FIELD",
	OpDefineArray: "OP_DEFINE_ARRAY", OpArrayPush: "OP_ARRAY_PUSH",
	OpPrint: "OP_PRINT",
	OpImportModule: "OP_IMPORT_MODULE", OpImportVariable: "OP_IMPORT_VARIABLE", OpExport: "OP_EXPORT",
	OpThrow:                       "OP_THROW",
	OpIndexerCompoundUnsupported:  "OP_INDEXER_COMPOUND_UNSUPPORTED",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "OP_UNKNOWN"
}

// New returns an empty chunk belonging to module (may be nil for throwaway
// debugger-eval chunks).
func New(module *value.Module) *Chunk {
	return &Chunk{Module: module}
}

// Write appends one bytecode byte, recording the source line it came from
// (spec §3's Chunk invariant: lines[i] is the source line of code[i]).
func Write(c *Chunk, b byte, line int) { c.Write(b, line) }

// WriteOp appends an opcode byte.
func WriteOp(c *Chunk, op OpCode, line int) { c.Write(byte(op), line) }

// WriteShort appends a 16-bit big-endian immediate (jump offsets, spec §6.1).
func WriteShort(c *Chunk, v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// AddConstant appends a deduplicated constant, returning its index.
func AddConstant(c *Chunk, v value.Value) int { return c.AddConstant(v) }

// ReadShort decodes the two-byte big-endian offset at code[ip].
func ReadShort(c *Chunk, ip int) uint16 {
	return uint16(c.Code[ip])<<8 | uint16(c.Code[ip+1])
}
