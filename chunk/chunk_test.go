package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/value"
)

func TestChunk_WriteAndLines(t *testing.T) {
	c := New(nil)
	WriteOp(c, OpConstant, 1)
	Write(c, 0, 1)
	WriteOp(c, OpReturn, 2)

	require.Len(t, c.Code, 3)
	assert.Equal(t, byte(OpConstant), c.Code[0])
	assert.Equal(t, byte(OpReturn), c.Code[2])
	assert.Equal(t, []int{1, 1, 2}, c.Lines)
}

func TestChunk_AddConstant(t *testing.T) {
	c := New(nil)
	idx := AddConstant(c, value.Number(42))
	assert.Equal(t, 0, idx)
	assert.Equal(t, float64(42), c.Constants[idx].AsNumber())

	idx2 := AddConstant(c, value.Number(7))
	assert.Equal(t, 1, idx2)
}

func TestChunk_WriteShortReadShort(t *testing.T) {
	c := New(nil)
	WriteShort(c, 0x1234, 1)
	got := ReadShort(c, 0)
	assert.Equal(t, uint16(0x1234), got)
}

func TestOpCode_String(t *testing.T) {
	assert.Equal(t, "OP_RETURN", OpReturn.String())
	assert.Equal(t, "OP_EVAL_EXIT", OpEvalExit.String())
	assert.Equal(t, "OP_UNKNOWN", OpCode(255).String())
}

func TestOpCode_NamesCoverEveryConstant(t *testing.T) {
	// Every declared opcode must render something other than the unknown
	// fallback, keeping the disassembler trace in vm.go readable.
	for op := OpConstant; op <= OpIndexerCompoundUnsupported; op++ {
		assert.NotEqual(t, "OP_UNKNOWN", op.String(), "opcode %d has no name", op)
	}
}
