package core

import (
	"testing"

	"ix-pipeline-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTxMeta = &TransactionMetadata{
	Slot:      12345,
	Signature: types.Signature{1, 2, 3},
}

// flatIx 按 stack height 与 absolute path 构造一条展平指令，
// Data 首字节作为测试中区分节点的标记。
func flatIx(tag byte, path ...uint8) FlatInstruction {
	return FlatInstruction{
		Metadata: InstructionMetadata{
			TxMeta:       testTxMeta,
			StackHeight:  uint32(len(path)),
			IxIndex:      uint32(path[0]),
			AbsolutePath: path,
		},
		Instruction: Instruction{Data: []byte{tag}},
	}
}

func TestBuildNestedInstructions_Empty(t *testing.T) {
	nested, err := BuildNestedInstructions(nil)
	require.NoError(t, err)
	assert.True(t, nested.IsEmpty())
	assert.Empty(t, nested.Flatten())
}

func TestBuildNestedInstructions_TopLevelOnly(t *testing.T) {
	flat := []FlatInstruction{flatIx(0, 0), flatIx(1, 1), flatIx(2, 2)}

	nested, err := BuildNestedInstructions(flat)
	require.NoError(t, err)
	require.Equal(t, 3, nested.Len())

	for i, root := range nested {
		assert.Equal(t, byte(i), root.Instruction.Data[0])
		assert.True(t, root.Inner.IsEmpty())
	}
}

// 两条主指令，第一条带两层 CPI:
//
//	[0]           tag=0
//	  [0,0]       tag=1
//	    [0,0,0]   tag=2
//	  [0,1]       tag=3
//	[1]           tag=4
func TestBuildNestedInstructions_TwoRoots(t *testing.T) {
	flat := []FlatInstruction{
		flatIx(0, 0),
		flatIx(1, 0, 0),
		flatIx(2, 0, 0, 0),
		flatIx(3, 0, 1),
		flatIx(4, 1),
	}

	nested, err := BuildNestedInstructions(flat)
	require.NoError(t, err)
	require.Equal(t, 2, nested.Len())

	root0 := nested[0]
	require.Equal(t, 2, root0.Inner.Len())
	assert.Equal(t, byte(1), root0.Inner[0].Instruction.Data[0])
	assert.Equal(t, byte(3), root0.Inner[1].Instruction.Data[0])

	require.Equal(t, 1, root0.Inner[0].Inner.Len())
	assert.Equal(t, byte(2), root0.Inner[0].Inner[0].Instruction.Data[0])
	assert.True(t, root0.Inner[0].Inner[0].Inner.IsEmpty())

	root1 := nested[1]
	assert.Equal(t, byte(4), root1.Instruction.Data[0])
	assert.True(t, root1.Inner.IsEmpty())
}

// Flatten(Build(x)) == x：先序序列经重建再展平后逐项一致
func TestBuildNestedInstructions_RoundTrip(t *testing.T) {
	flat := []FlatInstruction{
		flatIx(0, 0),
		flatIx(1, 0, 0),
		flatIx(2, 0, 0, 0),
		flatIx(3, 0, 0, 0, 0),
		flatIx(4, 0, 0, 0, 0, 0), // 最大深度 5
		flatIx(5, 0, 1),
		flatIx(6, 1),
		flatIx(7, 1, 0),
		flatIx(8, 2),
	}

	nested, err := BuildNestedInstructions(flat)
	require.NoError(t, err)

	assert.Equal(t, flat, nested.Flatten())
}

// 每个子节点的深度恰好比父节点深 1，路径是父路径加一个序号
func TestBuildNestedInstructions_DepthInvariant(t *testing.T) {
	flat := []FlatInstruction{
		flatIx(0, 0),
		flatIx(1, 0, 0),
		flatIx(2, 0, 1),
		flatIx(3, 0, 1, 0),
	}

	nested, err := BuildNestedInstructions(flat)
	require.NoError(t, err)

	var check func(node *NestedInstruction)
	check = func(node *NestedInstruction) {
		assert.Equal(t, int(node.Metadata.StackHeight), len(node.Metadata.AbsolutePath))
		for i, child := range node.Inner {
			assert.Equal(t, node.Metadata.StackHeight+1, child.Metadata.StackHeight)
			assert.Equal(t, node.Metadata.AbsolutePath, child.Metadata.AbsolutePath[:node.Metadata.StackHeight])
			assert.Equal(t, uint8(i), child.Metadata.AbsolutePath[node.Metadata.StackHeight])
			check(child)
		}
	}
	for _, root := range nested {
		check(root)
	}
}

func TestBuildNestedInstructions_StackHeightOutOfRange(t *testing.T) {
	zero := []FlatInstruction{{
		Metadata:    InstructionMetadata{TxMeta: testTxMeta, StackHeight: 0},
		Instruction: Instruction{},
	}}
	_, err := BuildNestedInstructions(zero)
	assert.Error(t, err)

	tooDeep := []FlatInstruction{
		flatIx(0, 0),
		flatIx(1, 0, 0),
		flatIx(2, 0, 0, 0),
		flatIx(3, 0, 0, 0, 0),
		flatIx(4, 0, 0, 0, 0, 0),
		flatIx(5, 0, 0, 0, 0, 0, 0), // 深度 6，超出上限
	}
	_, err = BuildNestedInstructions(tooDeep)
	assert.Error(t, err)
}

// 深度跳跃（1 -> 3）破坏先序契约，必须整体失败而不是挂错父节点
func TestBuildNestedInstructions_MissingParent(t *testing.T) {
	flat := []FlatInstruction{
		flatIx(0, 0),
		{
			Metadata: InstructionMetadata{
				TxMeta:       testTxMeta,
				StackHeight:  3,
				IxIndex:      0,
				AbsolutePath: []uint8{0, 0, 0},
			},
			Instruction: Instruction{Data: []byte{1}},
		},
	}
	_, err := BuildNestedInstructions(flat)
	assert.Error(t, err)
}

// inner 序列以深度 2 开头、没有任何主指令时同样缺少父节点
func TestBuildNestedInstructions_InnerFirst(t *testing.T) {
	flat := []FlatInstruction{flatIx(0, 0, 0)}
	_, err := BuildNestedInstructions(flat)
	assert.Error(t, err)
}

// 回到浅层后再下探，不能把新节点挂到旧分支上
func TestBuildNestedInstructions_TailInvalidation(t *testing.T) {
	flat := []FlatInstruction{
		flatIx(0, 0),
		flatIx(1, 0, 0),
		flatIx(2, 0, 0, 0),
		flatIx(3, 0, 1), // 回到深度 2
		flatIx(4, 0, 1, 0),
	}

	nested, err := BuildNestedInstructions(flat)
	require.NoError(t, err)

	root := nested[0]
	require.Equal(t, 2, root.Inner.Len())
	// tag=4 必须挂在 tag=3 下，而不是 tag=1 的旧分支
	assert.True(t, root.Inner[0].Inner[0].Inner.IsEmpty())
	require.Equal(t, 1, root.Inner[1].Inner.Len())
	assert.Equal(t, byte(4), root.Inner[1].Inner[0].Instruction.Data[0])
}

func TestInstructionClone(t *testing.T) {
	orig := Instruction{
		ProgramID: types.Pubkey{9},
		Accounts:  []AccountMeta{{Pubkey: types.Pubkey{1}, IsWritable: true}},
		Data:      []byte{1, 2, 3},
	}
	cloned := orig.Clone()
	cloned.Accounts[0].IsWritable = false
	cloned.Data[0] = 99

	assert.True(t, orig.Accounts[0].IsWritable)
	assert.Equal(t, byte(1), orig.Data[0])
}

func TestInstructionMetadataClone_SharesTxMeta(t *testing.T) {
	meta := InstructionMetadata{
		TxMeta:       testTxMeta,
		StackHeight:  2,
		IxIndex:      1,
		AbsolutePath: []uint8{1, 0},
	}
	cloned := meta.Clone()
	cloned.AbsolutePath[1] = 7

	assert.Same(t, meta.TxMeta, cloned.TxMeta)
	assert.Equal(t, uint8(0), meta.AbsolutePath[1])
}
