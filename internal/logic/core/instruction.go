package core

import (
	"slices"

	"ix-pipeline-sol/internal/types"
)

// AccountMeta 表示指令引用的单个账户及其访问属性。
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsWritable bool
	IsSigner   bool
}

// Instruction 表示一条已解析的链上指令（主指令或 inner 指令）。
// 账户索引已通过交易账户表解析为公钥，构造完成后不再修改。
type Instruction struct {
	ProgramID types.Pubkey  // 所调用的程序地址
	Accounts  []AccountMeta // 指令涉及的账户列表，保持原始顺序
	Data      []byte        // 指令原始数据字节
}

// Clone 返回结构化深拷贝（Accounts 与 Data 均复制）。
func (ix *Instruction) Clone() Instruction {
	return Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  slices.Clone(ix.Accounts),
		Data:      slices.Clone(ix.Data),
	}
}

// InstructionMetadata 表示指令在交易中的位置信息。
//
// 不变式：
//   - len(AbsolutePath) == StackHeight；
//   - 1 <= StackHeight <= consts.MaxInstructionStackDepth。
type InstructionMetadata struct {
	// TxMeta 指向所属交易的只读元数据，交易内所有指令共享同一实例。
	TxMeta *TransactionMetadata

	// StackHeight 是 1-based 调用栈深度，1 表示主指令。
	StackHeight uint32

	// IxIndex 是该指令所属主指令在 message 中的下标。
	IxIndex uint32

	// AbsolutePath 是从根到该节点逐层的兄弟序号，长度等于 StackHeight。
	AbsolutePath []uint8
}

// Clone 返回深拷贝，TxMeta 引用保持共享。
func (m *InstructionMetadata) Clone() InstructionMetadata {
	return InstructionMetadata{
		TxMeta:       m.TxMeta,
		StackHeight:  m.StackHeight,
		IxIndex:      m.IxIndex,
		AbsolutePath: slices.Clone(m.AbsolutePath),
	}
}

// FlatInstruction 是展平序列中的一项：位置元数据 + 指令本体。
type FlatInstruction struct {
	Metadata    InstructionMetadata
	Instruction Instruction
}
