package core

import (
	"fmt"

	"ix-pipeline-sol/internal/consts"
)

// NestedInstruction 表示一个指令节点及其直接子指令（CPI 调用）。
// 每棵树对应一条主指令，节点独占其子节点，构建完成后整体只读。
type NestedInstruction struct {
	Metadata    InstructionMetadata
	Instruction Instruction
	Inner       NestedInstructions // 直接子指令，保持执行顺序
}

// NestedInstructions 是指令森林（或某节点的子指令列表）。
type NestedInstructions []*NestedInstruction

func (n NestedInstructions) Len() int {
	return len(n)
}

func (n NestedInstructions) IsEmpty() bool {
	return len(n) == 0
}

// Flatten 以先序遍历还原展平序列。
// 对于合法输入，BuildNestedInstructions 的输出满足 Flatten(Build(x)) == x。
func (n NestedInstructions) Flatten() []FlatInstruction {
	var out []FlatInstruction
	var walk func(node *NestedInstruction)
	walk = func(node *NestedInstruction) {
		out = append(out, FlatInstruction{Metadata: node.Metadata, Instruction: node.Instruction})
		for _, child := range node.Inner {
			walk(child)
		}
	}
	for _, root := range n {
		walk(root)
	}
	return out
}

// BuildNestedInstructions 将展平的指令序列重建为指令森林。
//
// 输入要求已按协议保证的执行先序排列（主指令后紧跟其全部 inner 指令，
// inner 按深度优先顺序出现）。算法单次线性扫描：
//   - 维护每个深度上"最近追加节点"的指针表（levelTails）；
//   - 节点独立堆分配、子列表存指针，追加子节点不会搬动已有节点，
//     因此跨追加持有的 tail 指针始终有效；
//   - 新节点出现在深度 h 时，深度 >= h 的 tail 全部失效（被清空），
//     h-2 处的 tail 即为其父节点。
//
// stack height 超出 [1, MaxInstructionStackDepth] 或先序契约被破坏
//（h > 1 却找不到父节点）时整体构建失败：继续只会产出结构错误的树。
func BuildNestedInstructions(instructions []FlatInstruction) (NestedInstructions, error) {
	// 只有根节点会追加进顶层容器，按主指令数量预分配
	rootCount := 0
	for i := range instructions {
		if instructions[i].Metadata.StackHeight == 1 {
			rootCount++
		}
	}

	nested := make(NestedInstructions, 0, rootCount)
	var levelTails [consts.MaxInstructionStackDepth]*NestedInstruction

	for i := range instructions {
		meta := &instructions[i].Metadata
		h := int(meta.StackHeight)

		if h < 1 || h > consts.MaxInstructionStackDepth {
			return nil, fmt.Errorf("build nested instructions: tx=%s ixIndex=%d: stack height %d out of range [1, %d]",
				meta.TxMeta.Signature, meta.IxIndex, h, consts.MaxInstructionStackDepth)
		}

		// 深度 >= h 的 tail 均指向先前节点的后代，对新节点而言已失效
		for d := h; d < consts.MaxInstructionStackDepth; d++ {
			levelTails[d] = nil
		}

		node := &NestedInstruction{
			Metadata:    instructions[i].Metadata,
			Instruction: instructions[i].Instruction,
		}

		if h == 1 {
			nested = append(nested, node)
			levelTails[0] = node
			continue
		}

		parent := levelTails[h-2]
		if parent == nil {
			return nil, fmt.Errorf("build nested instructions: tx=%s ixIndex=%d: no parent at depth %d for stack height %d (input not in pre-order)",
				meta.TxMeta.Signature, meta.IxIndex, h-1, h)
		}
		parent.Inner = append(parent.Inner, node)
		levelTails[h-1] = node
	}

	return nested, nil
}
