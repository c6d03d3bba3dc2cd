package pipeline

import (
	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/types"
)

// FilterFunc 将普通函数适配为 Filter。
type FilterFunc func(meta *core.InstructionMetadata, ix *core.Instruction) bool

func (f FilterFunc) Apply(meta *core.InstructionMetadata, ix *core.Instruction) bool {
	return f(meta, ix)
}

// ProgramFilter 只放行指定 Program 的指令（常用于跳过 ComputeBudget 等噪音指令）。
type ProgramFilter struct {
	Allowed map[types.Pubkey]struct{}
}

func NewProgramFilter(programs ...types.Pubkey) *ProgramFilter {
	allowed := make(map[types.Pubkey]struct{}, len(programs))
	for _, p := range programs {
		allowed[p] = struct{}{}
	}
	return &ProgramFilter{Allowed: allowed}
}

func (f *ProgramFilter) Apply(_ *core.InstructionMetadata, ix *core.Instruction) bool {
	_, ok := f.Allowed[ix.ProgramID]
	return ok
}

// MaxStackHeightFilter 只放行调用深度不超过 Max 的指令。
type MaxStackHeightFilter struct {
	Max uint32
}

func (f MaxStackHeightFilter) Apply(meta *core.InstructionMetadata, _ *core.Instruction) bool {
	return meta.StackHeight <= f.Max
}
