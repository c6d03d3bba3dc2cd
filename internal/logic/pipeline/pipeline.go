package pipeline

import (
	"context"

	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/metrics"
	"ix-pipeline-sol/internal/types"
)

// DecodedInstruction 表示按协议类型 T 解码后的指令。
// 每次遍历临时构造，不会写回指令树。
type DecodedInstruction[T any] struct {
	ProgramID types.Pubkey
	Accounts  []core.AccountMeta
	Data      T
}

// Decoder 尝试将通用指令解释为协议类型 T。
// 返回 ok=false 表示该指令不属于本解码器的协议，属于高频的正常信号而非错误。
type Decoder[T any] interface {
	Decode(ix *core.Instruction) (*DecodedInstruction[T], bool)
}

// ProcessorInput 是 Processor 的输入：节点位置元数据、解码结果、
// 该节点的子树（供上下文相关处理）以及原始指令。
type ProcessorInput[T any] struct {
	Metadata core.InstructionMetadata
	Decoded  *DecodedInstruction[T]
	Inner    core.NestedInstructions
	Raw      core.Instruction
}

// Processor 消费一个已解码节点，可以执行 I/O，可以失败。
// 返回的 error 会原样向上传播并中止当前树的剩余遍历。
type Processor[T any] interface {
	Process(ctx context.Context, input ProcessorInput[T], m *metrics.Collection) error
}

// ProcessorFunc 将普通函数适配为 Processor。
type ProcessorFunc[T any] func(ctx context.Context, input ProcessorInput[T], m *metrics.Collection) error

func (f ProcessorFunc[T]) Process(ctx context.Context, input ProcessorInput[T], m *metrics.Collection) error {
	return f(ctx, input, m)
}

// Filter 按指令元数据与指令本体判定是否放行。
// 全部 Filter 通过才会调用 Processor；空集合放行一切。
type Filter interface {
	Apply(meta *core.InstructionMetadata, ix *core.Instruction) bool
}

// Pipes 是类型擦除后的 pipe 接口，运行器借此组合任意多个
// 不同 T 的 (decoder, processor, filters) 三元组。
type Pipes interface {
	// Run 先序遍历以 node 为根的指令树。metrics 仅透传，核心不读取。
	Run(ctx context.Context, node *core.NestedInstruction, m *metrics.Collection) error

	// Filters 返回该 pipe 绑定的过滤器集合。
	Filters() []Filter

	// Name 返回 pipe 的标识，用于日志与指标标签。
	Name() string
}

// Pipe 将 Decoder、Processor 与过滤器装配为一条处理管道。
type Pipe[T any] struct {
	name      string
	decoder   Decoder[T]
	processor Processor[T]
	filters   []Filter
}

// NewPipe 构造处理管道。filters 可为空，表示处理所有可解码节点。
func NewPipe[T any](name string, decoder Decoder[T], processor Processor[T], filters ...Filter) *Pipe[T] {
	return &Pipe[T]{
		name:      name,
		decoder:   decoder,
		processor: processor,
		filters:   filters,
	}
}

func (p *Pipe[T]) Name() string {
	return p.name
}

func (p *Pipe[T]) Filters() []Filter {
	return p.filters
}

// Run 对指令树做先序、深度优先、fail-fast 的遍历：
//  1. 解码当前节点；解码不适用只跳过本节点的处理，仍然继续进入子树；
//  2. 解码成功且全部过滤器放行时调用 Processor；
//     Processor 的 error 原样返回，中止本树其余节点（不吞错、不续跑）；
//  3. 按原始顺序依次递归子节点。
//
// 父节点的 Processor 调用完成后才会进入子树，不做任何投机并发下探；
// 树本身只读，调用方可在任意节点间放弃本次遍历而不破坏结构。
func (p *Pipe[T]) Run(ctx context.Context, node *core.NestedInstruction, m *metrics.Collection) error {
	if decoded, ok := p.decoder.Decode(&node.Instruction); ok {
		if p.accepts(&node.Metadata, &node.Instruction) {
			if err := p.processor.Process(ctx, ProcessorInput[T]{
				Metadata: node.Metadata,
				Decoded:  decoded,
				Inner:    node.Inner,
				Raw:      node.Instruction,
			}, m); err != nil {
				return err
			}
		}
	}

	for _, inner := range node.Inner {
		if err := p.Run(ctx, inner, m); err != nil {
			return err
		}
	}
	return nil
}

// accepts 过滤器全部通过才放行；过滤只抑制 Processor 调用，
// 不影响子树的解码与遍历。
func (p *Pipe[T]) accepts(meta *core.InstructionMetadata, ix *core.Instruction) bool {
	for _, f := range p.filters {
		if !f.Apply(meta, ix) {
			return false
		}
	}
	return true
}

// RunPipes 对整个指令森林依次运行所有 pipe。
// 任意 pipe 对任意树返回 error 即中止并上抛（语义与单树遍历一致）。
func RunPipes(ctx context.Context, forest core.NestedInstructions, pipes []Pipes, m *metrics.Collection) error {
	for _, pipe := range pipes {
		for _, root := range forest {
			if err := pipe.Run(ctx, root, m); err != nil {
				return err
			}
		}
	}
	return nil
}
