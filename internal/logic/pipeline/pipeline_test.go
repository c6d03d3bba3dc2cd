package pipeline

import (
	"context"
	"errors"
	"testing"

	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/metrics"
	"ix-pipeline-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = types.Pubkey{0xaa}

// tagDecoder 把 Data 首字节当作解码结果，首字节为 0xff 时视为不适用
type tagDecoder struct{}

func (tagDecoder) Decode(ix *core.Instruction) (*DecodedInstruction[byte], bool) {
	if len(ix.Data) == 0 || ix.Data[0] == 0xff {
		return nil, false
	}
	return &DecodedInstruction[byte]{
		ProgramID: ix.ProgramID,
		Accounts:  ix.Accounts,
		Data:      ix.Data[0],
	}, true
}

// recordProcessor 记录处理顺序，遇到 failAt 标记的节点返回 failErr
type recordProcessor struct {
	visited []byte
	failAt  byte
	failErr error
}

func (p *recordProcessor) Process(_ context.Context, input ProcessorInput[byte], _ *metrics.Collection) error {
	p.visited = append(p.visited, input.Decoded.Data)
	if p.failErr != nil && input.Decoded.Data == p.failAt {
		return p.failErr
	}
	return nil
}

// node 构造指令树节点，tag 写入 Data 首字节
func node(tag byte, height uint32, children ...*core.NestedInstruction) *core.NestedInstruction {
	return &core.NestedInstruction{
		Metadata: core.InstructionMetadata{
			StackHeight: height,
		},
		Instruction: core.Instruction{
			ProgramID: testProgram,
			Data:      []byte{tag},
		},
		Inner: children,
	}
}

// 含两层 CPI 的单树：
//
//	1
//	├── 2
//	│   └── 3
//	└── 4
func testTree() *core.NestedInstruction {
	return node(1, 1,
		node(2, 2,
			node(3, 3)),
		node(4, 2))
}

func TestPipeRun_PreOrder(t *testing.T) {
	proc := &recordProcessor{}
	pipe := NewPipe[byte]("test", tagDecoder{}, proc)

	err := pipe.Run(context.Background(), testTree(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, proc.visited)
}

// Processor 报错必须原样上抛并中止剩余遍历
func TestPipeRun_FailFast(t *testing.T) {
	boom := errors.New("boom")
	proc := &recordProcessor{failAt: 2, failErr: boom}
	pipe := NewPipe[byte]("test", tagDecoder{}, proc)

	err := pipe.Run(context.Background(), testTree(), nil)
	assert.Same(t, boom, err)
	// 节点 3、4 不再访问
	assert.Equal(t, []byte{1, 2}, proc.visited)
}

// 解码不适用只跳过当前节点的处理，子树继续下探
func TestPipeRun_DecodeMissContinuesDescent(t *testing.T) {
	tree := node(0xff, 1,
		node(2, 2,
			node(0xff, 3,
				node(4, 4))))

	proc := &recordProcessor{}
	pipe := NewPipe[byte]("test", tagDecoder{}, proc)

	err := pipe.Run(context.Background(), tree, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 4}, proc.visited)
}

// 过滤器只抑制 Processor 调用，不影响子树遍历
func TestPipeRun_FilterSuppressesProcessorOnly(t *testing.T) {
	proc := &recordProcessor{}
	// 只放行深度 >= 2 的节点
	deepOnly := FilterFunc(func(meta *core.InstructionMetadata, _ *core.Instruction) bool {
		return meta.StackHeight >= 2
	})
	pipe := NewPipe[byte]("test", tagDecoder{}, proc, deepOnly)

	err := pipe.Run(context.Background(), testTree(), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, proc.visited)
}

// 空过滤器集合放行一切
func TestPipeRun_NoFilters(t *testing.T) {
	proc := &recordProcessor{}
	pipe := NewPipe[byte]("test", tagDecoder{}, proc)
	assert.Empty(t, pipe.Filters())

	err := pipe.Run(context.Background(), testTree(), nil)
	require.NoError(t, err)
	assert.Len(t, proc.visited, 4)
}

// 多个过滤器须全部通过
func TestPipeRun_AllFiltersMustPass(t *testing.T) {
	proc := &recordProcessor{}
	always := FilterFunc(func(*core.InstructionMetadata, *core.Instruction) bool { return true })
	never := FilterFunc(func(*core.InstructionMetadata, *core.Instruction) bool { return false })
	pipe := NewPipe[byte]("test", tagDecoder{}, proc, always, never)

	err := pipe.Run(context.Background(), testTree(), nil)
	require.NoError(t, err)
	assert.Empty(t, proc.visited)
}

func TestRunPipes_ForestAndMultiplePipes(t *testing.T) {
	forest := core.NestedInstructions{
		node(1, 1, node(2, 2)),
		node(3, 1),
	}

	procA := &recordProcessor{}
	procB := &recordProcessor{}
	pipes := []Pipes{
		NewPipe[byte]("a", tagDecoder{}, procA),
		NewPipe[byte]("b", tagDecoder{}, procB),
	}

	err := RunPipes(context.Background(), forest, pipes, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, procA.visited)
	assert.Equal(t, []byte{1, 2, 3}, procB.visited)
}

func TestRunPipes_ErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	forest := core.NestedInstructions{
		node(1, 1),
		node(2, 1),
	}

	procA := &recordProcessor{failAt: 1, failErr: boom}
	procB := &recordProcessor{}
	pipes := []Pipes{
		NewPipe[byte]("a", tagDecoder{}, procA),
		NewPipe[byte]("b", tagDecoder{}, procB),
	}

	err := RunPipes(context.Background(), forest, pipes, nil)
	assert.Same(t, boom, err)
	assert.Empty(t, procB.visited)
}

// 两条主指令，第一条带两个深度 2 的子指令；解码器只认子指令，
// Processor 记录的路径必须恰好是 [0,0]、[0,1] 且保持顺序
func TestRunPipes_RecordedPaths(t *testing.T) {
	flat := []core.FlatInstruction{
		{
			Metadata:    core.InstructionMetadata{StackHeight: 1, IxIndex: 0, AbsolutePath: []uint8{0}},
			Instruction: core.Instruction{ProgramID: testProgram, Data: []byte{0xff}},
		},
		{
			Metadata:    core.InstructionMetadata{StackHeight: 2, IxIndex: 0, AbsolutePath: []uint8{0, 0}},
			Instruction: core.Instruction{ProgramID: testProgram, Data: []byte{1}},
		},
		{
			Metadata:    core.InstructionMetadata{StackHeight: 2, IxIndex: 0, AbsolutePath: []uint8{0, 1}},
			Instruction: core.Instruction{ProgramID: testProgram, Data: []byte{2}},
		},
		{
			Metadata:    core.InstructionMetadata{StackHeight: 1, IxIndex: 1, AbsolutePath: []uint8{1}},
			Instruction: core.Instruction{ProgramID: testProgram, Data: []byte{0xff}},
		},
	}
	forest, err := core.BuildNestedInstructions(flat)
	require.NoError(t, err)
	require.Equal(t, 2, forest.Len())

	var paths [][]uint8
	proc := ProcessorFunc[byte](func(_ context.Context, input ProcessorInput[byte], _ *metrics.Collection) error {
		paths = append(paths, input.Metadata.AbsolutePath)
		return nil
	})

	err = RunPipes(context.Background(), forest, []Pipes{NewPipe[byte]("paths", tagDecoder{}, proc)}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{{0, 0}, {0, 1}}, paths)
}

func TestProgramFilter(t *testing.T) {
	f := NewProgramFilter(testProgram)

	allowed := &core.Instruction{ProgramID: testProgram}
	other := &core.Instruction{ProgramID: types.Pubkey{0xbb}}

	assert.True(t, f.Apply(nil, allowed))
	assert.False(t, f.Apply(nil, other))
}

func TestMaxStackHeightFilter(t *testing.T) {
	f := MaxStackHeightFilter{Max: 2}

	assert.True(t, f.Apply(&core.InstructionMetadata{StackHeight: 1}, nil))
	assert.True(t, f.Apply(&core.InstructionMetadata{StackHeight: 2}, nil))
	assert.False(t, f.Apply(&core.InstructionMetadata{StackHeight: 3}, nil))
}
