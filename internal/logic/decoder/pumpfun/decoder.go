package pumpfun

import (
	"encoding/binary"

	"ix-pipeline-sol/internal/consts"
	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/logic/pipeline"
	"ix-pipeline-sol/internal/types"

	"github.com/near/borsh-go"
)

// 指令方法 ID（Data 前 8 字节，大端读取）
const (
	Create  uint64 = 0x181ec828051c0777
	Buy     uint64 = 0x66063d1201daebea
	Sell    uint64 = 0x33e685a4017f83ad
	Migrate uint64 = 0x9beae792ec9ea21e

	// Event 是 anchor 自调用日志指令的标记，后续 8 字节才是事件类型
	Event uint64 = 0xe445a52e51cb9a1d

	// TradeEventSign 是 TradeEvent 的事件类型标识
	TradeEventSign uint64 = 0xbddb7fd34ee661ee
)

// Kind 表示解码出的 Pump.fun 指令类别。
type Kind uint8

const (
	KindBuy Kind = iota + 1
	KindSell
	KindCreate
	KindMigrate
	KindTradeEvent
)

// BuyArgs / SellArgs 是 swap 指令的调用参数（borsh 布局）。
type BuyArgs struct {
	Amount     uint64
	MaxSolCost uint64
}

type SellArgs struct {
	Amount       uint64
	MinSolOutput uint64
}

// CreateArgs 是建池指令参数。
type CreateArgs struct {
	Name    string
	Symbol  string
	Uri     string
	Creator types.Pubkey
}

// TradeEvent 是 swap 完成后通过自调用日志指令上报的成交事件。
// 布局见链上 anchor event 定义，反序列化从事件类型标识之后开始。
type TradeEvent struct {
	Mint                 types.Pubkey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 types.Pubkey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	CurrentSolReserves   uint64
	CurrentTokenReserves uint64
}

// Instruction 是解码结果的 tagged union：Kind 指明有效分支。
type Instruction struct {
	Kind    Kind
	Buy     *BuyArgs
	Sell    *SellArgs
	Create  *CreateArgs
	Trade   *TradeEvent
	Migrate bool
}

// Decoder 将通用指令解释为 Pump.fun 协议指令。
// 非 Pump.fun 程序或未知方法 ID 一律返回"不适用"，不产生错误。
type Decoder struct{}

var _ pipeline.Decoder[Instruction] = Decoder{}

func (Decoder) Decode(ix *core.Instruction) (*pipeline.DecodedInstruction[Instruction], bool) {
	if ix.ProgramID != consts.PumpFunProgram {
		return nil, false
	}
	if len(ix.Data) < 8 {
		return nil, false
	}

	var data Instruction
	switch binary.BigEndian.Uint64(ix.Data[:8]) {
	case Buy:
		args := &BuyArgs{}
		if err := borsh.Deserialize(args, ix.Data[8:]); err != nil {
			return nil, false
		}
		data = Instruction{Kind: KindBuy, Buy: args}

	case Sell:
		args := &SellArgs{}
		if err := borsh.Deserialize(args, ix.Data[8:]); err != nil {
			return nil, false
		}
		data = Instruction{Kind: KindSell, Sell: args}

	case Create:
		args := &CreateArgs{}
		if err := borsh.Deserialize(args, ix.Data[8:]); err != nil {
			return nil, false
		}
		data = Instruction{Kind: KindCreate, Create: args}

	case Migrate:
		data = Instruction{Kind: KindMigrate, Migrate: true}

	case Event:
		if len(ix.Data) < 16 || binary.BigEndian.Uint64(ix.Data[8:16]) != TradeEventSign {
			return nil, false
		}
		event := &TradeEvent{}
		if err := borsh.Deserialize(event, ix.Data[16:]); err != nil {
			return nil, false
		}
		data = Instruction{Kind: KindTradeEvent, Trade: event}

	default:
		return nil, false
	}

	return &pipeline.DecodedInstruction[Instruction]{
		ProgramID: ix.ProgramID,
		Accounts:  ix.Accounts,
		Data:      data,
	}, true
}
