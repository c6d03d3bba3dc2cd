package pumpfun

import (
	"encoding/binary"
	"testing"

	"ix-pipeline-sol/internal/consts"
	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/types"

	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildData 拼接方法 ID 与 borsh 编码后的参数
func buildData(t *testing.T, discriminators []uint64, args interface{}) []byte {
	data := make([]byte, 0, 64)
	for _, d := range discriminators {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], d)
		data = append(data, buf[:]...)
	}
	if args != nil {
		payload, err := borsh.Serialize(args)
		require.NoError(t, err)
		data = append(data, payload...)
	}
	return data
}

func pumpfunIx(data []byte) *core.Instruction {
	return &core.Instruction{
		ProgramID: consts.PumpFunProgram,
		Data:      data,
	}
}

func TestDecode_Buy(t *testing.T) {
	args := BuyArgs{Amount: 1_000_000, MaxSolCost: 500_000}
	decoded, ok := Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{Buy}, args)))

	require.True(t, ok)
	assert.Equal(t, KindBuy, decoded.Data.Kind)
	require.NotNil(t, decoded.Data.Buy)
	assert.Equal(t, args, *decoded.Data.Buy)
	assert.Equal(t, consts.PumpFunProgram, decoded.ProgramID)
}

func TestDecode_Sell(t *testing.T) {
	args := SellArgs{Amount: 42, MinSolOutput: 7}
	decoded, ok := Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{Sell}, args)))

	require.True(t, ok)
	assert.Equal(t, KindSell, decoded.Data.Kind)
	require.NotNil(t, decoded.Data.Sell)
	assert.Equal(t, args, *decoded.Data.Sell)
}

func TestDecode_Create(t *testing.T) {
	args := CreateArgs{
		Name:    "Test Token",
		Symbol:  "TST",
		Uri:     "https://example.com/meta.json",
		Creator: types.Pubkey{0x11},
	}
	decoded, ok := Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{Create}, args)))

	require.True(t, ok)
	assert.Equal(t, KindCreate, decoded.Data.Kind)
	require.NotNil(t, decoded.Data.Create)
	assert.Equal(t, args, *decoded.Data.Create)
}

func TestDecode_Migrate(t *testing.T) {
	decoded, ok := Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{Migrate}, nil)))

	require.True(t, ok)
	assert.Equal(t, KindMigrate, decoded.Data.Kind)
	assert.True(t, decoded.Data.Migrate)
}

func TestDecode_TradeEvent(t *testing.T) {
	event := TradeEvent{
		Mint:                 types.Pubkey{0x22},
		SolAmount:            1_500_000_000,
		TokenAmount:          930_233_644,
		IsBuy:                true,
		User:                 types.Pubkey{0x33},
		Timestamp:            1700000000,
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		CurrentSolReserves:   500_000_000,
		CurrentTokenReserves: 800_000_000_000,
	}
	data := buildData(t, []uint64{Event, TradeEventSign}, event)
	decoded, ok := Decoder{}.Decode(pumpfunIx(data))

	require.True(t, ok)
	assert.Equal(t, KindTradeEvent, decoded.Data.Kind)
	require.NotNil(t, decoded.Data.Trade)
	assert.Equal(t, event, *decoded.Data.Trade)
}

func TestDecode_NotApplicable(t *testing.T) {
	// 非 Pump.fun 程序
	otherProgram := &core.Instruction{
		ProgramID: types.Pubkey{0x99},
		Data:      buildData(t, []uint64{Migrate}, nil),
	}
	_, ok := Decoder{}.Decode(otherProgram)
	assert.False(t, ok)

	// 数据不足 8 字节
	_, ok = Decoder{}.Decode(pumpfunIx([]byte{1, 2, 3}))
	assert.False(t, ok)

	// 未知方法 ID
	_, ok = Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{0xdeadbeef}, nil)))
	assert.False(t, ok)

	// Event 指令但事件类型不是 TradeEvent
	_, ok = Decoder{}.Decode(pumpfunIx(buildData(t, []uint64{Event, 0x1234}, nil)))
	assert.False(t, ok)

	// 参数字节截断
	truncated := buildData(t, []uint64{Buy}, BuyArgs{Amount: 1, MaxSolCost: 2})
	_, ok = Decoder{}.Decode(pumpfunIx(truncated[:len(truncated)-4]))
	assert.False(t, ok)
}
