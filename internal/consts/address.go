package consts

import "ix-pipeline-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr        = "11111111111111111111111111111111"
	TokenProgramStr         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str     = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	ComputeBudgetProgramStr = "ComputeBudget111111111111111111111111111111"

	// Wrapped SOL
	WSOLMintStr = "So11111111111111111111111111111111111111112"

	// DEX: PumpFun
	PumpFunProgramStr = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对，避免重复 base58 解码。
var (
	SystemProgram        types.Pubkey
	TokenProgram         types.Pubkey
	TokenProgram2022     types.Pubkey
	ComputeBudgetProgram types.Pubkey

	WSOLMint types.Pubkey

	PumpFunProgram types.Pubkey
)

// init 自动将 base58 字符串地址转换为 types.Pubkey
func init() {
	SystemProgram = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022 = types.PubkeyFromBase58(TokenProgram2022Str)
	ComputeBudgetProgram = types.PubkeyFromBase58(ComputeBudgetProgramStr)

	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)

	PumpFunProgram = types.PubkeyFromBase58(PumpFunProgramStr)
}
