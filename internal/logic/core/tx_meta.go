package core

import (
	"ix-pipeline-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// TransactionMetadata 表示一笔交易的只读元数据。
// 构造完成后不再修改，交易内的所有 InstructionMetadata 通过指针共享同一实例，
// 跨 goroutine 只读访问是安全的。
type TransactionMetadata struct {
	Slot      uint64                    // 交易所在 slot
	Signature types.Signature           // 交易签名（首个签名）
	FeePayer  types.Pubkey              // 手续费支付者（accountKeys[0]）
	Meta      *pb.TransactionStatusMeta // 运行时产生的状态元数据（inner 指令、日志、余额等）
	Message   *pb.Message               // 原始 message（指令与账户表）
}
