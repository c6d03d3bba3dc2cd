package plugin

import (
	"context"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// Plugin 定义交易/区块级处理插件的生命周期钩子。
// ingestion 层按区块驱动已注册插件：OnBlock 每区块一次，
// OnTransaction 每笔有效交易一次（可能被并发调用，实现方需自行保证安全）。
//
// OnTransaction 返回的 error 表示该交易处理失败，
// 由调用方决定重试、跳过或归档，插件内部不做兜底。
type Plugin interface {
	Name() string

	OnLoad(ctx context.Context) error
	OnTransaction(ctx context.Context, slot uint64, tx *pb.SubscribeUpdateTransactionInfo) error
	OnBlock(ctx context.Context, block *pb.SubscribeUpdateBlock) error
	OnExit(ctx context.Context) error
}
