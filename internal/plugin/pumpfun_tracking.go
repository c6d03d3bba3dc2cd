package plugin

import (
	"context"
	"time"

	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/logic/decoder/pumpfun"
	"ix-pipeline-sol/internal/logic/pipeline"
	"ix-pipeline-sol/internal/logic/txadapter"
	"ix-pipeline-sol/internal/metrics"
	"ix-pipeline-sol/internal/mq"
	"ix-pipeline-sol/internal/types"
	"ix-pipeline-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/jsonx"
)

// PumpfunTrackingPlugin 追踪指定 mint 在 Pump.fun 上的成交。
// 对涉及该 mint 的交易重建指令树，并通过 pipeline 解码出 TradeEvent
// 推送到 Kafka。
type PumpfunTrackingPlugin struct {
	mint    types.Pubkey
	pipes   []pipeline.Pipes
	metrics *metrics.Collection
}

// NewPumpfunTrackingPlugin 构造追踪插件。
// sendTimeout 是单条事件发送 Kafka 并等待 ack 的上限。
func NewPumpfunTrackingPlugin(
	mint types.Pubkey,
	producer *kafka.Producer,
	topic string,
	sendTimeout time.Duration,
	m *metrics.Collection,
) *PumpfunTrackingPlugin {
	proc := &tradeProcessor{
		mint:     mint,
		producer: producer,
		topic:    topic,
		timeout:  sendTimeout,
	}
	pipe := pipeline.NewPipe[pumpfun.Instruction]("pumpfun_trade", pumpfun.Decoder{}, proc)

	return &PumpfunTrackingPlugin{
		mint:    mint,
		pipes:   []pipeline.Pipes{pipe},
		metrics: m,
	}
}

func (p *PumpfunTrackingPlugin) Name() string {
	return "pumpfun_tracking"
}

func (p *PumpfunTrackingPlugin) OnLoad(_ context.Context) error {
	logger.Infof("[pumpfun_tracking] loaded, tracking mint=%s", p.mint)
	return nil
}

func (p *PumpfunTrackingPlugin) OnExit(_ context.Context) error {
	return nil
}

func (p *PumpfunTrackingPlugin) OnBlock(_ context.Context, _ *pb.SubscribeUpdateBlock) error {
	return nil
}

// OnTransaction 对涉及追踪 mint 的交易执行完整的
// 元数据 → 展平 → 建树 → pipeline 遍历流程。
// Processor 的失败原样上抛，由 ingestion 层决定归档或跳过。
func (p *PumpfunTrackingPlugin) OnTransaction(ctx context.Context, slot uint64, tx *pb.SubscribeUpdateTransactionInfo) error {
	if !p.mintInvolved(tx) {
		return nil
	}

	txMeta, err := txadapter.BuildTransactionMetadata(slot, tx)
	if err != nil {
		// 结构非法的交易只记日志，不算处理失败
		logger.Warnf("[pumpfun_tracking] skip malformed tx at slot %d: %v", slot, err)
		return nil
	}

	flat, err := txadapter.ExtractInstructions(txMeta)
	if err != nil {
		logger.Warnf("[pumpfun_tracking] skip tx=%s: %v", txMeta.Signature, err)
		return nil
	}

	forest, err := core.BuildNestedInstructions(flat)
	if err != nil {
		// 建树失败意味着调用方契约被破坏，必须暴露而非吞掉
		return err
	}

	return pipeline.RunPipes(ctx, forest, p.pipes, p.metrics)
}

// mintInvolved 检查追踪 mint 是否出现在交易账户表中
//（静态账户 + Address Lookup Table 加载的账户）。
func (p *PumpfunTrackingPlugin) mintInvolved(tx *pb.SubscribeUpdateTransactionInfo) bool {
	if tx == nil || tx.Transaction == nil || tx.Transaction.Message == nil {
		return false
	}
	for _, key := range tx.Transaction.Message.AccountKeys {
		if len(key) == 32 && types.Pubkey(key) == p.mint {
			return true
		}
	}
	if tx.Meta == nil {
		return false
	}
	for _, key := range tx.Meta.LoadedWritableAddresses {
		if len(key) == 32 && types.Pubkey(key) == p.mint {
			return true
		}
	}
	for _, key := range tx.Meta.LoadedReadonlyAddresses {
		if len(key) == 32 && types.Pubkey(key) == p.mint {
			return true
		}
	}
	return false
}

// TradeEventMsg 是推送到 Kafka 的成交事件载荷（JSON）。
type TradeEventMsg struct {
	Slot      uint64  `json:"slot"`
	Signature string  `json:"signature"`
	Path      []uint8 `json:"path"`
	ProgramID string  `json:"program_id"`
	Mint      string  `json:"mint"`
	Payer     string  `json:"payer"`
	AmountIn  uint64  `json:"amount_in"`
	AmountOut uint64  `json:"amount_out"`
	IsBuy     bool    `json:"is_buy"`
	Timestamp int64   `json:"timestamp"`
}

// tradeProcessor 消费解码出的 Pump.fun 指令，只关心 TradeEvent 分支。
type tradeProcessor struct {
	mint     types.Pubkey
	producer *kafka.Producer
	topic    string
	timeout  time.Duration
}

func (p *tradeProcessor) Process(ctx context.Context, input pipeline.ProcessorInput[pumpfun.Instruction], m *metrics.Collection) error {
	if input.Decoded.Data.Kind != pumpfun.KindTradeEvent {
		return nil
	}
	event := input.Decoded.Data.Trade
	if event.Mint != p.mint {
		return nil
	}

	amountIn, amountOut := event.TokenAmount, event.SolAmount
	if event.IsBuy {
		amountIn, amountOut = event.SolAmount, event.TokenAmount
	}

	msg := TradeEventMsg{
		Slot:      input.Metadata.TxMeta.Slot,
		Signature: input.Metadata.TxMeta.Signature.String(),
		Path:      input.Metadata.AbsolutePath,
		ProgramID: input.Decoded.ProgramID.String(),
		Mint:      event.Mint.String(),
		Payer:     event.User.String(),
		AmountIn:  amountIn,
		AmountOut: amountOut,
		IsBuy:     event.IsBuy,
		Timestamp: event.Timestamp,
	}

	value, err := jsonx.Marshal(msg)
	if err != nil {
		return err
	}

	if err := mq.SendKafkaJob(ctx, p.producer, &mq.KafkaJob{
		Topic: p.topic,
		Key:   event.Mint[:],
		Value: value,
	}, p.timeout); err != nil {
		return err
	}

	m.IncNodeProcessed("pumpfun_trade")
	logger.Debugf("[pumpfun_tracking] trade tx=%s path=%v isBuy=%v amountIn=%d amountOut=%d",
		msg.Signature, msg.Path, msg.IsBuy, msg.AmountIn, msg.AmountOut)
	return nil
}
