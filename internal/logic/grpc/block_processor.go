package grpc

import (
	"context"
	"errors"
	"time"

	"ix-pipeline-sol/internal/consts"
	"ix-pipeline-sol/internal/mq"
	"ix-pipeline-sol/internal/plugin"
	"ix-pipeline-sol/internal/svc"
	"ix-pipeline-sol/internal/utils"
	pkgutils "ix-pipeline-sol/pkg/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

// BlockProcessor 消费区块通道，对每笔有效交易依次驱动已注册插件。
// 交易级并发由 ParallelMap 控制；单笔交易内部的指令树遍历保持严格先序、串行。
type BlockProcessor struct {
	sc          *svc.ServiceContext
	blockChan   chan *pb.SubscribeUpdateBlock // 接收 block 的 channel
	plugins     []plugin.Plugin
	slotChecker *SlotChecker
	workers     int
	lastSlot    uint64
	ctx         context.Context
	cancel      func(err error)
	logx.Logger
}

type txResult struct {
	txIndex int
	err     error
}

func NewBlockProcessor(
	sc *svc.ServiceContext,
	blockChan chan *pb.SubscribeUpdateBlock,
	plugins []plugin.Plugin,
	slotChecker *SlotChecker,
) *BlockProcessor {
	workers := sc.Config.PipelineConf.Workers
	if workers <= 0 {
		workers = consts.CpuCount + 2
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &BlockProcessor{
		sc:          sc,
		blockChan:   blockChan,
		plugins:     plugins,
		slotChecker: slotChecker,
		workers:     workers,
		Logger:      logx.WithContext(ctx).WithFields(logx.Field("service", "block_processor")),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *BlockProcessor) Start() {
	for _, pl := range p.plugins {
		if err := pl.OnLoad(p.ctx); err != nil {
			p.Errorf("插件 %s OnLoad 失败: %v", pl.Name(), err)
		}
	}

	go p.run()
}

func (p *BlockProcessor) run() {
	for {
		select {
		case <-p.ctx.Done():
			return // 退出
		case block := <-p.blockChan:
			p.procBlock(block)
			if len(p.blockChan) > 10 {
				p.Debugf("block chan len:%v", len(p.blockChan))
			}
		}
	}
}

func (p *BlockProcessor) Stop() {
	for _, pl := range p.plugins {
		if err := pl.OnExit(context.Background()); err != nil {
			p.Errorf("插件 %s OnExit 失败: %v", pl.Name(), err)
		}
	}
	p.cancel(errors.New("service stop"))
}

func (p *BlockProcessor) procBlock(block *pb.SubscribeUpdateBlock) {
	startTime := time.Now()
	defer func() {
		p.Infof("区块处理总耗时: %v, slot: %d", time.Since(startTime), block.Slot)
	}()

	p.submitSlotGap(block)

	// 重连回放的旧 slot 直接跳过
	if !p.sc.Progress.ShouldProcessSlot(p.ctx, block.Slot) {
		p.Debugf("slot %d 已处理过，跳过", block.Slot)
		return
	}

	for _, pl := range p.plugins {
		if err := pl.OnBlock(p.ctx, block); err != nil {
			p.Errorf("插件 %s OnBlock 失败: slot=%d, err=%v", pl.Name(), block.Slot, err)
		}
	}

	// 1. 过滤合法交易
	validTxs := make([]*pb.SubscribeUpdateTransactionInfo, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		if IsValidGrpcTx(tx) {
			validTxs = append(validTxs, tx)
		}
	}

	// 2. 并发处理所有交易
	procStart := time.Now()
	results := pkgutils.ParallelMap(validTxs, p.workers,
		func(tx *pb.SubscribeUpdateTransactionInfo) txResult {
			return p.procTx(block.Slot, tx)
		})
	p.Infof("交易处理耗时: %v", time.Since(procStart))

	// 3. 统计结果，失败交易已在 procTx 内归档
	failed := 0
	for _, result := range results {
		if result.err != nil {
			failed++
		}
	}
	if failed > 0 {
		p.Errorf("slot %d: %d/%d 笔交易处理失败（已归档）", block.Slot, failed, len(validTxs))
	}
	p.Infof("总tx数量: %v, 有效tx数量: %v, 失败数量: %v", len(block.Transactions), len(validTxs), failed)

	// 4. 标记 slot 已处理（失败交易已进入死信 topic，不阻塞进度推进）
	if err := p.sc.Progress.MarkSlotProcessed(p.ctx, block.Slot); err != nil {
		p.Errorf("标记 slot %d 已处理失败: %v", block.Slot, err)
	}
}

// procTx 依次驱动每个插件处理交易。
// 插件报错（Processor 失败原样上抛）时将原始交易归档到死信 topic，供离线重放。
func (p *BlockProcessor) procTx(slot uint64, tx *pb.SubscribeUpdateTransactionInfo) txResult {
	for _, pl := range p.plugins {
		if err := pl.OnTransaction(p.ctx, slot, tx); err != nil {
			p.Errorf("插件 %s 处理交易失败: slot=%d, txIndex=%d, err=%v", pl.Name(), slot, tx.Index, err)
			p.sc.Metrics.IncProcessorFailure(pl.Name())
			p.sc.Metrics.IncTxProcessed("failed")
			p.deadLetter(slot, tx)
			return txResult{txIndex: int(tx.Index), err: err}
		}
	}
	p.sc.Metrics.IncTxProcessed("ok")
	return txResult{txIndex: int(tx.Index)}
}

// deadLetter 将处理失败的原始交易 proto 编码后推送到死信 topic。
func (p *BlockProcessor) deadLetter(slot uint64, tx *pb.SubscribeUpdateTransactionInfo) {
	topic := p.sc.Config.KafkaProducerConf.Topics.DeadLetter
	if topic == "" {
		return
	}

	value, err := utils.EncodeDeadLetter(utils.DeadLetterKindTransaction, slot, tx)
	if err != nil {
		p.Errorf("死信编码失败: slot=%d, txIndex=%d, err=%v", slot, tx.Index, err)
		return
	}

	timeout := time.Duration(p.sc.Config.PipelineConf.EventSendTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := mq.SendKafkaJob(p.ctx, p.sc.Producer, &mq.KafkaJob{
		Topic: topic,
		Key:   tx.Transaction.Signatures[0],
		Value: value,
	}, timeout); err != nil {
		p.Errorf("死信发送失败: slot=%d, txIndex=%d, err=%v", slot, tx.Index, err)
	}
}

// submitSlotGap 检测相邻区块之间的 slot 空洞，提交给 SlotChecker 确认是否为空块。
func (p *BlockProcessor) submitSlotGap(block *pb.SubscribeUpdateBlock) {
	if p.slotChecker != nil && p.lastSlot != 0 && block.Slot > p.lastSlot+1 {
		p.slotChecker.Submit(p.lastSlot+1, block.Slot-1)
	}
	if block.Slot > p.lastSlot {
		p.lastSlot = block.Slot
	}
}

func IsValidGrpcTx(tx *pb.SubscribeUpdateTransactionInfo) bool {
	if tx == nil || // - nil transaction info
		tx.Transaction == nil || // - missing Transaction field
		tx.Transaction.Message == nil || // - missing Message field in transaction
		len(tx.Transaction.Signatures) == 0 || // - missing transaction signature
		len(tx.Transaction.Signatures[0]) != 64 || // - invalid transaction signature length
		tx.IsVote || // - vote transaction skipped
		tx.Meta == nil || // - missing transaction meta data
		tx.Meta.Err != nil { // - transaction execution failed
		return false
	}
	return true
}
