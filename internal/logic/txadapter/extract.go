package txadapter

import (
	"fmt"

	"ix-pipeline-sol/internal/consts"
	"ix-pipeline-sol/internal/logic/core"
	"ix-pipeline-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// accountPredicate 按账户索引（及解析后的公钥）判定某访问属性。
// legacy 与 v0 两种 message 格式各自给出 writable / signer 判定，
// 其余提取逻辑完全共用。
type accountPredicate func(key types.Pubkey, idx int) bool

// BuildTransactionMetadata 从 Geyser 推送的交易构造只读交易元数据。
// 基本健壮性校验在此处完成，extractor 与 builder 均假定其输出合法。
func BuildTransactionMetadata(slot uint64, tx *pb.SubscribeUpdateTransactionInfo) (*core.TransactionMetadata, error) {
	if tx == nil || tx.Transaction == nil || tx.Transaction.Message == nil || tx.Meta == nil {
		return nil, fmt.Errorf("invalid transaction: missing transaction or meta")
	}
	if len(tx.Transaction.Signatures) == 0 {
		return nil, fmt.Errorf("invalid transaction: missing signature")
	}

	sig, err := types.SignatureFromBytes(tx.Transaction.Signatures[0])
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	staticKeys := tx.Transaction.Message.AccountKeys
	if len(staticKeys) == 0 {
		return nil, fmt.Errorf("invalid transaction: empty accountKeys")
	}
	feePayer, err := types.PubkeyFromBytes(staticKeys[0])
	if err != nil {
		return nil, fmt.Errorf("invalid fee payer pubkey: %w", err)
	}

	return &core.TransactionMetadata{
		Slot:      slot,
		Signature: sig,
		FeePayer:  feePayer,
		Meta:      tx.Meta,
		Message:   tx.Transaction.Message,
	}, nil
}

// ExtractInstructions 将交易的主指令与 inner 指令展平为统一的执行序列。
// 输出按协议保证的执行先序排列：每条主指令后紧跟其全部 inner 指令，
// 每项携带 stack height 与 absolute path，可直接交给 BuildNestedInstructions。
func ExtractInstructions(txMeta *core.TransactionMetadata) ([]core.FlatInstruction, error) {
	msg := txMeta.Message
	meta := txMeta.Meta

	accountKeys, err := buildFullAccountKeys(
		msg.AccountKeys,
		meta.LoadedWritableAddresses,
		meta.LoadedReadonlyAddresses,
	)
	if err != nil {
		return nil, fmt.Errorf("buildFullAccountKeys error: %w", err)
	}

	numSigners := int(msg.Header.GetNumRequiredSignatures())
	isSigner := func(_ types.Pubkey, idx int) bool {
		return idx < numSigners
	}

	var isWritable accountPredicate
	if msg.Versioned {
		// v0：Address Lookup Table 加载的 writable 分区决定可写性
		loadedWritable := make(map[types.Pubkey]struct{}, len(meta.LoadedWritableAddresses))
		for _, b := range meta.LoadedWritableAddresses {
			if key, err := types.PubkeyFromBytes(b); err == nil {
				loadedWritable[key] = struct{}{}
			}
		}
		isWritable = func(key types.Pubkey, _ int) bool {
			_, ok := loadedWritable[key]
			return ok
		}
	} else {
		// legacy：按 message header 的索引区间规则判定
		numReadonlySigned := int(msg.Header.GetNumReadonlySignedAccounts())
		numReadonlyUnsigned := int(msg.Header.GetNumReadonlyUnsignedAccounts())
		total := len(accountKeys)
		isWritable = func(_ types.Pubkey, idx int) bool {
			if idx < numSigners {
				return idx < numSigners-numReadonlySigned
			}
			return idx < total-numReadonlyUnsigned
		}
	}

	// 预分配容量：假设每条主指令平均含有 2 条 inner 指令，最低保留 32 条
	capacity := len(msg.Instructions) * 2
	if capacity < 32 {
		capacity = 32
	}
	result := make([]core.FlatInstruction, 0, capacity)

	if err := processInstructions(
		txMeta, accountKeys,
		msg.Instructions, meta.InnerInstructions,
		isWritable, isSigner,
		&result,
	); err != nil {
		return nil, err
	}
	return result, nil
}

// processInstructions 展开主指令与 inner 指令，逐条计算位置元数据。
//
// absolute path 通过按深度索引的计数器增量重建：
// 相比前一条指令进入更深层时，新深度的计数器清零；
// 停留在同层或回到浅层时，该层计数器 +1。
// 该重建依赖协议保证的 inner 指令先序（深度优先）排列，这里只假定、不校验。
func processInstructions(
	txMeta *core.TransactionMetadata,
	accountKeys []types.Pubkey,
	instructions []*pb.CompiledInstruction,
	inners []*pb.InnerInstructions,
	isWritable, isSigner accountPredicate,
	result *[]core.FlatInstruction,
) error {
	innerCursor := 0

	for i, inst := range instructions {
		*result = append(*result, core.FlatInstruction{
			Metadata: core.InstructionMetadata{
				TxMeta:       txMeta,
				StackHeight:  1,
				IxIndex:      uint32(i),
				AbsolutePath: []uint8{uint8(i)},
			},
			Instruction: buildInstruction(accountKeys, inst.ProgramIdIndex, inst.Accounts, inst.Data, isWritable, isSigner),
		})

		// Solana 标准中每条主指令最多对应一个 inner 指令块，
		// 且 inner 块按主指令索引递增排列，顺序匹配即可，无需 map。
		if innerCursor >= len(inners) || int(inners[innerCursor].Index) != i {
			continue
		}
		group := inners[innerCursor]
		innerCursor++

		var pathStack [consts.MaxInstructionStackDepth]uint8
		pathStack[0] = uint8(group.Index)
		prevHeight := 0

		for _, inner := range group.Instructions {
			// 深度提示缺省时按 1 处理
			h := int(inner.GetStackHeight())
			if h == 0 {
				h = 1
			}
			if h > consts.MaxInstructionStackDepth {
				return fmt.Errorf("extract instructions: tx=%s ixIndex=%d: inner stack height %d exceeds max %d",
					txMeta.Signature, i, h, consts.MaxInstructionStackDepth)
			}

			if h > prevHeight {
				pathStack[h-1] = 0
			} else {
				pathStack[h-1]++
			}
			prevHeight = h

			path := make([]uint8, h)
			copy(path, pathStack[:h])

			*result = append(*result, core.FlatInstruction{
				Metadata: core.InstructionMetadata{
					TxMeta:       txMeta,
					StackHeight:  uint32(h),
					IxIndex:      uint32(group.Index),
					AbsolutePath: path,
				},
				Instruction: buildInstruction(accountKeys, inner.ProgramIdIndex, inner.Accounts, inner.Data, isWritable, isSigner),
			})
		}
	}
	return nil
}

// buildInstruction 将索引形式的指令解析为公钥形式。
//
// 越界处理是有意的有损策略（与线上行为保持一致）：
// 程序 ID 索引越界降级为零值公钥，账户索引越界的账户直接丢弃，
// 提取永远不因引用不可解析而中断。
func buildInstruction(
	accountKeys []types.Pubkey,
	programIdIndex uint32,
	accountIdxs []byte,
	data []byte,
	isWritable, isSigner accountPredicate,
) core.Instruction {
	var programID types.Pubkey
	if int(programIdIndex) < len(accountKeys) {
		programID = accountKeys[programIdIndex]
	}

	accounts := make([]core.AccountMeta, 0, len(accountIdxs))
	for _, rawIdx := range accountIdxs {
		idx := int(rawIdx)
		if idx >= len(accountKeys) {
			continue
		}
		key := accountKeys[idx]
		accounts = append(accounts, core.AccountMeta{
			Pubkey:     key,
			IsWritable: isWritable(key, idx),
			IsSigner:   isSigner(key, idx),
		})
	}

	return core.Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	}
}

// buildFullAccountKeys 构造交易中完整的账户 Pubkey 列表。
// 拼接 message.accountKeys 与 Address Lookup Table 中的 writable / readonly 地址，
// 供后续通过 accountIndex 高效索引使用。
//
// 性能设计：
//   - 一次性预分配切片，避免 append 扩容；
//   - 顺序写入 + copy，有助于 CPU cache 命中；
func buildFullAccountKeys(
	accountKeys, loadedWritable, loadedReadonly [][]byte,
) ([]types.Pubkey, error) {
	// 计算总账户数，确保分配空间恰好
	total := len(accountKeys) + len(loadedWritable) + len(loadedReadonly)
	pubkeys := make([]types.Pubkey, total)

	i := 0 // 写入索引

	// 主账户部分（来自 message.accountKeys）
	for _, b := range accountKeys {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in accountKeys at index %d", i)
		}
		copy(pubkeys[i][:], b)
		i++
	}

	// Address Table 中的 writable 部分
	for _, b := range loadedWritable {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in loadedWritable at index %d", i)
		}
		copy(pubkeys[i][:], b)
		i++
	}

	// Address Table 中的 readonly 部分
	for _, b := range loadedReadonly {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in loadedReadonly at index %d", i)
		}
		copy(pubkeys[i][:], b)
		i++
	}
	return pubkeys, nil
}
