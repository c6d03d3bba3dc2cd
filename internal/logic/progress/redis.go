package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 管理 Redis 中的 slot 状态记录（幂等控制）。
// 流断开重连后会重推近期区块，依赖该状态跳过已完成的 slot。
type RedisProgressStore struct {
	rdb     *redis.Client
	slotTTL time.Duration
}

const slotKeyPrefix = "pipeline:progress:slot"

// slot 状态的默认保留时长，重连回放窗口远小于该值
const defaultSlotTTL = 3 * 24 * time.Hour

// NewRedisProgressStore 创建 Redis 判重管理器，ttl <= 0 时使用默认保留时长
func NewRedisProgressStore(rdb *redis.Client, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = defaultSlotTTL
	}
	return &RedisProgressStore{rdb: rdb, slotTTL: ttl}
}

func slotKey(slot uint64) string {
	return fmt.Sprintf("%s:%d", slotKeyPrefix, slot)
}

// GetSlotStatus 查询某 slot 的处理状态，不存在时返回 SlotUnknown
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, slotKey(slot)).Int()
	if err == redis.Nil {
		return SlotUnknown, nil
	}
	if err != nil {
		return SlotUnknown, fmt.Errorf("get slot status %d: %w", slot, err)
	}
	return SlotStatus(val), nil
}

// MarkSlotProcessed 标记 slot 已处理完成
func (r *RedisProgressStore) MarkSlotProcessed(ctx context.Context, slot uint64) error {
	if err := r.rdb.Set(ctx, slotKey(slot), int(SlotProcessed), r.slotTTL).Err(); err != nil {
		return fmt.Errorf("mark slot %d processed: %w", slot, err)
	}
	return nil
}

// MarkSlotInvalid 标记 slot 为确认空块，重放时无需处理
func (r *RedisProgressStore) MarkSlotInvalid(ctx context.Context, slot uint64) error {
	if err := r.rdb.Set(ctx, slotKey(slot), int(SlotInvalid), r.slotTTL).Err(); err != nil {
		return fmt.Errorf("mark slot %d invalid: %w", slot, err)
	}
	return nil
}

// ShouldProcessSlot 判断某 slot 是否还需要处理。
// Redis 查询失败时选择放行：重复处理的代价低于漏处理。
func (r *RedisProgressStore) ShouldProcessSlot(ctx context.Context, slot uint64) bool {
	status, err := r.GetSlotStatus(ctx, slot)
	if err != nil {
		return true
	}
	return status != SlotProcessed && status != SlotInvalid
}
