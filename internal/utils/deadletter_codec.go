package utils

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// 死信消息类型前缀（uint32，小端序）
const (
	DeadLetterKindTransaction uint32 = 1
)

// EncodeDeadLetter 将 protobuf 消息编码为带类型前缀的二进制数据：
// - 前 4 字节为消息类型（uint32，小端序）
// - 前缀后 8 字节为 slot（uint64，小端序），离线重放时据此定位区块
// - 后续为 protobuf 序列化数据（使用 MarshalAppend 减少一次拷贝）
func EncodeDeadLetter(kind uint32, slot uint64, msg proto.Message) ([]byte, error) {
	const headerSize = 12
	const extraBuffer = 32 // 多预留一些空间，降低 MarshalAppend 触发扩容的概率

	size := proto.Size(msg)

	buf := make([]byte, headerSize, headerSize+size+extraBuffer)
	binary.LittleEndian.PutUint32(buf[:4], kind)
	binary.LittleEndian.PutUint64(buf[4:12], slot)

	opts := proto.MarshalOptions{Deterministic: true}
	result, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeDeadLetter: marshal %T: %w", msg, err)
	}
	return result, nil
}

// DecodeDeadLetterHeader 解析死信消息头，返回类型、slot 与 protobuf 载荷。
func DecodeDeadLetterHeader(data []byte) (kind uint32, slot uint64, payload []byte, err error) {
	if len(data) < 12 {
		return 0, 0, nil, fmt.Errorf("DecodeDeadLetterHeader: message too short: %d bytes", len(data))
	}
	kind = binary.LittleEndian.Uint32(data[:4])
	slot = binary.LittleEndian.Uint64(data[4:12])
	return kind, slot, data[12:], nil
}
