package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Signature 表示 64 字节的交易签名。
type Signature [64]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) Equals(other Signature) bool {
	return s == other
}

// SignatureFromBytes 从原始字节构造 Signature，长度非 64 时返回 error。
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != 64 {
		return sig, fmt.Errorf("invalid signature length: got %d, want 64", len(b))
	}
	copy(sig[:], b)
	return sig, nil
}
