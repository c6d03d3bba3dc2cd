package utils

import (
	"testing"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestDeadLetterRoundTrip(t *testing.T) {
	sig := make([]byte, 64)
	sig[0] = 0xab
	msg := &pb.SubscribeUpdateTransactionInfo{
		Signature: sig,
		Index:     7,
	}

	data, err := EncodeDeadLetter(DeadLetterKindTransaction, 332211, msg)
	require.NoError(t, err)

	kind, slot, payload, err := DecodeDeadLetterHeader(data)
	require.NoError(t, err)
	assert.Equal(t, DeadLetterKindTransaction, kind)
	assert.Equal(t, uint64(332211), slot)

	var decoded pb.SubscribeUpdateTransactionInfo
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	assert.Equal(t, sig, decoded.Signature)
	assert.Equal(t, uint64(7), decoded.Index)
}

func TestDecodeDeadLetterHeader_TooShort(t *testing.T) {
	_, _, _, err := DecodeDeadLetterHeader([]byte{1, 2, 3})
	assert.Error(t, err)
}
