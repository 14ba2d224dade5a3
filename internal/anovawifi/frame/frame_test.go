package frame_test

import (
	"testing"

	"github.com/anova4all/gateway/internal/anovawifi/frame"
	"github.com/anova4all/gateway/internal/gwerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Run("round-trips a plain command", func(t *testing.T) {
		encoded := frame.Encode("get id card")
		decoded, err := frame.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "get id card", decoded)
	})

	t.Run("round-trips a command with an explicit CR", func(t *testing.T) {
		encoded := frame.Encode("status\r")
		decoded, err := frame.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "status", decoded)
	})

	t.Run("decode tolerates a missing trailing SYN", func(t *testing.T) {
		encoded := frame.Encode("version")
		withoutSyn := encoded[:len(encoded)-1]
		decoded, err := frame.Decode(withoutSyn)
		require.NoError(t, err)
		assert.Equal(t, "version", decoded)
	})
}

// S1 — Frame codec scenario from the gateway's external spec.
func TestS1FrameCodecScenario(t *testing.T) {
	encoded := frame.Encode("get id card")
	require.GreaterOrEqual(t, len(encoded), 2)
	assert.Equal(t, byte(0x68), encoded[0])
	assert.Equal(t, byte(0x0c), encoded[1])

	decoded, err := frame.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "get id card", decoded)
}

func TestFrameInvariants(t *testing.T) {
	t.Run("header and length byte are correct", func(t *testing.T) {
		encoded := frame.Encode("read temp")
		assert.Equal(t, byte(0x68), encoded[0])
		// "read temp" + CR = 10 bytes
		assert.Equal(t, byte(10), encoded[1])
	})

	t.Run("checksum is the sum of the obfuscated payload mod 256", func(t *testing.T) {
		encoded := frame.Encode("start")
		length := int(encoded[1])
		payload := encoded[2 : 2+length]
		checksum := encoded[2+length]

		sum := 0
		for _, b := range payload {
			sum += int(b)
		}
		assert.Equal(t, byte(sum&0xFF), checksum)
	})

	t.Run("flipping a payload byte breaks the checksum", func(t *testing.T) {
		encoded := frame.Encode("stop")
		mutated := append([]byte(nil), encoded...)
		mutated[2] ^= 0xFF

		_, err := frame.Decode(mutated)
		require.Error(t, err)
		kind, ok := gwerrors.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, gwerrors.KindFrame, kind)
	})
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	_, err := frame.Decode([]byte{0x00, 0x01, 0x02, 0x03})
	require.Error(t, err)
	kind, ok := gwerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.KindFrame, kind)
}

func TestStreamBuffersPartialFrames(t *testing.T) {
	encoded := frame.Encode("get id card")

	var s frame.Stream
	first, err := s.Feed(encoded[:3])
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := s.Feed(encoded[3:])
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "get id card", second[0])
}

func TestStreamHandlesBackToBackFrames(t *testing.T) {
	a := frame.Encode("version")
	b := frame.Encode("status")

	var s frame.Stream
	messages, err := s.Feed(append(a, b...))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "version", messages[0])
	assert.Equal(t, "status", messages[1])
}
