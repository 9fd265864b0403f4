package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	decoded, err := DecodeFrame(EncodeFrame(samples))
	require.NoError(t, err)
	assert.Equal(t, samples, decoded)
}

func TestEncodeFrameIsLittleEndian(t *testing.T) {
	data := EncodeFrame([]int16{0x0102})
	assert.Equal(t, []byte{0x02, 0x01}, data)
}

func TestDecodeFrameRejectsOddLength(t *testing.T) {
	_, err := DecodeFrame([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}

func TestDecodeFrameAcceptsEmpty(t *testing.T) {
	samples, err := DecodeFrame(nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestUpsample8to16DoublesLength(t *testing.T) {
	out := Upsample8to16([]int16{100, 200, 300})
	require.Len(t, out, 6)
	assert.Equal(t, []int16{100, 150, 200, 250, 300, 300}, out)
}

func TestUpsample8to16EmptyInput(t *testing.T) {
	assert.Nil(t, Upsample8to16(nil))
}

func TestHandshakeValidate(t *testing.T) {
	valid := Handshake{
		Type:       "start",
		CallID:     "call-1",
		OrgID:      "org-1",
		AgentID:    "agent-1",
		CallerID:   "+34600000000",
		SampleRate: 8000,
	}
	require.NoError(t, valid.Validate())

	wideband := valid
	wideband.SampleRate = 16000
	require.NoError(t, wideband.Validate())

	badType := valid
	badType.Type = "stop"
	assert.Error(t, badType.Validate())

	noAgent := valid
	noAgent.AgentID = ""
	assert.Error(t, noAgent.Validate())

	badRate := valid
	badRate.SampleRate = 44100
	assert.Error(t, badRate.Validate())
}
