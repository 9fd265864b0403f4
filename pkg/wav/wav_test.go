package wav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data := Encode(samples, 16000)
	require.Len(t, data, 44+len(samples)*2)

	decoded, rate, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, samples, decoded)
}

func TestDecodeSkipsExtraChunks(t *testing.T) {
	data := Encode([]int16{42}, 8000)
	// splice a LIST chunk between fmt and data
	list := append([]byte("LIST"), 0x04, 0x00, 0x00, 0x00, 'I', 'N', 'F', 'O')
	spliced := append(append(append([]byte{}, data[:36]...), list...), data[36:]...)

	decoded, rate, err := Decode(spliced)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, []int16{42}, decoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not a wave file at all, not even close, really"))
	assert.Error(t, err)
}

func TestDecodeRejectsStereo(t *testing.T) {
	data := Encode([]int16{1, 2}, 16000)
	data[22] = 2 // channel count
	_, _, err := Decode(data)
	assert.Error(t, err)
}
