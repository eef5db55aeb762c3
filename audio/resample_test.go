package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(i*100))
	}
	return b
}

func TestResamplePCM16_SameRateCopies(t *testing.T) {
	in := ramp(50)

	out, err := ResamplePCM16(in, 16000, 16000)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	out[0] = 0xFF
	assert.NotEqual(t, in[0], out[0])
}

func TestResamplePCM16_Downsample48kTo16k(t *testing.T) {
	out, err := ToInputRate(ramp(480), 48000)

	require.NoError(t, err)
	assert.Len(t, out, 160*2)
	// every third input sample lands exactly on an output sample
	assert.Equal(t, uint16(300), binary.LittleEndian.Uint16(out[2:]))
}

func TestResamplePCM16_Upsample(t *testing.T) {
	out, err := ResamplePCM16(ramp(100), 16000, 24000)

	require.NoError(t, err)
	assert.Len(t, out, 150*2)
}

func TestResamplePCM16_Errors(t *testing.T) {
	_, err := ResamplePCM16(ramp(4), 0, 16000)
	assert.Error(t, err)

	_, err = ResamplePCM16([]byte{1, 2, 3}, 48000, 16000)
	assert.Error(t, err)

	out, err := ResamplePCM16(nil, 48000, 16000)
	require.NoError(t, err)
	assert.Empty(t, out)
}
