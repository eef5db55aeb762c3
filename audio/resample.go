package audio

import (
	"encoding/binary"
	"fmt"
)

// Standard sample rates on the live stream.
const (
	SampleRate24kHz = 24000 // model output
	SampleRate16kHz = 16000 // model input
)

// bytesPerSample is the size of one 16-bit PCM sample.
const bytesPerSample = 2

// ResamplePCM16 resamples PCM16 audio data from one sample rate to another
// using linear interpolation.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]byte, len(input))
		copy(result, input)
		return result, nil
	}

	if len(input)%bytesPerSample != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of %d bytes per sample", len(input), bytesPerSample)
	}

	in := decodeSamples(input)
	if len(in) == 0 {
		return []byte{}, nil
	}

	numOut := int(float64(len(in)) * float64(toRate) / float64(fromRate))
	if numOut == 0 {
		return []byte{}, nil
	}

	out := make([]byte, numOut*bytesPerSample)
	ratio := float64(fromRate) / float64(toRate)
	last := len(in) - 1

	for i := 0; i < numOut; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)

		var s int16
		if srcIdx >= last {
			s = in[last]
		} else {
			frac := srcPos - float64(srcIdx)
			s0 := float64(in[srcIdx])
			s1 := float64(in[srcIdx+1])
			s = int16(s0 + frac*(s1-s0))
		}
		//nolint:gosec // Safe PCM16 conversion
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}

	return out, nil
}

// ToInputRate downsamples captured audio at fromRate to the 16kHz the service expects.
func ToInputRate(input []byte, fromRate int) ([]byte, error) {
	return ResamplePCM16(input, fromRate, SampleRate16kHz)
}

// decodeSamples converts little-endian PCM16 bytes to samples. A trailing odd byte is ignored.
func decodeSamples(pcm []byte) []int16 {
	n := len(pcm) / bytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:])) //nolint:gosec // Safe PCM16 conversion
	}
	return samples
}
