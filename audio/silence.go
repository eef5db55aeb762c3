package audio

import (
	"math"
	"time"
)

// DefaultSpeechThreshold is the mean-square energy above which a frame counts as speech.
const DefaultSpeechThreshold = 0.01

// SilenceBytes returns the number of zero bytes that encode d of silence in f.
func SilenceBytes(f Format, d time.Duration) int {
	n := int(float64(f.ByteRate()) * d.Seconds())
	if align := f.BlockAlign(); align > 0 {
		n -= n % align
	}
	return n
}

// PadSilence returns pcm followed by d of digital silence in f.
func PadSilence(pcm []byte, f Format, d time.Duration) []byte {
	n := SilenceBytes(f, d)
	out := make([]byte, len(pcm)+n)
	copy(out, pcm)
	return out
}

// Energy returns the mean squared normalized amplitude of pcm.
func Energy(pcm []byte) float64 {
	samples := decodeSamples(pcm)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return sum / float64(len(samples))
}

// HasSpeech reports whether pcm carries more energy than threshold.
func HasSpeech(pcm []byte, threshold float64) bool {
	return Energy(pcm) > threshold
}
