package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE/fmt/data header.
const WAVHeaderSize = 44

// Format describes a linear PCM stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

var (
	// ReceiveFormat is the format of audio produced by the model.
	ReceiveFormat = Format{SampleRate: SampleRate24kHz, Channels: 1, BitsPerSample: 16}

	// CaptureFormat is the format of audio sent to the model.
	CaptureFormat = Format{SampleRate: SampleRate16kHz, Channels: 1, BitsPerSample: 16}
)

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BlockAlign is the number of bytes per sample frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ErrNotWAV is returned when a header is not a PCM RIFF/WAVE header.
var ErrNotWAV = errors.New("not a PCM WAV header")

// EncodeWAV prefixes pcm with a 44-byte WAV header for f.
func EncodeWAV(pcm []byte, f Format) []byte {
	wav := make([]byte, WAVHeaderSize+len(pcm))
	putHeader(wav[:WAVHeaderSize], f, len(pcm))
	copy(wav[WAVHeaderSize:], pcm)
	return wav
}

// putHeader writes the header for dataSize bytes of PCM into b.
//
//nolint:gosec // WAV header fields are 16/32-bit by definition
func putHeader(b []byte, f Format, dataSize int) {
	le := binary.LittleEndian

	copy(b[0:4], "RIFF")
	le.PutUint32(b[4:8], uint32(36+dataSize))
	copy(b[8:12], "WAVE")

	copy(b[12:16], "fmt ")
	le.PutUint32(b[16:20], 16) // PCM fmt chunk size
	le.PutUint16(b[20:22], 1)  // AudioFormat 1 = PCM
	le.PutUint16(b[22:24], uint16(f.Channels))
	le.PutUint32(b[24:28], uint32(f.SampleRate))
	le.PutUint32(b[28:32], uint32(f.ByteRate()))
	le.PutUint16(b[32:34], uint16(f.BlockAlign()))
	le.PutUint16(b[34:36], uint16(f.BitsPerSample))

	copy(b[36:40], "data")
	le.PutUint32(b[40:44], uint32(dataSize))
}

// Header is a decoded canonical WAV header.
type Header struct {
	Format
	RIFFSize   uint32
	ByteRate   uint32
	BlockAlign uint16
	DataSize   uint32
}

// ParseWAVHeader decodes the canonical 44-byte header at the start of b.
func ParseWAVHeader(b []byte) (Header, error) {
	if len(b) < WAVHeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, ErrNotWAV
	}

	le := binary.LittleEndian
	if le.Uint16(b[20:22]) != 1 {
		return Header{}, fmt.Errorf("%w: compressed format %d", ErrNotWAV, le.Uint16(b[20:22]))
	}

	return Header{
		Format: Format{
			SampleRate:    int(le.Uint32(b[24:28])),
			Channels:      int(le.Uint16(b[22:24])),
			BitsPerSample: int(le.Uint16(b[34:36])),
		},
		RIFFSize:   le.Uint32(b[4:8]),
		ByteRate:   le.Uint32(b[28:32]),
		BlockAlign: le.Uint16(b[32:34]),
		DataSize:   le.Uint32(b[40:44]),
	}, nil
}
