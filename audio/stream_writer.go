package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// StreamingWAVWriter writes a WAV file incrementally. The header sizes are
// patched after every write so a reader always sees a playable file.
type StreamingWAVWriter struct {
	mu      sync.Mutex
	f       *os.File
	format  Format
	written int
	closed  bool
}

// NewStreamingWAVWriter creates path and writes a zero-length header for f.
func NewStreamingWAVWriter(path string, f Format) (*StreamingWAVWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600) //nolint:gosec // caller-chosen output path
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	header := make([]byte, WAVHeaderSize)
	putHeader(header, f, 0)
	if _, err := file.Write(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return &StreamingWAVWriter{f: file, format: f}, nil
}

// Write appends PCM and updates the RIFF and data sizes.
func (w *StreamingWAVWriter) Write(pcm []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}
	n, err := w.f.Write(pcm)
	w.written += n
	if err != nil {
		return n, err
	}
	return n, w.patchSizes()
}

// patchSizes rewrites the RIFF size at offset 4 and the data size at offset 40.
func (w *StreamingWAVWriter) patchSizes() error {
	var buf [4]byte

	binary.LittleEndian.PutUint32(buf[:], uint32(36+w.written)) //nolint:gosec // WAV sizes are 32-bit
	if _, err := w.f.WriteAt(buf[:], 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], uint32(w.written)) //nolint:gosec // WAV sizes are 32-bit
	_, err := w.f.WriteAt(buf[:], 40)
	return err
}

// Written returns the number of PCM bytes written so far.
func (w *StreamingWAVWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close finalizes the header and closes the file. It is idempotent.
func (w *StreamingWAVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.patchSizes(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
