package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Source produces captured PCM frames at SampleRate. Frames starts a fresh
// capture each time it is called; the channel closes when capture ends or ctx is done.
type Source interface {
	SampleRate() int
	Frames(ctx context.Context) (<-chan []byte, error)
}

// Sink plays 24kHz PCM chunks as they arrive. Stop halts playback and drops
// anything queued; the sink keeps accepting audio afterwards. Sinks holding
// devices or files release them through io.Closer.
type Sink interface {
	Accept(chunk []byte) error
	Stop()
}

// PCMSource replays an in-memory PCM buffer as fixed-size frames.
type PCMSource struct {
	Rate      int
	FrameSize int
	PCM       []byte

	// Realtime paces frames at playback speed instead of replaying at once.
	Realtime bool
}

// SampleRate implements Source.
func (s *PCMSource) SampleRate() int { return s.Rate }

// Frames implements Source.
func (s *PCMSource) Frames(ctx context.Context) (<-chan []byte, error) {
	size := s.FrameSize
	if size <= 0 {
		size = s.Rate / 10 * bytesPerSample // 100ms
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid frame size for rate %d", s.Rate)
	}

	var limiter *rate.Limiter
	if s.Realtime && s.Rate > 0 {
		frame := time.Duration(size/bytesPerSample) * time.Second / time.Duration(s.Rate)
		limiter = rate.NewLimiter(rate.Every(frame), 1)
	}

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		for off := 0; off < len(s.PCM); off += size {
			if limiter != nil && limiter.Wait(ctx) != nil {
				return
			}
			end := min(off+size, len(s.PCM))
			select {
			case ch <- s.PCM[off:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// OpenWAVSource reads a PCM WAV file into a PCMSource.
func OpenWAVSource(path string, frameSize int) (*PCMSource, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-chosen input path
	if err != nil {
		return nil, err
	}
	h, err := ParseWAVHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if h.Channels != 1 || h.BitsPerSample != 16 {
		return nil, fmt.Errorf("%s: need 16-bit mono, got %d-bit %d channels", path, h.BitsPerSample, h.Channels)
	}

	pcm := data[WAVHeaderSize:]
	if int(h.DataSize) < len(pcm) {
		pcm = pcm[:h.DataSize]
	}
	return &PCMSource{Rate: h.SampleRate, FrameSize: frameSize, PCM: pcm}, nil
}

// BufferSink collects played audio in memory.
type BufferSink struct {
	mu    sync.Mutex
	buf   []byte
	stops int
}

// Accept implements Sink.
func (b *BufferSink) Accept(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, chunk...)
	return nil
}

// Stop implements Sink. Collected audio is kept.
func (b *BufferSink) Stop() {
	b.mu.Lock()
	b.stops++
	b.mu.Unlock()
}

// Bytes returns a copy of everything accepted so far.
func (b *BufferSink) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

// Stops returns how many times Stop has been called.
func (b *BufferSink) Stops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

// ErrSinkClosed is returned by a sink that has been closed.
var ErrSinkClosed = errors.New("sink closed")

// WriterSink adapts an io.Writer, such as a StreamingWAVWriter, to Sink.
type WriterSink struct {
	W io.Writer
}

// Accept implements Sink.
func (w WriterSink) Accept(chunk []byte) error {
	_, err := w.W.Write(chunk)
	return err
}

// Stop implements Sink. Writes are not buffered, so there is nothing to drop.
func (w WriterSink) Stop() {}

// Close closes W when W is an io.Closer.
func (w WriterSink) Close() error {
	if c, ok := w.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
