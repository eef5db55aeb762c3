//go:build portaudio

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/AltairaLabs/geminilive/audio"
	"github.com/AltairaLabs/geminilive/logger"
)

const (
	// inputFramesPerBuffer is 100ms of audio at 16kHz
	inputFramesPerBuffer = 1600
	// outputFramesPerBuffer is 40ms of audio at 24kHz
	outputFramesPerBuffer = 960
	// playbackQueue bounds buffered model audio, in chunks.
	playbackQueue = 500
)

const devicesAvailable = true

// openDevices initializes PortAudio and returns the default microphone and speaker.
func openDevices(wantMic, wantSpeaker bool) (audio.Source, audio.Sink, func(), error) {
	if !wantMic && !wantSpeaker {
		return nil, nil, func() {}, nil
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	var src audio.Source
	if wantMic {
		src = &micSource{}
	}

	var sink *speakerSink
	if wantSpeaker {
		var err error
		sink, err = newSpeakerSink()
		if err != nil {
			_ = portaudio.Terminate()
			return nil, nil, nil, err
		}
	}

	cleanup := func() {
		if sink != nil {
			_ = sink.Close()
		}
		_ = portaudio.Terminate()
	}
	if sink == nil {
		return src, nil, cleanup, nil
	}
	return src, sink, cleanup, nil
}

// micSource captures 16kHz mono PCM from the default input device.
type micSource struct{}

// SampleRate implements audio.Source.
func (m *micSource) SampleRate() int { return audio.CaptureFormat.SampleRate }

// Frames implements audio.Source.
func (m *micSource) Frames(ctx context.Context) (<-chan []byte, error) {
	in := make([]int16, inputFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(audio.CaptureFormat.Channels, 0,
		float64(audio.CaptureFormat.SampleRate), inputFramesPerBuffer, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() {
			_ = stream.Stop()
			_ = stream.Close()
		}()
		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				logger.Debug("microphone read failed", "error", err)
				continue
			}
			select {
			case out <- int16ToBytes(in):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// speakerSink plays 24kHz mono PCM on the default output device.
type speakerSink struct {
	stream *portaudio.Stream
	buf    []int16
	queue  chan []byte
	flush  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSpeakerSink() (*speakerSink, error) {
	s := &speakerSink{
		buf:   make([]int16, outputFramesPerBuffer),
		queue: make(chan []byte, playbackQueue),
		flush: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	stream, err := portaudio.OpenDefaultStream(0, audio.ReceiveFormat.Channels,
		float64(audio.ReceiveFormat.SampleRate), outputFramesPerBuffer, s.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	s.stream = stream
	go s.playLoop()
	return s, nil
}

// Accept implements audio.Sink. Chunks are dropped when the queue is full.
func (s *speakerSink) Accept(chunk []byte) error {
	select {
	case <-s.done:
		return audio.ErrSinkClosed
	default:
	}
	select {
	case s.queue <- chunk:
		return nil
	default:
		return fmt.Errorf("playback queue full")
	}
}

// Stop implements audio.Sink. Queued audio is dropped; the output stream keeps running.
func (s *speakerSink) Stop() {
drain:
	for {
		select {
		case <-s.queue:
		default:
			break drain
		}
	}
	select {
	case s.flush <- struct{}{}:
	default:
	}
}

// Close stops playback for good and releases the output stream.
func (s *speakerSink) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *speakerSink) playLoop() {
	defer func() {
		_ = s.stream.Stop()
		_ = s.stream.Close()
	}()

	var pending []byte
	for {
		for len(pending) < len(s.buf)*2 {
			select {
			case <-s.done:
				return
			case <-s.flush:
				pending = pending[:0]
			case chunk := <-s.queue:
				pending = append(pending, chunk...)
			}
		}
		for i := range s.buf {
			s.buf[i] = int16(binary.LittleEndian.Uint16(pending[i*2:])) //nolint:gosec // PCM16 reinterpretation
		}
		pending = pending[len(s.buf)*2:]
		if err := s.stream.Write(); err != nil {
			logger.Debug("speaker write failed", "error", err)
		}
	}
}

func int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v)) //nolint:gosec // PCM16 reinterpretation
	}
	return b
}
