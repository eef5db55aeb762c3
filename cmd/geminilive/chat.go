package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/geminilive/audio"
	"github.com/AltairaLabs/geminilive/config"
	"github.com/AltairaLabs/geminilive/live"
	"github.com/AltairaLabs/geminilive/logger"
	"github.com/AltairaLabs/geminilive/tools"
)

const shutdownTimeout = 5 * time.Second

var chatOpts struct {
	voice        string
	language     string
	outputDir    string
	text         string
	inputWAV     string
	record       string
	mic          bool
	playback     bool
	vadGate      float64
	metricsAddr  string
	otlpEndpoint string
	insecure     bool
	demoTools    bool
	keepAlive    time.Duration
	timeout      time.Duration
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a live session",
	Long: `Start a live session and stream audio in both directions.

Input comes from the microphone (--mic, needs -tags portaudio), a WAV file
(--input-wav) or a single text prompt (--text). Without the microphone the
session ends after the first complete response.

Examples:
  geminilive chat --mic --voice Puck
  geminilive chat --input-wav question.wav --output-dir ./out
  geminilive chat --text "Tell me a joke" --record joke.wav
  geminilive chat -c session.yaml --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatOpts.voice, "voice", "", "Prebuilt voice (see 'geminilive voices')")
	f.StringVar(&chatOpts.language, "language", "", "Speech language code (see 'geminilive languages')")
	f.StringVarP(&chatOpts.outputDir, "output-dir", "o", "", "Directory for response WAV files")
	f.StringVarP(&chatOpts.text, "text", "t", "", "Send a text prompt once the session is ready")
	f.StringVar(&chatOpts.inputWAV, "input-wav", "", "Stream a PCM16 WAV file as microphone input")
	f.StringVar(&chatOpts.record, "record", "", "Also write all model audio to this WAV file")
	f.BoolVar(&chatOpts.mic, "mic", devicesAvailable, "Capture from the default microphone")
	f.BoolVar(&chatOpts.playback, "playback", devicesAvailable, "Play model audio on the default speaker")
	f.Float64Var(&chatOpts.vadGate, "vad-gate", 0, "Drop capture frames below this RMS energy (0 disables)")
	f.StringVar(&chatOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&chatOpts.otlpEndpoint, "otlp-endpoint", "", "Export spans to this OTLP/HTTP URL")
	f.BoolVar(&chatOpts.insecure, "insecure", false, "Use ws:// instead of wss:// (local test servers)")
	f.BoolVar(&chatOpts.demoTools, "demo-tools", false, "Register the built-in demo tools")
	f.DurationVar(&chatOpts.keepAlive, "keep-alive", 0, "WebSocket ping interval (0 disables)")
	f.DurationVar(&chatOpts.timeout, "timeout", 0, "End the session after this long (0 waits for Ctrl-C)")
	rootCmd.AddCommand(chatCmd)
}

// applyFlags layers explicit flags over the manifest.
func applyFlags(cmd *cobra.Command, m *config.Manifest) {
	f := cmd.Flags()
	if f.Changed("voice") {
		m.Spec.Session.Voice = chatOpts.voice
	}
	if f.Changed("language") {
		m.Spec.Session.Language = chatOpts.language
	}
	if f.Changed("output-dir") {
		m.Spec.OutputDir = chatOpts.outputDir
	}
	if chatOpts.metricsAddr != "" {
		m.Spec.Metrics = &config.MetricsConfig{Addr: chatOpts.metricsAddr}
	}
	if chatOpts.otlpEndpoint != "" {
		m.Spec.Tracing = &config.TracingConfig{Endpoint: chatOpts.otlpEndpoint}
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}
	applyFlags(cmd, m)
	if err := m.Validate(); err != nil {
		return err
	}

	credential, err := config.Credential()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if chatOpts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, chatOpts.timeout)
		defer cancel()
	}

	svc, err := buildServices(ctx, &m.Spec)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = svc.shutdown(sctx)
	}()

	useMic := chatOpts.mic && chatOpts.inputWAV == "" && chatOpts.text == ""
	mic, speaker, closeDevices, err := openDevices(useMic, chatOpts.playback)
	if err != nil {
		return err
	}
	defer closeDevices()

	sink, err := playbackSink(speaker)
	if err != nil {
		return err
	}
	if c, ok := sink.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	opts := append([]live.Option{}, svc.opts...)
	if sink != nil {
		opts = append(opts, live.WithPlaybackSink(sink))
	}
	if chatOpts.vadGate > 0 {
		opts = append(opts, live.WithSpeechGate(chatOpts.vadGate))
	}
	if chatOpts.keepAlive > 0 {
		opts = append(opts, live.WithKeepAlive(chatOpts.keepAlive))
	}
	if chatOpts.insecure {
		opts = append(opts, live.WithInsecureTransport())
	}
	if chatOpts.demoTools {
		reg := tools.NewRegistry()
		if err := registerDemoTools(reg); err != nil {
			return err
		}
		opts = append(opts, live.WithToolRegistry(reg))
	}

	client, err := live.NewClient(m.Spec.Session, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{
		SessionID: client.SessionID(),
		Model:     m.Spec.Session.Model,
		Voice:     m.Spec.Session.Voice,
	})

	src, err := inputSource(mic)
	if err != nil {
		return err
	}
	return runSession(ctx, cmd.OutOrStdout(), client, svc, credential, src, mic == nil)
}

// playbackSink combines the speaker with the optional --record writer.
func playbackSink(speaker audio.Sink) (audio.Sink, error) {
	if chatOpts.record == "" {
		return speaker, nil
	}
	w, err := audio.NewStreamingWAVWriter(chatOpts.record, audio.ReceiveFormat)
	if err != nil {
		return nil, err
	}
	rec := audio.WriterSink{W: w}
	if speaker == nil {
		return rec, nil
	}
	return teeSink{speaker, rec}, nil
}

func inputSource(mic audio.Source) (audio.Source, error) {
	if chatOpts.inputWAV != "" {
		src, err := audio.OpenWAVSource(chatOpts.inputWAV, 0)
		if err != nil {
			return nil, err
		}
		src.Realtime = true
		return src, nil
	}
	return mic, nil
}

// runSession connects, feeds input and prints events until ctx ends or,
// when once is set, the first response completes.
func runSession(ctx context.Context, out io.Writer, client *live.Client, svc *services,
	credential string, src audio.Source, once bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	finished := make(chan struct{})

	if svc.exporter != nil {
		g.Go(svc.exporter.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svc.exporter.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		return printEvents(gctx, out, client, once, finished)
	})

	g.Go(func() error {
		if err := client.Connect(gctx, credential); err != nil {
			return err
		}
		if err := client.WaitReady(gctx); err != nil {
			return err
		}
		if chatOpts.text != "" {
			if err := client.SendTextPrompt(gctx, chatOpts.text, true); err != nil {
				return err
			}
		}
		if src == nil {
			return nil
		}
		err := client.StreamAudio(gctx, src)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-finished:
		}
		err := client.Disconnect()
		cancel()
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// printEvents writes a line per user-visible event. finished closes when
// once is set and the first generation completes, or when the connection drops.
func printEvents(ctx context.Context, out io.Writer, client *live.Client, once bool, finished chan<- struct{}) error {
	done := false
	finish := func() {
		if !done {
			done = true
			close(finished)
		}
	}
	wasReady := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case live.HandshakeChangedEvent:
				if e.Complete {
					wasReady = true
					_, _ = fmt.Fprintln(out, "● connected")
				} else if wasReady {
					_, _ = fmt.Fprintln(out, "○ disconnected")
					finish()
				}
			case live.OutputTranscriptionEvent:
				_, _ = fmt.Fprintf(out, "gemini: %s\n", e.Text)
			case live.InputTranscriptionEvent:
				_, _ = fmt.Fprintf(out, "you: %s\n", e.Text)
			case live.ToolCallEvent:
				_, _ = fmt.Fprintf(out, "tool %s(%v) handled=%t\n", e.Name, e.Args, e.Handled)
			case live.InterruptedEvent:
				_, _ = fmt.Fprintln(out, "[interrupted]")
			case live.GenerationCompleteEvent:
				if e.File != "" {
					_, _ = fmt.Fprintf(out, "saved %s\n", e.File)
				}
				if once {
					finish()
				}
			case live.GoAwayEvent:
				_, _ = fmt.Fprintf(out, "server closing in %s\n", e.TimeLeft)
			case live.ErrorEvent:
				_, _ = fmt.Fprintf(out, "error: %v\n", e.Err)
			}
		}
	}
}

// teeSink forwards every chunk to each sink.
type teeSink []audio.Sink

func (t teeSink) Accept(chunk []byte) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Accept(chunk))
	}
	return errors.Join(errs...)
}

func (t teeSink) Stop() {
	for _, s := range t {
		s.Stop()
	}
}

// Close closes every sink that holds a resource.
func (t teeSink) Close() error {
	var errs []error
	for _, s := range t {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
