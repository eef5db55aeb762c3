package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AltairaLabs/geminilive/config"
	"github.com/AltairaLabs/geminilive/live"
	"github.com/AltairaLabs/geminilive/logger"
	metrics "github.com/AltairaLabs/geminilive/metrics/prometheus"
	"github.com/AltairaLabs/geminilive/storage/local"
	"github.com/AltairaLabs/geminilive/telemetry"
	"github.com/AltairaLabs/geminilive/transcript"
)

const serviceName = "geminilive"

// services holds the optional backends wired into a client.
type services struct {
	opts        []live.Option
	exporter    *metrics.Exporter
	tracer      *sdktrace.TracerProvider
	redis       *redis.Client
	transcripts transcript.Store
}

// buildServices turns the manifest's optional sections into client options.
func buildServices(ctx context.Context, spec *config.Spec) (*services, error) {
	s := &services{}

	policy, err := spec.Retry.Policy()
	if err != nil {
		return nil, err
	}
	s.opts = append(s.opts, live.WithRetryPolicy(policy))

	if spec.OutputDir != "" {
		store, err := local.NewFileStore(local.FileStoreConfig{
			BaseDir:       spec.OutputDir,
			Organization:  local.OrganizationBySession,
			WriteMetadata: true,
		})
		if err != nil {
			return nil, fmt.Errorf("open output directory: %w", err)
		}
		s.opts = append(s.opts, live.WithAudioStore(store))
	}

	if err := s.setupTranscripts(ctx, spec.Redis); err != nil {
		return nil, err
	}
	s.opts = append(s.opts, live.WithTranscriptStore(s.transcripts))

	if spec.Metrics != nil {
		s.exporter = metrics.NewExporter(spec.Metrics.Addr)
		s.opts = append(s.opts, live.WithEventListener(metrics.NewMetricsListener().Listener()))
	}

	if spec.Tracing != nil {
		tp, err := telemetry.NewTracerProvider(ctx, spec.Tracing.Endpoint, serviceName)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
		telemetry.SetupPropagation()
		s.tracer = tp
		s.opts = append(s.opts, live.WithTracerProvider(tp))
	}

	return s, nil
}

// setupTranscripts picks Redis when configured and memory otherwise.
func (s *services) setupTranscripts(ctx context.Context, cfg *config.RedisConfig) error {
	if cfg == nil {
		s.transcripts = transcript.NewMemoryStore()
		return nil
	}

	ttl, err := cfg.TTLDuration()
	if err != nil {
		return err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	var opts []transcript.RedisOption
	if ttl > 0 {
		opts = append(opts, transcript.WithTTL(ttl))
	}
	if cfg.Prefix != "" {
		opts = append(opts, transcript.WithPrefix(cfg.Prefix))
	}
	s.redis = client
	s.transcripts = transcript.NewRedisStore(client, opts...)
	return nil
}

// shutdown flushes spans and releases connections.
func (s *services) shutdown(ctx context.Context) error {
	var errs []error
	if s.exporter != nil {
		errs = append(errs, s.exporter.Shutdown(ctx))
	}
	if s.tracer != nil {
		errs = append(errs, s.tracer.Shutdown(ctx))
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	return err
}
