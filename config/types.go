// Package config loads LiveSession manifests.
//
// A manifest is a K8s-style YAML document:
//
//	apiVersion: geminilive/v1alpha1
//	kind: LiveSession
//	metadata:
//	  name: kitchen-assistant
//	spec:
//	  session:
//	    voice: Puck
//	  outputDir: ./recordings
//
// Fields missing from spec.session keep the values of live.DefaultSessionConfig.
// The API key is never read from the manifest; see Credential.
package config

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/AltairaLabs/geminilive/live"
	"github.com/AltairaLabs/geminilive/logger"
	"github.com/AltairaLabs/geminilive/retry"
)

// Manifest identity.
const (
	APIVersion = "geminilive/v1alpha1"
	Kind       = "LiveSession"
)

// Manifest is a LiveSession document.
type Manifest struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Spec              `yaml:"spec"`
}

// Spec configures one live session and its supporting services.
type Spec struct {
	Session live.SessionConfig `yaml:"session"`

	// OutputDir receives one WAV per completed generation. Empty disables persistence.
	OutputDir string `yaml:"outputDir,omitempty"`

	Logging logger.LoggingConfigSpec `yaml:"logging,omitempty"`

	// Optional services.
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Retry   *RetryConfig   `yaml:"retry,omitempty"`
	Tracing *TracingConfig `yaml:"tracing,omitempty"`
}

// RedisConfig enables the Redis transcript store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

// MetricsConfig enables the Prometheus exporter.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// RetryConfig overrides the connect retry policy.
type RetryConfig struct {
	Attempts     int    `yaml:"attempts,omitempty"`
	InitialDelay string `yaml:"initialDelay,omitempty"`
	MaxDelay     string `yaml:"maxDelay,omitempty"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	// Endpoint is an OTLP/HTTP URL; an http:// scheme disables TLS.
	Endpoint string `yaml:"endpoint"`
}

// ValidationError reports an invalid manifest field.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TTLDuration parses the configured TTL. Zero means the store default.
func (r *RedisConfig) TTLDuration() (time.Duration, error) {
	return parseDuration("redis.ttl", r.TTL)
}

// Policy builds a retry policy. Unset fields keep the retry defaults.
func (r *RetryConfig) Policy() (retry.Policy, error) {
	p := retry.DefaultPolicy()
	if r == nil {
		return p, nil
	}
	if r.Attempts > 0 {
		p.Attempts = r.Attempts
	}
	initial, err := parseDuration("retry.initialDelay", r.InitialDelay)
	if err != nil {
		return p, err
	}
	if initial > 0 {
		p.InitialDelay = initial
	}
	maxDelay, err := parseDuration("retry.maxDelay", r.MaxDelay)
	if err != nil {
		return p, err
	}
	if maxDelay > 0 {
		p.MaxDelay = maxDelay
	}
	return p, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: "invalid duration", Value: s}
	}
	if d < 0 {
		return 0, &ValidationError{Field: field, Message: "must not be negative", Value: s}
	}
	return d, nil
}
