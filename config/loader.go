package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/geminilive/live"
)

// Environment variables read by the loader.
const (
	// EnvAPIKey holds the credential appended to the endpoint URL.
	EnvAPIKey = "GEMINI_API_KEY"
	// EnvModel overrides spec.session.model.
	EnvModel = "GEMINI_LIVE_MODEL"
	// EnvHost overrides spec.session.host.
	EnvHost = "GEMINI_LIVE_HOST"
)

// ErrMissingCredential is returned by Credential when EnvAPIKey is unset.
var ErrMissingCredential = errors.New("config: " + EnvAPIKey + " is not set")

// Default returns a manifest carrying the default session and no optional services.
func Default() *Manifest {
	return &Manifest{
		APIVersion: APIVersion,
		Kind:       Kind,
		Spec: Spec{
			Session: live.DefaultSessionConfig(),
		},
	}
}

// Load reads, validates and decodes a manifest file.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes manifest bytes, then applies environment overrides.
func Parse(data []byte) (*Manifest, error) {
	// Step 1: JSON Schema validation (structure, types, kind values)
	if err := ValidateManifest(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	// Decoding onto the defaults keeps every field the manifest omits.
	m := Default()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&m.Spec.Session)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func applyEnv(s *live.SessionConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		s.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		s.Host = v
	}
}

// Validate checks what the schema cannot: the voice and language catalogues
// and duration strings.
func (m *Manifest) Validate() error {
	if err := m.Spec.Session.Validate(); err != nil {
		return &ValidationError{Field: "spec.session", Message: err.Error()}
	}
	if r := m.Spec.Redis; r != nil {
		if _, err := r.TTLDuration(); err != nil {
			return err
		}
	}
	if _, err := m.Spec.Retry.Policy(); err != nil {
		return err
	}
	return nil
}

// Credential returns the API key from the environment.
func Credential() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}
