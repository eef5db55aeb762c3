package live

import (
	"fmt"
	"slices"
	"strings"
)

// Default session values.
const (
	DefaultModel           = "gemini-live-2.5-flash-preview"
	DefaultSystemPrompt    = "You are a helpful assistant."
	DefaultHost            = "generativelanguage.googleapis.com"
	DefaultAPIVersion      = "v1alpha"
	DefaultVoice           = "Kore"
	DefaultLanguage        = "en-US"
	DefaultMaxOutputTokens = 1024
	DefaultTemperature     = 0.7
)

// Response modalities.
const (
	ModalityAudio = "AUDIO"
	ModalityText  = "TEXT"
)

// Voices lists the prebuilt voices accepted in the setup message.
var Voices = []string{
	"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda",
	"Orus", "Aoede", "Callirrhoe", "Autonoe", "Enceladus", "Iapetus",
	"Umbriel", "Algieba", "Despina", "Erinome", "Algenib", "Rasalgethi",
	"Laomedeia", "Achernar", "Alnilam", "Schedar", "Gacrux", "Pulcherrima",
	"Achird", "Zubenelgenubi", "Vindemiatrix", "Sadachbia", "Sadaltager", "Sulafat",
}

// Languages lists the BCP-47 speech language codes accepted in the setup message.
var Languages = []string{
	"ar-EG", "en-US", "fr-FR", "de-DE", "hi-IN", "id-ID",
	"it-IT", "ja-JP", "ko-KR", "pt-BR", "ru-RU", "es-US",
	"nl-NL", "pl-PL", "th-TH", "tr-TR", "vi-VN", "ro-RO",
	"uk-UA", "bn-BD", "en-IN", "mr-IN", "ta-IN", "te-IN",
}

// SessionConfig is the user-facing configuration of a live session. It is
// snapshotted when the setup message is sent; edits apply to the next connection.
type SessionConfig struct {
	Model        string `yaml:"model" json:"model"`
	SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
	Voice        string `yaml:"voice" json:"voice"`
	Language     string `yaml:"language" json:"language"`

	// Host and APIVersion form the endpoint path.
	Host       string `yaml:"host" json:"host"`
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`

	CandidateCount     int      `yaml:"candidateCount" json:"candidateCount"`
	MaxOutputTokens    int      `yaml:"maxOutputTokens" json:"maxOutputTokens"`
	Temperature        float64  `yaml:"temperature" json:"temperature"`
	TopP               float64  `yaml:"topP" json:"topP"`
	TopK               int      `yaml:"topK" json:"topK"`
	ResponseModalities []string `yaml:"responseModalities" json:"responseModalities"`

	EnableGoogleSearch         bool `yaml:"enableGoogleSearch" json:"enableGoogleSearch"`
	EnableAffectiveDialog      bool `yaml:"enableAffectiveDialog" json:"enableAffectiveDialog"`
	ProactiveAudio             bool `yaml:"proactiveAudio" json:"proactiveAudio"`
	AutomaticActivityDetection bool `yaml:"automaticActivityDetection" json:"automaticActivityDetection"`
	OutputTranscription        bool `yaml:"outputTranscription" json:"outputTranscription"`
	InputTranscription         bool `yaml:"inputTranscription" json:"inputTranscription"`
}

// DefaultSessionConfig returns the configuration used when nothing is overridden.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:                      DefaultModel,
		SystemPrompt:               DefaultSystemPrompt,
		Voice:                      DefaultVoice,
		Language:                   DefaultLanguage,
		Host:                       DefaultHost,
		APIVersion:                 DefaultAPIVersion,
		CandidateCount:             1,
		MaxOutputTokens:            DefaultMaxOutputTokens,
		Temperature:                DefaultTemperature,
		TopP:                       1,
		TopK:                       0,
		ResponseModalities:         []string{ModalityAudio},
		EnableGoogleSearch:         true,
		AutomaticActivityDetection: true,
		OutputTranscription:        true,
		InputTranscription:         true,
	}
}

// Validate checks the configuration for values the server would reject.
func (c *SessionConfig) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if c.Voice != "" && !IsKnownVoice(c.Voice) {
		return fmt.Errorf("unknown voice %q", c.Voice)
	}
	if c.Language != "" && !IsKnownLanguage(c.Language) {
		return fmt.Errorf("unknown language %q", c.Language)
	}
	if c.CandidateCount < 1 {
		return fmt.Errorf("candidateCount must be at least 1, got %d", c.CandidateCount)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", c.MaxOutputTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("topP must be within [0, 1], got %g", c.TopP)
	}
	if c.TopK < 0 {
		return fmt.Errorf("topK must not be negative, got %d", c.TopK)
	}
	return validateModalities(c.ResponseModalities)
}

// validateModalities rejects unknown modalities and the TEXT+AUDIO combination,
// which the live endpoint does not serve in a single session.
func validateModalities(modalities []string) error {
	if len(modalities) == 0 {
		return fmt.Errorf("at least one response modality is required")
	}
	for _, m := range modalities {
		if m != ModalityAudio && m != ModalityText {
			return fmt.Errorf("unknown response modality %q", m)
		}
	}
	if slices.Contains(modalities, ModalityAudio) && slices.Contains(modalities, ModalityText) {
		return fmt.Errorf("response modalities TEXT and AUDIO cannot be combined")
	}
	return nil
}

// IsKnownVoice reports whether name is one of Voices.
func IsKnownVoice(name string) bool {
	return slices.Contains(Voices, name)
}

// IsKnownLanguage reports whether code is one of Languages.
func IsKnownLanguage(code string) bool {
	return slices.Contains(Languages, code)
}

// modelPath ensures the model is in the form models/{model}.
func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func (c *SessionConfig) clone() SessionConfig {
	out := *c
	out.ResponseModalities = slices.Clone(c.ResponseModalities)
	return out
}
