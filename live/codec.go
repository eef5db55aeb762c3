package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AltairaLabs/geminilive/logger"
	"github.com/AltairaLabs/geminilive/tools"
)

// MIME types used for realtime media chunks.
const (
	MimeTypeCapturedAudio    = "audio/pcm;rate=16000"
	MimeTypeSynthesizedAudio = "audio/pcm"
	MimeTypeDefaultImage     = "image/jpeg"
)

// Activity-detection tuning sent with every setup.
const (
	startOfSpeechSensitivity = "START_SENSITIVITY_HIGH"
	endOfSpeechSensitivity   = "END_SENSITIVITY_LOW"
	prefixPaddingMs          = 100
	silenceDurationMs        = 500
)

// buildSetupMessage creates the first frame of a connection. Disabled
// features are omitted rather than sent as false.
func buildSetupMessage(cfg *SessionConfig, decls []tools.Declaration) map[string]interface{} {
	setupContent := map[string]interface{}{
		"model":            modelPath(cfg.Model),
		"generationConfig": buildGenerationConfig(cfg),
	}

	addSystemInstruction(setupContent, cfg.SystemPrompt)
	addActivityDetection(setupContent, cfg.AutomaticActivityDetection)
	addToolsConfig(setupContent, cfg.EnableGoogleSearch, decls)
	addProactivity(setupContent, cfg.ProactiveAudio)
	addTranscriptionConfig(setupContent, cfg)

	return map[string]interface{}{
		"setup": setupContent,
	}
}

func marshalSetup(cfg *SessionConfig, decls []tools.Declaration) ([]byte, error) {
	data, err := json.Marshal(buildSetupMessage(cfg, decls))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal setup: %w", err)
	}
	return data, nil
}

// buildGenerationConfig creates the generation configuration
func buildGenerationConfig(cfg *SessionConfig) map[string]interface{} {
	config := map[string]interface{}{
		"candidateCount":      cfg.CandidateCount,
		"maxOutputTokens":     cfg.MaxOutputTokens,
		"temperature":         cfg.Temperature,
		"topP":                cfg.TopP,
		"topK":                cfg.TopK,
		"response_modalities": cfg.ResponseModalities,
	}

	if slices.Contains(cfg.ResponseModalities, ModalityAudio) {
		if speech := buildSpeechConfig(cfg.Voice, cfg.Language); len(speech) > 0 {
			config["speech_config"] = speech
		}
	}

	if cfg.EnableAffectiveDialog {
		config["enable_affective_dialog"] = true
	}

	return config
}

func buildSpeechConfig(voice, language string) map[string]interface{} {
	speech := map[string]interface{}{}
	if voice != "" {
		speech["voice_config"] = map[string]interface{}{
			"prebuilt_voice_config": map[string]interface{}{
				"voice_name": voice,
			},
		}
	}
	if language != "" {
		speech["language_code"] = language
	}
	return speech
}

func addSystemInstruction(setupContent map[string]interface{}, instruction string) {
	if instruction != "" {
		setupContent["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": instruction},
			},
		}
	}
}

// addActivityDetection always sends the block; automatic detection is
// switched off through its disabled flag.
func addActivityDetection(setupContent map[string]interface{}, automatic bool) {
	setupContent["realtime_input_config"] = map[string]interface{}{
		"automaticActivityDetection": map[string]interface{}{
			"disabled":                    !automatic,
			"start_of_speech_sensitivity": startOfSpeechSensitivity,
			"end_of_speech_sensitivity":   endOfSpeechSensitivity,
			"prefix_padding_ms":           prefixPaddingMs,
			"silence_duration_ms":         silenceDurationMs,
		},
	}
}

func addToolsConfig(setupContent map[string]interface{}, googleSearch bool, decls []tools.Declaration) {
	if !googleSearch && len(decls) == 0 {
		return
	}

	toolsConfig := map[string]interface{}{}
	if len(decls) > 0 {
		toolsConfig["functionDeclarations"] = decls
	}
	if googleSearch {
		toolsConfig["google_search"] = map[string]interface{}{}
	}
	setupContent["tools"] = toolsConfig
	logger.Debug("tools added to setup", "component", component,
		"tool_count", len(decls), "google_search", googleSearch)
}

func addProactivity(setupContent map[string]interface{}, proactive bool) {
	if proactive {
		setupContent["proactivity"] = map[string]interface{}{
			"proactive_audio": true,
		}
	}
}

func addTranscriptionConfig(setupContent map[string]interface{}, cfg *SessionConfig) {
	if cfg.OutputTranscription {
		setupContent["output_audio_transcription"] = map[string]interface{}{}
	}
	if cfg.InputTranscription {
		setupContent["input_audio_transcription"] = map[string]interface{}{}
	}
}

func encodeTextTurn(text string, turnComplete bool) ([]byte, error) {
	return json.Marshal(clientContentMsg{
		ClientContent: clientContent{
			Turns: []content{{
				Role:  "user",
				Parts: []textPart{{Text: text}},
			}},
			TurnComplete: turnComplete,
		},
	})
}

func encodeMediaChunk(data []byte, mimeType string) ([]byte, error) {
	return json.Marshal(realtimeInputMsg{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{
				Data:     base64.StdEncoding.EncodeToString(data),
				MimeType: mimeType,
			}},
		},
	})
}

func encodeToolResponse(id string, response map[string]any) ([]byte, error) {
	if response == nil {
		response = map[string]any{}
	}
	return json.Marshal(toolResponseMsg{
		ToolResponse: toolResponse{
			FunctionResponses: []functionResponse{{ID: id, Response: response}},
		},
	})
}
