package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Provider ids of the media backend adapters.
const (
	ImageBackendID provider.ID = "fastapi-sdxl"
	TTSBackendID   provider.ID = "fastapi-tts"
	STTBackendID   provider.ID = "fastapi-stt"
)

// Image request defaults.
const (
	DefaultImageSize  = 1024
	DefaultImageSteps = 4
	DefaultTTSModel   = "kokoro"
	DefaultTTSLang    = "es"
)

// Backend talks to the media backend (image, speech and transcription).
type Backend struct {
	baseURL string
	client  *http.Client
	limits  config.LimitsConfig
}

// NewBackend creates a media backend client rooted at baseURL.
func NewBackend(baseURL string, client *http.Client, limits config.LimitsConfig) *Backend {
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, limits: limits}
}

func clamp(v, def, limit int) int {
	if v <= 0 {
		v = def
	}
	if limit > 0 && v > limit {
		v = limit
	}
	return v
}

// GenerateImage renders req. Width, height and steps default to 1024, 1024
// and 4 and never exceed the configured limits.
func (b *Backend) GenerateImage(ctx context.Context, req provider.ImageRequest) (provider.ImageResult, error) {
	body := []byte(`{}`)
	if req.Model != "" {
		body, _ = sjson.SetBytes(body, "model", req.Model)
	}
	body, _ = sjson.SetBytes(body, "prompt", req.Prompt)
	body, _ = sjson.SetBytes(body, "negative_prompt", req.NegativePrompt)
	body, _ = sjson.SetBytes(body, "width", clamp(req.Width, DefaultImageSize, b.limits.ImageMaxWidth))
	body, _ = sjson.SetBytes(body, "height", clamp(req.Height, DefaultImageSize, b.limits.ImageMaxHeight))
	body, _ = sjson.SetBytes(body, "num_inference_steps", clamp(req.Steps, DefaultImageSteps, b.limits.ImageMaxSteps))
	if req.SourceImageBase64 != "" {
		body, _ = sjson.SetBytes(body, "image", req.SourceImageBase64)
	}

	data, ct, err := post(ctx, b.client, "Backend image", b.baseURL+"/api/image", "application/json", body, nil)
	if err != nil {
		return provider.ImageResult{}, err
	}
	return provider.ImageResult{Data: data, MIME: mediaType(ct, "image/png")}, nil
}

// Synthesize converts text to speech. Text longer than the configured
// character limit is rejected before any request is made.
func (b *Backend) Synthesize(ctx context.Context, req provider.TTSRequest) (provider.AudioResult, error) {
	if limit := b.limits.TTSMaxChars; limit > 0 {
		if n := utf8.RuneCountInString(req.Text); n > limit {
			return provider.AudioResult{}, &provider.ValidationError{
				Field:  "text",
				Reason: fmt.Sprintf("exceeds %d characters (%d)", limit, n),
			}
		}
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = DefaultTTSLang
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", DefaultTTSModel)
	body, _ = sjson.SetBytes(body, "inputs", req.Text)
	body, _ = sjson.SetBytes(body, "language", lang)
	if req.VoicePreset != "" {
		body, _ = sjson.SetBytes(body, "voice_preset", req.VoicePreset)
	}

	data, ct, err := post(ctx, b.client, "Backend TTS", b.baseURL+"/api/tts", "application/json", body, nil)
	if err != nil {
		return provider.AudioResult{}, err
	}
	return provider.AudioResult{Data: data, MIME: mediaType(ct, "audio/wav")}, nil
}

// Transcribe uploads raw audio and reads back the transcript.
func (b *Backend) Transcribe(ctx context.Context, req provider.STTRequest) (provider.Transcription, error) {
	mime := strings.TrimSpace(req.MIME)
	if mime == "" {
		mime = "audio/wav"
	}
	data, _, err := post(ctx, b.client, "Backend STT", b.baseURL+"/api/stt", mime, req.Audio, nil)
	if err != nil {
		return provider.Transcription{}, err
	}

	parsed := gjson.ParseBytes(data)
	first := func(paths ...string) gjson.Result {
		for _, p := range paths {
			if r := parsed.Get(p); r.Exists() {
				return r
			}
		}
		return gjson.Result{}
	}
	return provider.Transcription{
		Text:       strings.TrimSpace(first("text", "transcript").String()),
		Language:   strings.ToLower(first("language", "detected_language").String()),
		Confidence: first("probability", "confidence").Float(),
	}, nil
}

// ImageProvider adapts GenerateImage for registration.
func (b *Backend) ImageProvider() provider.Provider[provider.ImageRequest, provider.ImageResult] {
	return provider.Provider[provider.ImageRequest, provider.ImageResult]{
		ID:     ImageBackendID,
		Label:  "Backend SDXL Lightning",
		Tier:   provider.TierLocal,
		Invoke: b.GenerateImage,
	}
}

// TTSProvider adapts Synthesize for registration.
func (b *Backend) TTSProvider() provider.Provider[provider.TTSRequest, provider.AudioResult] {
	return provider.Provider[provider.TTSRequest, provider.AudioResult]{
		ID:     TTSBackendID,
		Label:  "Backend Kokoro TTS",
		Tier:   provider.TierLocal,
		Invoke: b.Synthesize,
	}
}

// STTProvider adapts Transcribe for registration.
func (b *Backend) STTProvider() provider.Provider[provider.STTRequest, provider.Transcription] {
	return provider.Provider[provider.STTRequest, provider.Transcription]{
		ID:     STTBackendID,
		Label:  "Backend Faster-Whisper",
		Tier:   provider.TierLocal,
		Invoke: b.Transcribe,
	}
}
