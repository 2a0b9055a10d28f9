// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package management

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/anclora/orchestrator/internal/queue"
	"github.com/anclora/orchestrator/internal/runtime/executor"
	"github.com/gin-gonic/gin"
)

// maxAudioUpload bounds transcription uploads.
const maxAudioUpload = 64 << 20

type routing struct {
	PreferredProvider string `json:"preferred_provider,omitempty"`
	AllowFallback     *bool  `json:"allow_fallback,omitempty"`
}

func (r routing) options() provider.ExecuteOptions {
	opts := provider.DefaultExecuteOptions()
	opts.PreferredID = provider.ID(strings.TrimSpace(r.PreferredProvider))
	if r.AllowFallback != nil {
		opts.AllowFallback = *r.AllowFallback
	}
	return opts
}

// TextRequest is the body of POST /v1/text.
type TextRequest struct {
	Prompt      string   `json:"prompt"`
	ModelID     string   `json:"model_id,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TimeoutMs   int64    `json:"timeout_ms,omitempty"`
	routing
}

// ImageRequest is the body of POST /v1/image.
type ImageRequest struct {
	Prompt            string `json:"prompt"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	Steps             int    `json:"steps,omitempty"`
	SourceImageBase64 string `json:"source_image_base64,omitempty"`
	Model             string `json:"model,omitempty"`
	routing
}

// SpeechRequest is the body of POST /v1/tts.
type SpeechRequest struct {
	Text        string `json:"text"`
	Language    string `json:"language,omitempty"`
	VoicePreset string `json:"voice_preset,omitempty"`
	routing
}

// checkHardware rejects operations the detected host cannot run.
func (h *Handler) checkHardware(c *gin.Context, op hardware.Operation) bool {
	v := hardware.ValidateOperation(op, h.hardware.Current())
	if !v.Supported {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported_hardware", "message": v.Message})
		return false
	}
	return true
}

// GenerateText runs a text request through the provider chain. While the
// network is down the call waits in the offline queue.
func (h *Handler) GenerateText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.checkHardware(c, hardware.OpText) {
		return
	}

	in := provider.TextRequest{
		Prompt:      req.Prompt,
		ModelID:     strings.TrimSpace(req.ModelID),
		Temperature: req.Temperature,
		Timeout:     time.Duration(req.TimeoutMs) * time.Millisecond,
	}
	opts := req.options()
	out, err := queue.RunOrEnqueue(c.Request.Context(), h.queue, "text", func(ctx context.Context) (string, error) {
		return h.registry.ExecuteText(ctx, in, opts)
	}, h.maxAttempts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": out, "model_id": in.ModelID})
}

// GenerateImage renders an image and returns its bytes. Once hardware has
// been detected, dimensions are capped to what the GPU supports.
func (h *Handler) GenerateImage(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.checkHardware(c, hardware.OpImage) {
		return
	}

	width, height := req.Width, req.Height
	if hw := h.hardware.Current(); hw != nil {
		maxW, maxH := hardware.ImageDimensionLimit(hw)
		width, height = capDimension(width, maxW), capDimension(height, maxH)
	}
	in := provider.ImageRequest{
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Width:             width,
		Height:            height,
		Steps:             req.Steps,
		SourceImageBase64: req.SourceImageBase64,
		Model:             req.Model,
	}
	opts := req.options()
	res, err := queue.RunOrEnqueue(c.Request.Context(), h.queue, "image", func(ctx context.Context) (provider.ImageResult, error) {
		return h.registry.ExecuteImage(ctx, in, opts)
	}, h.maxAttempts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, res.MIME, res.Data)
}

func capDimension(v, limit int) int {
	if v <= 0 {
		v = executor.DefaultImageSize
	}
	return min(v, limit)
}

// SynthesizeSpeech converts text to audio.
func (h *Handler) SynthesizeSpeech(c *gin.Context) {
	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.checkHardware(c, hardware.OpTTS) {
		return
	}

	in := provider.TTSRequest{Text: req.Text, Language: req.Language, VoicePreset: req.VoicePreset}
	opts := req.options()
	res, err := queue.RunOrEnqueue(c.Request.Context(), h.queue, "tts", func(ctx context.Context) (provider.AudioResult, error) {
		return h.registry.ExecuteTTS(ctx, in, opts)
	}, h.maxAttempts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, res.MIME, res.Data)
}

// Transcribe reads raw audio from the body; its Content-Type is forwarded.
// Routing options come from the preferred_provider and allow_fallback query
// parameters.
func (h *Handler) Transcribe(c *gin.Context) {
	if !h.checkHardware(c, hardware.OpSTT) {
		return
	}
	audio, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAudioUpload))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	r := routing{PreferredProvider: c.Query("preferred_provider")}
	if v := c.Query("allow_fallback"); v != "" {
		allow := v == "true" || v == "1"
		r.AllowFallback = &allow
	}
	in := provider.STTRequest{Audio: audio, MIME: c.ContentType()}
	opts := r.options()
	res, err := queue.RunOrEnqueue(c.Request.Context(), h.queue, "stt", func(ctx context.Context) (provider.Transcription, error) {
		return h.registry.ExecuteSTT(ctx, in, opts)
	}, h.maxAttempts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
