// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider implements the provider registry: ordered fallback across
// registered backends with per-provider circuit breaking and a bounded
// telemetry ring.
package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ID identifies a provider. IDs are lowercase and validated at registration.
type ID string

var idPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Validate reports whether the id is usable as a registry key.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProviderID)
	}
	if !idPattern.MatchString(string(id)) {
		return fmt.Errorf("%w: %q must match [a-z0-9._-]+", ErrInvalidProviderID, string(id))
	}
	return nil
}

// Kind is the modality a provider serves.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindTTS   Kind = "tts"
	KindSTT   Kind = "stt"
)

// Kinds lists every modality in a stable order.
var Kinds = []Kind{KindText, KindImage, KindTTS, KindSTT}

// Tier orders providers inside a chain. Lower tiers run first.
type Tier int

const (
	TierLocal Tier = iota
	TierCloudBasic
	TierCloudPremium
)

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierCloudBasic:
		return "cloud-basic"
	case TierCloudPremium:
		return "cloud-premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText renders the tier name in JSON payloads.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTier converts a tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return TierLocal, nil
	case "cloud-basic":
		return TierCloudBasic, nil
	case "cloud-premium":
		return TierCloudPremium, nil
	}
	return TierLocal, fmt.Errorf("unknown provider tier %q", s)
}

// Provider describes one backend for a single modality.
type Provider[In, Out any] struct {
	ID    ID
	Label string
	Tier  Tier

	// Available is optional. A false result or an error skips the provider
	// without touching its circuit.
	Available func(ctx context.Context) (bool, error)

	Invoke func(ctx context.Context, in In) (Out, error)
}

// Info is the registration metadata exposed to callers.
type Info struct {
	ID    ID     `json:"id"`
	Kind  Kind   `json:"kind"`
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
}

// TextRequest is a text generation call.
type TextRequest struct {
	Prompt      string
	ModelID     string
	Temperature *float64
	// Timeout overrides the registry call timeout when positive.
	Timeout time.Duration
}

// ImageRequest is an image generation or edit call.
type ImageRequest struct {
	Prompt            string
	NegativePrompt    string
	Width             int
	Height            int
	Steps             int
	SourceImageBase64 string
	Model             string
}

// ImageResult carries generated image bytes.
type ImageResult struct {
	Data []byte
	MIME string
}

// TTSRequest is a speech synthesis call.
type TTSRequest struct {
	Text        string
	Language    string
	VoicePreset string
}

// AudioResult carries synthesized audio bytes.
type AudioResult struct {
	Data []byte
	MIME string
}

// STTRequest is a transcription call.
type STTRequest struct {
	Audio []byte
	MIME  string
}

// Transcription is the result of a transcription call.
type Transcription struct {
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ExecuteOptions controls a single execution.
type ExecuteOptions struct {
	// PreferredID moves the provider to the front of the chain when it is
	// registered for the requested kind.
	PreferredID ID
	// AllowFallback continues past a failed provider.
	AllowFallback bool
}

// DefaultExecuteOptions returns options with fallback enabled.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{AllowFallback: true}
}
