// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scoring ranks candidate models against a request context and the
// host hardware profile.
package scoring

// Mode is the content generation mode of a request.
type Mode string

const (
	ModeBasic       Mode = "basic"
	ModeIntelligent Mode = "intelligent"
	ModeVision      Mode = "vision"
)

// Specialization tags used by the scoring rules.
const (
	SpecInstructionFollowing = "instruction-following"
	SpecReasoning            = "reasoning"
	SpecCode                 = "code"
	SpecMultilingual         = "multilingual"
	SpecVision               = "vision"
)

// Metrics are the static performance numbers of a model.
type Metrics struct {
	MMLUScore           float64  `json:"mmlu_score,omitempty"`
	HumanEvalScore      float64  `json:"humaneval_score,omitempty"`
	MathScore           float64  `json:"math_score,omitempty"`
	TokensPerSecond     float64  `json:"tokens_per_second"`
	FirstTokenLatencyMs float64  `json:"first_token_latency_ms"`
	AvgTokenLatencyMs   float64  `json:"avg_token_latency_ms"`
	VRAMRequiredGB      float64  `json:"vram_required_gb"`
	RAMRequiredGB       float64  `json:"ram_required_gb,omitempty"`
	ContextWindowSize   int      `json:"context_window_size"`
	Languages           []string `json:"languages,omitempty"`
	Specializations     []string `json:"specializations,omitempty"`
	QualityRating       float64  `json:"quality_rating,omitempty"`
}

// HasSpecialization reports whether the model carries the tag.
func (m Metrics) HasSpecialization(tag string) bool {
	for _, s := range m.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// SupportsLanguage reports whether the model lists the language.
func (m Metrics) SupportsLanguage(lang string) bool {
	for _, l := range m.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// RequestContext captures what the user asked for.
type RequestContext struct {
	Mode          Mode     `json:"mode"`
	Language      string   `json:"language"`
	Platforms     []string `json:"platforms,omitempty"`
	Tone          string   `json:"tone,omitempty"`
	ImprovePrompt bool     `json:"improve_prompt,omitempty"`
	DeepThinking  bool     `json:"deep_thinking,omitempty"`
	IncludeImage  bool     `json:"include_image,omitempty"`
	MinChars      int      `json:"min_chars,omitempty"`
	MaxChars      int      `json:"max_chars,omitempty"`
	PreferSpeed   bool     `json:"prefer_speed,omitempty"`
	PreferQuality bool     `json:"prefer_quality,omitempty"`
}

// Tier classifies a scored model.
type Tier string

const (
	TierPrimary     Tier = "primary"
	TierAlternative Tier = "alternative"
	TierFallback    Tier = "fallback"
)

// SubScores are the rounded per-factor scores, each in [0, 100].
type SubScores struct {
	Quality             int `json:"quality"`
	Speed               int `json:"speed"`
	VRAMEfficiency      int `json:"vram_efficiency"`
	ContextFit          int `json:"context_fit"`
	MultilingualSupport int `json:"multilingual_support"`
}

// Result is the score of one candidate model.
type Result struct {
	ModelName             string    `json:"model_name"`
	Score                 int       `json:"score"`
	Scores                SubScores `json:"scores"`
	Tier                  Tier      `json:"tier"`
	Reason                string    `json:"reason"`
	EstimatedFirstTokenMs float64   `json:"estimated_first_token_ms"`
	EstimatedVRAMUsageGB  float64   `json:"estimated_vram_usage_gb"`
	Warnings              []string  `json:"warnings"`
}

// Ranking orders scored candidates. Primary is always set.
type Ranking struct {
	Primary      Result   `json:"primary"`
	Alternatives []Result `json:"alternatives"`
	Fallbacks    []Result `json:"fallbacks"`
	AllRanked    []Result `json:"all_ranked"`
}

// MetricsOverlay lets measured numbers replace catalog values.
type MetricsOverlay interface {
	Overlay(modelID string, m Metrics) Metrics
}
