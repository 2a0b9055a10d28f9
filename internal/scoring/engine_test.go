package scoring

import (
	"testing"

	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_DefaultMetrics(t *testing.T) {
	res := Score("mystery", DefaultMetrics, RequestContext{Mode: ModeBasic, Language: "en"}, hardware.Profile{GPUVRAMGB: 8, RAMGB: 16})

	assert.Equal(t, 39, res.Score)
	assert.Equal(t, TierFallback, res.Tier)
	assert.Equal(t, SubScores{Quality: 0, Speed: 10, VRAMEfficiency: 98, ContextFit: 80, MultilingualSupport: 100}, res.Scores)
	assert.Equal(t, 1000.0, res.EstimatedFirstTokenMs)
	assert.Equal(t, 5.5, res.EstimatedVRAMUsageGB)
	assert.Empty(t, res.Warnings)
}

func TestScore_VRAMDoesNotFit(t *testing.T) {
	m := DefaultMetrics
	m.VRAMRequiredGB = 6

	res := Score("big", m, RequestContext{Mode: ModeBasic, Language: "en"}, hardware.Profile{GPUVRAMGB: 4})
	assert.Equal(t, 0, res.Scores.VRAMEfficiency)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "6.0 GB VRAM")
	assert.Equal(t, 5.5, res.EstimatedVRAMUsageGB)

	fits := Score("big", m, RequestContext{Mode: ModeBasic, Language: "en"}, hardware.Profile{GPUVRAMGB: 4, RAMGB: 8})
	assert.Equal(t, 70, fits.Scores.VRAMEfficiency, "RAM overflow path")
	assert.Greater(t, fits.Score, res.Score)
}

func TestVRAMEfficiency(t *testing.T) {
	tests := []struct {
		name     string
		required float64
		vram     float64
		ram      float64
		want     float64
	}{
		{"sweet spot low", 6, 10, 0, 100},
		{"sweet spot high", 8, 10, 0, 100},
		{"headroom", 3, 10, 0, 92.5},
		{"tight", 9, 10, 0, 90},
		{"overflow", 12, 10, 8, 70},
		{"no fit", 20, 10, 8, 0},
		{"no gpu, no requirement", 0, 0, 0, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vramEfficiency(Metrics{VRAMRequiredGB: tt.required}, hardware.Profile{GPUVRAMGB: tt.vram, RAMGB: tt.ram})
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestQualityScore(t *testing.T) {
	m := Metrics{MMLUScore: 70, MathScore: 90, Specializations: []string{SpecInstructionFollowing}}

	assert.InDelta(t, 70, qualityScore(m, RequestContext{Mode: ModeBasic}), 0.001)
	assert.InDelta(t, 80, qualityScore(m, RequestContext{Mode: ModeIntelligent}), 0.001)
	assert.InDelta(t, 84, qualityScore(m, RequestContext{Mode: ModeIntelligent, DeepThinking: true}), 0.001)
	assert.InDelta(t, 80, qualityScore(m, RequestContext{Mode: ModeVision}), 0.001)
	assert.InDelta(t, 71.4, qualityScore(m, RequestContext{Mode: ModeBasic, Tone: "professional"}), 0.001)
	assert.InDelta(t, 70, qualityScore(m, RequestContext{Mode: "creative"}), 0.001)
}

func TestSpeedScore(t *testing.T) {
	assert.InDelta(t, 100, speedScore(Metrics{TokensPerSecond: 120}, RequestContext{}), 0.001)
	assert.InDelta(t, 0, speedScore(Metrics{TokensPerSecond: 0.5}, RequestContext{}), 0.001)
	assert.InDelta(t, 50, speedScore(Metrics{TokensPerSecond: 45.5}, RequestContext{}), 0.001)
	assert.InDelta(t, 55, speedScore(Metrics{TokensPerSecond: 45.5}, RequestContext{PreferSpeed: true}), 0.001)

	slow := speedScore(Metrics{TokensPerSecond: 10}, RequestContext{MaxChars: 1000})
	assert.InDelta(t, 9/89.0*100*0.9, slow, 0.001)
}

func TestContextFit(t *testing.T) {
	reasoning := Metrics{ContextWindowSize: 2048, Specializations: []string{SpecReasoning, SpecInstructionFollowing}}

	assert.InDelta(t, 80, contextFit(Metrics{ContextWindowSize: 8192}, RequestContext{}), 0.001)
	assert.InDelta(t, 60, contextFit(Metrics{ContextWindowSize: 2048}, RequestContext{MaxChars: 2000}), 0.001)
	assert.InDelta(t, 95, contextFit(reasoning, RequestContext{Mode: ModeBasic, DeepThinking: true}), 0.001)
}

func TestMultilingualSupport(t *testing.T) {
	m := Metrics{Languages: []string{"en", "pt"}}
	assert.InDelta(t, 100, multilingualSupport(m, RequestContext{Language: "en"}), 0.001)
	assert.InDelta(t, 100, multilingualSupport(m, RequestContext{Language: "pt"}), 0.001)
	assert.InDelta(t, 70, multilingualSupport(m, RequestContext{Language: "es"}), 0.001)
	assert.InDelta(t, 40, multilingualSupport(m, RequestContext{Language: "ja"}), 0.001)
}

func TestTierAndReason(t *testing.T) {
	reasoner := Metrics{Specializations: []string{SpecReasoning}, Languages: []string{"es"}}

	tier, reason := tierAndReason(85, RequestContext{Language: "en"}, Metrics{})
	assert.Equal(t, TierPrimary, tier)
	assert.Contains(t, reason, "quality")

	tier, reason = tierAndReason(75, RequestContext{Language: "en", PreferSpeed: true}, Metrics{})
	assert.Equal(t, TierAlternative, tier)
	assert.Contains(t, reason, "quality")

	tier, reason = tierAndReason(40, RequestContext{Language: "en", DeepThinking: true}, reasoner)
	assert.Equal(t, TierFallback, tier)
	assert.Contains(t, reason, "reasoning")

	_, reason = tierAndReason(90, RequestContext{Language: "es", DeepThinking: true}, reasoner)
	assert.Equal(t, "Native support for ES.", reason)
}

func TestRank(t *testing.T) {
	e := NewEngine("llama2", nil)
	ctx := RequestContext{Mode: ModeIntelligent, Language: "es", MaxChars: 800}
	hw := hardware.Profile{GPUVRAMGB: 12, RAMGB: 32, HasGPU: true}

	r := e.Rank(ctx, hw, []string{"auto", "", "llama2", "qwen2.5-7b", "phi4", "mistral", "llama3.2", "llama2"})
	require.Len(t, r.AllRanked, 5)
	assert.Equal(t, r.AllRanked[0], r.Primary)
	assert.Len(t, r.Alternatives, 2)
	assert.Len(t, r.Fallbacks, 2)
	for i := 1; i < len(r.AllRanked); i++ {
		assert.GreaterOrEqual(t, r.AllRanked[i-1].Score, r.AllRanked[i].Score)
	}
	assert.Equal(t, "llama2", r.AllRanked[4].ModelName)
}

func TestRank_EmptyPool(t *testing.T) {
	e := NewEngine("mistral", nil)
	r := e.Rank(RequestContext{Mode: ModeBasic, Language: "en"}, hardware.Profile{}, []string{"auto", " "})

	assert.Equal(t, "mistral", r.Primary.ModelName)
	assert.Len(t, r.AllRanked, 1)
	assert.Empty(t, r.Alternatives)
	assert.Empty(t, r.Fallbacks)
	assert.Equal(t, 1000.0, r.Primary.EstimatedFirstTokenMs, "default metrics are used")
}

type fastOverlay struct{}

func (fastOverlay) Overlay(modelID string, m Metrics) Metrics {
	if modelID == "llama2" {
		m.TokensPerSecond = 90
	}
	return m
}

func TestRank_Overlay(t *testing.T) {
	ctx := RequestContext{Mode: ModeBasic, Language: "en"}
	hw := hardware.Profile{GPUVRAMGB: 8}

	plain := NewEngine("", nil).Rank(ctx, hw, []string{"llama2"})
	fast := NewEngine("", fastOverlay{}).Rank(ctx, hw, []string{"llama2"})
	assert.Equal(t, 100, fast.Primary.Scores.Speed)
	assert.Greater(t, fast.Primary.Score, plain.Primary.Score)
}

func TestMetricsFor_UnknownModelInfersLanguages(t *testing.T) {
	m := NewEngine("", nil).MetricsFor("qwen3:32b")
	assert.Equal(t, DefaultMetrics.TokensPerSecond, m.TokensPerSecond)
	assert.Contains(t, m.Languages, "zh")
}
