package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/anclora/orchestrator/internal/hardware"
)

const (
	minTokensPerSecond = 1.0
	maxTokensPerSecond = 90.0
)

type weights struct {
	quality, speed, vram, context, multilingual float64
}

func weightsFor(ctx RequestContext) weights {
	w := weights{quality: 0.35, speed: 0.25, vram: 0.20, context: 0.15, multilingual: 0.05}
	if ctx.PreferSpeed {
		w.speed = 0.35
		w.quality = 0.30
	}
	if ctx.PreferQuality {
		w.quality = 0.45
		w.speed = 0.20
	}
	return w
}

// Engine scores candidate models. The zero value is not usable; use NewEngine.
type Engine struct {
	defaultModel string
	overlay      MetricsOverlay
}

// NewEngine creates an engine that falls back to defaultModel when a
// ranking would otherwise be empty. overlay may be nil.
func NewEngine(defaultModel string, overlay MetricsOverlay) *Engine {
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = "llama2"
	}
	return &Engine{defaultModel: defaultModel, overlay: overlay}
}

// MetricsFor returns the metrics used to score a model: catalog numbers, or
// DefaultMetrics with inferred languages, with the overlay applied last.
func (e *Engine) MetricsFor(modelID string) Metrics {
	m, ok := LookupMetrics(modelID)
	if !ok {
		m = DefaultMetrics
		m.Languages = InferLanguages(modelID)
	}
	if e.overlay != nil {
		m = e.overlay.Overlay(modelID, m)
	}
	return m
}

// Rank scores every candidate and orders them by descending score. Ties keep
// candidate order. Empty and "auto" candidates are ignored; when nothing is
// left the default model is scored with DefaultMetrics.
func (e *Engine) Rank(ctx RequestContext, hw hardware.Profile, candidates []string) Ranking {
	seen := make(map[string]struct{}, len(candidates))
	var scored []Result
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || c == "auto" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		scored = append(scored, Score(c, e.MetricsFor(c), ctx, hw))
	}

	if len(scored) == 0 {
		fallback := Score(e.defaultModel, DefaultMetrics, ctx, hw)
		return Ranking{
			Primary:      fallback,
			Alternatives: []Result{},
			Fallbacks:    []Result{},
			AllRanked:    []Result{fallback},
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	r := Ranking{Primary: scored[0], AllRanked: scored}
	end := min(3, len(scored))
	r.Alternatives = append([]Result{}, scored[1:end]...)
	r.Fallbacks = append([]Result{}, scored[end:]...)
	return r
}

// Score computes the result for one model.
func Score(modelName string, m Metrics, ctx RequestContext, hw hardware.Profile) Result {
	quality := qualityScore(m, ctx)
	speed := speedScore(m, ctx)
	vram := vramEfficiency(m, hw)
	fit := contextFit(m, ctx)
	multi := multilingualSupport(m, ctx)

	w := weightsFor(ctx)
	total := quality*w.quality + speed*w.speed + vram*w.vram + fit*w.context + multi*w.multilingual
	score := capped(total)

	tier, reason := tierAndReason(score, ctx, m)

	return Result{
		ModelName: modelName,
		Score:     score,
		Scores: SubScores{
			Quality:             capped(quality),
			Speed:               capped(speed),
			VRAMEfficiency:      capped(vram),
			ContextFit:          capped(fit),
			MultilingualSupport: capped(multi),
		},
		Tier:                  tier,
		Reason:                reason,
		EstimatedFirstTokenMs: m.FirstTokenLatencyMs,
		EstimatedVRAMUsageGB:  math.Min(m.VRAMRequiredGB, hw.GPUVRAMGB) + 1.5,
		Warnings:              warnings(m, ctx, hw),
	}
}

func capped(v float64) int {
	return int(math.Min(math.Round(v), 100))
}

func qualityScore(m Metrics, ctx RequestContext) float64 {
	var base float64
	switch ctx.Mode {
	case ModeIntelligent:
		base = (m.MMLUScore + m.MathScore) / 2
		if ctx.DeepThinking {
			base = math.Min(base*1.05, 100)
		}
	case ModeVision:
		base = 80
	default:
		base = m.MMLUScore
	}
	if ctx.Tone == "professional" && m.HasSpecialization(SpecInstructionFollowing) {
		base *= 1.02
	}
	return math.Min(base, 100)
}

func speedScore(m Metrics, ctx RequestContext) float64 {
	score := (m.TokensPerSecond - minTokensPerSecond) / (maxTokensPerSecond - minTokensPerSecond) * 100
	score = math.Max(0, math.Min(100, score))
	if ctx.PreferSpeed {
		score = math.Min(score*1.1, 100)
	}
	if ctx.MaxChars > 500 && m.TokensPerSecond < 20 {
		score *= 0.9
	}
	return math.Min(score, 100)
}

func vramEfficiency(m Metrics, hw hardware.Profile) float64 {
	required, available := m.VRAMRequiredGB, hw.GPUVRAMGB
	if required <= available {
		if available <= 0 {
			// Only a model needing no VRAM fits a GPU-less profile.
			return 90
		}
		ratio := required / available
		switch {
		case ratio >= 0.6 && ratio <= 0.8:
			return 100
		case ratio < 0.6:
			return 85 + ratio/0.6*15
		default:
			return 90
		}
	}
	if required <= available+hw.RAMGB/2 {
		return 70
	}
	return 0
}

func contextFit(m Metrics, ctx RequestContext) float64 {
	score := 80.0
	budget := ctx.MaxChars
	if budget <= 0 {
		budget = 300
	}
	if float64(m.ContextWindowSize) < float64(budget)*1.5 {
		score -= 20
	}
	if ctx.DeepThinking && m.HasSpecialization(SpecReasoning) {
		score += 10
	}
	if ctx.Mode == ModeBasic && m.HasSpecialization(SpecInstructionFollowing) {
		score += 5
	}
	return math.Max(0, math.Min(100, score))
}

func multilingualSupport(m Metrics, ctx RequestContext) float64 {
	if ctx.Language == "en" || m.SupportsLanguage(ctx.Language) {
		return 100
	}
	for _, related := range relatedLanguages[ctx.Language] {
		if m.SupportsLanguage(related) {
			return 70
		}
	}
	return 40
}

func tierAndReason(score int, ctx RequestContext, m Metrics) (Tier, string) {
	var tier Tier
	var reason string
	switch {
	case score >= 80:
		tier = TierPrimary
		if ctx.PreferSpeed {
			reason = "Excellent balance of speed for this request."
		} else {
			reason = "Excellent balance of quality for this request."
		}
	case score >= 70:
		tier = TierAlternative
		if ctx.PreferSpeed {
			reason = "Viable alternative trading off quality."
		} else {
			reason = "Viable alternative trading off speed."
		}
	default:
		tier = TierFallback
		reason = "Emergency option when the main models are unavailable."
	}

	// Specific reasons win over the generic ones; native language wins last.
	if ctx.DeepThinking && m.HasSpecialization(SpecReasoning) {
		reason = "Best support for deep thinking and complex reasoning."
	}
	if ctx.Language != "" && ctx.Language != "en" && m.SupportsLanguage(ctx.Language) {
		reason = fmt.Sprintf("Native support for %s.", strings.ToUpper(ctx.Language))
	}
	return tier, reason
}

func warnings(m Metrics, ctx RequestContext, hw hardware.Profile) []string {
	out := []string{}
	if m.VRAMRequiredGB > hw.GPUVRAMGB*0.8 {
		out = append(out, fmt.Sprintf(
			"Model requires %.1f GB VRAM, %.1f GB available. Use offloading if needed.",
			m.VRAMRequiredGB, hw.GPUVRAMGB))
	}
	if !ctx.DeepThinking && m.VRAMRequiredGB+4 > hw.GPUVRAMGB {
		out = append(out, "Limited VRAM for this model on regular tasks. Consider a lighter model.")
	}
	return out
}
