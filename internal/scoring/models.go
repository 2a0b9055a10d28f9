package scoring

import (
	"regexp"
	"strings"
)

var modelIDMapper = map[string]string{
	"qwen2.5-7b":  "qwen2.5:7b",
	"qwen2.5-14b": "qwen2.5:14b",
	"mistral-7b":  "mistral:latest",
	"mistral":     "mistral:latest",
	"llama3.2":    "llama3.2:latest",
	"llama3":      "llama3.2:latest",
	"llama2":      "llama2:latest",
	"orca-mini":   "orca-mini:latest",
	"phi":         "phi:latest",
	"phi3":        "phi3:latest",
	"phi4":        "phi4:14b",
	"gemma":       "gemma3:4b",
}

// CanonicalModelName maps a short model id to the name Ollama serves it under.
// Unknown ids are returned lowercased and trimmed.
func CanonicalModelName(id string) string {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if mapped, ok := modelIDMapper[normalized]; ok {
		return mapped
	}
	return normalized
}

// ModelTier is the deployment class of a model.
type ModelTier string

const (
	ModelTierLocalPremium  ModelTier = "local-premium"
	ModelTierLocalBalanced ModelTier = "local-balanced"
	ModelTierLocalLight    ModelTier = "local-light"
	ModelTierCloud         ModelTier = "cloud"
)

var cloudModelPattern = regexp.MustCompile(`gpt|claude|openai|groq|gemini|sonnet`)

var modelTierMap = map[string]ModelTier{
	"phi4:14b":                            ModelTierLocalPremium,
	"deepseek-r1:8b":                      ModelTierLocalPremium,
	"qwen2.5:14b":                         ModelTierLocalPremium,
	"qwen2.5:7b":                          ModelTierLocalBalanced,
	"qwen2.5:7b-instruct":                 ModelTierLocalBalanced,
	"qwen2.5:7b-instruct-q4_k_m":          ModelTierLocalLight,
	"mistral:latest":                      ModelTierLocalBalanced,
	"phi3:latest":                         ModelTierLocalLight,
	"phi3:3.8b-mini-128k-instruct-q4_k_m": ModelTierLocalLight,
	"llama3.2:latest":                     ModelTierLocalLight,
	"llama2:latest":                       ModelTierLocalLight,
	"gemma3:4b":                           ModelTierLocalLight,
	"gemma3:1b":                           ModelTierLocalLight,
	"llava:latest":                        ModelTierLocalPremium,
	"qwen3-vl:8b":                         ModelTierLocalPremium,
}

// ResolveModelTier classifies a model id. Empty and unknown ids are balanced.
func ResolveModelTier(modelID string) ModelTier {
	normalized := strings.ToLower(strings.TrimSpace(modelID))
	if normalized == "" {
		return ModelTierLocalBalanced
	}
	if cloudModelPattern.MatchString(normalized) {
		return ModelTierCloud
	}
	if tier, ok := modelTierMap[normalized]; ok {
		return tier
	}
	return ModelTierLocalBalanced
}

var (
	baseLanguages     = []string{"es", "en", "fr", "de", "pt", "it"}
	extendedLanguages = append(append([]string{}, baseLanguages...), "ru")
	cjkLanguages      = append(append([]string{}, extendedLanguages...), "ja", "zh")
)

var languageFamilies = []struct {
	keywords  []string
	languages []string
}{
	{[]string{"llama2", "llama3", "llama3.2", "mixtral", "mistral", "gemma3", "orca", "phi"}, extendedLanguages},
	{[]string{"qwen", "yi", "deepseek", "command"}, cjkLanguages},
}

// InferLanguages guesses the languages a model family writes well.
func InferLanguages(modelID string) []string {
	normalized := strings.ToLower(strings.SplitN(modelID, ":", 2)[0])
	for _, family := range languageFamilies {
		for _, kw := range family.keywords {
			if strings.Contains(normalized, kw) {
				return append([]string(nil), family.languages...)
			}
		}
	}
	return append([]string(nil), baseLanguages...)
}

var relatedLanguages = map[string][]string{
	"es": {"pt", "fr", "it"},
	"zh": {"ja", "th"},
	"hi": {"bn", "ur"},
}
