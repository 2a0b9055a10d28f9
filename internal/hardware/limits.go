package hardware

import "fmt"

// TextCharacterCeiling returns the largest output length the host can handle
// comfortably. A nil profile is treated as 0GB RAM.
func TextCharacterCeiling(p *Profile) int {
	var ram float64
	if p != nil {
		ram = p.RAMGB
	}
	switch {
	case ram >= 32:
		return 4000
	case ram >= 24:
		return 2800
	case ram >= 16:
		return 2000
	case ram >= 12:
		return 1400
	default:
		return 900
	}
}

// ImageDimensionLimit returns the largest image size for the host GPU.
func ImageDimensionLimit(p *Profile) (width, height int) {
	if p == nil || !p.HasGPU || p.GPUVRAMGB < 4 {
		return 768, 768
	}
	switch {
	case p.GPUVRAMGB < 6:
		return 896, 896
	case p.GPUVRAMGB < 8:
		return 1024, 1024
	default:
		return 1280, 1280
	}
}

// Operation is a workload whose hardware support can be validated.
type Operation string

const (
	OpText  Operation = "text"
	OpImage Operation = "image"
	OpTTS   Operation = "tts"
	OpSTT   Operation = "stt"
)

// Validation is the outcome of ValidateOperation.
type Validation struct {
	Supported bool   `json:"supported"`
	Message   string `json:"message,omitempty"`
}

// ValidateOperation reports whether the host can run op. Without a profile
// every operation is assumed supported.
func ValidateOperation(op Operation, p *Profile) Validation {
	if p == nil {
		return Validation{Supported: true}
	}
	switch op {
	case OpImage:
		if (p.HasGPU && p.GPUVRAMGB >= 4) || p.RAMGB >= 16 {
			return Validation{Supported: true}
		}
		return Validation{Message: fmt.Sprintf(
			"image generation requires 4GB VRAM (GPU) or 16GB RAM; this system has %.1fGB VRAM and %.1fGB RAM",
			p.GPUVRAMGB, p.RAMGB)}
	case OpTTS:
		if p.RAMGB >= 8 {
			return Validation{Supported: true}
		}
		return Validation{Message: fmt.Sprintf("text-to-speech requires at least 8GB RAM; this system has %.1fGB", p.RAMGB)}
	default:
		return Validation{Supported: true}
	}
}
