package scoring

import (
	"fmt"

	"github.com/anclora/orchestrator/internal/hardware"
)

// AdaptContextForHardware clamps the requested length to what the host can
// produce comfortably. It returns a modified copy and user-facing notices.
func AdaptContextForHardware(ctx RequestContext, p *hardware.Profile) (RequestContext, []string) {
	limit := hardware.TextCharacterCeiling(p)
	notices := []string{}

	if ctx.MaxChars > limit {
		ram := "?"
		if p != nil {
			ram = fmt.Sprintf("%g", p.RAMGB)
		}
		notices = append(notices, fmt.Sprintf("Max chars limited to %d due to available RAM (%sGB).", limit, ram))
		ctx.MaxChars = limit
	}
	if ctx.MinChars > 0 && ctx.MaxChars > 0 && ctx.MinChars > ctx.MaxChars {
		ctx.MinChars = ctx.MaxChars
	}
	if ctx.MinChars > limit {
		ctx.MinChars = limit
		notices = append(notices, fmt.Sprintf("Min chars adjusted to %d to avoid memory pressure.", ctx.MinChars))
	}
	if ctx.Platforms != nil {
		ctx.Platforms = append([]string(nil), ctx.Platforms...)
	}
	return ctx, notices
}
