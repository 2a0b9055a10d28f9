package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_CircuitTracksConsecutiveFailures drives one provider with an
// arbitrary outcome sequence under a frozen clock.
func TestProperty_CircuitTracksConsecutiveFailures(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("circuit opens after threshold consecutive failures", prop.ForAll(
		func(outcomes []bool) bool {
			clock := newFakeClock()
			r := newTestRegistry(clock)
			calls := 0
			_ = r.RegisterText(Provider[TextRequest, string]{
				ID: "p",
				Invoke: func(context.Context, TextRequest) (string, error) {
					ok := outcomes[calls]
					calls++
					if ok {
						return "ok", nil
					}
					return "", errors.New("boom")
				},
			})

			for range outcomes {
				_, _ = r.ExecuteText(context.Background(), TextRequest{Prompt: "x"}, DefaultExecuteOptions())
			}

			consecutive, expectedCalls := 0, 0
			for _, ok := range outcomes {
				if consecutive >= 3 {
					break
				}
				expectedCalls++
				if ok {
					consecutive = 0
				} else {
					consecutive++
				}
			}

			return calls == expectedCalls && r.Circuits()["p"].Failures == consecutive
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_RingKeepsNewest checks the ring holds the newest min(n, cap) entries.
func TestProperty_RingKeepsNewest(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ring keeps the newest entries in order", prop.ForAll(
		func(capacity, n int) bool {
			ring := NewTelemetryRing(capacity)
			for i := 0; i < n; i++ {
				ring.Add(TelemetryEntry{ProviderID: ID(rune('a' + i%26))})
			}
			snap := ring.Snapshot()
			want := n
			if want > capacity {
				want = capacity
			}
			if len(snap) != want {
				return false
			}
			for i, e := range snap {
				idx := n - want + i
				if e.ProviderID != ID(rune('a'+idx%26)) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
