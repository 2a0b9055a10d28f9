package management

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anclora/orchestrator/internal/provider"
	"github.com/gin-gonic/gin"
)

// ListProviders returns the registered providers in execution order.
// GET /v0/management/providers?kind=text
func (h *Handler) ListProviders(c *gin.Context) {
	kinds := provider.Kinds
	if k := strings.TrimSpace(c.Query("kind")); k != "" {
		kinds = []provider.Kind{provider.Kind(strings.ToLower(k))}
	}
	out := make(map[provider.Kind][]provider.Info, len(kinds))
	for _, kind := range kinds {
		out[kind] = h.registry.Providers(kind)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// GetTelemetry returns the most recent provider attempts, oldest first.
func (h *Handler) GetTelemetry(c *gin.Context) {
	entries := h.registry.Telemetry()
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

type circuitView struct {
	ID       provider.ID `json:"id"`
	Open     bool        `json:"open"`
	Failures int         `json:"failures"`
	OpenedAt time.Time   `json:"opened_at,omitzero"`
}

// GetCircuits returns breaker state for providers with recorded failures.
func (h *Handler) GetCircuits(c *gin.Context) {
	cfg := h.registry.CircuitConfig()
	now := time.Now()
	states := h.registry.Circuits()

	out := make([]circuitView, 0, len(states))
	for id, s := range states {
		out = append(out, circuitView{ID: id, Open: s.IsOpen(cfg, now), Failures: s.Failures, OpenedAt: s.OpenedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, gin.H{
		"failure_threshold": cfg.FailureThreshold,
		"cooldown_ms":       cfg.Cooldown.Milliseconds(),
		"circuits":          out,
	})
}

// ResetCircuit clears the breaker of one provider.
// POST /v0/management/circuits/:id/reset
func (h *Handler) ResetCircuit(c *gin.Context) {
	id := provider.ID(c.Param("id"))
	if err := h.registry.ResetCircuit(id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "id": id})
}
