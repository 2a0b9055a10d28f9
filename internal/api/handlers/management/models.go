package management

import (
	"net/http"
	"strings"
	"time"

	"github.com/anclora/orchestrator/internal/benchmark"
	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/anclora/orchestrator/internal/logging"
	"github.com/anclora/orchestrator/internal/scoring"
	"github.com/gin-gonic/gin"
)

// RankRequest is the body of POST /v0/management/models/rank.
type RankRequest struct {
	Context    scoring.RequestContext `json:"context"`
	Candidates []string               `json:"candidates,omitempty"`
	// Remember stores the primary model as the decision for the mode.
	Remember bool `json:"remember,omitempty"`
}

// RankModels scores candidate models for a request context. Without
// explicit candidates the locally installed models are ranked.
func (h *Handler) RankModels(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Context.Mode == "" {
		req.Context.Mode = scoring.ModeBasic
	}

	candidates := req.Candidates
	if len(candidates) == 0 && h.models != nil {
		installed, err := h.models.ListModels(c.Request.Context())
		if err != nil {
			logging.Entry(c).Warnf("listing installed models failed, ranking the default model only: %v", err)
		}
		candidates = installed
	}

	hw := h.hardware.Current()
	shaped, adjustments := scoring.AdaptContextForHardware(req.Context, hw)
	var profile hardware.Profile
	if hw != nil {
		profile = *hw
	}
	ranking := h.engine.Rank(shaped, profile, candidates)

	if req.Remember && h.decisions != nil {
		if err := h.decisions.Save(c.Request.Context(), string(shaped.Mode), ranking.Primary.ModelName); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ranking":     ranking,
		"context":     shaped,
		"adjustments": adjustments,
	})
}

// ListBenchmarks returns every stored benchmark with its freshness.
func (h *Handler) ListBenchmarks(c *gin.Context) {
	if h.benchmarks == nil {
		unavailable(c, "benchmark cache")
		return
	}
	all, err := h.benchmarks.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ttl, now := h.benchmarks.TTL(), time.Now()
	type view struct {
		benchmark.Result
		Fresh bool `json:"fresh"`
	}
	out := make(map[string]view, len(all))
	for id, r := range all {
		out[id] = view{Result: r, Fresh: benchmark.IsFresh(r, ttl, now)}
	}
	c.JSON(http.StatusOK, gin.H{"benchmarks": out, "ttl_ms": ttl.Milliseconds()})
}

// RunBenchmark measures one model now, ignoring any fresh result.
// POST /v0/management/benchmarks/run/:model
func (h *Handler) RunBenchmark(c *gin.Context) {
	if h.runner == nil {
		unavailable(c, "benchmark runner")
		return
	}
	model := strings.TrimSpace(c.Param("model"))
	if model == "" {
		badRequest(c, "model is required")
		return
	}
	res, err := h.runner.Run(c.Request.Context(), model)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RefreshBenchmarks measures every listed model without a fresh result.
// Without a body the installed models are used.
func (h *Handler) RefreshBenchmarks(c *gin.Context) {
	if h.runner == nil {
		unavailable(c, "benchmark runner")
		return
	}
	var req struct {
		Models []string `json:"models"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if len(req.Models) == 0 && h.models != nil {
		installed, err := h.models.ListModels(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		req.Models = installed
	}
	results, err := h.runner.RefreshStale(c.Request.Context(), req.Models)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": results, "count": len(results)})
}

// ListDecisions returns the remembered model per mode.
func (h *Handler) ListDecisions(c *gin.Context) {
	if h.decisions == nil {
		unavailable(c, "decision store")
		return
	}
	all, err := h.decisions.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": all})
}

// SaveDecision records the model chosen for a mode.
// PUT /v0/management/decisions/:mode
func (h *Handler) SaveDecision(c *gin.Context) {
	if h.decisions == nil {
		unavailable(c, "decision store")
		return
	}
	var req struct {
		ModelID string `json:"model_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	mode := strings.TrimSpace(c.Param("mode"))
	if mode == "" || strings.TrimSpace(req.ModelID) == "" {
		badRequest(c, "mode and model_id are required")
		return
	}
	if err := h.decisions.Save(c.Request.Context(), mode, req.ModelID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "model_id": req.ModelID})
}
