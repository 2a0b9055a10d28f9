package management

import (
	"net/http"

	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/gin-gonic/gin"
)

// GetHardware returns the active profile and derived limits.
func (h *Handler) GetHardware(c *gin.Context) {
	p := h.hardware.Current()
	w, ht := hardware.ImageDimensionLimit(p)
	support := make(map[hardware.Operation]hardware.Validation, 4)
	for _, op := range []hardware.Operation{hardware.OpText, hardware.OpImage, hardware.OpTTS, hardware.OpSTT} {
		support[op] = hardware.ValidateOperation(op, p)
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":          p,
		"detected":         p != nil,
		"max_text_chars":   hardware.TextCharacterCeiling(p),
		"max_image_width":  w,
		"max_image_height": ht,
		"operations":       support,
	})
}

// SetHardware replaces the profile with the request body.
func (h *Handler) SetHardware(c *gin.Context) {
	var p hardware.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.hardware.Set(p)
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// DetectHardware re-runs hardware detection.
func (h *Handler) DetectHardware(c *gin.Context) {
	if h.detector == nil {
		unavailable(c, "hardware detector")
		return
	}
	p, err := h.hardware.Detect(c.Request.Context(), h.detector)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "detection_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// ClearHardware forgets the profile; limits fall back to conservative values.
func (h *Handler) ClearHardware(c *gin.Context) {
	h.hardware.Clear()
	c.Status(http.StatusNoContent)
}

// GetQueue returns the offline queue state.
func (h *Handler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Snapshot())
}

// ProcessQueue drains the queue even when the network is reported offline.
func (h *Handler) ProcessQueue(c *gin.Context) {
	h.queue.ForceProcess()
	c.JSON(http.StatusAccepted, h.queue.Snapshot())
}

// GetNetwork reports connectivity as seen by the orchestrator.
func (h *Handler) GetNetwork(c *gin.Context) {
	online := true
	if h.network != nil {
		online = h.network.Online()
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}
