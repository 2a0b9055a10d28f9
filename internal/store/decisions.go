package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const decisionPrefix = "decision:"

// Decision is the model last chosen for a generation mode.
type Decision struct {
	ModelID   string    `json:"model_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decisions remembers which model the user picked per mode.
type Decisions struct {
	kv  KV
	now func() time.Time
}

// NewDecisions wraps kv.
func NewDecisions(kv KV) *Decisions {
	return &Decisions{kv: kv, now: time.Now}
}

// Save records modelID as the choice for mode.
func (d *Decisions) Save(ctx context.Context, mode, modelID string) error {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return fmt.Errorf("mode cannot be empty")
	}
	return SetJSON(ctx, d.kv, decisionPrefix+mode, Decision{ModelID: modelID, UpdatedAt: d.now().UTC()})
}

// Get returns the decision for mode.
func (d *Decisions) Get(ctx context.Context, mode string) (Decision, bool, error) {
	return GetJSON[Decision](ctx, d.kv, decisionPrefix+mode)
}

// All returns mode -> model id for every stored decision.
func (d *Decisions) All(ctx context.Context) (map[string]string, error) {
	entries, err := d.kv.List(ctx, decisionPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for key, raw := range entries {
		var dec Decision
		if err := json.Unmarshal(raw, &dec); err != nil {
			log.Warnf("skipping unreadable decision %s: %v", key, err)
			continue
		}
		out[strings.TrimPrefix(key, decisionPrefix)] = dec.ModelID
	}
	return out, nil
}
