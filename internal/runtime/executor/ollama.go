// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anclora/orchestrator/internal/provider"
	"github.com/anclora/orchestrator/internal/scoring"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Provider ids of the local Ollama text adapters.
const (
	OllamaRequestedID provider.ID = "ollama-requested"
	OllamaDefaultID   provider.ID = "ollama-default"
)

// DefaultTemperature is sent when a text request leaves it unset.
const DefaultTemperature = 0.4

// OllamaClient talks to a locally running Ollama instance.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaClient creates a client for baseURL (e.g. http://localhost:11434).
func NewOllamaClient(baseURL string, client *http.Client) *OllamaClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaClient{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Generate runs a non-streaming completion. The model id is canonicalized
// before it is sent.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string, temperature *float64) (string, error) {
	temp := DefaultTemperature
	if temperature != nil {
		temp = *temperature
	}

	body := []byte(`{"stream":false}`)
	body, _ = sjson.SetBytes(body, "model", scoring.CanonicalModelName(model))
	body, _ = sjson.SetBytes(body, "prompt", prompt)
	body, _ = sjson.SetBytes(body, "temperature", temp)

	data, _, err := post(ctx, c.client, "Ollama", c.baseURL+"/api/generate", "application/json", body, nil)
	if err != nil {
		return "", err
	}
	if res := gjson.GetBytes(data, "response"); res.Exists() {
		return res.String(), nil
	}
	return string(data), nil
}

// ListModels returns the names of the locally installed models.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Ollama request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("Ollama: close response body error: %v", errClose)
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr{code: resp.StatusCode, msg: fmt.Sprintf("Ollama returned status %d", resp.StatusCode)}
	}

	var names []string
	gjson.GetBytes(data, "models.#.name").ForEach(func(_, v gjson.Result) bool {
		if n := strings.TrimSpace(v.String()); n != "" {
			names = append(names, n)
		}
		return true
	})
	return names, nil
}

// RequestedProvider serves requests that name a model explicitly.
func (c *OllamaClient) RequestedProvider() provider.Provider[provider.TextRequest, string] {
	return provider.Provider[provider.TextRequest, string]{
		ID:    OllamaRequestedID,
		Label: "Ollama (requested model)",
		Tier:  provider.TierLocal,
		Available: func(context.Context) (bool, error) {
			return c.baseURL != "", nil
		},
		Invoke: func(ctx context.Context, req provider.TextRequest) (string, error) {
			model := strings.TrimSpace(req.ModelID)
			if model == "" {
				return "", fmt.Errorf("%s: no model requested", OllamaRequestedID)
			}
			return c.Generate(ctx, model, req.Prompt, req.Temperature)
		},
	}
}

// DefaultProvider uses the requested model when present and defaultModel
// otherwise.
func (c *OllamaClient) DefaultProvider(defaultModel string) provider.Provider[provider.TextRequest, string] {
	return provider.Provider[provider.TextRequest, string]{
		ID:    OllamaDefaultID,
		Label: "Ollama (" + defaultModel + ")",
		Tier:  provider.TierLocal,
		Available: func(context.Context) (bool, error) {
			return c.baseURL != "", nil
		},
		Invoke: func(ctx context.Context, req provider.TextRequest) (string, error) {
			model := strings.TrimSpace(req.ModelID)
			if model == "" {
				model = defaultModel
			}
			return c.Generate(ctx, model, req.Prompt, req.Temperature)
		},
	}
}
