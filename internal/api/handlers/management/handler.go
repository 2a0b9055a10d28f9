// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package management exposes the orchestrator over HTTP: inference calls
// routed through the provider registry, plus inspection and control of
// circuits, the offline queue, hardware, rankings and benchmarks.
package management

import (
	"context"
	"errors"
	"net/http"

	"github.com/anclora/orchestrator/internal/benchmark"
	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/anclora/orchestrator/internal/logging"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/anclora/orchestrator/internal/queue"
	"github.com/anclora/orchestrator/internal/scoring"
	"github.com/anclora/orchestrator/internal/store"
	"github.com/gin-gonic/gin"
)

// ModelLister reports the locally installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Dependencies are the collaborators a Handler serves. Registry, Queue,
// Hardware and Engine are required; the rest disable their routes when nil.
type Dependencies struct {
	Registry   *provider.Registry
	Queue      *queue.Queue
	Hardware   *hardware.Store
	Detector   hardware.Detector
	Engine     *scoring.Engine
	Benchmarks *benchmark.Cache
	Runner     *benchmark.Runner
	Decisions  *store.Decisions
	Network    netstate.State
	Models     ModelLister

	// MaxAttempts is the queue attempt budget for inference calls made offline.
	MaxAttempts int
}

// Handler implements the HTTP endpoints.
type Handler struct {
	registry    *provider.Registry
	queue       *queue.Queue
	hardware    *hardware.Store
	detector    hardware.Detector
	engine      *scoring.Engine
	benchmarks  *benchmark.Cache
	runner      *benchmark.Runner
	decisions   *store.Decisions
	network     netstate.State
	models      ModelLister
	maxAttempts int
}

// NewHandler creates a handler over d.
func NewHandler(d Dependencies) *Handler {
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = queue.DefaultMaxAttempts
	}
	return &Handler{
		registry:    d.Registry,
		queue:       d.Queue,
		hardware:    d.Hardware,
		detector:    d.Detector,
		engine:      d.Engine,
		benchmarks:  d.Benchmarks,
		runner:      d.Runner,
		decisions:   d.Decisions,
		network:     d.Network,
		models:      d.Models,
		maxAttempts: d.MaxAttempts,
	}
}

// errorStatus maps orchestration errors onto HTTP status codes.
func errorStatus(err error) (int, string) {
	var vErr *provider.ValidationError
	var chainErr *provider.ChainError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, provider.ErrNoProviders):
		return http.StatusServiceUnavailable, "no_providers"
	case errors.As(err, &chainErr):
		if errors.Is(err, provider.ErrTimeout) {
			return http.StatusGatewayTimeout, "provider_timeout"
		}
		return http.StatusBadGateway, "providers_failed"
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "queue_closed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// Client closed request.
		return 499, "cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		logging.Entry(c).Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}

func unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": what + " not configured"})
}
