// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api wires the HTTP routes of the orchestrator onto a gin engine.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anclora/orchestrator/internal/api/handlers/management"
	"github.com/anclora/orchestrator/internal/buildinfo"
	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP front of the orchestrator.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *management.Handler
}

// NewServer builds the engine and registers every route.
func NewServer(cfg *config.Config, h *management.Handler) *Server {
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{engine: engine, handler: h}
	s.setupRoutes(cfg.ManagementKey)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(managementKey string) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "build": buildinfo.Current()})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/text", s.handler.GenerateText)
		v1.POST("/image", s.handler.GenerateImage)
		v1.POST("/tts", s.handler.SynthesizeSpeech)
		v1.POST("/stt", s.handler.Transcribe)
	}

	mgmt := s.engine.Group("/v0/management", managementAuth(managementKey))
	{
		mgmt.GET("/providers", s.handler.ListProviders)
		mgmt.GET("/telemetry", s.handler.GetTelemetry)
		mgmt.GET("/circuits", s.handler.GetCircuits)
		mgmt.POST("/circuits/:id/reset", s.handler.ResetCircuit)

		mgmt.GET("/queue", s.handler.GetQueue)
		mgmt.POST("/queue/process", s.handler.ProcessQueue)
		mgmt.GET("/network", s.handler.GetNetwork)

		mgmt.GET("/hardware", s.handler.GetHardware)
		mgmt.PUT("/hardware", s.handler.SetHardware)
		mgmt.DELETE("/hardware", s.handler.ClearHardware)
		mgmt.POST("/hardware/detect", s.handler.DetectHardware)

		mgmt.POST("/models/rank", s.handler.RankModels)
		mgmt.GET("/benchmarks", s.handler.ListBenchmarks)
		mgmt.POST("/benchmarks/refresh", s.handler.RefreshBenchmarks)
		mgmt.POST("/benchmarks/run/:model", s.handler.RunBenchmark)
		mgmt.GET("/decisions", s.handler.ListDecisions)
		mgmt.PUT("/decisions/:mode", s.handler.SaveDecision)
	}
}

// managementAuth requires "Authorization: Bearer <key>" when key is set.
func managementAuth(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		provided := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_management_key"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid_management_key"})
			return
		}
		c.Next()
	}
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info("shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
