// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api exposes the read-only run outcome surface over HTTP.
//
// Admin and student UIs consume run outcomes here; runs themselves are
// started from the CLI. The surface is strictly read-only: it serves
// what the checkpoint store holds and never mutates a run.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/campusworks/timetabler/services/scheduler/checkpoint"
	"github.com/campusworks/timetabler/services/scheduler/workflow"
)

// Handlers serves run state from the checkpoint store.
type Handlers struct {
	store  checkpoint.Store
	logger *slog.Logger
}

// NewHandlers builds Handlers. logger defaults to slog.Default().
func NewHandlers(store checkpoint.Store, logger *slog.Logger) (*Handlers, error) {
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, logger: logger}, nil
}

// NewRouter builds the full read-only router with tracing middleware
// and a Prometheus scrape endpoint.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("timetabler"))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	return router
}

// RegisterRoutes registers the run endpoints on a router group.
//
//	GET /v1/runs - List run IDs with a stored checkpoint
//	GET /v1/runs/:id - Run outcome summary
//	GET /v1/runs/:id/state - Full checkpointed workflow state
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/runs", h.ListRuns)
	rg.GET("/runs/:id", h.GetRun)
	rg.GET("/runs/:id/state", h.GetRunState)
}

// Health reports service liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListRuns returns the IDs of all checkpointed runs.
func (h *Handlers) ListRuns(c *gin.Context) {
	ids, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list runs failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": ids})
}

// runSummary is the outcome surface for one run: enough for a UI to
// show the result without the full violation and rationale payload.
type runSummary struct {
	RunID         string  `json:"run_id"`
	Stage         string  `json:"stage"`
	Iteration     int     `json:"iteration"`
	Score         float64 `json:"score"`
	Placements    int     `json:"placements"`
	Violations    int     `json:"violations"`
	Relaxations   int     `json:"relaxations"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// GetRun returns the outcome summary for one run.
func (h *Handlers) GetRun(c *gin.Context) {
	state, ok := h.loadState(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, runSummary{
		RunID:         state.RunID,
		Stage:         string(state.Stage),
		Iteration:     state.Iteration,
		Score:         state.Score,
		Placements:    len(state.Assignment),
		Violations:    len(state.Violations),
		Relaxations:   len(state.Relaxations),
		FailureReason: state.FailureReason,
	})
}

// GetRunState returns the full checkpointed state: assignment,
// violations, rationales, relaxation history and options tried.
func (h *Handlers) GetRunState(c *gin.Context) {
	state, ok := h.loadState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handlers) loadState(c *gin.Context) (*workflow.State, bool) {
	runID := c.Param("id")

	payload, err := h.store.Load(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": runID})
			return nil, false
		}
		h.logger.Error("load run failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load run failed"})
		return nil, false
	}

	state, err := workflow.DecodeState(payload)
	if err != nil {
		h.logger.Error("decode run state failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt run state"})
		return nil, false
	}
	return state, true
}
