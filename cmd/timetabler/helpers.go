// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/campusworks/timetabler/cmd/timetabler/config"
	"github.com/campusworks/timetabler/pkg/logging"
	"github.com/campusworks/timetabler/services/scheduler/checkpoint"
	"github.com/campusworks/timetabler/services/scheduler/model"
	"github.com/campusworks/timetabler/services/scheduler/reasoning"
	"github.com/campusworks/timetabler/services/scheduler/resolve"
	"github.com/campusworks/timetabler/services/scheduler/snapshot"
	"github.com/campusworks/timetabler/services/scheduler/solver"
	"github.com/campusworks/timetabler/services/scheduler/storage/badger"
	"github.com/campusworks/timetabler/services/scheduler/workflow"
)

// stack bundles the wired components behind a CLI command.
type stack struct {
	logger *logging.Logger
	db     *badger.DB
	store  *checkpoint.BadgerStore
	client *reasoning.Client // nil when reasoning is disabled or keyless
}

func (s *stack) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

func newLogger() *logging.Logger {
	cfg := config.Global.Logging
	return logging.New(logging.Config{
		Level:   parseLevel(cfg.Level),
		LogDir:  cfg.LogDir,
		Service: "timetabler",
		JSON:    cfg.JSON,
	})
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// openStack opens the storage and logging stack shared by commands.
func openStack() (*stack, error) {
	logger := newLogger()

	dbCfg := badger.DefaultConfig()
	dbCfg.Path = config.Global.Storage.DataDir
	dbCfg.Logger = logger.Slog()

	db, err := badger.Open(dbCfg)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	store, err := checkpoint.NewBadgerStore(db)
	if err != nil {
		_ = db.Close()
		_ = logger.Close()
		return nil, err
	}

	s := &stack{logger: logger, db: db, store: store}

	rcfg := config.Global.Reasoning
	if rcfg.Enabled {
		client, err := reasoning.NewClient(reasoning.Config{
			Model:         rcfg.Model,
			BaseURL:       rcfg.BaseURL,
			RatePerMinute: rcfg.RatePerMinute,
			Logger:        logger.Slog(),
		})
		if err != nil {
			// Soft dependency: run with local fallbacks.
			logger.Warn("reasoning service disabled", "error", err.Error())
		} else {
			s.client = client
		}
	}

	return s, nil
}

// buildRunner wires a workflow runner for the given snapshot model.
func buildRunner(s *stack, m *model.Model) (*workflow.Runner, error) {
	var ranker resolve.Ranker
	if s.client != nil {
		ranker = s.client
	}

	scfg := config.Global.Solver
	return workflow.NewRunner(m, workflow.Config{
		Store:   s.store,
		Advisor: resolve.NewAdvisor(ranker, s.logger.Slog()),
		Budget: solver.Budget{
			MaxBacktracks: scfg.MaxBacktracks,
			MaxLocalIters: scfg.MaxLocalIters,
			SwapWorkers:   scfg.SwapWorkers,
		},
		MaxIterations: config.Global.Workflow.MaxIterations,
		Logger:        s.logger.Slog(),
	})
}

// loadModel reads the snapshot file and builds the constraint model.
func loadModel(path string) (*model.Model, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	return snap.BuildModel()
}

// printSummary writes a human-readable run summary to stdout.
func printSummary(state *workflow.State) {
	fmt.Printf("Run:        %s\n", state.RunID)
	fmt.Printf("Stage:      %s\n", state.Stage)
	fmt.Printf("Iterations: %d\n", state.Iteration)
	fmt.Printf("Placements: %d\n", len(state.Assignment))
	fmt.Printf("Score:      %.1f\n", state.Score)
	if len(state.Relaxations) > 0 {
		fmt.Printf("Relaxations applied:\n")
		for _, r := range state.Relaxations {
			fmt.Printf("  - %s\n", r.Key())
		}
	}
	if state.FailureReason != "" {
		fmt.Printf("Failure:    %s\n", state.FailureReason)
		hard := 0
		for _, v := range state.Violations {
			if v.Severity == model.SeverityHard {
				hard++
			}
		}
		fmt.Printf("Violations: %d (%d hard)\n", len(state.Violations), hard)
	}
}
