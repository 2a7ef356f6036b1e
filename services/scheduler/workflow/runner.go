// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusworks/timetabler/services/scheduler/checkpoint"
	"github.com/campusworks/timetabler/services/scheduler/detect"
	"github.com/campusworks/timetabler/services/scheduler/explain"
	"github.com/campusworks/timetabler/services/scheduler/model"
	"github.com/campusworks/timetabler/services/scheduler/resolve"
	"github.com/campusworks/timetabler/services/scheduler/solver"
)

var tracer = otel.Tracer("timetabler.workflow")

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetabler_workflow_runs_total",
		Help: "Total runs reaching a terminal stage, by outcome",
	}, []string{"outcome"})

	runIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetabler_workflow_run_iterations",
		Help:    "Resolve loops taken per run",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetabler_workflow_stage_duration_seconds",
		Help:    "Stage execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"stage"})
)

const (
	persistAttempts = 3
	persistBackoff  = 50 * time.Millisecond
)

// Config configures a Runner.
type Config struct {
	// Store persists checkpoints. Required.
	Store checkpoint.Store

	// Advisor proposes relaxations. Required.
	Advisor *resolve.Advisor

	// Budget bounds the solver. Zero fields take solver defaults.
	Budget solver.Budget

	// MaxIterations bounds the resolve loop. Default 10.
	MaxIterations int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes scheduling runs over a base model.
//
// Each run owns its State; the Runner itself holds only immutable
// configuration, so one Runner can serve sequential runs for the same
// snapshot.
//
// Thread Safety: safe for concurrent use; run state is per-call.
type Runner struct {
	base          *model.Model
	store         checkpoint.Store
	advisor       *resolve.Advisor
	budget        solver.Budget
	maxIterations int
	logger        *slog.Logger
}

// NewRunner builds a Runner for one constraint model snapshot.
func NewRunner(base *model.Model, cfg Config) (*Runner, error) {
	if base == nil {
		return nil, ErrNilModel
	}
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Advisor == nil {
		cfg.Advisor = resolve.NewAdvisor(nil, cfg.Logger)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		base:          base,
		store:         cfg.Store,
		advisor:       cfg.Advisor,
		budget:        cfg.Budget,
		maxIterations: cfg.MaxIterations,
		logger:        cfg.Logger,
	}, nil
}

// Run starts a new run and drives it to a terminal stage.
//
// Description:
//
//	Allocates a run ID, checkpoints the initial Planning state so the
//	run is resumable from the start, then executes stages until
//	Completed or Failed. The returned State is always the latest known
//	state, even on error.
//
// Outputs:
//
//	*State - Final (or last reached) state. Never nil.
//	error - ErrRunFailed when the run terminates Failed; a context or
//	persistence error when the run stops early.
func (r *Runner) Run(ctx context.Context) (*State, error) {
	now := time.Now().UTC()
	state := &State{
		RunID:     uuid.NewString(),
		Stage:     StagePlanning,
		StartedAt: now,
		UpdatedAt: now,
	}

	r.logger.Info("run starting",
		slog.String("run_id", state.RunID),
		slog.Int("activities", len(r.base.ActivityIDs())),
	)

	if err := r.persist(ctx, state); err != nil {
		return state, err
	}
	return r.loop(ctx, state)
}

// Resume continues a checkpointed run from its recorded stage.
//
// Description:
//
//	Loads the run's checkpoint, replays its relaxation history onto the
//	base model, and re-enters the recorded stage. Stages are idempotent
//	given their persisted input, so re-entering the stage that was
//	in flight at crash time is safe.
func (r *Runner) Resume(ctx context.Context, runID string) (*State, error) {
	payload, err := r.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	state, err := DecodeState(payload)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	if IsTerminal(state.Stage) {
		return state, fmt.Errorf("%w: run %s is %s", ErrRunTerminal, runID, state.Stage)
	}

	r.logger.Info("run resuming",
		slog.String("run_id", state.RunID),
		slog.String("stage", string(state.Stage)),
		slog.Int("iteration", state.Iteration),
	)

	return r.loop(ctx, state)
}

// loop drives the state machine to a terminal stage, checkpointing
// each transition before the next stage executes.
func (r *Runner) loop(ctx context.Context, state *State) (*State, error) {
	working, err := r.workingModel(state)
	if err != nil {
		return state, err
	}

	for !IsTerminal(state.Stage) {
		// Cancellation is honored at stage boundaries.
		if err := ctx.Err(); err != nil {
			return state, err
		}

		next, err := r.execute(ctx, state, &working)
		if err != nil {
			return state, err
		}

		state.Stage = next
		state.UpdatedAt = time.Now().UTC()

		if err := r.persist(ctx, state); err != nil {
			// The run is marked failed in memory only; the store keeps
			// the last successfully checkpointed state for inspection.
			state.Stage = StageFailed
			state.FailureReason = fmt.Sprintf("checkpoint write failed: %v", err)
			runsTotal.WithLabelValues("persistence_failed").Inc()
			return state, err
		}
	}

	runIterations.Observe(float64(state.Iteration))
	if state.Stage == StageFailed {
		runsTotal.WithLabelValues("failed").Inc()
		r.logger.Warn("run failed",
			slog.String("run_id", state.RunID),
			slog.String("reason", state.FailureReason),
			slog.Int("violations", len(state.Violations)),
		)
		return state, fmt.Errorf("%w: %s", ErrRunFailed, state.FailureReason)
	}

	runsTotal.WithLabelValues("completed").Inc()
	r.logger.Info("run completed",
		slog.String("run_id", state.RunID),
		slog.Int("iterations", state.Iteration),
		slog.Float64("score", state.Score),
	)
	return state, nil
}

// execute runs the current stage and returns the stage that follows.
func (r *Runner) execute(ctx context.Context, state *State, working **model.Model) (Stage, error) {
	ctx, span := tracer.Start(ctx, "workflow."+string(state.Stage),
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.Int("run.iteration", state.Iteration),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		stageDuration.WithLabelValues(string(state.Stage)).Observe(time.Since(start).Seconds())
	}()

	switch state.Stage {
	case StagePlanning:
		// The model was validated at build time; planning just commits
		// the run to generation.
		return Next(state.Stage, false, state.Iteration, r.maxIterations), nil

	case StageGenerating:
		res, err := solver.Generate(ctx, *working, state.Assignment, r.budget)
		switch {
		case err == nil:
			state.Assignment = res.Assignment
			state.Score = res.Score
			state.Infeasible = false
			state.InfeasibleCauses = nil
		case errors.Is(err, solver.ErrInfeasible):
			// Recoverable: the resolve loop relaxes the model and tries
			// again. The previous assignment is carried as the seed. An
			// empty-domain failure names its culprit; keep the diagnosis so
			// validation has a violation to hand the advisor.
			state.Infeasible = true
			state.InfeasibleCauses = nil
			var emptyDomain *solver.EmptyDomainError
			if errors.As(err, &emptyDomain) {
				state.InfeasibleCauses = emptyDomain.Causes
			}
			r.logger.Info("generation infeasible within budget",
				slog.String("run_id", state.RunID),
				slog.Int("iteration", state.Iteration),
				slog.Int("diagnosed_causes", len(state.InfeasibleCauses)),
			)
		default:
			span.SetStatus(codes.Error, err.Error())
			return state.Stage, err
		}
		return Next(state.Stage, false, state.Iteration, r.maxIterations), nil

	case StageValidating:
		state.Violations = detect.Detect(state.Assignment, *working)
		if state.Infeasible {
			state.Violations = mergeViolations(state.Violations, state.InfeasibleCauses)
		}
		hasHard := state.Infeasible || detect.HasHard(state.Violations)
		next := Next(state.Stage, hasHard, state.Iteration, r.maxIterations)
		if next == StageFailed {
			state.FailureReason = fmt.Sprintf(
				"hard violations remain after %d iterations", state.Iteration)
		}
		return next, nil

	case StageResolving:
		options := r.advisor.Propose(*working, state.Violations)
		options = r.advisor.Rank(ctx, options)
		state.OptionsTried = append(state.OptionsTried, options...)

		if len(options) == 0 {
			state.FailureReason = "no applicable relaxations remain"
			return StageFailed, nil
		}

		chosen := options[0]
		relaxed, err := (*working).Relax(chosen.Relaxation)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return state.Stage, fmt.Errorf("apply relaxation %s: %w", chosen.Relaxation.Key(), err)
		}
		*working = relaxed
		state.Relaxations = append(state.Relaxations, chosen.Relaxation)
		state.Iteration++
		state.Infeasible = false
		state.InfeasibleCauses = nil

		r.logger.Info("relaxation applied",
			slog.String("run_id", state.RunID),
			slog.String("relaxation", chosen.Relaxation.Key()),
			slog.Int("iteration", state.Iteration),
		)
		return Next(state.Stage, false, state.Iteration, r.maxIterations), nil

	case StageExplaining:
		state.Rationales = explain.Compose(state.Assignment, *working, state.Violations)
		return Next(state.Stage, false, state.Iteration, r.maxIterations), nil

	default:
		return StageFailed, fmt.Errorf("unknown stage %q", state.Stage)
	}
}

// mergeViolations adds extras the detector could not derive itself,
// de-duplicated by key, and restores the stable order.
func mergeViolations(vs, extras []model.ConstraintViolation) []model.ConstraintViolation {
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		seen[v.Key()] = struct{}{}
	}
	for _, v := range extras {
		if _, dup := seen[v.Key()]; dup {
			continue
		}
		seen[v.Key()] = struct{}{}
		vs = append(vs, v)
	}
	model.SortViolations(vs)
	return vs
}

// workingModel rebuilds the relaxed model by replaying the run's
// relaxation history onto the base snapshot.
func (r *Runner) workingModel(state *State) (*model.Model, error) {
	m := r.base
	for _, rx := range state.Relaxations {
		relaxed, err := m.Relax(rx)
		if err != nil {
			return nil, fmt.Errorf("replay relaxation %s: %w", rx.Key(), err)
		}
		m = relaxed
	}
	return m, nil
}

// persist writes the state to the checkpoint store, retrying transient
// failures with a short backoff. The transition is not considered
// complete until the write lands.
func (r *Runner) persist(ctx context.Context, state *State) error {
	payload, err := state.Encode()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		lastErr = r.store.Save(ctx, state.RunID, payload)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		r.logger.Warn("checkpoint write failed, retrying",
			slog.String("run_id", state.RunID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)

		if attempt < persistAttempts {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(persistBackoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("%w: %v", checkpoint.ErrPersistence, lastErr)
}
