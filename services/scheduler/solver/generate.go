// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package solver produces scored timetable assignments.
//
// The pipeline is constraint propagation (per-activity domain pruning),
// backtracking search ordered most-constrained-activity-first, then local
// search over relocation and pairwise-swap moves to improve the weighted
// soft score. Given identical input and budget the output is identical:
// every iteration runs over a fixed lexicographic order, and the parallel
// swap evaluation reduces by that order, never by worker arrival.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusworks/timetabler/services/scheduler/detect"
	"github.com/campusworks/timetabler/services/scheduler/model"
)

var tracer = otel.Tracer("timetabler.solver")

// Default search budget values.
const (
	DefaultMaxBacktracks = 20000
	DefaultMaxLocalIters = 200
	DefaultSwapWorkers   = 4
)

// Budget bounds the search. The zero value is replaced by defaults.
type Budget struct {
	// MaxBacktracks caps un-assignment steps in the backtracking phase.
	MaxBacktracks int

	// MaxLocalIters caps local-search improvement rounds.
	MaxLocalIters int

	// SwapWorkers is the number of goroutines evaluating local-search
	// candidates. Affects wall-clock time only, never the chosen result.
	SwapWorkers int
}

func (b Budget) withDefaults() Budget {
	if b.MaxBacktracks <= 0 {
		b.MaxBacktracks = DefaultMaxBacktracks
	}
	if b.MaxLocalIters <= 0 {
		b.MaxLocalIters = DefaultMaxLocalIters
	}
	if b.SwapWorkers <= 0 {
		b.SwapWorkers = DefaultSwapWorkers
	}
	return b
}

// Result is a scored assignment.
type Result struct {
	Assignment model.Assignment            `json:"assignment"`
	Score      float64                     `json:"score"`
	Violations []model.ConstraintViolation `json:"violations"`

	// Backtracks and LocalIters record how much budget the search used.
	Backtracks int `json:"backtracks"`
	LocalIters int `json:"local_iters"`
}

// Generate searches for a hard-feasible assignment and improves its soft
// score.
//
// Description:
//
//	Runs domain pruning, backtracking and local search under the budget.
//	previous, when non-nil, seeds the search: each activity's prior
//	placement is tried first while still feasible, so re-runs after a
//	relaxation keep placements stable. Fails with an error wrapping
//	ErrInfeasible when no hard-feasible assignment exists within budget.
//
//	Cancellation is cooperative. During backtracking a cancelled context
//	aborts with ctx.Err(); during local search the best assignment found so
//	far is returned instead of discarding work.
//
// Inputs:
//
//	ctx - cancellation context. Must not be nil.
//	m - the constraint model. Must not be nil.
//	previous - optional seed assignment from an earlier iteration.
//	budget - search bounds; zero fields take defaults.
//
// Outputs:
//
//	*Result - the scored assignment. Nil on error.
//	error - ErrInfeasible (wrapped) or ctx.Err().
func Generate(ctx context.Context, m *model.Model, previous model.Assignment, budget Budget) (*Result, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	budget = budget.withDefaults()

	ctx, span := tracer.Start(ctx, "solver.Generate",
		trace.WithAttributes(
			attribute.Int("solver.activities", len(m.ActivityIDs())),
			attribute.Int("solver.max_backtracks", budget.MaxBacktracks),
		),
	)
	defer span.End()

	start := time.Now()

	domains, err := buildDomains(m)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	search := &backtracker{
		model:    m,
		domains:  domains,
		previous: previous,
		limit:    budget.MaxBacktracks,
	}
	assignment, err := search.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	improved, iters := improve(ctx, m, assignment, domains, budget)

	result := &Result{
		Assignment: improved,
		Score:      Score(m, improved),
		Violations: detect.Detect(improved, m),
		Backtracks: search.backtracks,
		LocalIters: iters,
	}

	span.SetAttributes(
		attribute.Int("solver.backtracks", result.Backtracks),
		attribute.Int("solver.local_iters", result.LocalIters),
		attribute.Float64("solver.score", result.Score),
	)
	span.SetStatus(codes.Ok, "")

	slog.Debug("assignment generated",
		slog.Int("activities", len(improved)),
		slog.Float64("score", result.Score),
		slog.Int("backtracks", result.Backtracks),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// backtracker holds the state of one backtracking search.
type backtracker struct {
	model    *model.Model
	domains  map[string][]model.Placement
	previous model.Assignment
	limit    int

	backtracks int
}

func (s *backtracker) run(ctx context.Context) (model.Assignment, error) {
	assignment := make(model.Assignment, len(s.model.ActivityIDs()))
	ok, err := s.place(ctx, assignment)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d backtracks used", ErrInfeasible, s.backtracks)
	}
	return assignment, nil
}

// place assigns one more activity, most-constrained-first, and recurses.
func (s *backtracker) place(ctx context.Context, assignment model.Assignment) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(assignment) == len(s.model.ActivityIDs()) {
		return true, nil
	}

	id, feasible := s.mostConstrained(assignment)
	if len(feasible) == 0 {
		return false, nil
	}

	for _, p := range s.orderCandidates(id, feasible) {
		assignment[id] = p
		ok, err := s.place(ctx, assignment)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		delete(assignment, id)
		s.backtracks++
		if s.backtracks > s.limit {
			return false, fmt.Errorf("%w: backtrack budget %d exhausted", ErrInfeasible, s.limit)
		}
	}
	return false, nil
}

// mostConstrained picks the unassigned activity with the fewest remaining
// feasible placements, ties broken by activity ID, and returns those
// placements in domain (lexicographic) order.
func (s *backtracker) mostConstrained(assignment model.Assignment) (string, []model.Placement) {
	bestID := ""
	var bestFeasible []model.Placement

	for _, id := range s.model.ActivityIDs() {
		if _, done := assignment[id]; done {
			continue
		}
		var feasible []model.Placement
		for _, p := range s.domains[id] {
			if !placementConflicts(s.model, assignment, id, p) {
				feasible = append(feasible, p)
			}
		}
		if bestID == "" || len(feasible) < len(bestFeasible) {
			bestID = id
			bestFeasible = feasible
		}
	}
	return bestID, bestFeasible
}

// orderCandidates hoists the previous placement to the front when present
// and feasible, keeping the rest in domain order.
func (s *backtracker) orderCandidates(id string, feasible []model.Placement) []model.Placement {
	prev, seeded := s.previous[id]
	if !seeded {
		return feasible
	}
	idx := -1
	for i, p := range feasible {
		if p == prev {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return feasible
	}
	out := make([]model.Placement, 0, len(feasible))
	out = append(out, prev)
	out = append(out, feasible[:idx]...)
	out = append(out, feasible[idx+1:]...)
	return out
}
