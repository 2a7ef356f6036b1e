// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolve proposes constraint relaxations when the solver cannot
// satisfy all hard constraints.
//
// The advisor generates every applicable relaxation itself and ranks them
// by estimated soft-score impact. An external ranker may refine the order,
// but it can only permute or filter options the advisor generated; options
// it drops are re-appended, and an invalid reply falls back to the local
// order. Engine correctness never depends on the ranker.
package resolve

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// RelaxationOption names one relaxation and its estimated cost.
type RelaxationOption struct {
	Relaxation model.Relaxation `json:"relaxation"`

	// EstimatedImpact approximates the soft-score cost of applying the
	// relaxation. Cheapest first is the advisor's default order.
	EstimatedImpact float64 `json:"estimated_impact"`

	// Reason is the violation kind that motivated the option, or "generic"
	// when proposed without a specific violation.
	Reason string `json:"reason"`

	// Activities are the offending activities, sorted.
	Activities []string `json:"activities,omitempty"`
}

// Ranker refines the ordering of relaxation options. Implementations may
// consult an external reasoning service; the returned slice holds indices
// into the option list passed in.
type Ranker interface {
	RankRelaxations(ctx context.Context, options []RelaxationOption) ([]int, error)
}

// Advisor proposes and ranks relaxations for one scheduling run.
type Advisor struct {
	logger *slog.Logger
	ranker Ranker

	// rankTimeout caps each external ranking call.
	rankTimeout time.Duration
}

// NewAdvisor creates an Advisor. ranker may be nil; the advisor then keeps
// its own impact ordering. logger defaults to slog.Default().
func NewAdvisor(ranker Ranker, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{
		logger:      logger,
		ranker:      ranker,
		rankTimeout: 10 * time.Second,
	}
}

// Propose generates the ordered relaxation options for a set of violations.
//
// Description:
//
//	For each hard availability violation, every still-required window of
//	the offending professor becomes an option. For each hard capacity
//	violation, a capacity override up to the offending enrollment becomes
//	an option. Double-booking and equipment violations have no modeled
//	relaxation and generate nothing themselves; when the violation list
//	carries no relaxable hard violation (the solver was infeasible without
//	a specific culprit), the generic escape offers every required window in
//	the model plus a capacity override for each activity no room can seat.
//	Options are de-duplicated against the model's existing
//	relaxation history and sorted by (EstimatedImpact, kind, resource,
//	window).
//
// Outputs:
//
//	[]RelaxationOption - ordered cheapest-first; empty when the model has
//	nothing left to relax.
func (a *Advisor) Propose(m *model.Model, violations []model.ConstraintViolation) []RelaxationOption {
	seen := make(map[string]struct{}, len(m.Relaxations()))
	for _, r := range m.Relaxations() {
		seen[r.Key()] = struct{}{}
	}

	var options []RelaxationOption
	add := func(opt RelaxationOption) {
		key := opt.Relaxation.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		options = append(options, opt)
	}

	for _, v := range violations {
		if v.Severity != model.SeverityHard {
			continue
		}
		switch v.Kind {
		case model.ViolationAvailability:
			a.proposeWindows(m, v.ResourceID, string(v.Kind), v.Activities, add)
		case model.ViolationCapacity:
			a.proposeCapacity(m, v, add)
		}
	}

	if len(options) == 0 {
		for _, profID := range m.ProfessorIDs() {
			a.proposeWindows(m, profID, "generic", nil, add)
		}
		a.proposeCapacityEscapes(m, add)
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].EstimatedImpact != options[j].EstimatedImpact {
			return options[i].EstimatedImpact < options[j].EstimatedImpact
		}
		if options[i].Relaxation.Kind != options[j].Relaxation.Kind {
			return options[i].Relaxation.Kind < options[j].Relaxation.Kind
		}
		return options[i].Relaxation.Key() < options[j].Relaxation.Key()
	})

	return options
}

// proposeWindows emits one option per still-required window of a professor.
// The impact heuristic charges a unit cost plus the share of the day the
// window spans: downgrading a wide binding window disturbs the owner more.
func (a *Advisor) proposeWindows(m *model.Model, profID, reason string, activities []string, add func(RelaxationOption)) {
	prof, ok := m.Professor(profID)
	if !ok {
		return
	}
	ticksPerDay := float64(m.Grid().TicksPerDay)
	for i, w := range prof.Windows {
		if w.Mode != model.WindowRequired {
			continue
		}
		add(RelaxationOption{
			Relaxation: model.Relaxation{
				Kind:        model.RelaxAvailability,
				ResourceID:  profID,
				WindowIndex: i,
			},
			EstimatedImpact: 1 + float64(w.End-w.Start)/ticksPerDay,
			Reason:          reason,
			Activities:      activities,
		})
	}
}

// proposeCapacity emits a capacity override covering the largest offending
// enrollment. The override still needs admin approval downstream; the
// option only quantifies the trade-off.
func (a *Advisor) proposeCapacity(m *model.Model, v model.ConstraintViolation, add func(RelaxationOption)) {
	room, ok := m.Room(v.ResourceID)
	if !ok {
		return
	}
	need := room.Capacity
	for _, id := range v.Activities {
		if act, ok := m.Activity(id); ok && act.Enrollment > need {
			need = act.Enrollment
		}
	}
	if need <= room.Capacity {
		return
	}
	add(RelaxationOption{
		Relaxation: model.Relaxation{
			Kind:        model.RelaxCapacity,
			ResourceID:  room.ID,
			NewCapacity: need,
		},
		EstimatedImpact: float64(need-room.Capacity) / float64(room.Capacity),
		Reason:          string(v.Kind),
		Activities:      v.Activities,
	})
}

// proposeCapacityEscapes offers an override for every activity no room can
// seat, targeting the closest candidate: the largest class-matching room,
// ties broken by room ID. Part of the generic escape; with nothing placed
// there is no capacity violation to react to, yet an oversubscribed
// activity can only ever be placed by overriding.
func (a *Advisor) proposeCapacityEscapes(m *model.Model, add func(RelaxationOption)) {
	for _, id := range m.ActivityIDs() {
		act, _ := m.Activity(id)

		var best model.Resource
		found := false
		for _, roomID := range m.RoomIDs() {
			room, _ := m.Room(roomID)
			if act.RoomClass != "" && !room.HasClass(act.RoomClass) {
				continue
			}
			if !found || room.Capacity > best.Capacity {
				best = room
				found = true
			}
		}
		if !found || best.Capacity >= act.Enrollment {
			continue
		}

		add(RelaxationOption{
			Relaxation: model.Relaxation{
				Kind:        model.RelaxCapacity,
				ResourceID:  best.ID,
				NewCapacity: act.Enrollment,
			},
			EstimatedImpact: float64(act.Enrollment-best.Capacity) / float64(best.Capacity),
			Reason:          "generic",
			Activities:      []string{id},
		})
	}
}

// Rank lets the external ranker refine the option order.
//
// Description:
//
//	Calls the ranker with a bounded timeout. The reply must be indices into
//	the given options; out-of-range or duplicate indices invalidate the
//	whole reply. Options the ranker filtered out are appended in their
//	original order so nothing the advisor generated is ever lost. On any
//	error, timeout or invalid reply the advisor's own order stands.
func (a *Advisor) Rank(ctx context.Context, options []RelaxationOption) []RelaxationOption {
	if a.ranker == nil || len(options) < 2 {
		return options
	}

	ctx, cancel := context.WithTimeout(ctx, a.rankTimeout)
	defer cancel()

	order, err := a.ranker.RankRelaxations(ctx, options)
	if err != nil {
		a.logger.Warn("relaxation ranking unavailable, keeping local order",
			slog.String("error", err.Error()),
		)
		return options
	}

	reordered, ok := applyOrder(options, order)
	if !ok {
		a.logger.Warn("relaxation ranking reply invalid, keeping local order",
			slog.Int("options", len(options)),
			slog.Int("reply", len(order)),
		)
		return options
	}
	return reordered
}

// applyOrder reorders options by the given indices, appending anything the
// order omitted. Returns false when an index is out of range or repeated.
func applyOrder(options []RelaxationOption, order []int) ([]RelaxationOption, bool) {
	used := make(map[int]struct{}, len(order))
	out := make([]RelaxationOption, 0, len(options))
	for _, idx := range order {
		if idx < 0 || idx >= len(options) {
			return nil, false
		}
		if _, dup := used[idx]; dup {
			return nil, false
		}
		used[idx] = struct{}{}
		out = append(out, options[idx])
	}
	for i, opt := range options {
		if _, kept := used[i]; !kept {
			out = append(out, opt)
		}
	}
	return out, true
}
