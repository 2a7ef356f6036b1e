// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// move is one local-search neighbor: a relocation of one activity, or a
// pairwise slot/room swap between two (id2 non-empty).
//
// The neighborhood is relocations plus pairwise swaps; multi-activity
// chains are out of scope (see DESIGN.md on the open question).
type move struct {
	id1 string
	p1  model.Placement
	id2 string
	p2  model.Placement
}

// improve runs hill-climbing over the move neighborhood until no move
// improves the (score, violation list) pair or the iteration cap is
// reached.
//
// Candidates are enumerated in a fixed lexicographic order and evaluated in
// parallel; each round's winner is the maximal candidate under better's
// total order (score, then violation list, then assignment), so the result
// does not depend on worker count or scheduling. An equal-score move that
// shrinks the violation list is an improvement; an equal-score, equal-
// violation move is not, so the climb halts on plateaus rather than
// wandering off seeded placements. A cancelled context ends the climb and
// returns the best assignment found so far.
func improve(ctx context.Context, m *model.Model, assignment model.Assignment, domains map[string][]model.Placement, budget Budget) (model.Assignment, int) {
	current := assignment.Clone()
	currentScore := Score(m, current)
	iters := 0

	for iters < budget.MaxLocalIters {
		if ctx.Err() != nil {
			break
		}
		iters++

		moves := enumerateMoves(m, current, domains)
		trial, score, ok := evaluateMoves(ctx, m, current, moves, budget.SwapWorkers)
		if !ok || !improves(m, trial, current, score, currentScore) {
			break
		}
		current = trial
		currentScore = score
	}

	return current, iters
}

// enumerateMoves lists hard-feasible neighbors in fixed order: relocations
// by (activity ID, domain order), then swaps by ID pair.
func enumerateMoves(m *model.Model, assignment model.Assignment, domains map[string][]model.Placement) []move {
	ids := assignment.ActivityIDs()
	var moves []move

	for _, id := range ids {
		cur := assignment[id]
		for _, p := range domains[id] {
			if p == cur {
				continue
			}
			if placementConflicts(m, assignment, id, p) {
				continue
			}
			moves = append(moves, move{id1: id, p1: p})
		}
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			mv, ok := swapMove(m, assignment, ids[i], ids[j])
			if ok {
				moves = append(moves, mv)
			}
		}
	}

	return moves
}

// swapMove builds the pairwise swap of slots and rooms for two activities,
// keeping each activity's own duration. Returns false when the swap is not
// hard-feasible.
func swapMove(m *model.Model, assignment model.Assignment, idA, idB string) (move, bool) {
	a, _ := m.Activity(idA)
	b, _ := m.Activity(idB)
	pa, pb := assignment[idA], assignment[idB]

	newA := model.Placement{
		Slot:   model.Slot{Day: pb.Slot.Day, Start: pb.Slot.Start, Duration: a.Duration},
		RoomID: pb.RoomID,
	}
	newB := model.Placement{
		Slot:   model.Slot{Day: pa.Slot.Day, Start: pa.Slot.Start, Duration: b.Duration},
		RoomID: pa.RoomID,
	}

	mv := move{id1: idA, p1: newA, id2: idB, p2: newB}
	trial := applyMove(assignment, mv)
	if !hardFeasibleFor(m, trial, idA) || !hardFeasibleFor(m, trial, idB) {
		return move{}, false
	}
	return mv, true
}

// hardFeasibleFor checks grid fit, capacity, equipment, binding
// availability and collisions for one activity in the assignment.
func hardFeasibleFor(m *model.Model, assignment model.Assignment, id string) bool {
	a, _ := m.Activity(id)
	p := assignment[id]

	if !m.Grid().Contains(p.Slot) {
		return false
	}
	room, ok := m.Room(p.RoomID)
	if !ok || room.Capacity < a.Enrollment {
		return false
	}
	if a.RoomClass != "" && !room.HasClass(a.RoomClass) {
		return false
	}
	prof, _ := m.Professor(a.ProfessorID)
	if !professorCanTake(prof, p.Slot) {
		return false
	}
	return !placementConflicts(m, assignment, id, p)
}

// evaluateMoves applies and scores every move concurrently and returns the
// winning trial assignment, or ok=false when the list is empty. The winner
// is the maximal trial under better's total order, which orders identically
// regardless of how moves are chunked across workers.
func evaluateMoves(ctx context.Context, m *model.Model, assignment model.Assignment, moves []move, workers int) (model.Assignment, float64, bool) {
	if len(moves) == 0 {
		return nil, 0, false
	}
	if workers > len(moves) {
		workers = len(moves)
	}

	type candidate struct {
		trial model.Assignment
		score float64
	}

	var mu sync.Mutex
	var best candidate

	g, _ := errgroup.WithContext(ctx)
	chunk := (len(moves) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(moves) {
			hi = len(moves)
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			var local candidate
			for i := lo; i < hi; i++ {
				trial := applyMove(assignment, moves[i])
				score := Score(m, trial)
				if local.trial == nil || better(m, trial, local.trial, score, local.score) {
					local = candidate{trial: trial, score: score}
				}
			}
			if local.trial == nil {
				return nil
			}
			mu.Lock()
			if best.trial == nil || better(m, local.trial, best.trial, local.score, best.score) {
				best = local
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return best.trial, best.score, best.trial != nil
}

// applyMove returns a copy of the assignment with the move applied.
func applyMove(assignment model.Assignment, mv move) model.Assignment {
	out := assignment.Clone()
	out[mv.id1] = mv.p1
	if mv.id2 != "" {
		out[mv.id2] = mv.p2
	}
	return out
}
