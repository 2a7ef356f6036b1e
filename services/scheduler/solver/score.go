// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"github.com/campusworks/timetabler/services/scheduler/detect"
	"github.com/campusworks/timetabler/services/scheduler/model"
)

// Score is the weighted soft objective: the sum of weights of satisfied
// preferences. Higher is better. The maximum attainable score is the sum of
// all preference weights.
func Score(m *model.Model, assignment model.Assignment) float64 {
	total := 0.0
	for _, pref := range m.Preferences() {
		if detect.PreferenceSatisfied(pref, assignment, m) {
			total += pref.Weight
		}
	}
	return total
}

// MaxScore returns the sum of all preference weights in the model.
func MaxScore(m *model.Model) float64 {
	total := 0.0
	for _, p := range m.Preferences() {
		total += p.Weight
	}
	return total
}

// better reports whether candidate beats incumbent under the fixed total
// order: higher score first, then the lexicographically smaller violation
// list, then the smaller assignment in activity-ID/placement order. The
// order is total, so the winner is independent of evaluation order.
func better(m *model.Model, candidate, incumbent model.Assignment, candScore, incScore float64) bool {
	if candScore != incScore {
		return candScore > incScore
	}
	cv := violationKeys(m, candidate)
	iv := violationKeys(m, incumbent)
	if c := compareStringSlices(cv, iv); c != 0 {
		return c < 0
	}
	return compareAssignments(candidate, incumbent) < 0
}

// improves reports whether candidate strictly beats incumbent on the
// (score, violation list) pair alone, ignoring better's assignment-order
// tie-break. Local search accepts a move only under this test, so the climb
// stops on plateaus instead of drifting, and seeded placements survive
// re-runs.
func improves(m *model.Model, candidate, incumbent model.Assignment, candScore, incScore float64) bool {
	if candScore != incScore {
		return candScore > incScore
	}
	return compareStringSlices(violationKeys(m, candidate), violationKeys(m, incumbent)) < 0
}

func violationKeys(m *model.Model, assignment model.Assignment) []string {
	vs := detect.Detect(assignment, m)
	keys := make([]string, len(vs))
	for i, v := range vs {
		keys[i] = v.Key()
	}
	return keys
}

func compareStringSlices(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareAssignments compares two assignments by iterating activity IDs in
// lexicographic order and comparing placements.
func compareAssignments(a, b model.Assignment) int {
	aIDs, bIDs := a.ActivityIDs(), b.ActivityIDs()
	if c := compareStringSlices(aIDs, bIDs); c != 0 {
		return c
	}
	for _, id := range aIDs {
		pa, pb := a[id], b[id]
		if pa.Slot != pb.Slot {
			if pa.Slot.Less(pb.Slot) {
				return -1
			}
			return 1
		}
		if pa.RoomID != pb.RoomID {
			if pa.RoomID < pb.RoomID {
				return -1
			}
			return 1
		}
	}
	return 0
}
