// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package detect enumerates constraint violations in an assignment.
//
// Detection is deterministic and total: it always terminates, never fails
// on well-formed input, and identical (assignment, model) input yields an
// identical ordered violation list. That stability is what the resolution
// advisor's tie-breaks and the reproducibility tests rely on.
package detect

import (
	"fmt"
	"sort"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// Detect returns every violation in the assignment, ordered hard-first and
// then by the stable violation key.
//
// Description:
//
//	Checks, per placed activity or activity pair: professor and room
//	double-booking, room capacity, professor availability, and room
//	equipment class (all hard), plus every unsatisfied preference (soft).
//	Unplaced activities are skipped; a partial assignment is legal input.
//
// Inputs:
//
//	assignment - full or partial assignment to check.
//	m - the constraint model the assignment was built against.
//
// Outputs:
//
//	[]model.ConstraintViolation - sorted, possibly empty, never nil.
func Detect(assignment model.Assignment, m *model.Model) []model.ConstraintViolation {
	violations := make([]model.ConstraintViolation, 0)

	ids := placedIDs(assignment, m)

	// Pairwise checks in fixed ID order.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, _ := m.Activity(ids[i])
			b, _ := m.Activity(ids[j])
			pa, pb := assignment[a.ID], assignment[b.ID]

			if !pa.Slot.Overlaps(pb.Slot) {
				continue
			}
			if a.ProfessorID == b.ProfessorID {
				violations = append(violations, model.ConstraintViolation{
					Kind:       model.ViolationDoubleBooking,
					Severity:   model.SeverityHard,
					Activities: []string{a.ID, b.ID},
					ResourceID: a.ProfessorID,
					Detail:     fmt.Sprintf("professor %s booked for %s and %s", a.ProfessorID, pa.Slot, pb.Slot),
				})
			}
			if pa.RoomID == pb.RoomID {
				violations = append(violations, model.ConstraintViolation{
					Kind:       model.ViolationDoubleBooking,
					Severity:   model.SeverityHard,
					Activities: []string{a.ID, b.ID},
					ResourceID: pa.RoomID,
					Detail:     fmt.Sprintf("room %s booked for %s and %s", pa.RoomID, pa.Slot, pb.Slot),
				})
			}
		}
	}

	// Per-activity checks.
	for _, id := range ids {
		a, _ := m.Activity(id)
		p := assignment[id]

		if !m.Grid().Contains(p.Slot) || p.Slot.Duration != a.Duration {
			// Not a window problem: the placement itself is malformed. The
			// kind stays in the closed set; the detail names the grid
			// validity rule that was broken.
			grid := m.Grid()
			detail := fmt.Sprintf("slot %s violates grid validity: slots lie within [0,%d) on a day in [0,%d)",
				p.Slot, grid.TicksPerDay, grid.Days)
			if grid.Contains(p.Slot) {
				detail = fmt.Sprintf("slot %s duration %d does not match activity duration %d",
					p.Slot, p.Slot.Duration, a.Duration)
			}
			violations = append(violations, model.ConstraintViolation{
				Kind:       model.ViolationAvailability,
				Severity:   model.SeverityHard,
				Activities: []string{id},
				Detail:     detail,
			})
			continue
		}

		room, ok := m.Room(p.RoomID)
		if !ok {
			violations = append(violations, model.ConstraintViolation{
				Kind:       model.ViolationCapacity,
				Severity:   model.SeverityHard,
				Activities: []string{id},
				ResourceID: p.RoomID,
				Detail:     "placement references unknown room",
			})
			continue
		}

		if room.Capacity < a.Enrollment {
			violations = append(violations, model.ConstraintViolation{
				Kind:       model.ViolationCapacity,
				Severity:   model.SeverityHard,
				Activities: []string{id},
				ResourceID: room.ID,
				Detail:     fmt.Sprintf("room %s capacity %d < enrollment %d", room.ID, room.Capacity, a.Enrollment),
			})
		}

		if a.RoomClass != "" && !room.HasClass(a.RoomClass) {
			violations = append(violations, model.ConstraintViolation{
				Kind:       model.ViolationEquipment,
				Severity:   model.SeverityHard,
				Activities: []string{id},
				ResourceID: room.ID,
				Detail:     fmt.Sprintf("room %s lacks class %q", room.ID, a.RoomClass),
			})
		}

		if v, breached := availabilityBreach(a, p, m); breached {
			violations = append(violations, v)
		}
	}

	// Preference checks (soft).
	for _, pref := range m.Preferences() {
		if PreferenceSatisfied(pref, assignment, m) {
			continue
		}
		covered := coveredPlaced(pref, assignment, m)
		if len(covered) == 0 {
			continue
		}
		violations = append(violations, model.ConstraintViolation{
			Kind:       model.ViolationPreference,
			Severity:   model.SeveritySoft,
			Activities: covered,
			ResourceID: pref.ID,
			Detail:     fmt.Sprintf("preference %s (%s, weight %g) unsatisfied", pref.ID, pref.Kind, pref.Weight),
		})
	}

	model.SortViolations(violations)
	return violations
}

// HasHard reports whether any violation in the list is hard.
func HasHard(vs []model.ConstraintViolation) bool {
	// Sorted hard-first, so only the head needs checking; tolerate unsorted
	// input anyway.
	for _, v := range vs {
		if v.Severity == model.SeverityHard {
			return true
		}
	}
	return false
}

// availabilityBreach checks a placement against the professor's windows.
//
// A slot covered by any window is fine. An uncovered slot is a hard breach
// while the professor still has a required window, a soft one otherwise.
// A professor with no windows at all is treated as always available.
func availabilityBreach(a model.Activity, p model.Placement, m *model.Model) (model.ConstraintViolation, bool) {
	prof, ok := m.Professor(a.ProfessorID)
	if !ok || len(prof.Windows) == 0 {
		return model.ConstraintViolation{}, false
	}

	hasRequired := false
	for _, w := range prof.Windows {
		if w.Covers(p.Slot) {
			return model.ConstraintViolation{}, false
		}
		if w.Mode == model.WindowRequired {
			hasRequired = true
		}
	}

	severity := model.SeveritySoft
	if hasRequired {
		severity = model.SeverityHard
	}
	return model.ConstraintViolation{
		Kind:       model.ViolationAvailability,
		Severity:   severity,
		Activities: []string{a.ID},
		ResourceID: prof.ID,
		Detail:     fmt.Sprintf("slot %s outside all windows of professor %s", p.Slot, prof.ID),
	}, true
}

// PreferenceSatisfied evaluates one preference predicate over the placed
// activities it covers. Preferences with no placed covered activity are
// vacuously satisfied.
func PreferenceSatisfied(pref model.Preference, assignment model.Assignment, m *model.Model) bool {
	covered := coveredPlaced(pref, assignment, m)
	if len(covered) == 0 {
		return true
	}

	switch pref.Kind {
	case model.PrefNoEarlierThan:
		for _, id := range covered {
			if assignment[id].Slot.Start < pref.Tick {
				return false
			}
		}
		return true

	case model.PrefNoLaterThan:
		for _, id := range covered {
			if assignment[id].Slot.End() > pref.Tick {
				return false
			}
		}
		return true

	case model.PrefDaysFree:
		for _, id := range covered {
			for _, d := range pref.Days {
				if assignment[id].Slot.Day == d {
					return false
				}
			}
		}
		return true

	case model.PrefCompactDays:
		days := map[int]struct{}{}
		for _, id := range covered {
			days[assignment[id].Slot.Day] = struct{}{}
		}
		return len(days) <= pref.MaxDays

	case model.PrefRoomPreference:
		for _, id := range covered {
			if assignment[id].RoomID != pref.RoomID {
				return false
			}
		}
		return true

	default:
		// Closed set; Build rejects unknown kinds.
		return true
	}
}

// coveredPlaced returns the sorted placed activity IDs a preference covers.
func coveredPlaced(pref model.Preference, assignment model.Assignment, m *model.Model) []string {
	covered := make([]string, 0)
	for _, id := range m.ActivityIDs() {
		if _, placed := assignment[id]; !placed {
			continue
		}
		a, _ := m.Activity(id)
		if pref.Covers(a) {
			covered = append(covered, id)
		}
	}
	sort.Strings(covered)
	return covered
}

// placedIDs returns the sorted activity IDs that are both in the model and
// placed in the assignment.
func placedIDs(assignment model.Assignment, m *model.Model) []string {
	ids := make([]string, 0, len(assignment))
	for _, id := range m.ActivityIDs() {
		if _, ok := assignment[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
