// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"fmt"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// buildDomains computes the feasible Slot×Room domain per activity, pruned
// by room capacity, equipment class, and binding professor availability
// before any search begins.
//
// Domains are built in lexicographic (slot, room) order, so every consumer
// iterating a domain sees the fixed total order the determinism contract
// requires. An empty domain fails immediately: no search can place that
// activity.
func buildDomains(m *model.Model) (map[string][]model.Placement, error) {
	grid := m.Grid()
	domains := make(map[string][]model.Placement, len(m.ActivityIDs()))

	for _, id := range m.ActivityIDs() {
		a, _ := m.Activity(id)
		prof, _ := m.Professor(a.ProfessorID)

		var domain []model.Placement
		for day := 0; day < grid.Days; day++ {
			for start := 0; start+a.Duration <= grid.TicksPerDay; start++ {
				slot := model.Slot{Day: day, Start: start, Duration: a.Duration}
				if !professorCanTake(prof, slot) {
					continue
				}
				for _, roomID := range m.RoomIDs() {
					room, _ := m.Room(roomID)
					if room.Capacity < a.Enrollment {
						continue
					}
					if a.RoomClass != "" && !room.HasClass(a.RoomClass) {
						continue
					}
					domain = append(domain, model.Placement{Slot: slot, RoomID: roomID})
				}
			}
		}

		if len(domain) == 0 {
			return nil, &EmptyDomainError{ActivityID: id, Causes: diagnoseEmptyDomain(m, a)}
		}
		domains[id] = domain
	}

	return domains, nil
}

// diagnoseEmptyDomain names the hard constraints that leave an activity
// without a single feasible placement.
//
// The room filters (capacity, equipment class) are independent of the slot
// filters (grid fit, binding windows), so an empty domain always means at
// least one side eliminates everything; every failing side contributes a
// violation. A capacity shortfall is pinned on the closest candidate: the
// largest class-matching room, ties broken by room ID.
func diagnoseEmptyDomain(m *model.Model, a model.Activity) []model.ConstraintViolation {
	var causes []model.ConstraintViolation

	var best model.Resource
	found := false
	for _, roomID := range m.RoomIDs() {
		room, _ := m.Room(roomID)
		if a.RoomClass != "" && !room.HasClass(a.RoomClass) {
			continue
		}
		if !found || room.Capacity > best.Capacity {
			best = room
			found = true
		}
	}
	switch {
	case !found:
		causes = append(causes, model.ConstraintViolation{
			Kind:       model.ViolationEquipment,
			Severity:   model.SeverityHard,
			Activities: []string{a.ID},
			Detail:     fmt.Sprintf("no room offers class %q required by %s", a.RoomClass, a.ID),
		})
	case best.Capacity < a.Enrollment:
		causes = append(causes, model.ConstraintViolation{
			Kind:       model.ViolationCapacity,
			Severity:   model.SeverityHard,
			Activities: []string{a.ID},
			ResourceID: best.ID,
			Detail:     fmt.Sprintf("no room seats enrollment %d; largest candidate %s holds %d", a.Enrollment, best.ID, best.Capacity),
		})
	}

	prof, _ := m.Professor(a.ProfessorID)
	grid := m.Grid()
	hasSlot := false
	for day := 0; day < grid.Days && !hasSlot; day++ {
		for start := 0; start+a.Duration <= grid.TicksPerDay; start++ {
			if professorCanTake(prof, model.Slot{Day: day, Start: start, Duration: a.Duration}) {
				hasSlot = true
				break
			}
		}
	}
	if !hasSlot {
		causes = append(causes, model.ConstraintViolation{
			Kind:       model.ViolationAvailability,
			Severity:   model.SeverityHard,
			Activities: []string{a.ID},
			ResourceID: a.ProfessorID,
			Detail:     fmt.Sprintf("no slot of duration %d fits the binding windows of professor %s", a.Duration, a.ProfessorID),
		})
	}

	model.SortViolations(causes)
	return causes
}

// professorCanTake reports whether placing a slot is hard-feasible for the
// professor: covered by some window, or the professor declared no binding
// (required) windows.
func professorCanTake(prof model.Resource, slot model.Slot) bool {
	if len(prof.Windows) == 0 {
		return true
	}
	hasRequired := false
	for _, w := range prof.Windows {
		if w.Covers(slot) {
			return true
		}
		if w.Mode == model.WindowRequired {
			hasRequired = true
		}
	}
	return !hasRequired
}

// placementConflicts reports whether placing activity id at p collides with
// any other placement in the assignment (professor or room overlap).
func placementConflicts(m *model.Model, assignment model.Assignment, id string, p model.Placement) bool {
	a, _ := m.Activity(id)
	for otherID, other := range assignment {
		if otherID == id {
			continue
		}
		if !p.Slot.Overlaps(other.Slot) {
			continue
		}
		if other.RoomID == p.RoomID {
			return true
		}
		b, _ := m.Activity(otherID)
		if b.ProfessorID == a.ProfessorID {
			return true
		}
	}
	return false
}
