// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package explain builds structured rationale records for placements.
//
// Compose is a pure function of the assignment, model and violation list.
// It never calls external services: a downstream renderer may hand the
// records to a phrasing service, but the facts are assembled here.
package explain

import (
	"fmt"
	"sort"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// Outcome tags one rationale entry.
type Outcome string

const (
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeTradedOff Outcome = "traded-off"
)

// Entry is one (constraint, outcome, weight) line of a rationale.
type Entry struct {
	// Constraint names the constraint, e.g. "capacity:room-1" or
	// "preference:p-morning".
	Constraint string `json:"constraint"`

	Outcome Outcome `json:"outcome"`

	// WeightContribution is the preference weight earned by this entry;
	// zero for hard constraints and traded-off preferences.
	WeightContribution float64 `json:"weight_contribution"`

	Detail string `json:"detail,omitempty"`
}

// RationaleRecord explains one activity's placement.
type RationaleRecord struct {
	ActivityID string          `json:"activity_id"`
	Placement  model.Placement `json:"placement"`
	Entries    []Entry         `json:"entries"`
}

// Compose builds a rationale record for every placed activity.
//
// Description:
//
//	For each activity the record lists: room capacity and equipment checks,
//	professor availability (noting a relaxed window when the relaxation
//	history touched this professor), exclusive resource use, and every
//	preference covering the activity with its weight contribution. An entry
//	is traded-off when the violation list reports it or when the
//	relaxation history shows the constraint was downgraded to let this
//	placement stand.
//
// Outputs:
//
//	map[string]RationaleRecord - keyed by activity ID; entries sorted by
//	constraint name, so identical input yields an identical record.
func Compose(assignment model.Assignment, m *model.Model, violations []model.ConstraintViolation) map[string]RationaleRecord {
	violated := indexViolations(violations)
	relaxedProfs := relaxedProfessors(m)
	relaxedRooms := relaxedRoomCaps(m)

	records := make(map[string]RationaleRecord, len(assignment))

	for _, id := range assignment.ActivityIDs() {
		a, ok := m.Activity(id)
		if !ok {
			continue
		}
		p := assignment[id]
		var entries []Entry

		entries = append(entries, capacityEntry(a, p, m, violated, relaxedRooms))
		entries = append(entries, availabilityEntry(a, p, m, violated, relaxedProfs))
		entries = append(entries, exclusiveEntry(a, violated))
		if a.RoomClass != "" {
			entries = append(entries, equipmentEntry(a, p, violated))
		}

		for _, pref := range m.Preferences() {
			if !pref.Covers(a) {
				continue
			}
			entries = append(entries, preferenceEntry(a, pref, violated))
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Constraint < entries[j].Constraint })

		records[id] = RationaleRecord{
			ActivityID: id,
			Placement:  p,
			Entries:    entries,
		}
	}

	return records
}

// violationIndex maps activity ID to the violations reported on it, by kind.
type violationIndex map[string]map[model.ViolationKind][]model.ConstraintViolation

func indexViolations(violations []model.ConstraintViolation) violationIndex {
	idx := make(violationIndex)
	for _, v := range violations {
		for _, id := range v.Activities {
			if idx[id] == nil {
				idx[id] = make(map[model.ViolationKind][]model.ConstraintViolation)
			}
			idx[id][v.Kind] = append(idx[id][v.Kind], v)
		}
	}
	return idx
}

func (idx violationIndex) has(id string, kind model.ViolationKind) (model.ConstraintViolation, bool) {
	vs := idx[id][kind]
	if len(vs) == 0 {
		return model.ConstraintViolation{}, false
	}
	return vs[0], true
}

func relaxedProfessors(m *model.Model) map[string]bool {
	out := make(map[string]bool)
	for _, r := range m.Relaxations() {
		if r.Kind == model.RelaxAvailability {
			out[r.ResourceID] = true
		}
	}
	return out
}

func relaxedRoomCaps(m *model.Model) map[string]bool {
	out := make(map[string]bool)
	for _, r := range m.Relaxations() {
		if r.Kind == model.RelaxCapacity {
			out[r.ResourceID] = true
		}
	}
	return out
}

func capacityEntry(a model.Activity, p model.Placement, m *model.Model, violated violationIndex, relaxedRooms map[string]bool) Entry {
	e := Entry{Constraint: "capacity:" + p.RoomID, Outcome: OutcomeSatisfied}
	room, ok := m.Room(p.RoomID)
	if ok {
		e.Detail = fmt.Sprintf("capacity %d, enrollment %d", room.Capacity, a.Enrollment)
	}
	if _, bad := violated.has(a.ID, model.ViolationCapacity); bad {
		e.Outcome = OutcomeTradedOff
	} else if relaxedRooms[p.RoomID] {
		e.Outcome = OutcomeTradedOff
		e.Detail = "capacity met via admin override"
	}
	return e
}

func availabilityEntry(a model.Activity, p model.Placement, m *model.Model, violated violationIndex, relaxedProfs map[string]bool) Entry {
	e := Entry{
		Constraint: "availability:" + a.ProfessorID,
		Outcome:    OutcomeSatisfied,
		Detail:     fmt.Sprintf("slot %s", p.Slot),
	}
	if _, bad := violated.has(a.ID, model.ViolationAvailability); bad {
		e.Outcome = OutcomeTradedOff
	} else if relaxedProfs[a.ProfessorID] {
		e.Outcome = OutcomeTradedOff
		e.Detail = "placed under a relaxed availability window"
	}
	return e
}

func exclusiveEntry(a model.Activity, violated violationIndex) Entry {
	e := Entry{Constraint: "exclusive-use", Outcome: OutcomeSatisfied}
	if v, bad := violated.has(a.ID, model.ViolationDoubleBooking); bad {
		e.Outcome = OutcomeTradedOff
		e.Detail = v.Detail
	}
	return e
}

func equipmentEntry(a model.Activity, p model.Placement, violated violationIndex) Entry {
	e := Entry{
		Constraint: "equipment:" + a.RoomClass,
		Outcome:    OutcomeSatisfied,
		Detail:     fmt.Sprintf("room %s provides %q", p.RoomID, a.RoomClass),
	}
	if _, bad := violated.has(a.ID, model.ViolationEquipment); bad {
		e.Outcome = OutcomeTradedOff
		e.Detail = ""
	}
	return e
}

func preferenceEntry(a model.Activity, pref model.Preference, violated violationIndex) Entry {
	e := Entry{
		Constraint:         "preference:" + pref.ID,
		Outcome:            OutcomeSatisfied,
		WeightContribution: pref.Weight,
		Detail:             string(pref.Kind),
	}
	for _, v := range violated[a.ID][model.ViolationPreference] {
		if v.ResourceID == pref.ID {
			e.Outcome = OutcomeTradedOff
			e.WeightContribution = 0
			break
		}
	}
	return e
}
