// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

func buildModel(t *testing.T, resources []model.Resource, activities []model.Activity, prefs []model.Preference) *model.Model {
	t.Helper()
	m, err := model.Build(resources, activities, prefs,
		model.Grid{TickMinutes: 15, TicksPerDay: 40, Days: 5})
	require.NoError(t, err)
	return m
}

// Two professors, one room: both activities in the same slot must yield
// exactly one hard double-booking violation naming both activities.
func TestDetect_RoomDoubleBooking(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "prof-b", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
			{ID: "a2", Duration: 4, ProfessorID: "prof-b", Enrollment: 20},
		},
		nil,
	)

	slot := model.Slot{Day: 0, Start: 4, Duration: 4}
	assignment := model.Assignment{
		"a1": {Slot: slot, RoomID: "room-1"},
		"a2": {Slot: slot, RoomID: "room-1"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 1)
	assert.Equal(t, model.ViolationDoubleBooking, vs[0].Kind)
	assert.Equal(t, model.SeverityHard, vs[0].Severity)
	assert.Equal(t, []string{"a1", "a2"}, vs[0].Activities)
	assert.Equal(t, "room-1", vs[0].ResourceID)
}

func TestDetect_ProfessorDoubleBooking(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
			{ID: "room-2", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a"},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a"},
		},
		nil,
	)

	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"},
		"a2": {Slot: model.Slot{Day: 0, Start: 6, Duration: 4}, RoomID: "room-2"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 1)
	assert.Equal(t, model.ViolationDoubleBooking, vs[0].Kind)
	assert.Equal(t, "prof-a", vs[0].ResourceID)
}

func TestDetect_CapacityAndEquipment(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 10},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 25, RoomClass: "lab"},
		},
		nil,
	)

	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-1"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 2)
	assert.Equal(t, model.ViolationCapacity, vs[0].Kind)
	assert.Equal(t, model.ViolationEquipment, vs[1].Kind)
	for _, v := range vs {
		assert.Equal(t, model.SeverityHard, v.Severity)
	}
}

// Ordering among hard violations follows the activity IDs involved, not the
// kind: an equipment finding on a1 alone precedes a professor double-booking
// naming a1 and a2.
func TestDetect_OrderedByActivitiesAcrossKinds(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
			{ID: "room-2", Kind: model.KindRoom, Capacity: 30, Classes: []string{"lab"}},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20, RoomClass: "lab"},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
		},
		nil,
	)

	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-1"},
		"a2": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-2"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 2)
	assert.Equal(t, model.ViolationEquipment, vs[0].Kind)
	assert.Equal(t, []string{"a1"}, vs[0].Activities)
	assert.Equal(t, model.ViolationDoubleBooking, vs[1].Kind)
	assert.Equal(t, []string{"a1", "a2"}, vs[1].Activities)
}

// A slot off the grid and a slot with the wrong duration are both hard
// violations, each reported with the rule it broke rather than as a window
// problem.
func TestDetect_MalformedSlotDetails(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
		},
		nil,
	)

	assignment := model.Assignment{
		// Day 7 does not exist on a 5-day grid.
		"a1": {Slot: model.Slot{Day: 7, Start: 0, Duration: 4}, RoomID: "room-1"},
		// On-grid, but shorter than the activity needs.
		"a2": {Slot: model.Slot{Day: 1, Start: 0, Duration: 2}, RoomID: "room-1"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 2)
	assert.Equal(t, model.SeverityHard, vs[0].Severity)
	assert.Contains(t, vs[0].Detail, "grid validity")
	assert.Equal(t, []string{"a1"}, vs[0].Activities)
	assert.Contains(t, vs[1].Detail, "does not match activity duration")
	assert.Equal(t, []string{"a2"}, vs[1].Activities)
}

func TestDetect_AvailabilitySeverity(t *testing.T) {
	resources := []model.Resource{
		{ID: "prof-req", Kind: model.KindProfessor, Windows: []model.Window{
			{Day: 0, Start: 0, End: 8, Mode: model.WindowRequired},
		}},
		{ID: "prof-soft", Kind: model.KindProfessor, Windows: []model.Window{
			{Day: 0, Start: 0, End: 8, Mode: model.WindowPreferred},
		}},
		{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
	}
	m := buildModel(t, resources,
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-req"},
			{ID: "a2", Duration: 4, ProfessorID: "prof-soft"},
		},
		nil,
	)

	// Both placed outside their single window.
	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 1, Start: 0, Duration: 4}, RoomID: "room-1"},
		"a2": {Slot: model.Slot{Day: 1, Start: 8, Duration: 4}, RoomID: "room-1"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 2)
	assert.Equal(t, model.SeverityHard, vs[0].Severity, "required window makes breach hard")
	assert.Equal(t, []string{"a1"}, vs[0].Activities)
	assert.Equal(t, model.SeveritySoft, vs[1].Severity, "preferred-only windows make breach soft")
	assert.Equal(t, []string{"a2"}, vs[1].Activities)
}

func TestDetect_PreferenceViolationIsSoft(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a"},
		},
		[]model.Preference{
			// "no slot before 9:00": with 15-minute ticks from 08:00, tick 4.
			{ID: "p-morning", Kind: model.PrefNoEarlierThan, Weight: 5, Subject: "prof-a", Tick: 4},
		},
	)

	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-1"},
	}

	vs := Detect(assignment, m)
	require.Len(t, vs, 1)
	assert.Equal(t, model.ViolationPreference, vs[0].Kind)
	assert.Equal(t, model.SeveritySoft, vs[0].Severity)
	assert.Equal(t, []string{"a1"}, vs[0].Activities)

	// Moving the activity past the tick clears the report.
	assignment["a1"] = model.Placement{Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"}
	assert.Empty(t, Detect(assignment, m))
}

func TestDetect_Deterministic(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "prof-b", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 5},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 10},
			{ID: "a2", Duration: 4, ProfessorID: "prof-b", Enrollment: 10},
			{ID: "a3", Duration: 4, ProfessorID: "prof-a", Enrollment: 10},
		},
		nil,
	)

	slot := model.Slot{Day: 0, Start: 0, Duration: 4}
	assignment := model.Assignment{
		"a1": {Slot: slot, RoomID: "room-1"},
		"a2": {Slot: slot, RoomID: "room-1"},
		"a3": {Slot: slot, RoomID: "room-1"},
	}

	first := Detect(assignment, m)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Detect(assignment, m))
	}
}

func TestDetect_PartialAssignment(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a"},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a"},
		},
		nil,
	)

	// Only a1 placed; unplaced a2 is not a violation.
	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-1"},
	}
	assert.Empty(t, Detect(assignment, m))
}
