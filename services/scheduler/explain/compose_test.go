// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/timetabler/services/scheduler/detect"
	"github.com/campusworks/timetabler/services/scheduler/model"
)

func buildModel(t *testing.T, prefs []model.Preference) *model.Model {
	t.Helper()
	m, err := model.Build(
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor, Windows: []model.Window{
				{Day: 0, Start: 0, End: 40, Mode: model.WindowRequired},
			}},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
		},
		prefs,
		model.Grid{TickMinutes: 15, TicksPerDay: 40, Days: 5},
	)
	require.NoError(t, err)
	return m
}

func TestCompose_SatisfiedPlacement(t *testing.T) {
	m := buildModel(t, []model.Preference{
		{ID: "p-morning", Kind: model.PrefNoEarlierThan, Weight: 5, Subject: "prof-a", Tick: 4},
	})
	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"},
	}
	violations := detect.Detect(assignment, m)
	require.Empty(t, violations)

	records := Compose(assignment, m, violations)
	require.Len(t, records, 1)

	rec := records["a1"]
	assert.Equal(t, "a1", rec.ActivityID)

	byConstraint := map[string]Entry{}
	for _, e := range rec.Entries {
		byConstraint[e.Constraint] = e
	}
	assert.Equal(t, OutcomeSatisfied, byConstraint["capacity:room-1"].Outcome)
	assert.Equal(t, OutcomeSatisfied, byConstraint["availability:prof-a"].Outcome)
	assert.Equal(t, OutcomeSatisfied, byConstraint["exclusive-use"].Outcome)
	assert.Equal(t, OutcomeSatisfied, byConstraint["preference:p-morning"].Outcome)
	assert.Equal(t, 5.0, byConstraint["preference:p-morning"].WeightContribution)
}

func TestCompose_TradedOffPreference(t *testing.T) {
	m := buildModel(t, []model.Preference{
		{ID: "p-morning", Kind: model.PrefNoEarlierThan, Weight: 5, Subject: "prof-a", Tick: 4},
	})
	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 0, Duration: 4}, RoomID: "room-1"},
	}
	violations := detect.Detect(assignment, m)

	records := Compose(assignment, m, violations)
	rec := records["a1"]

	var prefEntry Entry
	for _, e := range rec.Entries {
		if e.Constraint == "preference:p-morning" {
			prefEntry = e
		}
	}
	assert.Equal(t, OutcomeTradedOff, prefEntry.Outcome)
	assert.Zero(t, prefEntry.WeightContribution)
}

func TestCompose_RelaxedAvailabilityIsTradedOff(t *testing.T) {
	m := buildModel(t, nil)
	relaxed, err := m.Relax(model.Relaxation{Kind: model.RelaxAvailability, ResourceID: "prof-a", WindowIndex: 0})
	require.NoError(t, err)

	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"},
	}
	records := Compose(assignment, relaxed, detect.Detect(assignment, relaxed))

	var availEntry Entry
	for _, e := range records["a1"].Entries {
		if e.Constraint == "availability:prof-a" {
			availEntry = e
		}
	}
	assert.Equal(t, OutcomeTradedOff, availEntry.Outcome)
}

func TestCompose_DeterministicEntryOrder(t *testing.T) {
	m := buildModel(t, []model.Preference{
		{ID: "p-b", Kind: model.PrefNoEarlierThan, Weight: 1, Subject: "prof-a", Tick: 2},
		{ID: "p-a", Kind: model.PrefCompactDays, Weight: 1, Subject: "prof-a", MaxDays: 2},
	})
	assignment := model.Assignment{
		"a1": {Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"},
	}

	first := Compose(assignment, m, detect.Detect(assignment, m))
	second := Compose(assignment, m, detect.Detect(assignment, m))
	assert.Equal(t, first, second)

	var names []string
	for _, e := range first["a1"].Entries {
		names = append(names, e.Constraint)
	}
	assert.IsNonDecreasing(t, names)
}

func TestCompose_SkipsUnplacedActivities(t *testing.T) {
	m := buildModel(t, nil)
	records := Compose(model.Assignment{}, m, nil)
	assert.Empty(t, records)
}
