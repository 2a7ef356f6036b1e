// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/timetabler/services/scheduler/detect"
	"github.com/campusworks/timetabler/services/scheduler/model"
)

func buildModel(t *testing.T, resources []model.Resource, activities []model.Activity, prefs []model.Preference, grid model.Grid) *model.Model {
	t.Helper()
	m, err := model.Build(resources, activities, prefs, grid)
	require.NoError(t, err)
	return m
}

func smallGrid() model.Grid {
	return model.Grid{TickMinutes: 15, TicksPerDay: 8, Days: 2}
}

// Two professors, one room; both activities would take the same
// slot, but the grid offers alternatives, so the result has no violations.
func TestGenerate_ResolvesRoomContention(t *testing.T) {
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
		nil, smallGrid(),
	)

	res, err := Generate(context.Background(), m, nil, Budget{})
	require.NoError(t, err)
	require.Len(t, res.Assignment, 2)
	assert.False(t, detect.HasHard(res.Violations))
	assert.False(t, res.Assignment["a1"].Slot.Overlaps(res.Assignment["a2"].Slot))
}

// Any model with a fully feasible assignment generates
// one with zero hard violations.
func TestGenerate_FeasibleModelHasNoHardViolations(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor, Windows: []model.Window{
				{Day: 0, Start: 0, End: 8, Mode: model.WindowRequired},
			}},
			{ID: "prof-b", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
			{ID: "room-2", Kind: model.KindRoom, Capacity: 60, Classes: []string{"lab"}},
		},
		[]model.Activity{
			{ID: "a1", Duration: 2, ProfessorID: "prof-a", Enrollment: 20},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a", Enrollment: 25},
			{ID: "a3", Duration: 4, ProfessorID: "prof-b", Enrollment: 50, RoomClass: "lab"},
			{ID: "a4", Duration: 2, ProfessorID: "prof-b", Enrollment: 10},
		},
		nil, smallGrid(),
	)

	res, err := Generate(context.Background(), m, nil, Budget{})
	require.NoError(t, err)
	assert.False(t, detect.HasHard(detect.Detect(res.Assignment, m)))
	assert.Equal(t, "room-2", res.Assignment["a3"].RoomID, "lab activity must take the lab room")
}

// When "no slot before 9:00" (weight 5) and "end by 9:00"
// (weight 3) cannot both hold, the chosen assignment satisfies the
// higher-weighted preference.
func TestGenerate_HigherWeightedPreferenceWins(t *testing.T) {
	grid := model.Grid{TickMinutes: 15, TicksPerDay: 8, Days: 1}
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
		},
		[]model.Preference{
			{ID: "p-late-start", Kind: model.PrefNoEarlierThan, Weight: 5, Subject: "prof-a", Tick: 4},
			{ID: "p-early-end", Kind: model.PrefNoLaterThan, Weight: 3, Subject: "prof-a", Tick: 4},
		},
		grid,
	)

	res, err := Generate(context.Background(), m, nil, Budget{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
	assert.GreaterOrEqual(t, res.Assignment["a1"].Slot.Start, 4)
}

func TestGenerate_Deterministic(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "prof-b", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
			{ID: "room-2", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
			{ID: "a2", Duration: 4, ProfessorID: "prof-b", Enrollment: 20},
			{ID: "a3", Duration: 2, ProfessorID: "prof-a", Enrollment: 20},
		},
		[]model.Preference{
			{ID: "p1", Kind: model.PrefNoEarlierThan, Weight: 2, Subject: "prof-a", Tick: 2},
			{ID: "p2", Kind: model.PrefCompactDays, Weight: 1, Subject: "prof-b", MaxDays: 1},
		},
		smallGrid(),
	)

	first, err := Generate(context.Background(), m, nil, Budget{SwapWorkers: 1})
	require.NoError(t, err)

	// Repeated runs and different worker counts must agree exactly.
	for _, workers := range []int{1, 2, 8} {
		res, err := Generate(context.Background(), m, nil, Budget{SwapWorkers: workers})
		require.NoError(t, err)
		assert.Equal(t, first.Assignment, res.Assignment, "workers=%d", workers)
		assert.Equal(t, first.Score, res.Score, "workers=%d", workers)
	}
}

// Two activities both requiring the only professor, whose only binding
// window fits exactly one of them: permanently infeasible.
// Two placements can score identically while only one of them is free of
// soft violations; the winner must be the violation-free one.
func TestGenerate_EqualScoreTieBreaksToFewerViolations(t *testing.T) {
	// Starting at tick 2 satisfies the preference but sits outside the
	// professor's preferred window, a soft availability breach. Starting at
	// tick 4 scores the same with no violations at all.
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor, Windows: []model.Window{
				{Day: 0, Start: 4, End: 8, Mode: model.WindowPreferred},
			}},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 2, ProfessorID: "prof-a", Enrollment: 20},
		},
		[]model.Preference{
			{ID: "p1", Kind: model.PrefNoEarlierThan, Weight: 1, Subject: "prof-a", Tick: 2},
		},
		smallGrid(),
	)

	res, err := Generate(context.Background(), m, nil, Budget{})
	require.NoError(t, err)
	assert.Equal(t, MaxScore(m), res.Score)
	assert.Empty(t, res.Violations)
	assert.Equal(t, model.Placement{
		Slot:   model.Slot{Day: 0, Start: 4, Duration: 2},
		RoomID: "room-1",
	}, res.Assignment["a1"])
}

func TestGenerate_Infeasible(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor, Windows: []model.Window{
				{Day: 0, Start: 0, End: 4, Mode: model.WindowRequired},
			}},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a"},
			{ID: "a2", Duration: 4, ProfessorID: "prof-a"},
		},
		nil, smallGrid(),
	)

	_, err := Generate(context.Background(), m, nil, Budget{})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestGenerate_EmptyDomainIsInfeasible(t *testing.T) {
	// Activity needs a lab; no room has one.
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", RoomClass: "lab"},
		},
		nil, smallGrid(),
	)

	_, err := Generate(context.Background(), m, nil, Budget{})
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.ErrorIs(t, err, ErrEmptyDomain)
	assert.ErrorContains(t, err, "a1")

	var emptyDomain *EmptyDomainError
	require.ErrorAs(t, err, &emptyDomain)
	assert.Equal(t, "a1", emptyDomain.ActivityID)
	require.Len(t, emptyDomain.Causes, 1)
	assert.Equal(t, model.ViolationEquipment, emptyDomain.Causes[0].Kind)
	assert.Equal(t, model.SeverityHard, emptyDomain.Causes[0].Severity)
}

// A room shortfall leaves the domain empty before any placement exists;
// the error must name the blocked activity and the closest room so the
// resolution loop has a capacity violation to work with.
func TestGenerate_EmptyDomainDiagnosesCapacity(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 10},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
		},
		nil, smallGrid(),
	)

	_, err := Generate(context.Background(), m, nil, Budget{})

	var emptyDomain *EmptyDomainError
	require.ErrorAs(t, err, &emptyDomain)
	assert.Equal(t, "a1", emptyDomain.ActivityID)
	require.Len(t, emptyDomain.Causes, 1)
	cause := emptyDomain.Causes[0]
	assert.Equal(t, model.ViolationCapacity, cause.Kind)
	assert.Equal(t, model.SeverityHard, cause.Severity)
	assert.Equal(t, "room-1", cause.ResourceID)
	assert.Equal(t, []string{"a1"}, cause.Activities)
}

func TestGenerate_PreviousSeedsPlacements(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "prof-b", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
			{ID: "room-2", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 20},
			{ID: "a2", Duration: 4, ProfessorID: "prof-b", Enrollment: 20},
		},
		nil, smallGrid(),
	)

	previous := model.Assignment{
		"a1": {Slot: model.Slot{Day: 1, Start: 2, Duration: 4}, RoomID: "room-2"},
		"a2": {Slot: model.Slot{Day: 0, Start: 4, Duration: 4}, RoomID: "room-1"},
	}

	res, err := Generate(context.Background(), m, previous, Budget{})
	require.NoError(t, err)
	// No preference pressure, so seeded placements survive.
	assert.Equal(t, previous, res.Assignment)
}

func TestGenerate_CancelledContext(t *testing.T) {
	m := buildModel(t,
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 30},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a"},
		},
		nil, smallGrid(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, m, nil, Budget{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_NilModel(t *testing.T) {
	_, err := Generate(context.Background(), nil, nil, Budget{})
	assert.ErrorIs(t, err, ErrNilModel)
}
