// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

func buildModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(
		[]model.Resource{
			{ID: "prof-a", Kind: model.KindProfessor, Windows: []model.Window{
				{Day: 0, Start: 0, End: 8, Mode: model.WindowRequired},
				{Day: 1, Start: 0, End: 40, Mode: model.WindowRequired},
			}},
			{ID: "room-1", Kind: model.KindRoom, Capacity: 20},
		},
		[]model.Activity{
			{ID: "a1", Duration: 4, ProfessorID: "prof-a", Enrollment: 35},
		},
		nil,
		model.Grid{TickMinutes: 15, TicksPerDay: 40, Days: 5},
	)
	require.NoError(t, err)
	return m
}

func TestPropose_AvailabilityOptionsCheapestFirst(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	opts := adv.Propose(m, []model.ConstraintViolation{{
		Kind:       model.ViolationAvailability,
		Severity:   model.SeverityHard,
		Activities: []string{"a1"},
		ResourceID: "prof-a",
	}})

	require.Len(t, opts, 2)
	// The narrow 8-tick window is cheaper to downgrade than the full-day one.
	assert.Equal(t, 0, opts[0].Relaxation.WindowIndex)
	assert.Equal(t, 1, opts[1].Relaxation.WindowIndex)
	assert.Less(t, opts[0].EstimatedImpact, opts[1].EstimatedImpact)
}

func TestPropose_CapacityOverride(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	opts := adv.Propose(m, []model.ConstraintViolation{{
		Kind:       model.ViolationCapacity,
		Severity:   model.SeverityHard,
		Activities: []string{"a1"},
		ResourceID: "room-1",
	}})

	require.Len(t, opts, 1)
	assert.Equal(t, model.RelaxCapacity, opts[0].Relaxation.Kind)
	assert.Equal(t, 35, opts[0].Relaxation.NewCapacity)
}

func TestPropose_SkipsAlreadyRelaxed(t *testing.T) {
	m := buildModel(t)
	relaxed, err := m.Relax(model.Relaxation{Kind: model.RelaxAvailability, ResourceID: "prof-a", WindowIndex: 0})
	require.NoError(t, err)

	adv := NewAdvisor(nil, nil)
	opts := adv.Propose(relaxed, []model.ConstraintViolation{{
		Kind:       model.ViolationAvailability,
		Severity:   model.SeverityHard,
		Activities: []string{"a1"},
		ResourceID: "prof-a",
	}})

	require.Len(t, opts, 1, "window 0 is no longer required, only window 1 remains")
	assert.Equal(t, 1, opts[0].Relaxation.WindowIndex)
}

func TestPropose_GenericEscapeWhenNoRelaxableViolation(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	// Double-booking has no modeled relaxation, so the advisor falls back
	// to offering every required window plus a capacity override for the
	// oversubscribed activity.
	opts := adv.Propose(m, []model.ConstraintViolation{{
		Kind:       model.ViolationDoubleBooking,
		Severity:   model.SeverityHard,
		Activities: []string{"a1", "a2"},
		ResourceID: "prof-a",
	}})

	require.Len(t, opts, 3)
	for _, o := range opts {
		assert.Equal(t, "generic", o.Reason)
	}
}

// Without any violation to react to, an activity no room can seat still
// yields a capacity override targeting the largest candidate room. It is
// the cheapest option here, so it leads the list.
func TestPropose_GenericEscapeOffersCapacityOverride(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	opts := adv.Propose(m, nil)

	require.Len(t, opts, 3)
	assert.Equal(t, model.RelaxCapacity, opts[0].Relaxation.Kind)
	assert.Equal(t, "room-1", opts[0].Relaxation.ResourceID)
	assert.Equal(t, 35, opts[0].Relaxation.NewCapacity)
	assert.Equal(t, []string{"a1"}, opts[0].Activities)
}

func TestPropose_IgnoresSoftViolations(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	opts := adv.Propose(m, []model.ConstraintViolation{{
		Kind:       model.ViolationPreference,
		Severity:   model.SeveritySoft,
		Activities: []string{"a1"},
	}})

	// Soft violations alone trigger the generic escape, not preference
	// relaxation: preferences are already soft.
	require.Len(t, opts, 3)
	assert.Equal(t, "generic", opts[0].Reason)
}

type stubRanker struct {
	order []int
	err   error
}

func (s *stubRanker) RankRelaxations(_ context.Context, _ []RelaxationOption) ([]int, error) {
	return s.order, s.err
}

func TestRank_AppliesPermutation(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(&stubRanker{order: []int{1, 0}}, nil)

	opts := adv.Propose(m, nil)
	require.Len(t, opts, 3)

	ranked := adv.Rank(context.Background(), opts)
	assert.Equal(t, opts[1], ranked[0])
	assert.Equal(t, opts[0], ranked[1])
}

func TestRank_FilterKeepsDroppedOptions(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(&stubRanker{order: []int{1}}, nil)

	opts := adv.Propose(m, nil)
	ranked := adv.Rank(context.Background(), opts)

	require.Len(t, ranked, 3, "filtered options are re-appended")
	assert.Equal(t, opts[1], ranked[0])
	assert.Equal(t, opts[0], ranked[1])
	assert.Equal(t, opts[2], ranked[2])
}

func TestRank_FallsBackOnError(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(&stubRanker{err: errors.New("service down")}, nil)

	opts := adv.Propose(m, nil)
	ranked := adv.Rank(context.Background(), opts)
	assert.Equal(t, opts, ranked)
}

func TestRank_FallsBackOnInvalidReply(t *testing.T) {
	m := buildModel(t)

	for _, bad := range [][]int{{0, 0}, {5}, {-1}} {
		adv := NewAdvisor(&stubRanker{order: bad}, nil)
		opts := adv.Propose(m, nil)
		assert.Equal(t, opts, adv.Rank(context.Background(), opts))
	}
}

func TestRank_NilRankerKeepsOrder(t *testing.T) {
	m := buildModel(t)
	adv := NewAdvisor(nil, nil)

	opts := adv.Propose(m, nil)
	assert.Equal(t, opts, adv.Rank(context.Background(), opts))
}
