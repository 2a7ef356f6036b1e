// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"fmt"
	"sort"
)

// Model is the immutable constraint model for one scheduling run.
//
// Description:
//
//	Model indexes resources, activities and preferences by ID and exposes
//	them only through accessors that iterate in lexicographic ID order, so
//	every consumer (detector, solver, advisor) sees the same fixed total
//	order regardless of input ordering.
//
// Thread Safety:
//
//	Model is read-only after Build and safe for concurrent use. Relax does
//	not mutate the receiver; it returns a new Model.
type Model struct {
	grid        Grid
	professors  map[string]Resource
	rooms       map[string]Resource
	activities  map[string]Activity
	preferences []Preference

	// sorted ID caches, computed once at build
	professorIDs []string
	roomIDs      []string
	activityIDs  []string

	relaxations []Relaxation
}

// Build validates the snapshot and constructs a Model.
//
// Description:
//
//	Fails with an error wrapping ErrValidation when any activity references
//	an unknown professor, a room capacity is non-positive, a window's end
//	does not follow its start, an activity duration is non-positive, or the
//	grid is degenerate. The first problem found is reported; input order
//	does not affect which one that is because inputs are checked in sorted
//	ID order.
//
// Inputs:
//
//	resources - professors and rooms. IDs must be unique across both kinds.
//	activities - sections to place.
//	preferences - weighted soft constraints.
//	grid - the discretization grid.
//
// Outputs:
//
//	*Model - the validated model. Nil on error.
//	error - non-nil, wrapping ErrValidation, when the snapshot is malformed.
func Build(resources []Resource, activities []Activity, preferences []Preference, grid Grid) (*Model, error) {
	if grid.TickMinutes <= 0 || grid.TicksPerDay <= 0 || grid.Days <= 0 || grid.Days > 7 {
		return nil, fmt.Errorf("%w: invalid grid %+v", ErrValidation, grid)
	}

	m := &Model{
		grid:       grid,
		professors: make(map[string]Resource),
		rooms:      make(map[string]Resource),
		activities: make(map[string]Activity),
	}

	sortedResources := append([]Resource(nil), resources...)
	sort.Slice(sortedResources, func(i, j int) bool { return sortedResources[i].ID < sortedResources[j].ID })

	for _, r := range sortedResources {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: resource with empty ID", ErrValidation)
		}
		if _, dup := m.professors[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate resource ID %q", ErrValidation, r.ID)
		}
		if _, dup := m.rooms[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate resource ID %q", ErrValidation, r.ID)
		}
		switch r.Kind {
		case KindProfessor:
			for i, w := range r.Windows {
				if err := validateWindow(w, grid); err != nil {
					return nil, fmt.Errorf("%w: professor %q window %d: %v", ErrValidation, r.ID, i, err)
				}
			}
			m.professors[r.ID] = r
			m.professorIDs = append(m.professorIDs, r.ID)
		case KindRoom:
			if r.Capacity <= 0 {
				return nil, fmt.Errorf("%w: room %q capacity must be positive, got %d", ErrValidation, r.ID, r.Capacity)
			}
			m.rooms[r.ID] = r
			m.roomIDs = append(m.roomIDs, r.ID)
		default:
			return nil, fmt.Errorf("%w: resource %q has unknown kind %q", ErrValidation, r.ID, r.Kind)
		}
	}

	if len(m.rooms) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no rooms", ErrValidation)
	}

	sortedActivities := append([]Activity(nil), activities...)
	sort.Slice(sortedActivities, func(i, j int) bool { return sortedActivities[i].ID < sortedActivities[j].ID })

	for _, a := range sortedActivities {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: activity with empty ID", ErrValidation)
		}
		if _, dup := m.activities[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate activity ID %q", ErrValidation, a.ID)
		}
		if a.Duration <= 0 || a.Duration > grid.TicksPerDay {
			return nil, fmt.Errorf("%w: activity %q duration %d outside grid", ErrValidation, a.ID, a.Duration)
		}
		if a.Enrollment < 0 {
			return nil, fmt.Errorf("%w: activity %q negative enrollment", ErrValidation, a.ID)
		}
		if _, ok := m.professors[a.ProfessorID]; !ok {
			return nil, fmt.Errorf("%w: activity %q references professor %q: %v",
				ErrValidation, a.ID, a.ProfessorID, ErrUnknownResource)
		}
		m.activities[a.ID] = a
		m.activityIDs = append(m.activityIDs, a.ID)
	}

	sortedPrefs := append([]Preference(nil), preferences...)
	sort.Slice(sortedPrefs, func(i, j int) bool { return sortedPrefs[i].ID < sortedPrefs[j].ID })

	for _, p := range sortedPrefs {
		if err := m.validatePreference(p); err != nil {
			return nil, err
		}
	}
	m.preferences = sortedPrefs

	return m, nil
}

func validateWindow(w Window, grid Grid) error {
	if w.Day < 0 || w.Day >= grid.Days {
		return fmt.Errorf("day %d outside grid", w.Day)
	}
	if w.Start < 0 || w.End > grid.TicksPerDay || w.End <= w.Start {
		return fmt.Errorf("interval [%d,%d) invalid", w.Start, w.End)
	}
	switch w.Mode {
	case WindowRequired, WindowPreferred, WindowAvailable:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", w.Mode)
	}
}

func (m *Model) validatePreference(p Preference) error {
	if p.Weight < 0 {
		return fmt.Errorf("%w: preference %q has negative weight", ErrValidation, p.ID)
	}
	switch p.Kind {
	case PrefNoEarlierThan, PrefNoLaterThan:
		if p.Tick < 0 || p.Tick > m.grid.TicksPerDay {
			return fmt.Errorf("%w: preference %q tick %d outside grid", ErrValidation, p.ID, p.Tick)
		}
	case PrefDaysFree:
		for _, d := range p.Days {
			if d < 0 || d >= m.grid.Days {
				return fmt.Errorf("%w: preference %q day %d outside grid", ErrValidation, p.ID, d)
			}
		}
	case PrefCompactDays:
		if p.MaxDays <= 0 {
			return fmt.Errorf("%w: preference %q max_days must be positive", ErrValidation, p.ID)
		}
	case PrefRoomPreference:
		if _, ok := m.rooms[p.RoomID]; !ok {
			return fmt.Errorf("%w: preference %q references room %q: %v",
				ErrValidation, p.ID, p.RoomID, ErrUnknownResource)
		}
	default:
		return fmt.Errorf("%w: preference %q has unknown kind %q", ErrValidation, p.ID, p.Kind)
	}
	if p.Subject != "" {
		if _, ok := m.professors[p.Subject]; !ok {
			return fmt.Errorf("%w: preference %q subject %q: %v",
				ErrValidation, p.ID, p.Subject, ErrUnknownResource)
		}
	}
	for _, id := range p.Activities {
		if _, ok := m.activities[id]; !ok {
			return fmt.Errorf("%w: preference %q covers unknown activity %q", ErrValidation, p.ID, id)
		}
	}
	return nil
}

// Grid returns the scheduling grid.
func (m *Model) Grid() Grid { return m.grid }

// ActivityIDs returns all activity IDs in lexicographic order.
func (m *Model) ActivityIDs() []string {
	return append([]string(nil), m.activityIDs...)
}

// RoomIDs returns all room IDs in lexicographic order.
func (m *Model) RoomIDs() []string {
	return append([]string(nil), m.roomIDs...)
}

// ProfessorIDs returns all professor IDs in lexicographic order.
func (m *Model) ProfessorIDs() []string {
	return append([]string(nil), m.professorIDs...)
}

// Activity looks up an activity by ID.
func (m *Model) Activity(id string) (Activity, bool) {
	a, ok := m.activities[id]
	return a, ok
}

// Room looks up a room by ID.
func (m *Model) Room(id string) (Resource, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// Professor looks up a professor by ID.
func (m *Model) Professor(id string) (Resource, bool) {
	p, ok := m.professors[id]
	return p, ok
}

// Preferences returns the preferences in lexicographic ID order.
func (m *Model) Preferences() []Preference {
	return append([]Preference(nil), m.preferences...)
}

// Relaxations returns the audit history of relaxations applied to this
// model version, in application order.
func (m *Model) Relaxations() []Relaxation {
	return append([]Relaxation(nil), m.relaxations...)
}
