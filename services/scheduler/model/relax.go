// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "fmt"

// Relax returns a new model with one relaxation applied.
//
// Description:
//
//	RelaxAvailability downgrades the referenced required window of a
//	professor to preferred. RelaxCapacity replaces a room's capacity with
//	the admin-supplied override (which must exceed the current capacity).
//	The receiver is never mutated; the returned model carries the receiver's
//	relaxation history plus the new entry. Applying a relaxation already in
//	the history is a no-op returning an equivalent model, so Relax is
//	idempotent per (kind, resource, window).
//
// Inputs:
//
//	r - the relaxation to apply.
//
// Outputs:
//
//	*Model - the relaxed model. Equal to a copy of the receiver when the
//	relaxation was already applied.
//	error - non-nil, wrapping ErrUnknownRelaxation, when the relaxation
//	does not match any window or room of this model.
func (m *Model) Relax(r Relaxation) (*Model, error) {
	for _, applied := range m.relaxations {
		if applied.Key() == r.Key() {
			return m.clone(), nil
		}
	}

	next := m.clone()

	switch r.Kind {
	case RelaxAvailability:
		prof, ok := next.professors[r.ResourceID]
		if !ok {
			return nil, fmt.Errorf("%w: no professor %q", ErrUnknownRelaxation, r.ResourceID)
		}
		if r.WindowIndex < 0 || r.WindowIndex >= len(prof.Windows) {
			return nil, fmt.Errorf("%w: professor %q has no window %d", ErrUnknownRelaxation, r.ResourceID, r.WindowIndex)
		}
		if prof.Windows[r.WindowIndex].Mode != WindowRequired {
			return nil, fmt.Errorf("%w: professor %q window %d is not required", ErrUnknownRelaxation, r.ResourceID, r.WindowIndex)
		}
		windows := append([]Window(nil), prof.Windows...)
		windows[r.WindowIndex].Mode = WindowPreferred
		prof.Windows = windows
		next.professors[r.ResourceID] = prof

	case RelaxCapacity:
		room, ok := next.rooms[r.ResourceID]
		if !ok {
			return nil, fmt.Errorf("%w: no room %q", ErrUnknownRelaxation, r.ResourceID)
		}
		if r.NewCapacity <= room.Capacity {
			return nil, fmt.Errorf("%w: room %q override %d does not exceed capacity %d",
				ErrUnknownRelaxation, r.ResourceID, r.NewCapacity, room.Capacity)
		}
		room.Capacity = r.NewCapacity
		next.rooms[r.ResourceID] = room

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnknownRelaxation, r.Kind)
	}

	next.relaxations = append(next.relaxations, r)
	return next, nil
}

// clone copies the model. Maps are copied shallowly per entry; entries are
// value types, so mutating a clone's entry never leaks into the original.
func (m *Model) clone() *Model {
	next := &Model{
		grid:         m.grid,
		professors:   make(map[string]Resource, len(m.professors)),
		rooms:        make(map[string]Resource, len(m.rooms)),
		activities:   make(map[string]Activity, len(m.activities)),
		preferences:  append([]Preference(nil), m.preferences...),
		professorIDs: append([]string(nil), m.professorIDs...),
		roomIDs:      append([]string(nil), m.roomIDs...),
		activityIDs:  append([]string(nil), m.activityIDs...),
		relaxations:  append([]Relaxation(nil), m.relaxations...),
	}
	for k, v := range m.professors {
		next.professors[k] = v
	}
	for k, v := range m.rooms {
		next.rooms[k] = v
	}
	for k, v := range m.activities {
		next.activities[k] = v
	}
	return next
}
