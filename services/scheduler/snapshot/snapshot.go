// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snapshot decodes constraint model snapshots supplied by the
// external data layer.
//
// The snapshot is the read-only input to a run: resources, activities,
// preferences and the time grid, as JSON. Structural validation happens
// here with validator tags; semantic validation (cross-references,
// window sanity) happens in model.Build.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// snapshotValidate is the validator instance for snapshot types.
var snapshotValidate *validator.Validate

func init() {
	snapshotValidate = validator.New()
}

// GridSpec is the time grid of a snapshot.
type GridSpec struct {
	TickMinutes int `json:"tick_minutes" validate:"required,gt=0,lte=60"`
	TicksPerDay int `json:"ticks_per_day" validate:"required,gt=0"`
	Days        int `json:"days" validate:"required,gt=0,lte=7"`
}

// WindowSpec is one availability window of a resource.
type WindowSpec struct {
	Day   int    `json:"day" validate:"gte=0,lte=6"`
	Start int    `json:"start" validate:"gte=0"`
	End   int    `json:"end" validate:"required,gt=0"`
	Mode  string `json:"mode" validate:"required,oneof=required preferred available"`
}

// ResourceSpec is one professor or room.
type ResourceSpec struct {
	ID       string       `json:"id" validate:"required"`
	Kind     string       `json:"kind" validate:"required,oneof=professor room"`
	Capacity int          `json:"capacity" validate:"gte=0"`
	Classes  []string     `json:"classes,omitempty" validate:"dive,required"`
	Windows  []WindowSpec `json:"windows,omitempty" validate:"dive"`
}

// ActivitySpec is one unit of teaching to place.
type ActivitySpec struct {
	ID          string `json:"id" validate:"required"`
	Duration    int    `json:"duration" validate:"required,gt=0"`
	ProfessorID string `json:"professor_id" validate:"required"`
	RoomClass   string `json:"room_class,omitempty"`
	Enrollment  int    `json:"enrollment" validate:"gte=0"`
}

// PreferenceSpec is one weighted soft preference.
type PreferenceSpec struct {
	ID         string   `json:"id" validate:"required"`
	Kind       string   `json:"kind" validate:"required,oneof=no-earlier-than no-later-than days-free compact-days room-preference"`
	Weight     float64  `json:"weight" validate:"required,gt=0"`
	Subject    string   `json:"subject,omitempty"`
	Activities []string `json:"activities,omitempty" validate:"dive,required"`
	Tick       int      `json:"tick,omitempty" validate:"gte=0"`
	Days       []int    `json:"days,omitempty" validate:"dive,gte=0,lte=6"`
	MaxDays    int      `json:"max_days,omitempty" validate:"gte=0,lte=7"`
	RoomID     string   `json:"room_id,omitempty"`
}

// Snapshot is the full constraint model input for one run.
type Snapshot struct {
	Grid        GridSpec         `json:"grid" validate:"required"`
	Resources   []ResourceSpec   `json:"resources" validate:"required,min=1,dive"`
	Activities  []ActivitySpec   `json:"activities" validate:"required,min=1,dive"`
	Preferences []PreferenceSpec `json:"preferences,omitempty" validate:"dive"`
}

// Validate checks the snapshot's structure against its tags.
func (s *Snapshot) Validate() error {
	if err := snapshotValidate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return nil
}

// Decode reads and validates a snapshot from JSON.
//
// Outputs:
//
//	*Snapshot - The decoded snapshot. Nil on error.
//	error - Wraps model.ErrValidation for malformed input.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", model.ErrValidation, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a snapshot from a file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// BuildModel converts the snapshot into a validated constraint model.
func (s *Snapshot) BuildModel() (*model.Model, error) {
	resources := make([]model.Resource, len(s.Resources))
	for i, r := range s.Resources {
		windows := make([]model.Window, len(r.Windows))
		for j, w := range r.Windows {
			windows[j] = model.Window{
				Day:   w.Day,
				Start: w.Start,
				End:   w.End,
				Mode:  model.WindowMode(w.Mode),
			}
		}
		resources[i] = model.Resource{
			ID:       r.ID,
			Kind:     model.ResourceKind(r.Kind),
			Capacity: r.Capacity,
			Classes:  append([]string(nil), r.Classes...),
			Windows:  windows,
		}
	}

	activities := make([]model.Activity, len(s.Activities))
	for i, a := range s.Activities {
		activities[i] = model.Activity{
			ID:          a.ID,
			Duration:    a.Duration,
			ProfessorID: a.ProfessorID,
			RoomClass:   a.RoomClass,
			Enrollment:  a.Enrollment,
		}
	}

	preferences := make([]model.Preference, len(s.Preferences))
	for i, p := range s.Preferences {
		preferences[i] = model.Preference{
			ID:         p.ID,
			Kind:       model.PreferenceKind(p.Kind),
			Weight:     p.Weight,
			Subject:    p.Subject,
			Activities: append([]string(nil), p.Activities...),
			Tick:       p.Tick,
			Days:       append([]int(nil), p.Days...),
			MaxDays:    p.MaxDays,
			RoomID:     p.RoomID,
		}
	}

	grid := model.Grid{
		TickMinutes: s.Grid.TickMinutes,
		TicksPerDay: s.Grid.TicksPerDay,
		Days:        s.Grid.Days,
	}

	return model.Build(resources, activities, preferences, grid)
}
