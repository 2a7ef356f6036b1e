// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model holds the typed constraint model for a scheduling run.
//
// A Model is built once per run from an external snapshot and is read-only
// afterwards. The only way to derive a different model is Relax, which
// returns a new version carrying an audit history of every relaxation
// applied. Constraint and preference definitions are a closed, tagged set
// evaluated by dispatch over the tag; the model never interprets free-form
// structure at runtime.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// ResourceKind distinguishes the two schedulable resource types.
type ResourceKind string

const (
	// KindProfessor is a teaching resource with availability windows.
	KindProfessor ResourceKind = "professor"

	// KindRoom is a physical resource with a capacity and equipment classes.
	KindRoom ResourceKind = "room"
)

// WindowMode tags an availability window.
//
// A required window marks availability the owner declared binding: placing
// an activity outside all windows is a hard violation while the professor
// still has at least one required window. Preferred and available windows
// only carry soft weight.
type WindowMode string

const (
	WindowRequired  WindowMode = "required"
	WindowPreferred WindowMode = "preferred"
	WindowAvailable WindowMode = "available"
)

// Grid defines the discretization of the scheduling week.
//
// All times in the model are tick indices on this grid. A Slot or Window is
// valid only if it lies within [0, TicksPerDay) on a day in [0, Days).
type Grid struct {
	// TickMinutes is the granularity of the grid, e.g. 15.
	TickMinutes int `json:"tick_minutes"`

	// TicksPerDay is the number of ticks in a scheduling day.
	TicksPerDay int `json:"ticks_per_day"`

	// Days is the number of scheduling days per week (1-7).
	Days int `json:"days"`
}

// Contains reports whether the slot lies entirely on the grid.
func (g Grid) Contains(s Slot) bool {
	if s.Day < 0 || s.Day >= g.Days {
		return false
	}
	if s.Start < 0 || s.Duration <= 0 {
		return false
	}
	return s.Start+s.Duration <= g.TicksPerDay
}

// Slot is a discretized (day, start, duration) tuple, all in grid ticks.
type Slot struct {
	Day      int `json:"day"`
	Start    int `json:"start"`
	Duration int `json:"duration"`
}

// End returns the exclusive end tick of the slot.
func (s Slot) End() int { return s.Start + s.Duration }

// Overlaps reports whether two slots share any tick on the same day.
func (s Slot) Overlaps(o Slot) bool {
	return s.Day == o.Day && s.Start < o.End() && o.Start < s.End()
}

// Less imposes the fixed total order used everywhere slots are iterated:
// (Day, Start, Duration) ascending.
func (s Slot) Less(o Slot) bool {
	if s.Day != o.Day {
		return s.Day < o.Day
	}
	if s.Start != o.Start {
		return s.Start < o.Start
	}
	return s.Duration < o.Duration
}

// String renders the slot for logs and violation details.
func (s Slot) String() string {
	return fmt.Sprintf("d%d@%d+%d", s.Day, s.Start, s.Duration)
}

// Window is a day/time interval on the grid, tagged with a mode.
type Window struct {
	Day   int        `json:"day"`
	Start int        `json:"start"`
	End   int        `json:"end"`
	Mode  WindowMode `json:"mode"`
}

// Covers reports whether the slot lies entirely inside the window.
func (w Window) Covers(s Slot) bool {
	return w.Day == s.Day && w.Start <= s.Start && s.End() <= w.End
}

// Resource is a professor or a room.
type Resource struct {
	ID       string       `json:"id"`
	Kind     ResourceKind `json:"kind"`
	Capacity int          `json:"capacity,omitempty"` // rooms only
	Classes  []string     `json:"classes,omitempty"`  // rooms only, e.g. "lab"
	Windows  []Window     `json:"windows,omitempty"`  // professors only
}

// HasClass reports whether the room carries the given equipment class.
func (r Resource) HasClass(class string) bool {
	for _, c := range r.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Activity is a course section needing a placement.
type Activity struct {
	ID          string `json:"id"`
	Duration    int    `json:"duration"` // grid ticks
	ProfessorID string `json:"professor_id"`
	RoomClass   string `json:"room_class,omitempty"` // required equipment class
	Enrollment  int    `json:"enrollment"`
}

// PreferenceKind enumerates the closed set of soft constraint predicates.
type PreferenceKind string

const (
	// PrefNoEarlierThan is satisfied when every covered activity starts at
	// or after Tick.
	PrefNoEarlierThan PreferenceKind = "no-earlier-than"

	// PrefNoLaterThan is satisfied when every covered activity ends at or
	// before Tick.
	PrefNoLaterThan PreferenceKind = "no-later-than"

	// PrefDaysFree is satisfied when no covered activity is placed on any
	// of Days.
	PrefDaysFree PreferenceKind = "days-free"

	// PrefCompactDays is satisfied when the covered activities span at most
	// MaxDays distinct days.
	PrefCompactDays PreferenceKind = "compact-days"

	// PrefRoomPreference is satisfied when every covered activity is placed
	// in RoomID.
	PrefRoomPreference PreferenceKind = "room-preference"
)

// Preference is a weighted soft scheduling wish.
//
// Subject names the professor (or cohort identifier used as professor ID)
// whose activities the preference covers; when Activities is non-empty it
// narrows coverage to those activity IDs instead.
type Preference struct {
	ID         string         `json:"id"`
	Kind       PreferenceKind `json:"kind"`
	Weight     float64        `json:"weight"`
	Subject    string         `json:"subject,omitempty"`
	Activities []string       `json:"activities,omitempty"`

	// Kind-specific parameters.
	Tick    int    `json:"tick,omitempty"`     // no-earlier-than, no-later-than
	Days    []int  `json:"days,omitempty"`     // days-free
	MaxDays int    `json:"max_days,omitempty"` // compact-days
	RoomID  string `json:"room_id,omitempty"`  // room-preference
}

// Covers reports whether the preference applies to the given activity.
func (p Preference) Covers(a Activity) bool {
	if len(p.Activities) > 0 {
		for _, id := range p.Activities {
			if id == a.ID {
				return true
			}
		}
		return false
	}
	return p.Subject == "" || p.Subject == a.ProfessorID
}

// Placement assigns an activity to a slot in a room.
type Placement struct {
	Slot   Slot   `json:"slot"`
	RoomID string `json:"room_id"`
}

// Assignment maps activity ID to its placement. An activity has at most one
// placement; absence means the activity is unplaced.
type Assignment map[string]Placement

// Clone returns an independent copy of the assignment.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ActivityIDs returns the placed activity IDs in lexicographic order.
func (a Assignment) ActivityIDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Severity classifies a constraint violation.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// ViolationKind enumerates the closed set of detectable violations.
type ViolationKind string

const (
	ViolationDoubleBooking ViolationKind = "double-booking"
	ViolationCapacity      ViolationKind = "capacity"
	ViolationAvailability  ViolationKind = "availability"
	ViolationEquipment     ViolationKind = "equipment"
	ViolationPreference    ViolationKind = "preference"
)

// ConstraintViolation is one finding of the conflict detector.
//
// Activities is always sorted, and the detector emits violations in a
// stable order (hard before soft, then by the activity IDs involved, then
// kind), so identical input yields byte-identical reports.
type ConstraintViolation struct {
	Kind       ViolationKind `json:"kind"`
	Severity   Severity      `json:"severity"`
	Activities []string      `json:"activities"`
	ResourceID string        `json:"resource_id,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// Key returns the stable sort/deduplication key for the violation. The
// activity IDs come before the kind so that violations of different kinds
// still order by the activities involved.
func (v ConstraintViolation) Key() string {
	return string(v.Severity) + "|" + strings.Join(v.Activities, ",") + "|" + string(v.Kind) + "|" + v.ResourceID
}

// SortViolations orders violations hard-first, then by the activity IDs
// involved, then by kind. The order is total for well-formed violations.
func SortViolations(vs []ConstraintViolation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Severity != vs[j].Severity {
			return vs[i].Severity == SeverityHard
		}
		return vs[i].Key() < vs[j].Key()
	})
}

// RelaxationKind enumerates the controlled hard-to-soft downgrades.
type RelaxationKind string

const (
	// RelaxAvailability downgrades one required availability window of a
	// professor to preferred.
	RelaxAvailability RelaxationKind = "availability-window"

	// RelaxCapacity applies an admin-supplied capacity override to a room.
	RelaxCapacity RelaxationKind = "capacity-override"
)

// Relaxation records one applied relaxation for audit.
type Relaxation struct {
	Kind        RelaxationKind `json:"kind"`
	ResourceID  string         `json:"resource_id"`
	WindowIndex int            `json:"window_index,omitempty"` // availability-window
	NewCapacity int            `json:"new_capacity,omitempty"` // capacity-override
}

// Key returns the deduplication key for the relaxation history.
func (r Relaxation) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.Kind, r.ResourceID, r.WindowIndex)
}
