// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusworks/timetabler/services/scheduler/explain"
	"github.com/campusworks/timetabler/services/scheduler/model"
	"github.com/campusworks/timetabler/services/scheduler/resolve"
)

// State is the checkpointed record of one scheduling run.
//
// Everything a resumed run needs is here: the base model is supplied by
// the caller, and Relaxations replays on top of it to rebuild the
// working model at the recorded stage.
type State struct {
	RunID     string `json:"run_id"`
	Stage     Stage  `json:"stage"`
	Iteration int    `json:"iteration"`

	Assignment model.Assignment            `json:"assignment,omitempty"`
	Score      float64                     `json:"score"`
	Violations []model.ConstraintViolation `json:"violations,omitempty"`

	// Infeasible records that the last generation exhausted its budget
	// without a hard-feasible assignment. It forces the resolve path at
	// validation even when the carried assignment has no violations of
	// its own, and clears once a relaxation is applied.
	Infeasible bool `json:"infeasible,omitempty"`

	// InfeasibleCauses carries the solver's diagnosis of an empty placement
	// domain. The detector cannot see these (the blocked activity is never
	// placed), so validation merges them into Violations to keep the resolve
	// stage and failure reports concrete.
	InfeasibleCauses []model.ConstraintViolation `json:"infeasible_causes,omitempty"`

	// Relaxations is the relaxation history in application order.
	Relaxations []model.Relaxation `json:"relaxations,omitempty"`

	// OptionsTried accumulates every relaxation option the advisor
	// proposed across resolve loops, for failure reporting.
	OptionsTried []resolve.RelaxationOption `json:"options_tried,omitempty"`

	Rationales map[string]explain.RationaleRecord `json:"rationales,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Encode serializes the state for the checkpoint store.
func (s *State) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode workflow state: %w", err)
	}
	return data, nil
}

// DecodeState parses a checkpoint payload back into a State.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode workflow state: %w", err)
	}
	return &s, nil
}
