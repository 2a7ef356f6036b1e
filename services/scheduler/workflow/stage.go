// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow drives a scheduling run through its stages.
//
// The run is an explicit finite state machine. Transition logic is a
// pure function of (stage, detector output, iteration counter), and
// every transition is checkpointed before the next stage executes, so
// a crashed run resumes at the last completed stage instead of
// restarting the search.
package workflow

// Stage is one state of the run state machine.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StageResolving  Stage = "resolving"
	StageExplaining Stage = "explaining"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// DefaultMaxIterations bounds the resolve-and-regenerate loop.
const DefaultMaxIterations = 10

// Next returns the stage that follows the given one.
//
// Description:
//
//	Pure transition function. hasHard is the detector's verdict on the
//	current assignment and only matters leaving Validating; iteration
//	is the number of resolve loops already taken. Terminal stages map
//	to themselves.
func Next(stage Stage, hasHard bool, iteration, maxIterations int) Stage {
	switch stage {
	case StagePlanning:
		return StageGenerating
	case StageGenerating:
		return StageValidating
	case StageValidating:
		if !hasHard {
			return StageExplaining
		}
		if iteration < maxIterations {
			return StageResolving
		}
		return StageFailed
	case StageResolving:
		return StageGenerating
	case StageExplaining:
		return StageCompleted
	case StageCompleted, StageFailed:
		return stage
	default:
		return StageFailed
	}
}

// IsTerminal reports whether the stage ends the run.
func IsTerminal(stage Stage) bool {
	return stage == StageCompleted || stage == StageFailed
}
