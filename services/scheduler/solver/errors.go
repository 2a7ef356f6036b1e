// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"errors"
	"fmt"

	"github.com/campusworks/timetabler/services/scheduler/model"
)

// Sentinel errors for the candidate generator.
var (
	// ErrInfeasible is returned when no hard-feasible assignment was found
	// within the search budget. Recoverable: the resolution advisor can
	// relax the model and the workflow loops back.
	ErrInfeasible = errors.New("no hard-feasible assignment within budget")

	// ErrEmptyDomain is returned when some activity has no feasible
	// placement at all; carried by EmptyDomainError so the advisor knows
	// which activity to relax for.
	ErrEmptyDomain = errors.New("activity has empty placement domain")

	// ErrNilModel is returned when Generate is called without a model.
	ErrNilModel = errors.New("model must not be nil")
)

// EmptyDomainError names the activity whose placement domain pruned to
// nothing and the hard constraints that emptied it, expressed as detector
// violations so downstream resolution can act on them even though the
// activity was never placed. Matches both ErrInfeasible and ErrEmptyDomain
// under errors.Is.
type EmptyDomainError struct {
	ActivityID string
	Causes     []model.ConstraintViolation
}

func (e *EmptyDomainError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInfeasible, ErrEmptyDomain, e.ActivityID)
}

func (e *EmptyDomainError) Unwrap() []error {
	return []error{ErrInfeasible, ErrEmptyDomain}
}
