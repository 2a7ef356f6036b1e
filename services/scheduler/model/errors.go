// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "errors"

// Sentinel errors for model construction and relaxation.
var (
	// ErrValidation is returned when the input snapshot is malformed.
	// A run never starts on a model that failed validation.
	ErrValidation = errors.New("constraint model validation failed")

	// ErrUnknownResource is returned when an activity or preference
	// references a resource that is not in the snapshot.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUnknownRelaxation is returned when a relaxation does not apply to
	// the model (no matching window or room).
	ErrUnknownRelaxation = errors.New("relaxation does not apply to model")
)
