// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import "errors"

var (
	// ErrNilModel indicates the runner was built without a model.
	ErrNilModel = errors.New("model must not be nil")

	// ErrNilStore indicates the runner was built without a checkpoint store.
	ErrNilStore = errors.New("checkpoint store must not be nil")

	// ErrRunFailed indicates the run reached the Failed terminal stage.
	// The returned state carries the violation list and the relaxation
	// options tried.
	ErrRunFailed = errors.New("run failed")

	// ErrRunTerminal indicates a resume was attempted on a run that
	// already reached Completed or Failed.
	ErrRunTerminal = errors.New("run already terminal")
)
