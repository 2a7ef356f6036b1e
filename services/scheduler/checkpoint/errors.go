// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package checkpoint

import "errors"

var (
	// ErrNotFound indicates no checkpoint exists for the run.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt indicates a stored checkpoint failed checksum verification.
	ErrCorrupt = errors.New("checkpoint corrupt")

	// ErrVersionMismatch indicates a stored checkpoint uses an
	// incompatible format version.
	ErrVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrPersistence indicates the underlying store rejected a write.
	ErrPersistence = errors.New("checkpoint persistence failed")
)
