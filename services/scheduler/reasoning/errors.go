// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import "errors"

// ErrServiceUnavailable wraps every failure mode of the reasoning
// service: missing credentials, transport errors, timeouts and
// unparseable replies. Callers fall back to local behavior on it.
var ErrServiceUnavailable = errors.New("reasoning service unavailable")
