// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import "github.com/decred/slog"

// log is the subsystem logger for this package, following the same
// decred/slog convention as pkg/editlog.
var log = slog.Disabled

// UseLogger sets the subsystem logger for this package.
func UseLogger(l slog.Logger) {
	log = l
}
