// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package backoff implements the bounded exponential retry schedule used
// by pkg/anchor when polling an external calendar for confirmation.
package backoff

import "time"

// Schedule produces a bounded exponential backoff sequence: base, base*2,
// base*4, ... capped at max, for exactly attempts steps.
type Schedule struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Delay returns the delay before the given attempt (0-indexed): attempt 0
// is the first retry delay, not the initial try.
func (s Schedule) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := s.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= s.Max {
			return s.Max
		}
	}
	if d > s.Max {
		return s.Max
	}
	return d
}
