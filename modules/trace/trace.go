// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package trace provides the store's logging and lightweight timing
// helpers: a thin layer over logrus so every package logs through one
// configured logger instead of reaching for fmt.Fprintf(os.Stderr, ...).
package trace

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logger every component logs through. Callers
// embedding the store may replace it (e.g. to attach a JSON formatter or
// redirect output) before performing any operation.
var Logger = logrus.StandardLogger()

// Tracker times a sequence of named steps when debug mode is enabled; it is
// a no-op otherwise. pack_all_loose uses it to report per-phase durations
// without paying for time.Now() calls on the hot path when debug is off.
type Tracker struct {
	debug bool
	last  time.Time
}

func NewTracker(debugMode bool) *Tracker {
	return &Tracker{debug: debugMode, last: time.Now()}
}

func (t *Tracker) StepNext(format string, a ...any) {
	if !t.debug {
		return
	}
	now := time.Now()
	Logger.WithField("elapsed", now.Sub(t.last)).Debugf(format, a...)
	t.last = now
}
