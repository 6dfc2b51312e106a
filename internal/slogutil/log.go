// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package slogutil wires up the subsystem logger registry shared by
// cmd/bitquilld and cmd/bitquill-calendar. Every
// package in pkg/... that wants logging exposes its own UseLogger
// function; this package owns the shared backend, the subsystem table,
// and the log-level/rotation plumbing a daemon's config wires into at
// startup.
package slogutil

import (
	"fmt"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend is the shared slog.Backend every subsystem logger is created
// from. It writes to stdout until UseRotator installs a log file.
var Backend = slog.NewBackend(os.Stdout)

// logRotator is installed by UseRotator, if the host wants file logging.
var logRotator *rotator.Rotator

// Disabled is handed to a subsystem's UseLogger call when a package is
// loaded as a library (e.g. under test) and no host has configured
// logging yet.
var Disabled = slog.Disabled

// subsystemLoggers maps a short subsystem tag to its logger, so
// SetLevels can apply one verbosity setting across the whole daemon.
var subsystemLoggers = make(map[string]slog.Logger)

// NewSubsystem creates (and registers) a logger tagged with the given
// short subsystem name, e.g. "EDLG" for pkg/editlog or "ANCR" for
// pkg/anchor.
func NewSubsystem(tag string) slog.Logger {
	l := Backend.Logger(tag)
	subsystemLoggers[tag] = l
	return l
}

// SetLevels applies levelStr (e.g. "debug", "info") across every
// registered subsystem.
func SetLevels(levelStr string) error {
	level, ok := slog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("slogutil: unknown log level %q", levelStr)
	}
	for _, l := range subsystemLoggers {
		l.SetLevel(level)
	}
	return nil
}

// UseRotator redirects Backend's output through a rotating log file at
// path, capped at maxRolls rotated files. Intended to be called once
// during daemon startup, before any subsystem logger is exercised.
func UseRotator(path string, maxRolls int) error {
	r, err := rotator.New(path, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("slogutil: create log rotator: %w", err)
	}
	logRotator = r
	Backend = slog.NewBackend(r)
	for tag := range subsystemLoggers {
		subsystemLoggers[tag] = Backend.Logger(tag)
	}
	return nil
}

// Close flushes and closes the log rotator, if one was installed.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}
