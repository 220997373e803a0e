// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"log/slog"

	"github.com/gogpu/gfx/internal/logger"
)

// SetLogger configures the logger for gfx and all its sub-packages.
// By default, gfx produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by gfx:
//   - [slog.LevelDebug]: batch flushes, atlas growth, buffer allocation
//   - [slog.LevelInfo]: session and GPU context creation and teardown
//   - [slog.LevelWarn]: failures while releasing resources
//
// Example:
//
//	gfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the current logger used by gfx.
func Logger() *slog.Logger {
	return logger.Get()
}
