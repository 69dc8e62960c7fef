// Package logging sets up the structured logger shared by the daemon
// and the orchestrator, backed by a rotating file the way the
// teacher's own daemon logs rotate.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a slog.Logger that writes JSON lines to both stderr and
// a rotating log file under dir/name. Pass dir="" to log to stderr
// only (the `ralph` harness does this).
func New(dir, name string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if dir != "" {
		rotator := &lumberjack.Logger{
			Filename:   dir + "/" + name,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotator)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
