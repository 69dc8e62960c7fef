// Package recovery implements the orchestrator's pre-launch safety net:
// before a new stage loop starts, check that no previous loop is still
// running, and if the working tree was left dirty by a crashed loop,
// reset it.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// PIDFile is one entry under .sgf/run/.
type PIDFile struct {
	Path   string
	LoopID string
	PID    int
}

func runDir(projectDir string) string {
	return filepath.Join(projectDir, ".sgf", "run")
}

// ListPIDFiles returns every *.pid file under .sgf/run/, parsed.
func ListPIDFiles(projectDir string) ([]PIDFile, error) {
	dir := runDir(projectDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list pid files: %w", err)
	}

	var out []PIDFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pid") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		out = append(out, PIDFile{
			Path:   path,
			LoopID: strings.TrimSuffix(e.Name(), ".pid"),
			PID:    pid,
		})
	}
	return out, nil
}

// IsAlive reports whether pid names a live process, using a signal-0
// probe -- the same technique the teacher's daemon uses to check
// whether a parent process is still around.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// AnyAlive reports whether any of pidFiles names a still-running process.
func AnyAlive(pidFiles []PIDFile) bool {
	for _, p := range pidFiles {
		if IsAlive(p.PID) {
			return true
		}
	}
	return false
}

// Run performs pre-launch recovery: if any stage loop is still alive,
// it does nothing (another loop owns the working tree). Otherwise it
// removes stale PID files and best-effort resets the working tree and
// repairs the tracker, logging (never failing) on any error.
func Run(ctx context.Context, projectDir string, log *slog.Logger) error {
	pidFiles, err := ListPIDFiles(projectDir)
	if err != nil {
		return err
	}
	if AnyAlive(pidFiles) {
		log.Info("recovery skipped: a loop is already running")
		return nil
	}

	for _, p := range pidFiles {
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove stale pid file", "path", p.Path, "error", err)
		}
	}

	bestEffort(ctx, projectDir, log, "git", "checkout", "--", ".")
	bestEffort(ctx, projectDir, log, "git", "clean", "-fd")
	bestEffort(ctx, projectDir, log, "pn", "doctor", "--fix")
	return nil
}

func bestEffort(ctx context.Context, dir string, log *slog.Logger, name string, args ...string) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Warn("recovery step failed", "command", append([]string{name}, args...), "error", err, "output", string(out))
	}
}
