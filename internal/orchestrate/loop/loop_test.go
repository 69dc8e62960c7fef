package loop_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/config"
	"github.com/fieldnotes/springfield/internal/orchestrate/loop"
	"github.com/fieldnotes/springfield/internal/orchestrate/scaffold"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStubRalph(t *testing.T, dir string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, "ralph-stub")
	script := fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func runWithStub(t *testing.T, stage string, exitCode int) (int, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))

	stub := writeStubRalph(t, dir, exitCode)
	t.Setenv("PN_RALPH_BINARY", stub)
	require.NoError(t, config.Initialize())

	opts := loop.Options{
		Stage:          stage,
		ProjectDir:     dir,
		Vars:           map[string]string{"project_name": "demo"},
		SkipRecovery:   true,
		SkipDaemonWait: true,
	}
	return loop.Run(context.Background(), opts, testLogger())
}

func TestRunReportsStubRalphSuccess(t *testing.T) {
	code, err := runWithStub(t, "build", 0)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRunReportsStubRalphFailure(t *testing.T) {
	code, err := runWithStub(t, "verify", 1)
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestRunWritesAndCleansUpPIDFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))

	stub := writeStubRalph(t, dir, 0)
	t.Setenv("PN_RALPH_BINARY", stub)
	require.NoError(t, config.Initialize())

	opts := loop.Options{
		Stage:          "spec",
		ProjectDir:     dir,
		Vars:           map[string]string{"project_name": "demo"},
		SkipRecovery:   true,
		SkipDaemonWait: true,
	}
	_, err := loop.Run(context.Background(), opts, testLogger())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, ".sgf", "run"))
	require.NoError(t, err)
	require.Empty(t, entries, "pid file should be removed once the loop exits")
}

func TestIDIncludesStageAndSpec(t *testing.T) {
	at, err := time.Parse(time.RFC3339, "2026-07-31T10:20:30Z")
	require.NoError(t, err)
	require.Equal(t, "build-demo-20260731T102030", loop.ID("build", "demo", at))
	require.Equal(t, "build-20260731T102030", loop.ID("build", "", at))
}
