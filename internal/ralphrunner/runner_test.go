package ralphrunner_test

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

	"github.com/fieldnotes/springfield/internal/ralphrunner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStubScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "agent-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunInteractiveReportsSuccess(t *testing.T) {
	dir := t.TempDir()
	stub := writeStubScript(t, dir, "exit 0\n")

	cfg := ralphrunner.Config{Command: stub, Dir: dir}
	result, err := ralphrunner.Run(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, ralphrunner.ExitNormal, result.Reason)
}

func TestRunInteractiveReportsNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	stub := writeStubScript(t, dir, "exit 7\n")

	cfg := ralphrunner.Config{Command: stub, Dir: dir}
	result, err := ralphrunner.Run(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.Equal(t, 7, result.ExitCode)
	require.Equal(t, ralphrunner.ExitNormal, result.Reason)
}

func TestRunInteractiveStopsOnCompleteSentinel(t *testing.T) {
	dir := t.TempDir()
	// Sleeps far longer than the sentinel poll interval so the test
	// proves Run returns early rather than waiting for natural exit.
	stub := writeStubScript(t, dir, "sleep 5\n")

	cfg := ralphrunner.Config{
		Command:   stub,
		Dir:       dir,
		LoopDir:   dir,
		PollEvery: 20 * time.Millisecond,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, ".ralph-complete"), []byte(""), 0o644)
	}()

	start := time.Now()
	result, err := ralphrunner.Run(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.Equal(t, ralphrunner.ExitSentinelComplete, result.Reason)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestRunInteractiveRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	stub := writeStubScript(t, dir, "sleep 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	cfg := ralphrunner.Config{Command: stub, Dir: dir}

	errCh := make(chan error, 1)
	resCh := make(chan *ralphrunner.Result, 1)
	go func() {
		result, err := ralphrunner.Run(ctx, cfg, testLogger())
		errCh <- err
		resCh <- result
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
		result := <-resCh
		require.Equal(t, ralphrunner.ExitSignaled, result.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunReturnsErrorForMissingCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := ralphrunner.Config{Command: filepath.Join(dir, "does-not-exist"), Dir: dir}
	_, err := ralphrunner.Run(context.Background(), cfg, testLogger())
	require.Error(t, err)
}

func TestRunInteractiveDefaultsPollInterval(t *testing.T) {
	dir := t.TempDir()
	stub := writeStubScript(t, dir, fmt.Sprintf("exit 0\n"))
	cfg := ralphrunner.Config{Command: stub, Dir: dir, LoopDir: dir}
	result, err := ralphrunner.Run(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
}
