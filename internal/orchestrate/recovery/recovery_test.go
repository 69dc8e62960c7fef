package recovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestListPIDFilesEmptyWhenDirAbsent(t *testing.T) {
	files, err := ListPIDFiles(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestListPIDFilesParsesEntries(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, ".sgf", "run")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "build-20260101T000000.pid"), []byte("12345"), 0o644))

	files, err := ListPIDFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "build-20260101T000000", files[0].LoopID)
	require.Equal(t, 12345, files[0].PID)
}

func TestIsAliveFalseForImprobablePID(t *testing.T) {
	require.False(t, IsAlive(0))
}

func TestAnyAliveFalseWhenNoneMatch(t *testing.T) {
	require.False(t, AnyAlive([]PIDFile{{PID: 999999999}}))
}

func TestRunRemovesStalePIDFilesWhenNoneAlive(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, ".sgf", "run")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	stale := filepath.Join(runDir, "build-stale.pid")
	require.NoError(t, os.WriteFile(stale, []byte("999999999"), 0o644))

	err := Run(context.Background(), dir, testLogger())
	require.NoError(t, err)
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}
