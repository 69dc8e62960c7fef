package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/logging"
)

func TestNewWithDirCreatesRotatingLogFile(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(dir, "test.log", false)
	log.Info("hello", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "value")
}

func TestNewWithoutDirDoesNotPanic(t *testing.T) {
	log := logging.New("", "ignored.log", true)
	require.NotNil(t, log)
	log.Debug("debug message visible when debug=true")
}
