package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	want := []string{
		"create", "get", "update", "delete", "claim", "release", "close",
		"reopen", "list", "ready", "blocked", "search", "count", "status",
		"history", "dep", "comment", "export", "import", "doctor",
		"daemon", "where",
	}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		require.Truef(t, got[name], "expected %q to be registered under rootCmd", name)
	}
}

func TestCreateRequiresExactlyOneArg(t *testing.T) {
	err := createCmd.Args(createCmd, nil)
	require.Error(t, err)

	err = createCmd.Args(createCmd, []string{"title", "extra"})
	require.Error(t, err)

	err = createCmd.Args(createCmd, []string{"a title"})
	require.NoError(t, err)
}

func TestParseDueAcceptsRFC3339(t *testing.T) {
	due, err := parseDue("2026-08-01T00:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, due)
	require.True(t, due.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseDueEmptyReturnsNil(t *testing.T) {
	due, err := parseDue("")
	require.NoError(t, err)
	require.Nil(t, due)
}

func TestParseDueRejectsGarbage(t *testing.T) {
	_, err := parseDue("not a date at all !!")
	require.Error(t, err)
}

func TestStrPtrNilsEmptyString(t *testing.T) {
	require.Nil(t, strPtr(""))
	require.NotNil(t, strPtr("x"))
	require.Equal(t, "x", *strPtr("x"))
}
