package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	want := []string{
		"init", "spec", "build", "verify", "test-plan", "test",
		"issues", "status", "logs", "template",
	}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		require.Truef(t, got[name], "expected %q to be registered under rootCmd", name)
	}
}

func TestIssuesSubcommandsRegistered(t *testing.T) {
	got := map[string]bool{}
	for _, c := range issuesCmd.Commands() {
		got[c.Name()] = true
	}
	require.True(t, got["log"])
	require.True(t, got["plan"])
}

func TestLogsRequiresExactlyOneArg(t *testing.T) {
	err := logsCmd.Args(logsCmd, nil)
	require.Error(t, err)
	err = logsCmd.Args(logsCmd, []string{"build-20260101T000000"})
	require.NoError(t, err)
}

func TestTemplateRequiresExactlyOneArg(t *testing.T) {
	err := templateCmd.Args(templateCmd, nil)
	require.Error(t, err)
	err = templateCmd.Args(templateCmd, []string{"build"})
	require.NoError(t, err)
}
