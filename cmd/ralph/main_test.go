package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBoolRecognizesCommonSpellings(t *testing.T) {
	require.True(t, parseBool("true", false))
	require.True(t, parseBool("1", false))
	require.True(t, parseBool("yes", false))
	require.False(t, parseBool("false", true))
	require.False(t, parseBool("0", true))
	require.False(t, parseBool("no", true))
}

func TestParseBoolFallsBackToDefaultOnGarbage(t *testing.T) {
	require.True(t, parseBool("maybe", true))
	require.False(t, parseBool("maybe", false))
	require.True(t, parseBool("", true))
}

func TestEnvOrPrefersEnvironment(t *testing.T) {
	t.Setenv("RALPH_TEST_ENV_OR", "from-env")
	require.Equal(t, "from-env", envOr("RALPH_TEST_ENV_OR", "fallback"))
}

func TestEnvOrFallsBackWhenUnset(t *testing.T) {
	require.Equal(t, "fallback", envOr("RALPH_TEST_ENV_OR_UNSET", "fallback"))
}

func TestRootCommandRequiresTwoArgs(t *testing.T) {
	err := rootCmd.Args(rootCmd, []string{"3"})
	require.Error(t, err)

	err = rootCmd.Args(rootCmd, []string{"3", "do the thing"})
	require.NoError(t, err)

	err = rootCmd.Args(rootCmd, []string{"3", "do the thing", "extra"})
	require.Error(t, err)
}
