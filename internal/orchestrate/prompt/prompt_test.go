package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteFillsKnownTokens(t *testing.T) {
	out, err := Substitute("Build {{project_name}} stage {{stage}}.", map[string]string{
		"project_name": "springfield",
		"stage":        "build",
	})
	require.NoError(t, err)
	require.Equal(t, "Build springfield stage build.", out)
}

func TestSubstituteReportsAllUnresolvedTokens(t *testing.T) {
	_, err := Substitute("{{a}} and {{b}} and {{a}} again", map[string]string{"a": "x"})
	require.Error(t, err)
	var unresolved *UnresolvedTokenError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, []string{"b"}, unresolved.Tokens)
}

func TestAssembleWritesToAssembledDir(t *testing.T) {
	dir := t.TempDir()
	promptsDir := filepath.Join(dir, ".sgf", "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(promptsDir, "build.md"), []byte("stage={{stage}}"), 0o644))

	path, err := Assemble(dir, "build", map[string]string{"stage": "build"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(promptsDir, ".assembled", "build.md"), path)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "stage=build", string(out))
}

func TestAssembleFailsOnUnresolvedToken(t *testing.T) {
	dir := t.TempDir()
	promptsDir := filepath.Join(dir, ".sgf", "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(promptsDir, "verify.md"), []byte("{{missing}}"), 0o644))

	_, err := Assemble(dir, "verify", nil)
	require.Error(t, err)
}
