package scaffold_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/orchestrate/scaffold"
)

func TestInitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))

	first := snapshotTree(t, dir)

	require.NoError(t, scaffold.Init(dir))
	second := snapshotTree(t, dir)

	require.Equal(t, first, second, "re-running Init must yield byte-identical files")
}

func TestInitCreatesExpectedTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))

	for _, rel := range []string{
		".pensa",
		filepath.Join(".sgf", "logs"),
		filepath.Join(".sgf", "run"),
		filepath.Join(".sgf", "prompts", ".assembled"),
		"specs",
	} {
		info, err := os.Stat(filepath.Join(dir, rel))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	for _, stage := range []string{"spec", "build", "verify", "test-plan", "test", "issues", "issues-plan"} {
		path := filepath.Join(dir, ".sgf", "prompts", stage+".md")
		_, err := os.Stat(path)
		require.NoErrorf(t, err, "expected template for stage %q", stage)
	}

	for _, rel := range []string{"memento.md", "CLAUDE.md", "specs/README.md"} {
		_, err := os.Stat(filepath.Join(dir, rel))
		require.NoErrorf(t, err, "expected skeleton file %q", rel)
	}
}

func TestInitDoesNotClobberExistingSkeletonFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memento.md"), []byte("custom notes\n"), 0o644))

	require.NoError(t, scaffold.Init(dir))

	data, err := os.ReadFile(filepath.Join(dir, "memento.md"))
	require.NoError(t, err)
	require.Equal(t, "custom notes\n", string(data))
}

func TestMergeGitignoreAppendsOnlyMissingEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("node_modules/\n.pensa/db.sqlite\n"), 0o644))

	require.NoError(t, scaffold.Init(dir))

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "node_modules/")
	require.Contains(t, content, ".pensa/pensa.lock")
	require.Contains(t, content, ".sgf/run/")
	require.Equal(t, 1, countOccurrences(content, ".pensa/db.sqlite"))
}

func TestMergeClaudeSettingsPreservesExistingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".claude"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".claude", "settings.json"),
		[]byte(`{"model": "custom", "permissions": {"deny": ["Bash(curl *)"]}}`), 0o644))

	require.NoError(t, scaffold.Init(dir))

	data, err := os.ReadFile(filepath.Join(dir, ".claude", "settings.json"))
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, `"model": "custom"`)
	require.Contains(t, content, "Bash(curl *)")
	require.Contains(t, content, "Bash(rm -rf *)")
}

func TestMergePreCommitConfigAddsBothHooks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))

	data, err := os.ReadFile(filepath.Join(dir, ".pre-commit-config.yaml"))
	require.NoError(t, err)
	content := string(data)

	require.Contains(t, content, "pensa-export")
	require.Contains(t, content, "pn export")
	require.Contains(t, content, "pensa-import")
	require.Contains(t, content, "pn import")
	require.Contains(t, content, "post-merge")
	require.Contains(t, content, "post-checkout")
	require.Contains(t, content, "post-rewrite")
}

func TestMergePreCommitConfigIsIdempotentOnRerun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.Init(dir))
	first, err := os.ReadFile(filepath.Join(dir, ".pre-commit-config.yaml"))
	require.NoError(t, err)

	require.NoError(t, scaffold.Init(dir))
	second, err := os.ReadFile(filepath.Join(dir, ".pre-commit-config.yaml"))
	require.NoError(t, err)

	require.Equal(t, string(first), string(second))
	require.Equal(t, 1, countOccurrences(string(first), "pensa-export"))
	require.Equal(t, 1, countOccurrences(string(first), "pensa-import"))
}

// snapshotTree returns a map of relative path -> file content for every
// regular file under dir, used to assert Init's re-run produces
// byte-identical output.
func snapshotTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
