// Package prompt assembles stage prompt templates, substituting
// `{{var}}` tokens with caller-supplied values before a stage loop
// hands the result to the Ralph harness.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// UnresolvedTokenError names every `{{var}}` token left unresolved
// after substitution, so the caller can report them all at once
// instead of failing on the first.
type UnresolvedTokenError struct {
	Tokens []string
}

func (e *UnresolvedTokenError) Error() string {
	return fmt.Sprintf("unresolved template tokens: %s", strings.Join(e.Tokens, ", "))
}

// Substitute replaces every `{{var}}` occurrence in body with vars[var],
// returning an *UnresolvedTokenError naming every token with no entry.
func Substitute(body string, vars map[string]string) (string, error) {
	var missing []string
	seen := map[string]bool{}

	out := tokenPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &UnresolvedTokenError{Tokens: missing}
	}
	return out, nil
}

// Assemble reads projectDir/.sgf/prompts/{stage}.md, substitutes vars,
// and writes the result to projectDir/.sgf/prompts/.assembled/{stage}.md,
// returning the assembled path.
func Assemble(projectDir, stage string, vars map[string]string) (string, error) {
	srcPath := filepath.Join(projectDir, ".sgf", "prompts", stage+".md")
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", srcPath, err)
	}

	assembled, err := Substitute(string(raw), vars)
	if err != nil {
		return "", fmt.Errorf("assemble prompt %s: %w", stage, err)
	}

	dstDir := filepath.Join(projectDir, ".sgf", "prompts", ".assembled")
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("create assembled prompt dir: %w", err)
	}
	dstPath := filepath.Join(dstDir, stage+".md")
	if err := os.WriteFile(dstPath, []byte(assembled), 0o644); err != nil {
		return "", fmt.Errorf("write assembled prompt %s: %w", dstPath, err)
	}
	return dstPath, nil
}
