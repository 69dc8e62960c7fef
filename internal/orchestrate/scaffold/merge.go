package scaffold

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var gitignoreEntries = []string{
	".pensa/db.sqlite",
	".pensa/pensa.lock",
	".sgf/run/",
	".sgf/prompts/.assembled/",
}

// mergeGitignore appends any of gitignoreEntries missing from the
// project's .gitignore, never touching lines already present.
func mergeGitignore(projectDir string) error {
	path := filepath.Join(projectDir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}

	have := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}

	var toAdd []string
	for _, entry := range gitignoreEntries {
		if !have[entry] {
			toAdd = append(toAdd, entry)
		}
	}
	if len(toAdd) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer f.Close()

	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	if _, err := f.WriteString("\n# springfield\n" + strings.Join(toAdd, "\n") + "\n"); err != nil {
		return fmt.Errorf("append .gitignore: %w", err)
	}
	return nil
}

var claudeDenyEntries = []string{
	"Bash(rm -rf *)",
	"Bash(git push --force*)",
}

// mergeClaudeSettings adds a permission deny-list to .claude/settings.json,
// creating the file if absent and preserving any existing keys.
func mergeClaudeSettings(projectDir string) error {
	path := filepath.Join(projectDir, ".claude", "settings.json")
	settings := map[string]any{}

	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	perms, _ := settings["permissions"].(map[string]any)
	if perms == nil {
		perms = map[string]any{}
	}
	deny, _ := perms["deny"].([]any)
	have := map[string]bool{}
	for _, d := range deny {
		if s, ok := d.(string); ok {
			have[s] = true
		}
	}
	for _, entry := range claudeDenyEntries {
		if !have[entry] {
			deny = append(deny, entry)
		}
	}
	perms["deny"] = deny
	settings["permissions"] = perms

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}

// preCommitHooks are the local-repo hooks inserted into
// .pre-commit-config.yaml so issues.jsonl/deps.jsonl stay in sync with
// the live database across commits and merges.
var preCommitHooks = []any{
	map[string]any{
		"id":             "pensa-export",
		"name":           "pn export",
		"entry":          "pn export",
		"language":       "system",
		"pass_filenames": false,
		"stages":         []any{"pre-commit"},
	},
	map[string]any{
		"id":             "pensa-import",
		"name":           "pn import",
		"entry":          "pn import",
		"language":       "system",
		"pass_filenames": false,
		"stages":         []any{"post-merge", "post-checkout", "post-rewrite"},
	},
}

func mergePreCommitConfig(projectDir string) error {
	path := filepath.Join(projectDir, ".pre-commit-config.yaml")
	doc := map[string]any{}

	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	repos, _ := doc["repos"].([]any)
	for _, r := range repos {
		repo, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if repo["repo"] == "local" {
			hooks, _ := repo["hooks"].([]any)
			repo["hooks"] = addMissingHooks(hooks)
			doc["repos"] = repos
			return writeYAML(path, doc)
		}
	}

	repos = append(repos, map[string]any{
		"repo":  "local",
		"hooks": addMissingHooks(nil),
	})
	doc["repos"] = repos
	return writeYAML(path, doc)
}

// addMissingHooks appends whichever of preCommitHooks is not yet
// present in hooks (matched by id), leaving existing entries untouched.
func addMissingHooks(hooks []any) []any {
	have := map[string]bool{}
	for _, h := range hooks {
		if hook, ok := h.(map[string]any); ok {
			if id, ok := hook["id"].(string); ok {
				have[id] = true
			}
		}
	}
	for _, wanted := range preCommitHooks {
		hook := wanted.(map[string]any)
		if !have[hook["id"].(string)] {
			hooks = append(hooks, hook)
		}
	}
	return hooks
}

func writeYAML(path string, doc map[string]any) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
