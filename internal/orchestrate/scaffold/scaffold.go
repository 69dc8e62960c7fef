// Package scaffold lays out a fresh project's .pensa/.sgf tree and
// seeds its prompt templates, writing only what's missing and merging
// (never clobbering) entries into files a developer may already have.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var templateStages = []string{"spec", "build", "verify", "test-plan", "test", "issues", "issues-plan"}

var skeletonFiles = map[string]string{
	"memento.md":      defaultMemento,
	"CLAUDE.md":       defaultClaudeMD,
	"specs/README.md": defaultSpecsReadme,
}

// Init creates the project tree under projectDir, writing template and
// skeleton files only where absent and merging config fragments into
// .gitignore, .claude/settings.json and .pre-commit-config.yaml.
func Init(projectDir string) error {
	dirs := []string{
		".pensa",
		filepath.Join(".sgf", "logs"),
		filepath.Join(".sgf", "run"),
		filepath.Join(".sgf", "prompts", ".assembled"),
		"specs",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(projectDir, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	for _, stage := range templateStages {
		path := filepath.Join(projectDir, ".sgf", "prompts", stage+".md")
		if err := writeIfAbsent(path, templateFor(stage)); err != nil {
			return err
		}
	}
	if err := writeIfAbsent(filepath.Join(projectDir, ".sgf", "backpressure.md"), defaultBackpressure); err != nil {
		return err
	}

	for rel, content := range skeletonFiles {
		if err := writeIfAbsent(filepath.Join(projectDir, rel), content); err != nil {
			return err
		}
	}

	if err := mergeGitignore(projectDir); err != nil {
		return err
	}
	if err := mergeClaudeSettings(projectDir); err != nil {
		return err
	}
	if err := mergePreCommitConfig(projectDir); err != nil {
		return err
	}
	return nil
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func templateFor(stage string) string {
	title := strings.ReplaceAll(stage, "-", " ")
	return fmt.Sprintf("# %s\n\n{{project_name}} -- %s stage.\n\nDescribe the task for this stage here.\n",
		strings.Title(title), title)
}

const defaultBackpressure = `# Backpressure

Notes the loop should re-read each iteration to avoid repeating mistakes.
Leave this empty until something recurring needs calling out.
`

const defaultMemento = `# Memento

Project-specific context a fresh agent session should know before
touching this codebase. Keep this current as the project evolves.
`

const defaultClaudeMD = `# Project instructions

This file is read at the start of every stage loop. Add project
conventions, build/test commands, and anything a new contributor (or
agent) needs before making changes.
`

const defaultSpecsReadme = `# specs/

One file per feature or subsystem spec. ` + "`sgf spec`" + ` writes new
specs here; ` + "`sgf build`" + ` and ` + "`sgf verify`" + ` read from here.
`
