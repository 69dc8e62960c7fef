package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/orchestrate/loop"
)

// stageVars builds the template substitution map every stage prompt
// can rely on.
func stageVars() map[string]string {
	return map[string]string{
		"project_name": projectName(),
		"spec":         specFlag,
	}
}

func projectName() string {
	return filepath.Base(projectDir())
}

func runStage(stage string) error {
	opts := loop.Options{
		Stage:         stage,
		Spec:          specFlag,
		ProjectDir:    projectDir(),
		Vars:          stageVars(),
		AFK:           afkFlag,
		Template:      templateFlag,
		AutoPush:      autoPushFlag,
		MaxIterations: maxIterFlag,
	}
	code, err := loop.Run(rootCmd.Context(), opts, newLogger())
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func newStageCmd(use, stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(stage)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		newStageCmd("spec", "spec", "Run the spec-writing stage loop"),
		newStageCmd("build", "build", "Run the build stage loop"),
		newStageCmd("verify", "verify", "Run the verify stage loop"),
		newStageCmd("test-plan", "test-plan", "Run the test-planning stage loop"),
		newStageCmd("test", "test", "Run the test-writing stage loop"),
	)
}
