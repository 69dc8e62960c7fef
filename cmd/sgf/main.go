// Command sgf drives the Springfield stage loop orchestrator: it
// assembles prompts, launches the Ralph harness under supervision, and
// scaffolds new projects.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/config"
	"github.com/fieldnotes/springfield/internal/logging"
)

var (
	afkFlag      bool
	specFlag     string
	templateFlag string
	autoPushFlag bool
	maxIterFlag  int
)

var rootCmd = &cobra.Command{
	Use:   "sgf",
	Short: "Springfield stage loop orchestrator",
	Long:  "sgf drives stage loops (spec, build, verify, test-plan, test, issues-plan) against a Pensa-tracked project. `sgf issues log` is an interactive form that files one issue directly; it does not run a stage loop.",
}

func projectDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

func newLogger() *slog.Logger {
	return logging.New(projectDir()+"/.sgf/logs", "sgf.log", os.Getenv("PN_DEBUG") != "")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&afkFlag, "afk", "a", false, "run the stage loop unattended")
	rootCmd.PersistentFlags().StringVar(&specFlag, "spec", "", "spec name, appended to the loop id")
	rootCmd.PersistentFlags().StringVar(&templateFlag, "template", config.RalphTemplate(), "sandbox template override")
	rootCmd.PersistentFlags().BoolVar(&autoPushFlag, "auto-push", config.RalphAutoPushDefault(), "push after a successful iteration")
	rootCmd.PersistentFlags().IntVar(&maxIterFlag, "max-iterations", config.RalphMaxIterations(), "iteration budget for this stage loop")
}

func main() {
	if err := config.Initialize(); err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(rootCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fail(err)
	}
}
