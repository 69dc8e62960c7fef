// Command ralph supervises one invocation of the sandboxed coding
// agent against a prompt, watching for completion sentinels and
// exhausting a bounded iteration budget.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/logging"
	"github.com/fieldnotes/springfield/internal/ralphrunner"
)

var log = logging.New("", "ralph.log", os.Getenv("PN_DEBUG") != "")

var (
	afk             bool
	loopID          string
	template        string
	autoPush        string
	maxIterations   int
	commandOverride string
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

var rootCmd = &cobra.Command{
	Use:   "ralph <iterations> <prompt-file-or-text>",
	Short: "Run the sandboxed coding agent against a prompt for up to N iterations",
	Args:  cobra.ExactArgs(2),
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVarP(&afk, "afk", "a", false, "run unattended via a PTY-supervised child")
	rootCmd.Flags().StringVar(&loopID, "loop-id", "", "orchestrator loop identifier, attached to log records as loop_id")
	rootCmd.Flags().StringVar(&template, "template", envOr("RALPH_TEMPLATE", ""), "sandbox template override")
	rootCmd.Flags().StringVar(&autoPush, "auto-push", envOr("RALPH_AUTO_PUSH", "false"), "true|false|1|0|yes|no")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "clamp the iteration count down to this value")
	rootCmd.Flags().StringVar(&commandOverride, "command", envOr("RALPH_COMMAND", ""), "override the sandbox invocation (testing)")
}

func run(cmd *cobra.Command, args []string) error {
	iterations, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid iteration count %q: %w", args[0], err)
	}
	promptArg := args[1]

	if envMax := os.Getenv("RALPH_MAX_ITERATIONS"); envMax != "" && maxIterations == 0 {
		if v, err := strconv.Atoi(envMax); err == nil {
			maxIterations = v
		}
	}
	if maxIterations > 0 && iterations > maxIterations {
		fmt.Fprintf(os.Stderr, "warning: clamping iterations from %d to %d (--max-iterations)\n", iterations, maxIterations)
		iterations = maxIterations
	}

	promptText := promptArg
	if data, err := os.ReadFile(promptArg); err == nil {
		promptText = string(data)
	}

	agentCommand := commandOverride
	if agentCommand == "" {
		agentCommand = "claude"
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	if loopID != "" {
		log = log.With("loop_id", loopID)
	}

	for i := 1; i <= iterations; i++ {
		if ctx.Err() != nil {
			fmt.Println("ralph interrupted")
			os.Exit(130)
		}
		fmt.Printf("--- iteration %d/%d ---\n", i, iterations)

		agentArgs := []string{"-p", promptText, "--output-format", "stream-json"}
		if template != "" {
			agentArgs = append(agentArgs, "--settings", template)
		}
		cfg := ralphrunner.Config{
			Command: agentCommand,
			Args:    agentArgs,
			Dir:     cwd,
			AFK:     afk,
			LoopDir: cwd,
		}

		result, err := ralphrunner.Run(ctx, cfg, log)
		if err != nil {
			return err
		}
		if result.Reason == ralphrunner.ExitSentinelComplete {
			maybeAutoPush(cwd)
			fmt.Println("ralph complete: .ralph-complete sentinel found")
			return nil
		}
		if result.Reason == ralphrunner.ExitSignaled {
			os.Exit(130)
		}
		if result.ExitCode != 0 {
			os.Exit(1)
		}
		maybeAutoPush(cwd)

		if i < iterations {
			select {
			case <-ctx.Done():
				os.Exit(130)
			case <-time.After(2 * time.Second):
			}
		}
	}

	fmt.Println("ralph exhausted its iteration budget")
	os.Exit(2)
	return nil
}

// maybeAutoPush pushes the current HEAD when --auto-push resolved true,
// logging (not failing the run) on error -- a disconnected remote or
// detached HEAD should not abort an otherwise-successful iteration.
func maybeAutoPush(dir string) {
	if !parseBool(autoPush, false) {
		return
	}
	cmd := exec.Command("git", "push")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Warn("auto-push failed", "error", err, "output", string(out))
	}
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
