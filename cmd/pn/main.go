// Command pn is the Tracker Service CLI: a thin blocking client over
// the Pensa HTTP daemon, following the teacher's own cmd/bd
// convention of one cobra subcommand per operation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/config"
	"github.com/fieldnotes/springfield/internal/pensa/client"
	"github.com/fieldnotes/springfield/internal/pensa/output"
)

var (
	jsonOutput bool
	actorFlag  string
	daemonAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pn",
	Short: "Pensa issue tracker",
	Long:  "pn is the CLI for Pensa, the issue/dependency tracker backing a Springfield project.",
}

func newClient() *client.Client {
	return client.New(daemonAddr, client.ResolveActor(actorFlag))
}

func outMode() output.Mode {
	if jsonOutput {
		return output.JSON
	}
	return output.DefaultMode(os.Stdout)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "force JSON output")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor attributed to audited operations")
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "daemon", "", "daemon base URL (defaults to PN_DAEMON or http://localhost:7533)")
}

func main() {
	if err := config.Initialize(); err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			os.Exit(130)
		}
		fail(err)
	}
}
