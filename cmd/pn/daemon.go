package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/config"
	"github.com/fieldnotes/springfield/internal/logging"
	"github.com/fieldnotes/springfield/internal/pensa/daemon"
	"github.com/fieldnotes/springfield/internal/pensa/storage/sqlite"
)

var (
	daemonPort       int
	daemonProjectDir string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start or inspect the Pensa daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Pensa HTTP daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	},
}

// daemon (no subcommand) behaves like `daemon start`, matching the
// teacher's convention of a default action on the parent command.
var daemonDefaultCmd = &cobra.Command{
	Use:    "run-default",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	},
}

func runDaemon(cmd *cobra.Command, args []string) error {
	projectDir := daemonProjectDir
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	pensaDir := filepath.Join(projectDir, ".pensa")
	if err := os.MkdirAll(pensaDir, 0o755); err != nil {
		return err
	}

	lock, err := daemon.AcquireLock(projectDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	store, err := sqlite.Open(filepath.Join(pensaDir, "db.sqlite"))
	if err != nil {
		return err
	}
	defer store.Close()

	port := daemonPort
	if port == 0 {
		port = config.Port()
	}
	log := logging.New(pensaDir, "daemon.log", os.Getenv("PN_DEBUG") != "")
	srv := daemon.New(store, fmt.Sprintf("%s:%d", config.Host(), port), log)

	log.Info("pensa daemon starting", "port", port, "project_dir", projectDir)
	return srv.Run(cmd.Context())
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if c.Healthy(cmd.Context()) {
			fmt.Println("daemon is reachable")
			return nil
		}
		os.Exit(1)
		return nil
	},
}

func init() {
	daemonStartCmd.Flags().IntVar(&daemonPort, "port", 0, "port to bind (default from config / PN_PORT)")
	daemonStartCmd.Flags().StringVar(&daemonProjectDir, "project-dir", "", "project root (default: cwd)")
	daemonCmd.AddCommand(daemonStartCmd, daemonStatusCmd)
	daemonCmd.RunE = runDaemon
	daemonCmd.Flags().IntVar(&daemonPort, "port", 0, "port to bind (default from config / PN_PORT)")
	daemonCmd.Flags().StringVar(&daemonProjectDir, "project-dir", "", "project root (default: cwd)")
	rootCmd.AddCommand(daemonCmd)
}

var whereCmd = &cobra.Command{
	Use:   "where",
	Short: "Print the project's .pensa path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(cwd, ".pensa"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whereCmd)
}
