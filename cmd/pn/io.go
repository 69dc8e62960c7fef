package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/pensa/output"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tracker to JSONL files",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := newClient().Export(cmd.Context(), exportDir)
		if err != nil {
			return err
		}
		return output.WriteJSON(os.Stdout, counts)
	},
}

var importDir string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the tracker's contents from JSONL files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Import(cmd.Context(), importDir); err != nil {
			return err
		}
		fmt.Println("import complete")
		return nil
	},
}

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Scan for and optionally fix integrity problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		findings, err := newClient().Doctor(cmd.Context(), doctorFix)
		if err != nil {
			return err
		}
		if outMode() == output.JSON {
			return output.WriteJSON(os.Stdout, findings)
		}
		output.RenderFindings(os.Stdout, findings)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", ".pensa", "directory to write JSONL export files into")
	importCmd.Flags().StringVar(&importDir, "dir", ".pensa", "directory to read JSONL export files from")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "apply automatic fixes where possible")
	rootCmd.AddCommand(exportCmd, importCmd, doctorCmd)
}
