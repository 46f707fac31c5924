package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	asCSV      bool
	mode       string
	limit      int

	rootCmd = &cobra.Command{
		Use:          "splitctl",
		Short:        "Inspect and reconcile payment route splits in workflow exports",
		SilenceUsage: true,
	}

	extractCmd = &cobra.Command{
		Use:   "extract [document.json]",
		Short: "Print the canonical split table of a workflow export",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile [document.json] [adjustment.txt]",
		Short: "Apply an adjustment request and print the change report",
		Args:  cobra.ExactArgs(2),
		RunE:  runReconcile,
	}

	formatCmd = &cobra.Command{
		Use:   "format [table.csv]",
		Short: "Render a canonical table as adjustment text",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormat,
	}

	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "List stored configuration versions (requires DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE:  runVersions,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&asCSV, "csv", false, "write the table as CSV")

	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&mode, "mode", "update", "adjustment mode: update or override")
	reconcileCmd.Flags().BoolVar(&asCSV, "csv", false, "also write the final table as CSV")

	rootCmd.AddCommand(formatCmd)

	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of versions to list")
}
