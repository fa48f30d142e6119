package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prepdeck",
	Short: "Learning platform client for timed assessments",
	Long:  "Prepdeck is a terminal client that runs graded, timed tests with offline-safe submission.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PREPDECK_DB env var)")

	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

// dbPathFlag returns the --db flag value ("" when unset).
func dbPathFlag(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("db")
	return p
}
