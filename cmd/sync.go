package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prepdeck/prepdeck/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry queued offline submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx, dbPathFlag(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Queue.Len() == 0 {
			fmt.Println("Nothing queued.")
			return nil
		}

		report := a.Queue.DrainOnce(ctx, a.Client)
		for _, id := range report.Succeeded {
			fmt.Println("Delivered:", id)
		}
		for _, f := range report.Failed {
			fmt.Printf("Permanently failed after %d attempts: %s (%s)\n", f.Attempts, f.SessionID, f.LastError)
		}
		if report.Remaining > 0 {
			fmt.Printf("%d submission(s) still queued; try again later.\n", report.Remaining)
		}
		return nil
	},
}
