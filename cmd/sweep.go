package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired sessions and stale idempotency keys once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := newSweeper(a).RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Expired sessions removed: %d\n", result.ExpiredSessions)
		fmt.Printf("Stale practice attempts removed: %d\n", result.StaleAttempts)
		fmt.Printf("Users with mistakes due: %d\n", len(result.DueByUser))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
