package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark expired share links revoked and exit",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.shares.CleanupExpired()
	if err != nil {
		return err
	}
	fmt.Printf("cleaned up %d expired share links\n", count)
	return nil
}
