package cli

import (
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one inactivity cycle and exit",
	Long: "Runs a single pass of the inactivity monitor: warnings, " +
		"active-to-inactive transitions with grant issuance, queue drain, and " +
		"the share-link expiry sweep. Safe to re-run; completed work is never " +
		"repeated.",
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.scheduler.RunOnce(cmd.Context())
	return nil
}
