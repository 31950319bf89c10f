// Package cli wires the subsystem together behind the keepsake command.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Delegated-access core: inactivity monitoring and share links",
	Long: "Keepsake watches vault owners for prolonged inactivity, issues " +
		"beneficiary access grants when the dead-man switch fires, and manages " +
		"capability share links for collections.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(backupCmd)
}
