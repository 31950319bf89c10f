package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot and prune old ones",
	RunE:  runBackup,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <object-key> <destination>",
	Short: "Download and decrypt a snapshot to a local file",
	Args:  cobra.ExactArgs(2),
	RunE:  runBackupRestore,
}

func init() {
	backupCmd.AddCommand(backupRestoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	key, err := app.backups.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s\n", key)

	return app.backups.Cleanup(cmd.Context())
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.backups.Restore(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("restored %s to %s\n", args[0], args[1])
	return nil
}
