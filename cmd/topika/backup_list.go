package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/topika/internal/backup"
)

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup snapshots",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

func runBackupList(cmd *cobra.Command, args []string) error {
	svc, _, err := resolveBackupService()
	if err != nil {
		return err
	}

	infos, err := svc.List()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	if backupJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"backups": infos,
			"total":   len(infos),
		})
	}

	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "FILENAME\tKIND\tCREATED\tSIZE\tITEMS")
	for _, info := range infos {
		items := fmt.Sprintf("%d", info.ItemCount)
		if info.ItemCount == backup.UnparseableCount {
			items = "unreadable"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f KB\t%s\n",
			info.Filename,
			info.Kind,
			info.CreatedAt.Format("2006-01-02 15:04"),
			info.SizeKB,
			items,
		)
	}
	w.Flush()

	return nil
}
