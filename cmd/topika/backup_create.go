package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/topika/internal/store"
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual backup of the active content",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	svc, cfg, err := resolveBackupService()
	if err != nil {
		return err
	}

	// Automatic backup stays disabled here: this command takes exactly
	// one snapshot.
	active, err := store.OpenStore(cfg.Storage.ContentPath(), nil, false)
	if err != nil {
		return fmt.Errorf("open content store: %w", err)
	}

	path, err := svc.Manual(active.All())
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	if backupJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"filename": filepath.Base(path),
			"path":     path,
			"items":    active.Len(),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s (%d items)\n", filepath.Base(path), active.Len())
	return nil
}
