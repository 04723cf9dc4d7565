package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/topika/internal/backup"
	"github.com/hyperengineering/topika/internal/config"
)

var (
	backupConfigPath string
	backupJSONOutput bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage content backups",
	Long:  "Create and list content backup snapshots without running the server.",
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupConfigPath, "config", "",
		"Config file path (overrides TOPIKA_CONFIG_PATH)")
	backupCmd.PersistentFlags().BoolVar(&backupJSONOutput, "json", false,
		"Output in JSON format")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
}

// resolveBackupService builds a backup service from config with optional
// --config override. The offsite uploader is skipped: CLI snapshots stay
// local.
func resolveBackupService() (*backup.Service, *config.Config, error) {
	var cfg *config.Config
	var err error
	if backupConfigPath != "" {
		cfg, err = config.LoadFromFile(backupConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	svc, err := backup.NewService(cfg.Backup.ResolveDir(cfg.Storage.DataDir), cfg.Backup.MaxBackups, nil)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
