package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/edgeshelf/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize metadata database from storage files",
	Long: `Scan the storage directory and populate the metadata database
with entries for all existing files. This is useful when:
  - Serving a directory of existing images
  - Recovering metadata after database loss

Only applies to the local origin.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Origin.Type != config.OriginLocal {
		return errLocalOnly
	}

	ctx := cmd.Context()

	if _, err = os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
		return fmt.Errorf("storage directory does not exist: %s", cfg.Storage.Path)
	}

	store, closeStore, err := openLocalStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("scanning storage directory", "path", cfg.Storage.Path)

	indexed, err := store.Populate(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	slog.Info("initialization complete", "files_indexed", indexed)
	return nil
}
