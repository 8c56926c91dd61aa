package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/edgeshelf/config"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired entries from the disk edge cache",
	Long: `Delete cached responses whose TTL has passed from the disk edge cache.

Expired entries are never served, so this only reclaims space. The server
also prunes once at startup. Stop the server first: the cache file is locked
while it is open.`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().String("cache-path", "", "disk cache file (env: EDGESHELF_CACHE_PATH)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	disk, err := openDiskCache(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = disk.Close() }()

	slog.Info("pruning edge cache", "path", cfg.Cache.Path)

	pruned, err := disk.Prune(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("prune complete", "entries_removed", pruned)
	return nil
}
