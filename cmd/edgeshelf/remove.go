package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <name1> [name2] ...",
	Short: "Remove objects from the origin store",
	Long: `Delete objects from the configured origin store.

Cached responses are not invalidated; they expire with cache.ttl.

Examples:
  # Remove a single object
  edgeshelf remove cat.png

  # Remove every object under a prefix
  edgeshelf remove --prefix albums/2024/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removePrefix bool
	removeQuiet  bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removePrefix, "prefix", "p", false, "treat names as prefixes and remove all matching objects")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-object output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	store, closeStore, err := openOrigin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, notFound := 0, 0

	for _, name := range args {
		if removePrefix {
			count, nfCount, prefixErr := removeByPrefix(ctx, store, name)
			removed += count
			notFound += nfCount
			if prefixErr != nil {
				return prefixErr
			}
			continue
		}

		ok, deleteErr := removeOne(ctx, store, name)
		if deleteErr != nil {
			return deleteErr
		}
		if ok {
			removed++
		} else {
			notFound++
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}

func removeOne(ctx context.Context, store edgeshelf.ObjectStore, name string) (bool, error) {
	err := store.Delete(ctx, name)
	if errors.Is(err, edgeshelf.ErrNotFound) {
		if !removeQuiet {
			slog.Warn("not found", "name", name)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", name, err)
	}
	if !removeQuiet {
		slog.Info("removed", "name", name)
	}
	return true, nil
}

// removeByPrefix deletes every object whose name starts with prefix. Deleted
// objects drop out of the listing, so each page is listed from the start.
func removeByPrefix(ctx context.Context, store edgeshelf.ObjectStore, prefix string) (removed, notFound int, err error) {
	for {
		result, listErr := store.List(ctx, edgeshelf.ListQuery{Prefix: prefix, Limit: 100})
		if listErr != nil {
			return removed, notFound, fmt.Errorf("list prefix %s: %w", prefix, listErr)
		}

		if len(result.Items) == 0 {
			return removed, notFound, nil
		}

		progress := false
		for _, item := range result.Items {
			ok, deleteErr := removeOne(ctx, store, item.Name)
			if deleteErr != nil {
				return removed, notFound, deleteErr
			}
			if ok {
				removed++
				progress = true
			} else {
				notFound++
			}
		}

		if !progress {
			return removed, notFound, nil
		}
	}
}
