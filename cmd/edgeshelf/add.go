package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/config"
	"github.com/sagarc03/edgeshelf/filesystem"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files into the origin store",
	Long: `Import files from external paths into the configured origin store
(local storage or S3). Files are identified by their destination name.

Examples:
  # Add a single image
  edgeshelf add /path/to/cat.png

  # Add with a destination prefix
  edgeshelf add --dest albums/ /path/to/photo.jpg

  # Add a directory recursively
  edgeshelf add -r /path/to/assets

  # Skip existing objects
  edgeshelf add --no-clobber /path/to/cat.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addDest      string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
)

func init() {
	addCmd.Flags().StringVarP(&addDest, "dest", "d", "", "destination name prefix")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip existing objects instead of overwriting")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(addCmd)
}

// fileEntry represents a file to be added with its source path and object name.
type fileEntry struct {
	sourcePath string
	destName   string
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addDest)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	store, closeStore, err := openOrigin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	added, skipped := 0, 0

	for _, entry := range files {
		if addNoClobber {
			exists, existsErr := objectExists(ctx, store, entry.destName)
			if existsErr != nil {
				return fmt.Errorf("check %s: %w", entry.destName, existsErr)
			}
			if exists {
				skipped++
				if !addQuiet {
					slog.Info("skipped (exists)", "name", entry.destName)
				}
				continue
			}
		}

		contentType := filesystem.DetectContentType(entry.sourcePath)
		if err := addFile(ctx, store, entry, contentType); err != nil {
			return err
		}

		added++
		if !addQuiet {
			slog.Info("added", "name", entry.destName, "content_type", contentType)
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped)
	return nil
}

func addFile(ctx context.Context, store edgeshelf.ObjectStore, entry fileEntry, contentType string) error {
	f, err := os.Open(entry.sourcePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.sourcePath, err)
	}
	defer func() { _ = f.Close() }()

	obj := edgeshelf.PutObject{Name: entry.destName, ContentType: contentType}
	if _, err := store.Put(ctx, obj, f); err != nil {
		return fmt.Errorf("add %s: %w", entry.destName, err)
	}
	return nil
}

func objectExists(ctx context.Context, store edgeshelf.ObjectStore, name string) (bool, error) {
	rec, err := store.Get(ctx, name)
	if errors.Is(err, edgeshelf.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = rec.Body.Close()
	return true, nil
}

// collectFiles gathers files from a path, optionally recursively.
func collectFiles(path string, recursive bool, destPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	destPrefix = strings.TrimPrefix(destPrefix, "/")
	if destPrefix != "" && !strings.HasSuffix(destPrefix, "/") {
		destPrefix += "/"
	}

	if !info.IsDir() {
		return []fileEntry{{sourcePath: path, destName: destPrefix + filepath.Base(path)}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			destName:   destPrefix + filepath.ToSlash(relPath),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}
