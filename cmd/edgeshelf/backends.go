package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/config"
	"github.com/sagarc03/edgeshelf/database"
	"github.com/sagarc03/edgeshelf/edgecache"
	"github.com/sagarc03/edgeshelf/filesystem"
	"github.com/sagarc03/edgeshelf/s3"
)

// openLocalStore connects the metadata database and opens the storage root.
// The returned func releases both.
func openLocalStore(ctx context.Context, cfg *config.Config) (*edgeshelf.LocalStore, func(), error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("connected to database", "type", cfg.Database.Type)

	if err = os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("open storage root: %w", err)
	}

	store := edgeshelf.NewLocalStore(db.GetRepo(), filesystem.NewFileStorage(root), edgeshelf.LocalStoreConfig{
		CleanupTimeout: cfg.Origin.CleanupTimeout,
	})

	closeFn := func() {
		_ = root.Close()
		_ = db.Close()
	}
	return store, closeFn, nil
}

// openOrigin returns the configured authoritative object store.
func openOrigin(ctx context.Context, cfg *config.Config) (edgeshelf.ObjectStore, func(), error) {
	switch cfg.Origin.Type {
	case config.OriginLocal:
		return openLocalStore(ctx, cfg)
	case config.OriginS3:
		store, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("open s3 origin: %w", err)
		}
		slog.Info("using s3 origin", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported origin type: %s", cfg.Origin.Type)
	}
}

// openCache returns the configured edge cache. Expired entries of a disk
// cache are pruned before it is handed out.
func openCache(ctx context.Context, cfg *config.Config) (edgeshelf.EdgeCache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return edgecache.NewMemory(edgecache.MemoryConfig{
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		}), func() {}, nil
	case config.CacheDisk:
		disk, err := openDiskCache(cfg)
		if err != nil {
			return nil, nil, err
		}
		pruned, err := disk.Prune(ctx)
		if err != nil {
			slog.Warn("prune edge cache", "err", err)
		} else if pruned > 0 {
			slog.Info("pruned expired edge cache entries", "count", pruned)
		}
		return disk, func() { _ = disk.Close() }, nil
	case config.CacheNone:
		return edgecache.Nop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

func openDiskCache(cfg *config.Config) (*edgecache.Disk, error) {
	disk, err := edgecache.OpenDisk(edgecache.DiskConfig{
		Path: cfg.Cache.Path,
		TTL:  cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}
	return disk, nil
}

var errLocalOnly = errors.New("command requires origin.type local")
