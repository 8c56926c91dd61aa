package edgeshelf

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ObjectStore is the authoritative origin for objects. The serving path only
// uses Get; List, Put and Delete back the admin surface and the CLI.
type ObjectStore interface {
	// Get opens an object for reading. It returns ErrNotFound if the object
	// does not exist. The caller must close the record body.
	Get(ctx context.Context, name string) (ObjectRecord, error)

	// List returns a page of objects whose names start with q.Prefix.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// Put stores content under obj.Name, replacing any existing object.
	Put(ctx context.Context, obj PutObject, content io.Reader) (MetaData, error)

	// Delete removes an object. It returns ErrNotFound if the object does not exist.
	Delete(ctx context.Context, name string) error
}

// Fetcher retrieves objects from an ObjectStore, separating absence from faults.
type Fetcher struct {
	store ObjectStore
}

func NewFetcher(store ObjectStore) *Fetcher {
	return &Fetcher{store: store}
}

// Fetch returns the record for name. found is false, with a nil error, when
// the object does not exist or the name cannot address an object. Any other
// store failure is wrapped with ErrOriginFault.
func (f *Fetcher) Fetch(ctx context.Context, name string) (rec ObjectRecord, found bool, err error) {
	if !IsValidName(name) {
		return ObjectRecord{}, false, nil
	}

	rec, err = f.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ObjectRecord{}, false, nil
		}
		return ObjectRecord{}, false, fmt.Errorf("fetch %s: %w: %w", name, ErrOriginFault, err)
	}

	if rec.Name == "" {
		rec.Name = name
	}

	return rec, true, nil
}
