package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

// metaBucket holds the schema version and per-collection key paths.
var metaBucket = []byte("__meta__")

const (
	metaVersion       = "version"
	metaKeyPathPrefix = "keypath:"
	fileExt           = ".db"
)

// Driver stores each named store as one BoltDB file under a directory, with
// one bucket per collection. It implements both domain.Driver (raw tier) and
// domain.VersionedOpener.
type Driver struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewDriver creates dir if needed. timeout bounds how long Open waits for the
// file lock.
func NewDriver(dir string, timeout time.Duration, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Driver{dir: dir, timeout: timeout, logger: logger}, nil
}

// Dir returns the directory holding the store files.
func (d *Driver) Dir() string {
	return d.dir
}

// Path returns the file backing the named store.
func (d *Driver) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.dir, name+fileExt), nil
}

// Open opens an existing store without consulting its schema version.
func (d *Driver) Open(ctx context.Context, name string) (domain.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Path(name)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.StoreError{Op: "open", Store: name, Err: domain.ErrStoreNotFound}
		}
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}
	db, err := openBolt(path, d.timeout)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}
	d.logger.Debug("opened store", "store", name, "tier", "raw")
	return &handle{name: name, db: db}, nil
}

// Delete removes the store file. Deleting a missing store is not an error.
func (d *Driver) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.Path(name)
	if err != nil {
		return &domain.StoreError{Op: "delete", Store: name, Err: err}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StoreError{Op: "delete", Store: name, Err: err}
	}
	d.logger.Debug("deleted store", "store", name)
	return nil
}

// Exists reports whether the store file is present.
func (d *Driver) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := d.Path(name)
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Store: name, Err: err}
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &domain.StoreError{Op: "exists", Store: name, Err: err}
	}
}

// openBolt opens path, mapping bbolt failures onto domain errors.
func openBolt(path string, timeout time.Duration) (db *bolt.DB, err error) {
	defer func() {
		if r := recover(); r != nil {
			db, err = nil, fmt.Errorf("%w: %v", domain.ErrCorrupt, r)
		}
	}()

	db, err = bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err == nil {
		return db, nil
	}
	switch {
	case errors.Is(err, berrors.ErrTimeout):
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreLocked, err)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrNotExist):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrCorrupt, err)
	}
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return nil
}

func validateCollection(name string) error {
	if name == "" || strings.HasPrefix(name, "__") {
		return fmt.Errorf("%w: collection %q", domain.ErrInvalidName, name)
	}
	return nil
}
