package store

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// OpenVersioned opens (creating if needed) a store and brings it to schema.
// It refuses stores written by a newer schema and stores whose recorded key
// paths disagree with schema.
func (d *Driver) OpenVersioned(ctx context.Context, name string, schema domain.Schema) (domain.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Path(name)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}
	if err := validateSchema(schema); err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}

	db, err := openBolt(path, d.timeout)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}

	var from int
	err = db.Update(func(tx *bolt.Tx) error {
		var err error
		from, err = applySchema(tx, schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &domain.StoreError{Op: "open", Store: name, Err: err}
	}

	if from != schema.Version {
		d.logger.Info("upgraded store schema", "store", name, "from", from, "to", schema.Version)
	}
	d.logger.Debug("opened store", "store", name, "tier", "versioned", "version", schema.Version)
	return &handle{name: name, db: db}, nil
}

// applySchema creates missing collections and stamps the version. Returns the
// version found on disk (0 for a new store).
func applySchema(tx *bolt.Tx, schema domain.Schema) (int, error) {
	meta, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return 0, err
	}

	stored := 0
	if v := meta.Get([]byte(metaVersion)); v != nil {
		stored, err = strconv.Atoi(string(v))
		if err != nil {
			return 0, fmt.Errorf("%w: unreadable version %q", domain.ErrCorrupt, v)
		}
	}
	if stored > schema.Version {
		return stored, fmt.Errorf("%w: stored %d, supported %d", domain.ErrSchemaTooNew, stored, schema.Version)
	}

	for _, c := range schema.Collections {
		kpKey := []byte(metaKeyPathPrefix + c.Name)
		recorded := string(meta.Get(kpKey))

		if tx.Bucket([]byte(c.Name)) == nil {
			if stored == schema.Version {
				return stored, fmt.Errorf("%w: collection %q missing at version %d", domain.ErrSchemaMismatch, c.Name, stored)
			}
			if _, err := tx.CreateBucket([]byte(c.Name)); err != nil {
				return stored, err
			}
		} else if recorded != "" && recorded != c.KeyPath {
			return stored, fmt.Errorf("%w: collection %q keyed by %q, expected %q",
				domain.ErrSchemaMismatch, c.Name, recorded, c.KeyPath)
		}

		if recorded == "" {
			if err := meta.Put(kpKey, []byte(c.KeyPath)); err != nil {
				return stored, err
			}
		}
	}

	if stored != schema.Version {
		if err := meta.Put([]byte(metaVersion), []byte(strconv.Itoa(schema.Version))); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

func validateSchema(schema domain.Schema) error {
	if schema.Version < 1 {
		return fmt.Errorf("%w: schema version %d", domain.ErrInvalidName, schema.Version)
	}
	for _, c := range schema.Collections {
		if err := validateCollection(c.Name); err != nil {
			return err
		}
		if c.KeyPath == "" {
			return fmt.Errorf("%w: collection %q has no key path", domain.ErrInvalidName, c.Name)
		}
	}
	return nil
}
