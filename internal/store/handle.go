package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// handle implements domain.Handle over an open BoltDB file.
type handle struct {
	name string
	db   *bolt.DB
}

func (h *handle) Name() string {
	return h.name
}

func (h *handle) Close() error {
	return h.db.Close()
}

// === Generic helpers ===

// view runs fn in a read transaction. Panics from corrupt pages surface as
// ErrCorrupt instead of taking the process down.
func (h *handle) view(op, collection string, fn func(tx *bolt.Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = h.fail(op, collection, fmt.Errorf("%w: %v", domain.ErrCorrupt, r))
		}
	}()
	if err := h.db.View(fn); err != nil {
		return h.fail(op, collection, err)
	}
	return nil
}

func (h *handle) update(op, collection string, fn func(tx *bolt.Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = h.fail(op, collection, fmt.Errorf("%w: %v", domain.ErrCorrupt, r))
		}
	}()
	if err := h.db.Update(fn); err != nil {
		return h.fail(op, collection, err)
	}
	return nil
}

func (h *handle) fail(op, collection string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StoreError{Op: op, Store: h.name, Collection: collection, Err: err}
}

// bucket returns the collection's bucket and key path.
func bucket(tx *bolt.Tx, collection string) (*bolt.Bucket, string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, "", err
	}
	b := tx.Bucket([]byte(collection))
	if b == nil {
		return nil, "", domain.ErrCollectionNotFound
	}
	return b, keyPath(tx, collection), nil
}

// keyPath reads the recorded key path, defaulting to "id" for stores written
// before key paths were recorded.
func keyPath(tx *bolt.Tx, collection string) string {
	if meta := tx.Bucket(metaBucket); meta != nil {
		if v := meta.Get([]byte(metaKeyPathPrefix + collection)); len(v) > 0 {
			return string(v)
		}
	}
	return domain.KeyPathID
}

// === Reads ===

func (h *handle) CollectionNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := h.view("list", "", func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if validateCollection(string(name)) == nil {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (h *handle) ReadAll(ctx context.Context, collection string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []domain.Document
	err := h.view("read", collection, func(tx *bolt.Tx) error {
		b, _, err := bucket(tx, collection)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil // nested bucket
			}
			doc, err := domain.DecodeDocument(v)
			if err != nil {
				key, _ := decodeKey(k)
				return fmt.Errorf("%w: record %s: %v", domain.ErrCorrupt, key, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (h *handle) Get(ctx context.Context, collection string, key domain.Key) (domain.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	k, err := encodeKey(key)
	if err != nil {
		return nil, false, h.fail("get", collection, err)
	}
	var doc domain.Document
	err = h.view("get", collection, func(tx *bolt.Tx) error {
		b, _, err := bucket(tx, collection)
		if err != nil {
			return err
		}
		v := b.Get(k)
		if v == nil {
			return nil
		}
		doc, err = domain.DecodeDocument(v)
		if err != nil {
			return fmt.Errorf("%w: record %s: %v", domain.ErrCorrupt, key, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return doc, doc != nil, nil
}

// === Writes ===

func (h *handle) BulkUpsert(ctx context.Context, collection string, docs []domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.update("upsert", collection, func(tx *bolt.Tx) error {
		b, kp, err := bucket(tx, collection)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			if err := putDocument(b, kp, doc); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
}

func (h *handle) Put(ctx context.Context, collection string, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.update("put", collection, func(tx *bolt.Tx) error {
		b, kp, err := bucket(tx, collection)
		if err != nil {
			return err
		}
		return putDocument(b, kp, doc)
	})
}

func (h *handle) Delete(ctx context.Context, collection string, key domain.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := encodeKey(key)
	if err != nil {
		return h.fail("delete", collection, err)
	}
	return h.update("delete", collection, func(tx *bolt.Tx) error {
		b, _, err := bucket(tx, collection)
		if err != nil {
			return err
		}
		return b.Delete(k)
	})
}

func putDocument(b *bolt.Bucket, keyPath string, doc domain.Document) error {
	key, err := doc.Key(keyPath)
	if err != nil {
		return err
	}
	k, err := encodeKey(key)
	if err != nil {
		return err
	}
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", key, err)
	}
	return b.Put(k, data)
}
