package domain

import "context"

// CollectionSpec names a collection and the document field holding its
// primary key.
type CollectionSpec struct {
	Name    string
	KeyPath string
}

// Schema is a versioned set of collections.
type Schema struct {
	Version     int
	Collections []CollectionSpec
}

// KeyPath returns the key path declared for collection, or "" if the schema
// does not declare it.
func (s Schema) KeyPath(collection string) string {
	for _, c := range s.Collections {
		if c.Name == collection {
			return c.KeyPath
		}
	}
	return ""
}

// PrimarySchema is the layout the current application expects.
var PrimarySchema = Schema{
	Version: 2,
	Collections: []CollectionSpec{
		{Name: CollectionLibrary, KeyPath: KeyPathID},
		{Name: CollectionHistory, KeyPath: KeyPathID},
		{Name: CollectionSettings, KeyPath: KeyPathKey},
	},
}

// QuarantineSchema is the layout of the rescue store. It is versioned
// independently of PrimarySchema.
var QuarantineSchema = Schema{
	Version: 1,
	Collections: []CollectionSpec{
		{Name: QuarantineCollection, KeyPath: KeyPathKey},
	},
}

// QuarantineCollection holds one entry per rescued label.
const QuarantineCollection = "backup"

// RescueLabels are the primary collections copied during a rescue, in
// restoration order.
var RescueLabels = []string{CollectionLibrary, CollectionHistory}

// Handle is an open store.
type Handle interface {
	Name() string

	// CollectionNames lists the collections present in the store, sorted.
	CollectionNames(ctx context.Context) ([]string, error)

	// ReadAll returns every document in collection.
	ReadAll(ctx context.Context, collection string) ([]Document, error)

	// BulkUpsert writes docs in one all-or-nothing batch, replacing any
	// document sharing a primary key.
	BulkUpsert(ctx context.Context, collection string, docs []Document) error

	Get(ctx context.Context, collection string, key Key) (Document, bool, error)
	Put(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection string, key Key) error

	Close() error
}

// Driver is the raw tier: it opens stores without looking at their schema
// version, so it still works on a store the versioned tier rejects.
type Driver interface {
	// Open fails with ErrStoreNotFound when the store does not exist.
	Open(ctx context.Context, name string) (Handle, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// VersionedOpener is the schema-enforcing tier. It creates the store when
// missing and upgrades older layouts.
type VersionedOpener interface {
	OpenVersioned(ctx context.Context, name string, schema Schema) (Handle, error)
}
