package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations
var (
	// ErrStoreNotFound indicates the named store does not exist on disk
	ErrStoreNotFound = errors.New("store not found")

	// ErrStoreLocked indicates another process holds the store's file lock
	ErrStoreLocked = errors.New("store is locked")

	// ErrCorrupt indicates the store file or a page inside it is unreadable
	ErrCorrupt = errors.New("store is corrupt")

	// ErrSchemaTooNew indicates the stored schema version is newer than this build understands
	ErrSchemaTooNew = errors.New("stored schema version is newer than supported")

	// ErrSchemaMismatch indicates stored collections disagree with the declared schema
	ErrSchemaMismatch = errors.New("stored schema does not match")

	// ErrCollectionNotFound indicates the collection does not exist in the store
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidKey indicates a record has no usable primary key
	ErrInvalidKey = errors.New("invalid primary key")

	// ErrInvalidName indicates a store or collection name that cannot be used
	ErrInvalidName = errors.New("invalid name")
)

// StoreError records the operation and location of a store failure.
type StoreError struct {
	Op         string // "open", "read", "upsert", ...
	Store      string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Store, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Store, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
