// Package migrate repairs primary keys that were persisted as numeric text.
package migrate

import (
	"context"
	"fmt"

	"github.com/mmcdole/marquee/internal/domain"
)

// Collections are migrated in this order.
var Collections = []string{domain.CollectionLibrary, domain.CollectionHistory}

// CollectionResult counts what happened to the textual-key records of one
// collection.
type CollectionResult struct {
	Fixed   int // re-keyed under the numeric key
	Dropped int // numeric key already taken; textual copy removed
	Failed  int // left as they were
}

// Result is the outcome of one migration run, by collection.
type Result map[string]CollectionResult

// Changed reports whether the run rewrote anything.
func (r Result) Changed() bool {
	for _, c := range r {
		if c.Fixed > 0 || c.Dropped > 0 {
			return true
		}
	}
	return false
}

// Migrator normalizes primary keys in the primary store.
type Migrator struct {
	opener   domain.VersionedOpener
	name     string
	schema   domain.Schema
	reporter domain.Reporter
}

// New creates a Migrator for the store called name.
func New(opener domain.VersionedOpener, name string, reporter domain.Reporter) *Migrator {
	if reporter == nil {
		reporter = domain.NopReporter{}
	}
	return &Migrator{opener: opener, name: name, schema: domain.PrimarySchema, reporter: reporter}
}

// MigrateDatabaseIDs opens the primary store and runs the migration. Failing
// to open is the only error; per-record failures are logged and counted.
func (m *Migrator) MigrateDatabaseIDs(ctx context.Context) (Result, error) {
	h, err := m.opener.OpenVersioned(ctx, m.name, m.schema)
	if err != nil {
		return nil, fmt.Errorf("open %s for migration: %w", m.name, err)
	}
	defer h.Close()
	return m.Run(ctx, h), nil
}

// Run migrates an already-open primary store.
func (m *Migrator) Run(ctx context.Context, h domain.Handle) Result {
	res := make(Result, len(Collections))
	for _, coll := range Collections {
		res[coll] = m.migrateCollection(ctx, h, coll)
	}

	if res.Changed() {
		fields := make(map[string]any, len(res))
		for coll, c := range res {
			fields[coll] = fmt.Sprintf("fixed=%d dropped=%d failed=%d", c.Fixed, c.Dropped, c.Failed)
		}
		m.log(domain.SeverityInfo, "normalized numeric ids", fields)
	}
	return res
}

func (m *Migrator) migrateCollection(ctx context.Context, h domain.Handle, coll string) CollectionResult {
	var res CollectionResult

	docs, err := h.ReadAll(ctx, coll)
	if err != nil {
		m.log(domain.SeverityError, "id migration skipped collection", map[string]any{
			"collection": coll, "error": err,
		})
		return res
	}

	for _, doc := range docs {
		rec, err := domain.DecodeRecord(coll, doc)
		if err != nil {
			// Records without a usable key cannot be addressed, let alone re-keyed.
			continue
		}
		textual := rec.PrimaryKey()
		numeric, ok := textual.NumericEquivalent()
		if !ok {
			continue
		}

		dropped, err := m.migrateRecord(ctx, h, rec, numeric)
		if err != nil {
			res.Failed++
			m.log(domain.SeverityWarn, "id migration failed for record", map[string]any{
				"collection": coll, "id": textual.String(), "error": err,
			})
			continue
		}
		if dropped {
			res.Dropped++
		} else {
			res.Fixed++
		}
	}
	return res
}

// migrateRecord moves rec to numeric unless that key is already owned, then
// removes the textual key. The numeric copy is written before the textual one
// is deleted so a failure in between never loses the record; a rerun sees the
// numeric key taken and finishes the delete.
func (m *Migrator) migrateRecord(ctx context.Context, h domain.Handle, rec domain.Record, numeric domain.Key) (dropped bool, err error) {
	coll := rec.Collection()

	_, taken, err := h.Get(ctx, coll, numeric)
	if err != nil {
		return false, err
	}
	if !taken {
		doc, err := rekey(rec, numeric)
		if err != nil {
			return false, err
		}
		if err := h.Put(ctx, coll, doc); err != nil {
			return false, err
		}
	}
	if err := h.Delete(ctx, coll, rec.PrimaryKey()); err != nil {
		return false, err
	}
	return taken, nil
}

func rekey(rec domain.Record, k domain.Key) (domain.Document, error) {
	switch r := rec.(type) {
	case *domain.LibraryRecord:
		r.ID = k
		r.NormalizeTmdbID()
		return r.Document()
	case *domain.HistoryRecord:
		r.ID = k
		return r.Document()
	case *domain.GenericRecord:
		r.ID = k
		return r.Document()
	default:
		return nil, fmt.Errorf("unsupported record type %T", rec)
	}
}

func (m *Migrator) log(s domain.Severity, msg string, ctx map[string]any) {
	m.reporter.Log(domain.LogEntry{Message: msg, Type: s, Context: ctx})
}
