package rescue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

const manifestLabel = "manifest"

// entry is the stored shape of one rescued label.
type entry struct {
	Key  string            `json:"key"`
	Data []domain.Document `json:"data"`
}

// Manifest describes the rescue that produced a quarantine store.
type Manifest struct {
	Key       string         `json:"key"`
	RescueID  string         `json:"rescueId"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"createdAt"`
	Counts    map[string]int `json:"counts"`
}

// Snapshot is the content of a quarantine store.
type Snapshot struct {
	Entries  map[string][]domain.Document // by label; absent labels mean nothing to restore
	Manifest *Manifest
}

// Quarantine owns the rescue store: a separate, independently versioned store
// holding one entry per rescued collection.
type Quarantine struct {
	driver   domain.Driver
	opener   domain.VersionedOpener
	name     string
	reporter domain.Reporter
	now      func() time.Time
}

// NewQuarantine creates a Quarantine for the store called name.
func NewQuarantine(driver domain.Driver, opener domain.VersionedOpener, name string, reporter domain.Reporter) *Quarantine {
	if reporter == nil {
		reporter = domain.NopReporter{}
	}
	return &Quarantine{driver: driver, opener: opener, name: name, reporter: reporter, now: time.Now}
}

// Name returns the quarantine store name.
func (q *Quarantine) Name() string {
	return q.name
}

// Write persists backup, one entry per rescue label (an empty array when the
// label was not backed up). It returns only after the store is closed. A
// snapshot left by an earlier rescue that was never restored is merged
// underneath the new one rather than overwritten.
func (q *Quarantine) Write(ctx context.Context, rescueID, source string, backup Backup) error {
	h, err := q.opener.OpenVersioned(ctx, q.name, domain.QuarantineSchema)
	if err != nil {
		return fmt.Errorf("open quarantine: %w", err)
	}

	docs, err := q.buildEntries(ctx, h, rescueID, source, backup)
	if err == nil {
		err = h.BulkUpsert(ctx, domain.QuarantineCollection, docs)
	}
	if err != nil {
		h.Close()
		return fmt.Errorf("write quarantine: %w", err)
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("close quarantine: %w", err)
	}
	return nil
}

func (q *Quarantine) buildEntries(ctx context.Context, h domain.Handle, rescueID, source string, backup Backup) ([]domain.Document, error) {
	pending, err := q.readEntries(ctx, h)
	if err != nil {
		// Unreadable leftovers cannot be merged; the new snapshot replaces them.
		report(q.reporter, domain.SeverityWarn, "pending quarantine unreadable, replacing it", map[string]any{
			"store": q.name, "error": err,
		})
		pending = Snapshot{}
	}

	counts := make(map[string]int, len(domain.RescueLabels))
	docs := make([]domain.Document, 0, len(domain.RescueLabels)+1)
	for _, label := range domain.RescueLabels {
		records := backup[label]
		if prev := pending.Entries[label]; len(prev) > 0 {
			records = mergeByKey(prev, records, domain.PrimarySchema.KeyPath(label))
			report(q.reporter, domain.SeverityInfo, "merged pending quarantine entry", map[string]any{
				"label": label, "pending": len(prev), "merged": len(records),
			})
		}
		if records == nil {
			records = []domain.Document{}
		}
		counts[label] = len(records)

		doc, err := encode(entry{Key: label, Data: records})
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	manifest, err := encode(Manifest{
		Key:       manifestLabel,
		RescueID:  rescueID,
		Source:    source,
		CreatedAt: q.now().UTC(),
		Counts:    counts,
	})
	if err != nil {
		return nil, err
	}
	return append(docs, manifest), nil
}

// Pending reports whether a quarantine store exists.
func (q *Quarantine) Pending(ctx context.Context) (bool, error) {
	return q.driver.Exists(ctx, q.name)
}

// Load reads the quarantine store without modifying it.
func (q *Quarantine) Load(ctx context.Context) (Snapshot, error) {
	h, err := q.driver.Open(ctx, q.name)
	if err != nil {
		return Snapshot{}, err
	}
	defer h.Close()
	return q.readEntries(ctx, h)
}

// Discard deletes the quarantine store.
func (q *Quarantine) Discard(ctx context.Context) error {
	return q.driver.Delete(ctx, q.name)
}

func (q *Quarantine) readEntries(ctx context.Context, h domain.Handle) (Snapshot, error) {
	docs, err := h.ReadAll(ctx, domain.QuarantineCollection)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Entries: make(map[string][]domain.Document, len(docs))}
	for _, d := range docs {
		var label string
		if _, err := d.Field(domain.KeyPathKey, &label); err != nil {
			return Snapshot{}, err
		}
		if label == manifestLabel {
			var m Manifest
			if raw, err := d.Encode(); err == nil && json.Unmarshal(raw, &m) == nil {
				snap.Manifest = &m
			}
			continue
		}
		var records []domain.Document
		if _, err := d.Field("data", &records); err != nil {
			return Snapshot{}, fmt.Errorf("entry %q: %w", label, err)
		}
		snap.Entries[label] = records
	}
	return snap, nil
}

// mergeByKey overlays next on prev by primary key, keeping prev's order for
// surviving records and appending new ones.
func mergeByKey(prev, next []domain.Document, keyPath string) []domain.Document {
	out := make([]domain.Document, 0, len(prev)+len(next))
	index := make(map[domain.Key]int, len(prev)+len(next))
	for _, d := range prev {
		k, err := d.Key(keyPath)
		if err != nil {
			continue
		}
		index[k] = len(out)
		out = append(out, d)
	}
	for _, d := range next {
		k, err := d.Key(keyPath)
		if err != nil {
			out = append(out, d)
			continue
		}
		if i, ok := index[k]; ok {
			out[i] = d
			continue
		}
		index[k] = len(out)
		out = append(out, d)
	}
	return out
}

func encode(v any) (domain.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return domain.DecodeDocument(raw)
}
