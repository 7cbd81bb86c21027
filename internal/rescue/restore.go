package rescue

import (
	"context"
	"fmt"

	"github.com/mmcdole/marquee/internal/domain"
)

// RestoreResult summarizes one restore attempt.
type RestoreResult struct {
	Performed bool // a quarantine was found and read
	RescueID  string
	Restored  map[string]int
	Failed    map[string]error
	Discarded bool // the quarantine store was deleted
}

// Restorer merges a pending quarantine back into a freshly opened store.
type Restorer struct {
	quarantine *Quarantine
	reporter   domain.Reporter
}

// NewRestorer creates a Restorer.
func NewRestorer(quarantine *Quarantine, reporter domain.Reporter) *Restorer {
	if reporter == nil {
		reporter = domain.NopReporter{}
	}
	return &Restorer{quarantine: quarantine, reporter: reporter}
}

// RestoreFromRescue upserts every quarantined label into primary. Labels are
// restored independently; one failing does not stop the others. Once the
// upserts have been attempted the quarantine is deleted whether or not they
// all succeeded. A quarantine that cannot be read is left for the next start.
func (r *Restorer) RestoreFromRescue(ctx context.Context, primary domain.Handle) RestoreResult {
	res := RestoreResult{Restored: map[string]int{}, Failed: map[string]error{}}

	pending, err := r.quarantine.Pending(ctx)
	if err != nil {
		report(r.reporter, domain.SeverityWarn, "could not check for rescue backup", map[string]any{
			"quarantine": r.quarantine.Name(), "error": err,
		})
		return res
	}
	if !pending {
		return res
	}

	snap, err := r.quarantine.Load(ctx)
	if err != nil {
		report(r.reporter, domain.SeverityError, "rescue backup unreadable, leaving it for next start", map[string]any{
			"quarantine": r.quarantine.Name(), "error": err,
		})
		return res
	}
	res.Performed = true
	if snap.Manifest != nil {
		res.RescueID = snap.Manifest.RescueID
	}

	for _, label := range domain.RescueLabels {
		docs := snap.Entries[label]
		if len(docs) == 0 {
			res.Restored[label] = 0
			continue
		}
		keyPath := domain.PrimarySchema.KeyPath(label)
		keyed, skipped := splitKeyed(docs, keyPath)
		if skipped > 0 {
			res.Failed[label] = fmt.Errorf("%w: %d records have no usable %q", domain.ErrInvalidKey, skipped, keyPath)
			report(r.reporter, domain.SeverityWarn, "rescue backup records without a key skipped", map[string]any{
				"collection": label, "skipped": skipped, "keyPath": keyPath, "rescueId": res.RescueID,
			})
		}
		if len(keyed) == 0 {
			res.Restored[label] = 0
			continue
		}
		if err := primary.BulkUpsert(ctx, label, keyed); err != nil {
			report(r.reporter, domain.SeverityWarn, "failed to restore collection from rescue backup", map[string]any{
				"collection": label, "records": len(keyed), "rescueId": res.RescueID, "error": err,
			})
			res.Failed[label] = err
			continue
		}
		res.Restored[label] = len(keyed)
	}

	if err := r.quarantine.Discard(ctx); err != nil {
		report(r.reporter, domain.SeverityError, "failed to delete rescue backup", map[string]any{
			"quarantine": r.quarantine.Name(), "error": err,
		})
	} else {
		res.Discarded = true
	}

	report(r.reporter, domain.SeverityInfo, "restored from rescue backup", map[string]any{
		"rescueId": res.RescueID, "restored": res.Restored, "failed": len(res.Failed),
	})
	return res
}

// splitKeyed separates out documents the primary store cannot address.
func splitKeyed(docs []domain.Document, keyPath string) ([]domain.Document, int) {
	keyed := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if _, err := d.Key(keyPath); err != nil {
			continue
		}
		keyed = append(keyed, d)
	}
	return keyed, len(docs) - len(keyed)
}
