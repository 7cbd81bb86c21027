package rescue

import (
	"context"

	"github.com/mmcdole/marquee/internal/domain"
)

// Backup maps a collection name to every document read from it. Collections
// that did not exist, or could not be read, are absent.
type Backup map[string][]domain.Document

// Count returns the number of documents held for collection.
func (b Backup) Count(collection string) int {
	return len(b[collection])
}

// BackupReader copies collections out of a store through the raw tier, so it
// works on stores the versioned tier refuses to open.
type BackupReader struct {
	driver   domain.Driver
	reporter domain.Reporter
}

// NewBackupReader creates a BackupReader.
func NewBackupReader(driver domain.Driver, reporter domain.Reporter) *BackupReader {
	if reporter == nil {
		reporter = domain.NopReporter{}
	}
	return &BackupReader{driver: driver, reporter: reporter}
}

// Read returns every document of the requested collections that exist in the
// store. It fails only when the store cannot be opened or enumerated; a
// collection that cannot be read is logged and left out.
func (r *BackupReader) Read(ctx context.Context, name string, collections []string) (Backup, error) {
	h, err := r.driver.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := h.Close(); err != nil {
			report(r.reporter, domain.SeverityWarn, "failed to close store after backup", map[string]any{
				"store": name, "error": err,
			})
		}
	}()

	names, err := h.CollectionNames(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	backup := make(Backup, len(collections))
	for _, c := range collections {
		if !present[c] {
			continue
		}
		docs, err := h.ReadAll(ctx, c)
		if err != nil {
			report(r.reporter, domain.SeverityWarn, "backup read failed, collection skipped", map[string]any{
				"store": name, "collection": c, "error": err,
			})
			continue
		}
		if docs == nil {
			docs = []domain.Document{}
		}
		backup[c] = docs
	}
	return backup, nil
}

func report(r domain.Reporter, s domain.Severity, msg string, ctx map[string]any) {
	r.Log(domain.LogEntry{Message: msg, Type: s, Context: ctx})
}
