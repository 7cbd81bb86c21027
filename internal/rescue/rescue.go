package rescue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mmcdole/marquee/internal/domain"
)

// Rescuer backs up a store the versioned tier refused, quarantines the
// backup and deletes the store so it can be recreated empty.
type Rescuer struct {
	driver     domain.Driver
	reader     *BackupReader
	quarantine *Quarantine
	reporter   domain.Reporter
	newID      func() string
}

// NewRescuer creates a Rescuer. driver deletes the primary store; reader and
// quarantine handle the copy.
func NewRescuer(driver domain.Driver, reader *BackupReader, quarantine *Quarantine, reporter domain.Reporter) *Rescuer {
	if reporter == nil {
		reporter = domain.NopReporter{}
	}
	return &Rescuer{
		driver:     driver,
		reader:     reader,
		quarantine: quarantine,
		reporter:   reporter,
		newID:      uuid.NewString,
	}
}

// PerformRescue reports whether the store called name was backed up and
// deleted. The store is deleted only after the quarantine write has been
// committed and closed; on false the store is left exactly as it was.
// Cancelling ctx does not interrupt a rescue in progress.
func (r *Rescuer) PerformRescue(ctx context.Context, name string) bool {
	ctx = context.WithoutCancel(ctx)
	rescueID := r.newID()

	backup, err := r.reader.Read(ctx, name, domain.RescueLabels)
	switch {
	case errors.Is(err, domain.ErrStoreLocked):
		report(r.reporter, domain.SeverityCritical, "store is held by another process, rescue aborted", map[string]any{
			"store": name, "rescueId": rescueID, "error": err,
		})
		return false
	case err != nil:
		// Nothing readable means nothing to lose; rescue proceeds with an empty backup.
		report(r.reporter, domain.SeverityWarn, "store unreadable, rescuing without backup", map[string]any{
			"store": name, "rescueId": rescueID, "error": err,
		})
		backup = Backup{}
	}

	if err := r.quarantine.Write(ctx, rescueID, name, backup); err != nil {
		report(r.reporter, domain.SeverityCritical, "failed to write rescue backup, store left untouched", map[string]any{
			"store": name, "quarantine": r.quarantine.Name(), "rescueId": rescueID, "error": err,
		})
		return false
	}

	if err := r.driver.Delete(ctx, name); err != nil {
		report(r.reporter, domain.SeverityCritical, "failed to delete store after backup", map[string]any{
			"store": name, "rescueId": rescueID, "error": err,
		})
		return false
	}

	fields := map[string]any{"store": name, "rescueId": rescueID}
	for _, label := range domain.RescueLabels {
		fields[label] = backup.Count(label)
	}
	report(r.reporter, domain.SeverityWarn, "store rescued and reset", fields)
	return true
}
