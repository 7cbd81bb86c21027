package rescue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/testsupport"
)

const (
	primaryName    = "marquee"
	quarantineName = "marquee-rescue"
)

// futureSchema is what a newer build left behind: same collections, higher
// version, so the versioned tier refuses it.
var futureSchema = domain.Schema{Version: 9, Collections: domain.PrimarySchema.Collections}

type fixture struct {
	faulty     *testsupport.FaultyDriver
	rec        *testsupport.Recorder
	quarantine *Quarantine
	rescuer    *Rescuer
	restorer   *Restorer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		faulty: testsupport.NewFaultyDriver(testsupport.MustDriver(t)),
		rec:    &testsupport.Recorder{},
	}
	f.quarantine = NewQuarantine(f.faulty, f.faulty, quarantineName, f.rec)
	f.rescuer = NewRescuer(f.faulty, NewBackupReader(f.faulty, f.rec), f.quarantine, f.rec)
	f.restorer = NewRestorer(f.quarantine, f.rec)
	return f
}

// seedStore writes collections into a fresh store at schema and closes it.
func (f *fixture) seedStore(t *testing.T, name string, schema domain.Schema, data map[string][]string) {
	t.Helper()
	h, err := f.faulty.Inner.OpenVersioned(context.Background(), name, schema)
	require.NoError(t, err)
	for coll, objects := range data {
		testsupport.Seed(t, h, coll, objects...)
	}
	require.NoError(t, h.Close())
}

func (f *fixture) exists(t *testing.T, name string) bool {
	t.Helper()
	ok, err := f.faulty.Inner.Exists(context.Background(), name)
	require.NoError(t, err)
	return ok
}

func assertSameDocs(t *testing.T, want, got []domain.Document) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, err := want[i].Encode()
		require.NoError(t, err)
		g, err := got[i].Encode()
		require.NoError(t, err)
		assert.JSONEq(t, string(w), string(g))
	}
}

var (
	libraryDocs = []string{
		`{"id":"550","tmdbId":"550","mediaType":"movie","title":"Fight Club","addedAt":1700000000}`,
		`{"id":603,"tmdbId":603,"mediaType":"movie","title":"The Matrix","extra":{"nested":[1,2,3]}}`,
	}
	historyDocs = []string{
		`{"id":"1399-1-1","tmdbId":1399,"mediaType":"tv","season":1,"episode":1,"progress":120.5,"duration":3600}`,
	}
)

func TestBackupReader_ReadsExistingCollections(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, domain.Schema{
		Version:     9,
		Collections: []domain.CollectionSpec{{Name: domain.CollectionLibrary, KeyPath: domain.KeyPathID}},
	}, map[string][]string{domain.CollectionLibrary: libraryDocs})

	backup, err := NewBackupReader(f.faulty, f.rec).Read(context.Background(), primaryName, domain.RescueLabels)
	require.NoError(t, err)

	assert.Equal(t, 2, backup.Count(domain.CollectionLibrary))
	_, ok := backup[domain.CollectionHistory]
	assert.False(t, ok, "missing collection must be absent, not empty")
	assert.Zero(t, f.faulty.Count("openversioned:"), "backup uses the raw tier only")
}

func TestBackupReader_MissingStore(t *testing.T) {
	f := newFixture(t)
	_, err := NewBackupReader(f.faulty, f.rec).Read(context.Background(), primaryName, domain.RescueLabels)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestBackupReader_CollectionFailureIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: libraryDocs,
		domain.CollectionHistory: historyDocs,
	})
	f.faulty.Fail("read:marquee/library", domain.ErrCorrupt)

	backup, err := NewBackupReader(f.faulty, f.rec).Read(context.Background(), primaryName, domain.RescueLabels)
	require.NoError(t, err)

	assert.NotContains(t, backup, domain.CollectionLibrary)
	assert.Equal(t, 1, backup.Count(domain.CollectionHistory))
	assert.True(t, f.rec.Has(domain.SeverityWarn, "backup read failed, collection skipped"))
}

func TestPerformRescue_BackupThenDelete(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: libraryDocs,
		domain.CollectionHistory: historyDocs,
	})

	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	assert.False(t, f.exists(t, primaryName))
	assert.True(t, f.exists(t, quarantineName))

	calls := f.faulty.Calls()
	upsert := indexOf(calls, "upsert:marquee-rescue/backup")
	del := indexOf(calls, "delete:marquee")
	require.NotEqual(t, -1, upsert)
	require.NotEqual(t, -1, del)
	assert.Less(t, upsert, del, "primary must be deleted after the backup is written")

	snap, err := f.quarantine.Load(context.Background())
	require.NoError(t, err)
	assertSameDocs(t, testsupport.MustDocs(t, libraryDocs...), sortByID(t, snap.Entries[domain.CollectionLibrary]))
	assertSameDocs(t, testsupport.MustDocs(t, historyDocs...), snap.Entries[domain.CollectionHistory])
	require.NotNil(t, snap.Manifest)
	assert.NotEmpty(t, snap.Manifest.RescueID)
	assert.Equal(t, primaryName, snap.Manifest.Source)
	assert.Equal(t, map[string]int{"library": 2, "history": 1}, snap.Manifest.Counts)
}

func TestPerformRescue_MissingCollectionStoredEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, domain.Schema{
		Version:     9,
		Collections: []domain.CollectionSpec{{Name: domain.CollectionLibrary, KeyPath: domain.KeyPathID}},
	}, map[string][]string{domain.CollectionLibrary: libraryDocs[:1]})

	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	snap, err := f.quarantine.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, snap.Entries, domain.CollectionHistory)
	assert.Empty(t, snap.Entries[domain.CollectionHistory])
	assert.Len(t, snap.Entries[domain.CollectionLibrary], 1)
}

func TestPerformRescue_UnreadableStoreStillReset(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, nil)
	f.faulty.Fail("open:marquee", domain.ErrCorrupt)

	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	assert.False(t, f.exists(t, primaryName))
	assert.True(t, f.rec.Has(domain.SeverityWarn, "store unreadable, rescuing without backup"))
	snap, err := f.quarantine.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Entries[domain.CollectionLibrary])
}

func TestPerformRescue_LockedStoreAborts(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{domain.CollectionLibrary: libraryDocs})

	held, err := f.faulty.Inner.Open(context.Background(), primaryName)
	require.NoError(t, err)
	defer held.Close()

	assert.False(t, f.rescuer.PerformRescue(context.Background(), primaryName))
	assert.Zero(t, f.faulty.Count("delete:"))
	assert.Zero(t, f.faulty.Count("openversioned:"))
	assert.True(t, f.rec.Has(domain.SeverityCritical, "store is held by another process, rescue aborted"))
}

func TestPerformRescue_WriteFailureNeverDeletes(t *testing.T) {
	for _, call := range []string{"openversioned:marquee-rescue", "upsert:marquee-rescue/backup"} {
		t.Run(call, func(t *testing.T) {
			f := newFixture(t)
			f.seedStore(t, primaryName, futureSchema, map[string][]string{domain.CollectionLibrary: libraryDocs})
			f.faulty.Fail(call, errors.New("disk full"))

			assert.False(t, f.rescuer.PerformRescue(context.Background(), primaryName))
			assert.Zero(t, f.faulty.Count("delete:"))
			assert.True(t, f.exists(t, primaryName))
			assert.True(t, f.rec.Has(domain.SeverityCritical, "failed to write rescue backup, store left untouched"))
		})
	}
}

func TestPerformRescue_IgnoresCancellation(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{domain.CollectionLibrary: libraryDocs})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, f.rescuer.PerformRescue(ctx, primaryName))
	assert.False(t, f.exists(t, primaryName))
}

func TestPerformRescue_MergesPendingQuarantine(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: {`{"id":1,"title":"old one"}`, `{"id":2,"title":"two"}`},
	})
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: {`{"id":1,"title":"new one"}`, `{"id":3,"title":"three"}`},
	})
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	snap, err := f.quarantine.Load(context.Background())
	require.NoError(t, err)
	assertSameDocs(t, testsupport.MustDocs(t,
		`{"id":1,"title":"new one"}`,
		`{"id":2,"title":"two"}`,
		`{"id":3,"title":"three"}`,
	), snap.Entries[domain.CollectionLibrary])
	assert.True(t, f.rec.Has(domain.SeverityInfo, "merged pending quarantine entry"))
}

func TestRestoreFromRescue_NothingPending(t *testing.T) {
	f := newFixture(t)
	primary := testsupport.MustOpen(t, f.faulty, primaryName, domain.PrimarySchema)

	res := f.restorer.RestoreFromRescue(context.Background(), primary)
	assert.False(t, res.Performed)
	assert.Zero(t, f.faulty.Count("upsert:"))
	assert.Zero(t, f.faulty.Count("delete:"))
}

func TestRescueAndRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: libraryDocs,
		domain.CollectionHistory: historyDocs,
	})
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	primary := testsupport.MustOpen(t, f.faulty, primaryName, domain.PrimarySchema)
	res := f.restorer.RestoreFromRescue(context.Background(), primary)

	assert.True(t, res.Performed)
	assert.True(t, res.Discarded)
	assert.NotEmpty(t, res.RescueID)
	assert.Equal(t, map[string]int{"library": 2, "history": 1}, res.Restored)
	assert.Empty(t, res.Failed)
	assert.False(t, f.exists(t, quarantineName))

	lib := testsupport.Snapshot(t, primary, domain.CollectionLibrary)
	assert.Len(t, lib, 2)
	assert.Contains(t, lib, `"550"`, "keys keep their original type")
	assert.Contains(t, lib, `603`)
	extra, err := lib["603"].Encode()
	require.NoError(t, err)
	assert.Contains(t, string(extra), `"extra":{"nested":[1,2,3]}`)

	// A second start finds nothing to do.
	before := f.faulty.Count("upsert:")
	res = f.restorer.RestoreFromRescue(context.Background(), primary)
	assert.False(t, res.Performed)
	assert.Equal(t, before, f.faulty.Count("upsert:"))
}

func TestRestoreFromRescue_PartialFailureStillDiscards(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{
		domain.CollectionLibrary: libraryDocs,
		domain.CollectionHistory: historyDocs,
	})
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	primary := testsupport.MustOpen(t, f.faulty, primaryName, domain.PrimarySchema)
	f.faulty.Fail("upsert:marquee/library", errors.New("quota exceeded"))

	res := f.restorer.RestoreFromRescue(context.Background(), primary)
	assert.True(t, res.Performed)
	assert.Contains(t, res.Failed, domain.CollectionLibrary)
	assert.Equal(t, 1, res.Restored[domain.CollectionHistory])
	assert.True(t, res.Discarded)
	assert.False(t, f.exists(t, quarantineName))
	assert.True(t, f.rec.Has(domain.SeverityWarn, "failed to restore collection from rescue backup"))

	assert.Empty(t, testsupport.Snapshot(t, primary, domain.CollectionLibrary))
	assert.Len(t, testsupport.Snapshot(t, primary, domain.CollectionHistory), 1)
}

func TestRescueAndRestore_KeylessRecordsDoNotSinkCollection(t *testing.T) {
	f := newFixture(t)
	byTmdb := domain.Schema{Version: 2, Collections: []domain.CollectionSpec{
		{Name: domain.CollectionLibrary, KeyPath: "tmdbId"},
		{Name: domain.CollectionHistory, KeyPath: domain.KeyPathID},
		{Name: domain.CollectionSettings, KeyPath: domain.KeyPathKey},
	}}
	f.seedStore(t, primaryName, byTmdb, map[string][]string{
		domain.CollectionLibrary: {
			`{"id":1,"tmdbId":1,"title":"A"}`,
			`{"id":2,"tmdbId":2,"title":"B"}`,
			`{"tmdbId":3,"title":"C"}`,
		},
	})

	_, err := f.faulty.Inner.OpenVersioned(context.Background(), primaryName, domain.PrimarySchema)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	primary := testsupport.MustOpen(t, f.faulty, primaryName, domain.PrimarySchema)
	res := f.restorer.RestoreFromRescue(context.Background(), primary)

	assert.True(t, res.Performed)
	assert.Equal(t, 2, res.Restored[domain.CollectionLibrary])
	require.Contains(t, res.Failed, domain.CollectionLibrary)
	assert.ErrorIs(t, res.Failed[domain.CollectionLibrary], domain.ErrInvalidKey)
	assert.True(t, f.rec.Has(domain.SeverityWarn, "rescue backup records without a key skipped"))

	lib := testsupport.Snapshot(t, primary, domain.CollectionLibrary)
	assert.Len(t, lib, 2)
	assert.Contains(t, lib, "1")
	assert.Contains(t, lib, "2")
}

func TestRestoreFromRescue_UnreadableQuarantineKept(t *testing.T) {
	f := newFixture(t)
	f.seedStore(t, primaryName, futureSchema, map[string][]string{domain.CollectionLibrary: libraryDocs})
	require.True(t, f.rescuer.PerformRescue(context.Background(), primaryName))

	primary := testsupport.MustOpen(t, f.faulty, primaryName, domain.PrimarySchema)
	f.faulty.Fail("read:marquee-rescue/backup", domain.ErrCorrupt)

	res := f.restorer.RestoreFromRescue(context.Background(), primary)
	assert.False(t, res.Performed)
	assert.True(t, f.exists(t, quarantineName))
	assert.Zero(t, f.faulty.Count("upsert:marquee/"))
	assert.True(t, f.rec.Has(domain.SeverityError, "rescue backup unreadable, leaving it for next start"))
}

func TestMergeByKey(t *testing.T) {
	prev := testsupport.MustDocs(t, `{"id":"a","v":1}`, `{"id":1,"v":1}`, `{"v":"no key"}`)
	next := testsupport.MustDocs(t, `{"id":"1","v":2}`, `{"id":"a","v":2}`)

	got := mergeByKey(prev, next, domain.KeyPathID)
	assertSameDocs(t, testsupport.MustDocs(t,
		`{"id":"a","v":2}`,
		`{"id":1,"v":1}`,
		`{"id":"1","v":2}`,
	), got)
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func sortByID(t *testing.T, docs []domain.Document) []domain.Document {
	t.Helper()
	// The store returns number keys before string keys; the fixtures list
	// the string-keyed record first.
	out := make([]domain.Document, 0, len(docs))
	var nums []domain.Document
	for _, d := range docs {
		k, err := d.Key(domain.KeyPathID)
		require.NoError(t, err)
		if k.IsNumber() {
			nums = append(nums, d)
			continue
		}
		out = append(out, d)
	}
	return append(out, nums...)
}
