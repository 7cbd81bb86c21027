package testsupport

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/store"
)

// Backend is what the pipeline needs from a store driver.
type Backend interface {
	domain.Driver
	domain.VersionedOpener
}

// MustDriver returns a BoltDB driver rooted in a temp dir.
func MustDriver(t testing.TB) *store.Driver {
	t.Helper()

	d, err := store.NewDriver(t.TempDir(), 200*time.Millisecond, log.NullLogger())
	if err != nil {
		t.Fatalf("store.NewDriver: %v", err)
	}
	return d
}

// MustOpen opens name through the versioned tier and registers cleanup.
func MustOpen(t testing.TB, d domain.VersionedOpener, name string, schema domain.Schema) domain.Handle {
	t.Helper()

	h, err := d.OpenVersioned(context.Background(), name, schema)
	if err != nil {
		t.Fatalf("OpenVersioned(%s): %v", name, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// MustDocs parses JSON objects into documents.
func MustDocs(t testing.TB, objects ...string) []domain.Document {
	t.Helper()

	docs := make([]domain.Document, 0, len(objects))
	for _, o := range objects {
		d, err := domain.DecodeDocument([]byte(o))
		if err != nil {
			t.Fatalf("DecodeDocument(%s): %v", o, err)
		}
		docs = append(docs, d)
	}
	return docs
}

// Seed writes docs into collection of an already-open handle.
func Seed(t testing.TB, h domain.Handle, collection string, objects ...string) {
	t.Helper()

	if err := h.BulkUpsert(context.Background(), collection, MustDocs(t, objects...)); err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
}

// Snapshot reads a collection into a map keyed by Key.String().
func Snapshot(t testing.TB, h domain.Handle, collection string) map[string]domain.Document {
	t.Helper()

	docs, err := h.ReadAll(context.Background(), collection)
	if err != nil {
		t.Fatalf("ReadAll(%s): %v", collection, err)
	}
	out := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		k, err := d.Key(domain.KeyPathID)
		if err != nil {
			t.Fatalf("record without id in %s: %v", collection, err)
		}
		out[k.String()] = d
	}
	return out
}

// FaultyDriver wraps a Backend, records every call and fails the ones
// registered in Faults. Fault keys are "op:store" for driver calls and
// "op:store/collection" for handle calls, e.g. "delete:marquee" or
// "upsert:marquee/history".
type FaultyDriver struct {
	Inner  Backend
	Faults map[string]error

	mu    sync.Mutex
	calls []string
}

// NewFaultyDriver wraps inner with no faults registered.
func NewFaultyDriver(inner Backend) *FaultyDriver {
	return &FaultyDriver{Inner: inner, Faults: map[string]error{}}
}

// Fail registers err for call.
func (f *FaultyDriver) Fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Faults[call] = err
}

// Calls returns every call recorded so far, in order.
func (f *FaultyDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many recorded calls start with prefix.
func (f *FaultyDriver) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *FaultyDriver) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.Faults[call]
}

func (f *FaultyDriver) Open(ctx context.Context, name string) (domain.Handle, error) {
	if err := f.record("open:" + name); err != nil {
		return nil, err
	}
	h, err := f.Inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &faultyHandle{Handle: h, f: f}, nil
}

func (f *FaultyDriver) OpenVersioned(ctx context.Context, name string, schema domain.Schema) (domain.Handle, error) {
	if err := f.record("openversioned:" + name); err != nil {
		return nil, err
	}
	h, err := f.Inner.OpenVersioned(ctx, name, schema)
	if err != nil {
		return nil, err
	}
	return &faultyHandle{Handle: h, f: f}, nil
}

func (f *FaultyDriver) Delete(ctx context.Context, name string) error {
	if err := f.record("delete:" + name); err != nil {
		return err
	}
	return f.Inner.Delete(ctx, name)
}

func (f *FaultyDriver) Exists(ctx context.Context, name string) (bool, error) {
	if err := f.record("exists:" + name); err != nil {
		return false, err
	}
	return f.Inner.Exists(ctx, name)
}

type faultyHandle struct {
	domain.Handle
	f *FaultyDriver
}

func (h *faultyHandle) call(op, collection string) error {
	return h.f.record(op + ":" + h.Name() + "/" + collection)
}

func (h *faultyHandle) ReadAll(ctx context.Context, collection string) ([]domain.Document, error) {
	if err := h.call("read", collection); err != nil {
		return nil, err
	}
	return h.Handle.ReadAll(ctx, collection)
}

func (h *faultyHandle) BulkUpsert(ctx context.Context, collection string, docs []domain.Document) error {
	if err := h.call("upsert", collection); err != nil {
		return err
	}
	return h.Handle.BulkUpsert(ctx, collection, docs)
}

func (h *faultyHandle) Put(ctx context.Context, collection string, doc domain.Document) error {
	if err := h.call("put", collection); err != nil {
		return err
	}
	return h.Handle.Put(ctx, collection, doc)
}

func (h *faultyHandle) Delete(ctx context.Context, collection string, key domain.Key) error {
	if err := h.call("remove", collection); err != nil {
		return err
	}
	return h.Handle.Delete(ctx, collection, key)
}

// Quiet returns a logger that drops everything; handy for constructors that
// insist on one.
func Quiet() *slog.Logger {
	return log.NullLogger()
}
