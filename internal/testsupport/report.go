package testsupport

import (
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
)

// Recorder is a domain.Reporter that keeps every entry in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (r *Recorder) Log(entry domain.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of everything logged so far.
func (r *Recorder) Entries() []domain.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LogEntry(nil), r.entries...)
}

// BySeverity returns the entries logged at s.
func (r *Recorder) BySeverity(s domain.Severity) []domain.LogEntry {
	var out []domain.LogEntry
	for _, e := range r.Entries() {
		if e.Type == s {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether an entry with message and severity was logged.
func (r *Recorder) Has(s domain.Severity, message string) bool {
	for _, e := range r.BySeverity(s) {
		if e.Message == message {
			return true
		}
	}
	return false
}
