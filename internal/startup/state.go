package startup

import (
	"log/slog"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/migrate"
	"github.com/mmcdole/marquee/internal/rescue"
)

// State is a step of the startup sequence.
type State int

const (
	Opening State = iota
	Open
	OpenFailed
	Rescuing
	Rescued
	RescueFailed
	Reopening
	Reload
	RestoreCheck
	Migrating
	Ready
)

var stateNames = [...]string{
	Opening:      "OPENING",
	Open:         "OPEN",
	OpenFailed:   "OPEN_FAILED",
	Rescuing:     "RESCUING",
	Rescued:      "RESCUED",
	RescueFailed: "RESCUE_FAILED",
	Reopening:    "REOPENING",
	Reload:       "RELOAD",
	RestoreCheck: "RESTORE_CHECK",
	Migrating:    "MIGRATING",
	Ready:        "READY",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether the sequence stops at s. RescueFailed is terminal
// with degradation: the application carries on with whatever store exists.
func (s State) Terminal() bool {
	return s == Ready || s == Reload || s == RescueFailed
}

// Degraded reports whether s leaves the application without a healthy store.
func (s State) Degraded() bool {
	return s == RescueFailed
}

// Session carries one pass through the startup sequence.
type Session struct {
	State State
	Path  []State // every state entered, in order

	// Store is the open primary store once Ready; the caller closes it.
	Store domain.Handle

	OpenErr   error
	Restore   rescue.RestoreResult
	Migration migrate.Result

	// Previous is the pass that ended in Reload before this one, if any.
	Previous *Session
}

func newSession() *Session {
	return &Session{State: Opening, Path: []State{Opening}}
}

// Close releases the primary store if the session holds one.
func (s *Session) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	err := s.Store.Close()
	s.Store = nil
	return err
}

// Restored returns the restore performed during this pass or an earlier one
// that led to it.
func (s *Session) Restored() (rescue.RestoreResult, bool) {
	for p := s; p != nil; p = p.Previous {
		if p.Restore.Performed {
			return p.Restore, true
		}
	}
	return rescue.RestoreResult{}, false
}

// Reloads counts the passes before this one.
func (s *Session) Reloads() int {
	n := 0
	for p := s.Previous; p != nil; p = p.Previous {
		n++
	}
	return n
}

// LogValue renders the session for slog.
func (s *Session) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("state", s.State.String())}
	if s.OpenErr != nil {
		attrs = append(attrs, slog.String("open_error", s.OpenErr.Error()))
	}
	if s.Restore.Performed {
		attrs = append(attrs, slog.String("rescue_id", s.Restore.RescueID))
	}
	return slog.GroupValue(attrs...)
}

// Observer is told about every state change.
type Observer interface {
	Transition(from, to State, s *Session)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(from, to State, s *Session)

func (f ObserverFunc) Transition(from, to State, s *Session) { f(from, to, s) }

type nopObserver struct{}

func (nopObserver) Transition(State, State, *Session) {}
