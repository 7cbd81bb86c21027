// Package startup sequences opening the primary store: rescue when it will
// not open, restore a pending rescue when it does, then normalize ids.
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/migrate"
	"github.com/mmcdole/marquee/internal/rescue"
)

// Rescuer backs up and resets a store that failed to open.
type Rescuer interface {
	PerformRescue(ctx context.Context, name string) bool
}

// Restorer merges a pending rescue back into the primary store.
type Restorer interface {
	RestoreFromRescue(ctx context.Context, primary domain.Handle) rescue.RestoreResult
}

// Migrator normalizes ids in an open primary store.
type Migrator interface {
	Run(ctx context.Context, h domain.Handle) migrate.Result
}

// Deps are the collaborators of an Orchestrator. Opener, Rescuer, Restorer
// and Migrator are required.
type Deps struct {
	Opener   domain.VersionedOpener
	Name     string
	Schema   domain.Schema
	Rescuer  Rescuer
	Restorer Restorer
	Migrator Migrator
	Reporter domain.Reporter
	Observer Observer
	Logger   *slog.Logger
}

// Orchestrator drives the startup state machine.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator. Schema defaults to domain.PrimarySchema.
func New(deps Deps) *Orchestrator {
	if deps.Schema.Version == 0 {
		deps.Schema = domain.PrimarySchema
	}
	if deps.Reporter == nil {
		deps.Reporter = domain.NopReporter{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps}
}

// SetObserver replaces the observer for subsequent runs.
func (o *Orchestrator) SetObserver(obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	o.deps.Observer = obs
}

// Run drives one pass from Opening to a terminal state. It stops early only
// when ctx is done before a step begins; a rescue in progress always runs to
// completion.
func (o *Orchestrator) Run(ctx context.Context) (*Session, error) {
	s := newSession()
	for !s.State.Terminal() {
		if err := ctx.Err(); err != nil {
			s.Close()
			return s, err
		}
		var err error
		if s, err = o.step(ctx, s); err != nil {
			s.Close()
			return s, err
		}
	}
	o.deps.Logger.Info("startup finished", "session", s)
	return s, nil
}

func (o *Orchestrator) step(ctx context.Context, s *Session) (*Session, error) {
	switch s.State {
	case Opening:
		return o.open(ctx, s)
	case OpenFailed:
		return o.transition(s, Rescuing), nil
	case Rescuing:
		return o.rescue(ctx, s), nil
	case Rescued:
		return o.transition(s, Reopening), nil
	case Reopening:
		return o.reopen(ctx, s), nil
	case Open:
		return o.transition(s, RestoreCheck), nil
	case RestoreCheck:
		return o.restoreCheck(ctx, s), nil
	case Migrating:
		return o.migrate(ctx, s), nil
	default:
		return s, fmt.Errorf("startup: no step from %s", s.State)
	}
}

func (o *Orchestrator) transition(s *Session, to State) *Session {
	from := s.State
	s.State = to
	s.Path = append(s.Path, to)
	o.deps.Logger.Debug("startup transition", "from", from.String(), "to", to.String())
	o.deps.Observer.Transition(from, to, s)
	return s
}

func (o *Orchestrator) open(ctx context.Context, s *Session) (*Session, error) {
	h, err := o.deps.Opener.OpenVersioned(ctx, o.deps.Name, o.deps.Schema)
	if err != nil {
		// A cancelled open says nothing about the store's health.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s, err
		}
		s.OpenErr = err
		o.log(domain.SeverityError, "primary store failed to open", map[string]any{
			"store": o.deps.Name, "error": err,
		})
		return o.transition(s, OpenFailed), nil
	}
	s.Store = h
	return o.transition(s, Open), nil
}

func (o *Orchestrator) rescue(ctx context.Context, s *Session) *Session {
	if !o.deps.Rescuer.PerformRescue(ctx, o.deps.Name) {
		o.log(domain.SeverityCritical, "rescue failed, continuing with a broken store", map[string]any{
			"store": o.deps.Name, "openError": s.OpenErr,
		})
		return o.transition(s, RescueFailed)
	}
	return o.transition(s, Rescued)
}

// reopen recreates the primary store and restores into it before handing
// over to a reload. A failure here leaves the quarantine for the next start.
func (o *Orchestrator) reopen(ctx context.Context, s *Session) *Session {
	h, err := o.deps.Opener.OpenVersioned(ctx, o.deps.Name, o.deps.Schema)
	if err != nil {
		o.log(domain.SeverityError, "store did not reopen after rescue, restore deferred", map[string]any{
			"store": o.deps.Name, "error": err,
		})
		return o.transition(s, Reload)
	}
	s.Restore = o.deps.Restorer.RestoreFromRescue(ctx, h)
	if err := h.Close(); err != nil {
		o.log(domain.SeverityWarn, "failed to close store before reload", map[string]any{
			"store": o.deps.Name, "error": err,
		})
	}
	return o.transition(s, Reload)
}

func (o *Orchestrator) restoreCheck(ctx context.Context, s *Session) *Session {
	s.Restore = o.deps.Restorer.RestoreFromRescue(ctx, s.Store)
	return o.transition(s, Migrating)
}

func (o *Orchestrator) migrate(ctx context.Context, s *Session) *Session {
	s.Migration = o.deps.Migrator.Run(ctx, s.Store)
	return o.transition(s, Ready)
}

func (o *Orchestrator) log(sev domain.Severity, msg string, ctx map[string]any) {
	o.deps.Reporter.Log(domain.LogEntry{Message: msg, Type: sev, Context: ctx})
}
